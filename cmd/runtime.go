package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/control"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/gomidi"
	"github.com/vsariola/signals/graph"
	"github.com/vsariola/signals/nodes"
	"github.com/vsariola/signals/patch"
	"github.com/vsariola/signals/player"
)

type (
	// MidiContext feeds a MIDI input device into the MidiCC nodes.
	MidiContext interface {
		Inputs() ([]string, error)
		Open(namePrefix string) error
		Close() error
	}

	// Runtime is everything a running patch needs, wired together.
	Runtime struct {
		Config     Config
		Metrics    *prometheus.Registry
		Audio      signals.AudioContext
		Rack       *device.Rack
		Map        *patch.Map
		Engine     *player.Engine
		Controller *control.Controller
		Midi       MidiContext
		logger     *slog.Logger
	}
)

// NewRuntime opens the audio backend and builds the patch, its engine and its
// controller. Controller output goes to out.
func NewRuntime(cfg Config, out io.Writer, interactive bool, logger *slog.Logger) (*Runtime, error) {
	audio, err := NewAudioContext(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not open the %s audio backend: %w", cfg.Backend, err)
	}
	return NewRuntimeWith(audio, cfg, out, interactive, logger)
}

// NewRuntimeWith is NewRuntime over an already opened audio context.
func NewRuntimeWith(audio signals.AudioContext, cfg Config, out io.Writer, interactive bool, logger *slog.Logger) (*Runtime, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	rack := device.NewRack(audio, cfg.StreamConfig(),
		device.WithLogger(logger),
		device.WithMetrics(device.NewMetrics(reg)))
	controls := gomidi.NewControls()
	classes := graph.NewRegistry()
	if err := nodes.Register(classes); err != nil {
		return nil, err
	}
	if err := classes.Register(append(rack.Classes(), controls.Class())...); err != nil {
		return nil, err
	}
	g := graph.New(graph.WithLogger(logger), graph.WithMetrics(graph.NewMetrics(reg)))
	m := patch.New(g, classes, patch.WithDevices(rack), patch.WithLogger(logger))
	engine := player.New(m,
		player.WithLogger(logger),
		player.WithMetrics(player.NewMetrics(reg)),
		player.WithReleaser(rack))
	rack.SetGuard(engine.Guard)
	opts := []control.Option{
		control.WithOutput(out),
		control.WithLogger(logger),
		control.WithDevices(rack),
		control.WithHistorySize(cfg.HistorySize),
		control.WithInteractive(interactive),
	}
	if cfg.RecoveryFile != "" {
		opts = append(opts, control.WithRecoveryFile(cfg.RecoveryFile))
	}
	r := &Runtime{
		Config:     cfg,
		Metrics:    reg,
		Audio:      audio,
		Rack:       rack,
		Map:        m,
		Engine:     engine,
		Controller: control.New(engine, opts...),
		Midi:       NewMidiContext(controls),
		logger:     logger,
	}
	if cfg.MidiInput != "" {
		if err := r.Midi.Open(cfg.MidiInput); err != nil {
			logger.Warn("could not open MIDI input", "input", cfg.MidiInput, "err", err)
		}
	}
	return r, nil
}

// Close removes every node and closes the MIDI and audio contexts.
func (r *Runtime) Close() error {
	return errors.Join(r.Engine.Shutdown(), r.Midi.Close(), r.Audio.Close())
}
