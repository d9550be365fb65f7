// Package oto plays audio on the default output device with
// github.com/ebitengine/oto/v3. It cannot record.
package oto

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/signals"
)

type (
	// OtoContext is a signals.AudioContext with a single output device. oto
	// allows one context per process, so the sample rate and channel count
	// are fixed when it is created.
	OtoContext struct {
		context  *oto.Context
		rate     int
		channels int
	}

	OtoStream struct {
		player *oto.Player
		reader *fillReader
	}

	// fillReader adapts a FillFunc to the io.Reader oto pulls from.
	fillReader struct {
		mu      sync.Mutex
		fill    signals.FillFunc
		samples []float32
		pending []byte
	}
)

const otoBufferSize = 8192

var ErrNoInput = errors.New("oto cannot record")

// NewContext creates the oto context and waits until it is ready.
func NewContext(rate, channels int) (*OtoContext, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context, rate: rate, channels: channels}, nil
}

func (c *OtoContext) Devices() ([]signals.DeviceInfo, error) {
	return []signals.DeviceInfo{{
		Name:              "default",
		MaxOutputChannels: c.channels,
		DefaultSampleRate: float64(c.rate),
	}}, nil
}

func (c *OtoContext) Play(dev signals.DeviceInfo, cfg signals.StreamConfig, fill signals.FillFunc) (signals.Stream, error) {
	if cfg.Rate != c.rate || cfg.Channels != c.channels {
		return nil, fmt.Errorf("oto context runs at %dHz with %d channels, cannot open %dHz with %d", c.rate, c.channels, cfg.Rate, cfg.Channels)
	}
	r := &fillReader{fill: fill, samples: make([]float32, cfg.Frames*cfg.Channels)}
	p := c.context.NewPlayer(r)
	p.SetBufferSize(otoBufferSize)
	return &OtoStream{player: p, reader: r}, nil
}

func (c *OtoContext) Record(dev signals.DeviceInfo, cfg signals.StreamConfig, consume signals.ConsumeFunc) (signals.Stream, error) {
	return nil, ErrNoInput
}

func (c *OtoContext) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (s *OtoStream) Start() error {
	s.player.Play()
	return nil
}

func (s *OtoStream) Stop() error {
	s.player.Pause()
	return nil
}

// Close disposes of resources
func (s *OtoStream) Close() error {
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Read implements io.Reader for oto.Player. Blocks are rendered a full
// callback at a time; what does not fit in p is kept for the next read.
func (r *fillReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			r.fill(r.samples)
			r.pending = FloatBufferTo16BitLE(r.samples, r.pending[:0])
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	return n, nil
}
