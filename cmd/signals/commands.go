package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/cmd"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/patch"
	"github.com/vsariola/signals/version"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	overrides  cmd.Config

	watchFlag   bool
	recoverFlag bool

	renderAt     string
	renderFrames int
	renderOut    string
	renderPCM    bool

	rootCmd = &cobra.Command{
		Use:           "signals",
		Short:         "A modular audio patching environment driven by a command language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:     "run [patch file]",
		Short:   "Load a patch and read commands from standard input",
		Aliases: []string{"repl"},
		Args:    cobra.MaximumNArgs(1),
		RunE:    runPatch,
	}

	renderCmd = &cobra.Command{
		Use:   "render <patch file>",
		Short: "Render the output of a sink offline into a .wav or .raw file",
		Args:  cobra.ExactArgs(1),
		RunE:  renderPatch,
	}

	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List the audio devices of the backend",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return listWith(c, "sources", "sinks")
		},
	}

	classesCmd = &cobra.Command{
		Use:   "classes [pattern]",
		Short: "List the signal classes, optionally only those matching a pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if len(args) == 1 {
				return listWith(c, "grep "+args[0])
			}
			return listWith(c, "classes")
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprintln(c.OutOrStdout(), version.Describe())
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&overrides.Backend, "backend", "", "audio backend: oto, portaudio or none")
	pf.IntVar(&overrides.SampleRate, "sample-rate", 0, "sample rate of the device streams")
	pf.IntVar(&overrides.BlockFrames, "block-frames", 0, "frames per block")
	pf.IntVar(&overrides.Channels, "channels", 0, "channels of the device streams")
	pf.StringVar(&overrides.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	pf.StringVar(&overrides.MidiInput, "midi-input", "", "open the first MIDI input whose name starts with this")
	pf.StringVar(&overrides.LogLevel, "log-level", "", "debug, info, warn or error")

	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "reload the patch file whenever it changes")
	runCmd.Flags().BoolVar(&recoverFlag, "recover", false, "start from the recovery file of the previous session")

	renderCmd.Flags().StringVar(&renderAt, "at", "", "coordinates of the sink to render")
	renderCmd.Flags().IntVarP(&renderFrames, "frames", "n", 0, "number of frames to render (default one second)")
	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "", "output file; .raw writes headerless samples, anything else a .wav")
	renderCmd.Flags().BoolVar(&renderPCM, "pcm", false, "write 16-bit signed PCM instead of 32-bit float")
	renderCmd.MarkFlagRequired("at")

	rootCmd.AddCommand(runCmd, renderCmd, devicesCmd, classesCmd, versionCmd)
}

// loadConfig reads the config file and applies the flags given on the
// command line over it.
func loadConfig(c *cobra.Command) (cmd.Config, *slog.Logger, error) {
	cfg, err := cmd.LoadConfig(configPath)
	if err != nil {
		return cmd.Config{}, nil, err
	}
	flags := c.Flags()
	if flags.Changed("backend") {
		cfg.Backend = overrides.Backend
	}
	if flags.Changed("sample-rate") {
		cfg.SampleRate = overrides.SampleRate
	}
	if flags.Changed("block-frames") {
		cfg.BlockFrames = overrides.BlockFrames
	}
	if flags.Changed("channels") {
		cfg.Channels = overrides.Channels
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = overrides.MetricsAddr
	}
	if flags.Changed("midi-input") {
		cfg.MidiInput = overrides.MidiInput
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = overrides.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return cmd.Config{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runPatch(c *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	if watchFlag && len(args) == 0 {
		return errors.New("--watch needs a patch file")
	}
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	rt, err := cmd.NewRuntime(cfg, c.OutOrStdout(), interactive, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("closing the runtime failed", "err", err)
		}
	}()
	if recoverFlag {
		if err := rt.Controller.Recover(); err != nil {
			return fmt.Errorf("could not recover the previous session: %w", err)
		}
	}
	if len(args) == 1 {
		if err := rt.Controller.Load(args[0]); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		err := rt.Controller.Run(gctx, c.InOrStdin())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err == nil && watchFlag && !interactive {
			// a script only sets things up; keep watching until interrupted
			<-gctx.Done()
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return cmd.ServeMetrics(gctx, cfg.MetricsAddr, rt.Metrics, logger) })
	}
	if cfg.RecoveryFile != "" && cfg.RecoveryInterval > 0 {
		g.Go(func() error { return rt.Controller.RunRecovery(gctx, cfg.RecoveryInterval) })
	}
	if watchFlag {
		g.Go(func() error { return rt.Controller.Watch(gctx, args[0]) })
	}
	return g.Wait()
}

func renderPatch(c *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	at, err := signals.ParseCoordinates(renderAt)
	if err != nil {
		return err
	}
	rt, err := cmd.NewRuntimeWith(&device.Null{}, cfg, c.OutOrStdout(), false, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.Controller.Load(args[0]); err != nil {
		return err
	}
	var channels int
	err = rt.Engine.Exec(func(m *patch.Map) error {
		s, err := m.Sink(at)
		if err != nil {
			return err
		}
		channels = s.Config().Channels
		return nil
	})
	if err != nil {
		return err
	}
	frames := renderFrames
	if frames <= 0 {
		frames = cfg.SampleRate
	}
	buffer, err := rt.Engine.Render(c.Context(), at, frames, cfg.BlockFrames)
	if err != nil {
		return err
	}
	out := renderOut
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".wav"
	}
	var contents []byte
	if strings.EqualFold(filepath.Ext(out), ".raw") {
		contents, err = signals.Raw(buffer, renderPCM)
	} else {
		contents, err = signals.Wav(buffer, cfg.SampleRate, channels, renderPCM)
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create output directory %v: %w", dir, err)
		}
	}
	if err := os.WriteFile(out, contents, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", out, err)
	}
	logger.Info("rendered", "sink", at, "frames", frames, "file", out)
	return nil
}

// listWith runs listing commands of the command language against an empty
// patch.
func listWith(c *cobra.Command, lines ...string) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	rt, err := cmd.NewRuntime(cfg, c.OutOrStdout(), false, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	for _, l := range lines {
		if err := rt.Controller.Execute(l); err != nil {
			return err
		}
	}
	return nil
}
