package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/control"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of the signals binary. Zero values are replaced
// with the defaults when loading.
type Config struct {
	SampleRate       int           `yaml:"sample_rate" validate:"gte=8000,lte=384000"`
	BlockFrames      int           `yaml:"block_frames" validate:"gte=16,lte=65536"`
	Channels         int           `yaml:"channels" validate:"gte=1,lte=64"`
	HistorySize      int           `yaml:"history_size" validate:"gte=1"`
	Backend          string        `yaml:"backend" validate:"oneof=oto portaudio none"`
	Latency          time.Duration `yaml:"latency" validate:"gte=0"`
	RecoveryFile     string        `yaml:"recovery_file"`
	RecoveryInterval time.Duration `yaml:"recovery_interval" validate:"gte=0"`
	MetricsAddr      string        `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	MidiInput        string        `yaml:"midi_input"`
	LogLevel         string        `yaml:"log_level" validate:"oneof=debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig is used for everything a config file leaves out.
func DefaultConfig() Config {
	return Config{
		SampleRate:       44100,
		BlockFrames:      512,
		Channels:         2,
		HistorySize:      control.DefaultHistorySize,
		Backend:          "oto",
		Latency:          50 * time.Millisecond,
		RecoveryFile:     DefaultRecoveryFile(),
		RecoveryInterval: 30 * time.Second,
		LogLevel:         "info",
	}
}

// DefaultRecoveryFile is the recovery file in the user config directory, or
// empty if there is none.
func DefaultRecoveryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "Signals", "recovery.sig")
}

// LoadConfig reads the YAML file at path over the defaults. An empty path
// gives the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s %q fails %s %s", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag(), fe.Param())
	}
	return err
}

// StreamConfig is the format of the device streams.
func (c Config) StreamConfig() signals.StreamConfig {
	return signals.StreamConfig{Rate: c.SampleRate, Channels: c.Channels, Frames: c.BlockFrames}
}

func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
