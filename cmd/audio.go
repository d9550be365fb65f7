package cmd

import (
	"fmt"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/oto"
)

// NewAudioContext opens the audio backend named in the config.
func NewAudioContext(cfg Config) (signals.AudioContext, error) {
	switch cfg.Backend {
	case "oto":
		c, err := oto.NewContext(cfg.SampleRate, cfg.Channels)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "portaudio":
		return newPortAudioContext(cfg)
	case "none":
		return &device.Null{Realtime: true}, nil
	}
	return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
}
