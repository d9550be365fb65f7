//go:build cgo

package cmd

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/portaudio"
)

func newPortAudioContext(cfg Config) (signals.AudioContext, error) {
	return portaudio.NewContext(cfg.Latency)
}
