//go:build !cgo

package cmd

import (
	"errors"

	"github.com/vsariola/signals"
)

func newPortAudioContext(cfg Config) (signals.AudioContext, error) {
	return nil, errors.New("portaudio backend needs a build with cgo")
}
