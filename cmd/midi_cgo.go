//go:build cgo

package cmd

import (
	"github.com/vsariola/signals/gomidi"
	"github.com/vsariola/signals/gomidi/rtmidi"
)

func NewMidiContext(controls *gomidi.Controls) MidiContext {
	return rtmidi.NewContext(controls)
}
