//go:build !cgo

package cmd

import (
	"errors"

	"github.com/vsariola/signals/gomidi"
)

type nullMidiContext struct{}

func (nullMidiContext) Inputs() ([]string, error) { return nil, nil }

func (nullMidiContext) Open(string) error {
	return errors.New("MIDI input needs a build with cgo")
}

func (nullMidiContext) Close() error { return nil }

func NewMidiContext(controls *gomidi.Controls) MidiContext {
	// with no cgo, we cannot use MIDI, so return a null context
	return nullMidiContext{}
}
