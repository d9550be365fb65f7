// Package rtmidi connects MIDI input devices to gomidi.Controls through the
// RtMidi driver. It needs cgo.
package rtmidi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vsariola/signals/gomidi"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Context listens to at most one input device at a time.
type Context struct {
	driver    *rtmididrv.Driver
	currentIn drivers.In
	stop      func()
	controls  *gomidi.Controls
}

var ErrNoDriver = errors.New("no MIDI driver available")

// NewContext opens the driver. There's not much we can do if this fails, so
// a nil driver indicates that no MIDI is available; Open will then fail.
func NewContext(controls *gomidi.Controls) *Context {
	c := &Context{controls: controls}
	c.driver, _ = rtmididrv.New()
	return c
}

// Inputs lists the names of the input devices.
func (c *Context) Inputs() ([]string, error) {
	if c.driver == nil {
		return nil, ErrNoDriver
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// Open starts listening to the first input whose name starts with
// namePrefix, closing the currently open input if necessary.
func (c *Context) Open(namePrefix string) error {
	if c.driver == nil {
		return ErrNoDriver
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return err
	}
	for _, in := range ins {
		if !strings.HasPrefix(in.String(), namePrefix) {
			continue
		}
		if in == c.currentIn {
			return nil
		}
		c.closeInput()
		if err := in.Open(); err != nil {
			return fmt.Errorf("opening MIDI input failed: %w", err)
		}
		stop, err := midi.ListenTo(in, c.controls.HandleMessage)
		if err != nil {
			in.Close()
			return fmt.Errorf("listening to MIDI input failed: %w", err)
		}
		c.currentIn, c.stop = in, stop
		return nil
	}
	return fmt.Errorf("could not find any MIDI input starting with %q", namePrefix)
}

func (c *Context) closeInput() {
	if c.stop != nil {
		c.stop()
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.currentIn, c.stop = nil, nil
}

func (c *Context) Close() error {
	if c.driver == nil {
		return nil
	}
	c.closeInput()
	return c.driver.Close()
}
