// Package gomidi turns MIDI control changes into signals. Messages arrive on
// the MIDI driver's goroutine and are queued; MidiCC nodes drain the queue
// when they are evaluated, so all bookkeeping happens on the pulling side.
package gomidi

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Controls tracks the latest value of every controller on every channel.
	Controls struct {
		events chan controlChange
		values map[controller]uint8
	}

	controller struct {
		channel, number uint8
	}

	controlChange struct {
		controller
		value uint8
	}

	MidiCCState struct {
		graph.EmitterState
		Channel    int `json:"channel" validate:"gte=0,lte=15"`
		Controller int `json:"controller" validate:"gte=0,lte=127"`
	}

	// MidiCC answers with the latest value of one controller, scaled to
	// [0, 1]. Controllers that have not moved yet read as 0.
	MidiCC struct {
		graph.Stateful[MidiCCState]
		controls *Controls
	}
)

const eventQueueSize = 1024

func NewControls() *Controls {
	return &Controls{events: make(chan controlChange, eventQueueSize), values: map[controller]uint8{}}
}

// HandleMessage queues control changes and ignores everything else. It never
// blocks; if the queue is full the message is dropped.
func (c *Controls) HandleMessage(msg midi.Message, timestampms int32) {
	var channel, number, value uint8
	if msg.GetControlChange(&channel, &number, &value) {
		signals.TrySend(c.events, controlChange{controller{channel, number}, value})
	}
}

func (c *Controls) update() {
	for _, e := range signals.Drain(c.events) {
		c.values[e.controller] = e.value
	}
}

// Value is the latest value of the controller, after applying queued
// messages. Only call it from the goroutine that pulls the graph.
func (c *Controls) Value(channel, number int) uint8 {
	c.update()
	return c.values[controller{uint8(channel), uint8(number)}]
}

// Class returns the MidiCC class reading from c.
func (c *Controls) Class() *graph.Class {
	return &graph.Class{
		Name:  "MidiCC",
		Doc:   "latest value of a MIDI control change, 0..1",
		Flags: signals.Generator,
		New: func() graph.Node {
			return &MidiCC{Stateful: graph.WithState(MidiCCState{EmitterState: graph.DefaultEmitter()}), controls: c}
		},
	}
}

func (m *MidiCC) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	s := m.Get()
	return signals.ConstantBlock(float32(m.controls.Value(s.Channel, s.Controller)) / 127), nil
}

func (m *MidiCC) Channels(in *graph.Inputs) (int, error) { return 1, nil }
