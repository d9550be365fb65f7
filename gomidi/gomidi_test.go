package gomidi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/gomidi"
	"github.com/vsariola/signals/graph"
	"gitlab.com/gomidi/midi/v2"
)

func TestMidiCC(t *testing.T) {
	controls := gomidi.NewControls()
	class := controls.Class()
	g := graph.New()
	h := g.Add(class, class.New())
	node, _ := g.Node(h)
	require.NoError(t, node.SetState(gomidi.MidiCCState{EmitterState: graph.DefaultEmitter(), Channel: 1, Controller: 74}))

	loc := signals.BlockLoc{Rate: 100, Shape: signals.Shape{Frames: 2, Channels: 1}}
	b, err := g.Pull(h, loc)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, b.Data)

	controls.HandleMessage(midi.ControlChange(1, 74, 127), 0)
	controls.HandleMessage(midi.ControlChange(2, 74, 10), 0)
	controls.HandleMessage(midi.NoteOn(1, 60, 100), 0)
	loc.Position = 2
	b, err = g.Pull(h, loc)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, b.Data)
	assert.Equal(t, uint8(10), controls.Value(2, 74))
}

func TestMidiCCStateRange(t *testing.T) {
	node := gomidi.NewControls().Class().New()
	err := node.SetState(gomidi.MidiCCState{EmitterState: graph.DefaultEmitter(), Channel: 16})
	var e *graph.BadStateValueError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "channel", e.Key)
}
