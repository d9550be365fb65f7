package nodes

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	// TimeClock counts seconds from position 0. A bound hertz port overrides
	// the sample rate of the request as the number of frames per second.
	TimeClock struct{ emitter }

	// TempoClock converts a time in seconds (tclock) to beats at bpm.
	TempoClock struct{ emitter }
)

var (
	TimeClockClass = &graph.Class{
		Name:  "TimeClock",
		Doc:   "time of each frame in seconds",
		Flags: signals.Generator,
		Ports: []string{"hertz"},
		New:   func() graph.Node { return &TimeClock{newEmitter()} },
	}
	TempoClockClass = &graph.Class{
		Name:  "TempoClock",
		Doc:   "time of each frame in beats",
		Flags: signals.Generator,
		Ports: []string{"tclock", "bpm"},
		New:   func() graph.Node { return &TempoClock{newEmitter()} },
	}
)

func (c *TimeClock) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	hertz := in.Port("hertz")
	if !hertz.IsBound() {
		return timeBlock(req.Loc, float64(req.Loc.Rate)), nil
	}
	h, err := hertz.ForwardAtBlockRate(req)
	if err != nil {
		return signals.Block{}, err
	}
	rate := float64(h.Data[0])
	if rate <= 0 {
		return signals.Silence(), nil
	}
	return timeBlock(req.Loc, rate), nil
}

func (c *TimeClock) Channels(in *graph.Inputs) (int, error) { return 1, nil }

func (c *TempoClock) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	t, err := forwardOrTime(in.Port("tclock"), req)
	if err != nil {
		return signals.Block{}, err
	}
	bpm, err := in.Port("bpm").Forward(req)
	if err != nil {
		return signals.Block{}, err
	}
	beats, err := signals.Mul(t, bpm)
	if err != nil {
		return signals.Block{}, err
	}
	return beats.Scale(1.0 / 60), nil
}

func (c *TempoClock) Channels(in *graph.Inputs) (int, error) { return 1, nil }
