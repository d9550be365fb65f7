package nodes

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	FixedState struct {
		graph.EmitterState
		Value signals.Matrix `json:"value" validate:"required,min=1"`
	}

	// Fixed answers every request with its value. The value is usually a
	// single sample, [[440]], which broadcasts to any request.
	Fixed struct {
		graph.Stateful[FixedState]
	}
)

var FixedClass = &graph.Class{
	Name:  "Fixed",
	Doc:   "constant block given by value",
	Flags: signals.Constant,
	New: func() graph.Node {
		return &Fixed{Stateful: graph.WithState(FixedState{
			EmitterState: graph.DefaultEmitter(),
			Value:        signals.Matrix{{0}},
		})}
	},
}

func (f *Fixed) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	return f.Get().Value.Block(), nil
}

func (f *Fixed) Channels(in *graph.Inputs) (int, error) {
	return f.Get().Value.Shape().Channels, nil
}
