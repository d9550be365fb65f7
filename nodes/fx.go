package nodes

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	// Add sums left and right.
	Add struct{ emitter }

	// Mix crossfades from right (mix = 0) to left (mix = 1).
	Mix struct{ emitter }

	// Gain multiplies left by right.
	Gain struct{ emitter }
)

var (
	AddClass = &graph.Class{
		Name:  "Add",
		Doc:   "left + right",
		Flags: signals.Effect,
		Ports: []string{"left", "right"},
		New:   func() graph.Node { return &Add{newEmitter()} },
	}
	MixClass = &graph.Class{
		Name:  "Mix",
		Doc:   "mix * left + (1 - mix) * right",
		Flags: signals.Effect,
		Ports: []string{"left", "right", "mix"},
		New:   func() graph.Node { return &Mix{newEmitter()} },
	}
	GainClass = &graph.Class{
		Name:  "Gain",
		Doc:   "left * right",
		Flags: signals.Effect,
		Ports: []string{"left", "right"},
		New:   func() graph.Node { return &Gain{newEmitter()} },
	}
)

func (a *Add) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := forwardAll(in, req, "left", "right")
	if err != nil {
		return signals.Block{}, err
	}
	return signals.Add(b[0], b[1])
}

func (a *Add) Channels(in *graph.Inputs) (int, error) { return graph.ImplicitChannels(in) }

func (m *Mix) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := forwardAll(in, req, "left", "right", "mix")
	if err != nil {
		return signals.Block{}, err
	}
	left, right, mix := b[0], b[1], b[2]
	l, err := signals.Mul(left, mix)
	if err != nil {
		return signals.Block{}, err
	}
	inv := apply(mix.Clone(), func(x float64) float64 { return 1 - x })
	r, err := signals.Mul(right, inv)
	if err != nil {
		return signals.Block{}, err
	}
	return signals.Add(l, r)
}

func (m *Mix) Channels(in *graph.Inputs) (int, error) { return graph.ImplicitChannels(in) }

func (g *Gain) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := forwardAll(in, req, "left", "right")
	if err != nil {
		return signals.Block{}, err
	}
	return signals.Mul(b[0], b[1])
}

func (g *Gain) Channels(in *graph.Inputs) (int, error) { return graph.ImplicitChannels(in) }
