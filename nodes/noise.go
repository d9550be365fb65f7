package nodes

import (
	"math/rand/v2"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	WhiteState struct {
		graph.EmitterState
		graph.ChannelsState
		Seed uint64 `json:"seed"`
	}

	// White is uniform noise in [-1, 1) on every channel.
	White struct {
		graph.Stateful[WhiteState]
		rng  *rand.Rand
		seed uint64
	}
)

var WhiteClass = &graph.Class{
	Name:  "White",
	Doc:   "uniform white noise",
	Flags: signals.Generator,
	New: func() graph.Node {
		return &White{Stateful: graph.WithState(WhiteState{
			EmitterState:  graph.DefaultEmitter(),
			ChannelsState: graph.ChannelsState{Channels: 1},
		})}
	},
}

func (w *White) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	s := w.Get()
	if w.rng == nil || w.seed != s.Seed {
		w.seed = s.Seed
		w.rng = rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	}
	b := signals.NewBlock(signals.Shape{Frames: req.Loc.Shape.Frames, Channels: s.Channels})
	for i := range b.Data {
		b.Data[i] = 2*w.rng.Float32() - 1
	}
	return b, nil
}

func (w *White) Channels(in *graph.Inputs) (int, error) { return w.Get().Channels, nil }
