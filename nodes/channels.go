package nodes

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	// Flatten sums all channels of its input into one.
	Flatten struct{ emitter }

	// FlattenUnit averages all channels of its input into one, keeping the
	// range of a unit signal.
	FlattenUnit struct{ emitter }

	SelectState struct {
		graph.EmitterState
		Index int `json:"index" validate:"gte=0"`
	}

	// Select picks one channel of its input. An index past the last channel
	// yields silence.
	Select struct {
		graph.Stateful[SelectState]
	}

	// Merge stacks the channels of right after the channels of left.
	Merge struct{ emitter }
)

var (
	FlattenClass = &graph.Class{
		Name:  "Flatten",
		Doc:   "sum of all input channels",
		Flags: signals.Effect,
		Ports: []string{"input"},
		New:   func() graph.Node { return &Flatten{newEmitter()} },
	}
	FlattenUnitClass = &graph.Class{
		Name:  "FlattenUnit",
		Doc:   "mean of all input channels",
		Flags: signals.Effect,
		Ports: []string{"input"},
		New:   func() graph.Node { return &FlattenUnit{newEmitter()} },
	}
	SelectClass = &graph.Class{
		Name:  "Select",
		Doc:   "one channel of the input",
		Flags: signals.Effect,
		Ports: []string{"input"},
		New: func() graph.Node {
			return &Select{graph.WithState(SelectState{EmitterState: graph.DefaultEmitter()})}
		},
	}
	MergeClass = &graph.Class{
		Name:  "Merge",
		Doc:   "channels of left followed by channels of right",
		Flags: signals.Effect,
		Ports: []string{"left", "right"},
		New:   func() graph.Node { return &Merge{newEmitter()} },
	}
)

// requestNatural pulls the window of req from p with the channel count p
// naturally has, broadcast to full width. An unbound port answers with mono
// silence.
func requestNatural(p graph.Port, req graph.Request) (signals.Block, error) {
	n, ok, err := p.Channels()
	if err != nil || !ok {
		return signals.Silence(), err
	}
	b, err := p.Request(req.Loc.Reslice(n))
	if err != nil {
		return signals.Block{}, err
	}
	return b.Broadcast(signals.Shape{Frames: b.Shape.Frames, Channels: n})
}

func naturalChannels(p graph.Port) (int, error) {
	n, ok, err := p.Channels()
	if err != nil || !ok {
		return 1, err
	}
	return n, nil
}

func (f *Flatten) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := requestNatural(in.Port("input"), req)
	if err != nil {
		return signals.Block{}, err
	}
	return b.SumChannels(), nil
}

func (f *Flatten) Channels(in *graph.Inputs) (int, error) { return 1, nil }

func (f *FlattenUnit) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := requestNatural(in.Port("input"), req)
	if err != nil {
		return signals.Block{}, err
	}
	return b.MeanChannels(), nil
}

func (f *FlattenUnit) Channels(in *graph.Inputs) (int, error) { return 1, nil }

func (s *Select) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	p := in.Port("input")
	n, err := naturalChannels(p)
	if err != nil {
		return signals.Block{}, err
	}
	index := s.Get().Index
	if index >= n {
		return signals.Silence(), nil
	}
	b, err := requestNatural(p, req)
	if err != nil {
		return signals.Block{}, err
	}
	return b.SelectChannel(index), nil
}

func (s *Select) Channels(in *graph.Inputs) (int, error) { return 1, nil }

func (m *Merge) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	left, err := requestNatural(in.Port("left"), req)
	if err != nil {
		return signals.Block{}, err
	}
	right, err := requestNatural(in.Port("right"), req)
	if err != nil {
		return signals.Block{}, err
	}
	return signals.ConcatChannels(left, right)
}

func (m *Merge) Channels(in *graph.Inputs) (int, error) {
	l, err := naturalChannels(in.Port("left"))
	if err != nil {
		return 0, err
	}
	r, err := naturalChannels(in.Port("right"))
	if err != nil {
		return 0, err
	}
	return l + r, nil
}
