package nodes

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	ScopeState struct {
		graph.EmitterState
		// Capacity is the number of blocks kept for a viewer. Older blocks are
		// dropped when nobody reads them.
		Capacity int `json:"capacity" validate:"gte=1,lte=4096"`
	}

	// Scope passes its input through and keeps copies of the blocks it
	// forwarded for a viewer on another goroutine.
	Scope struct {
		graph.Stateful[ScopeState]
		blocks chan ScopeBlock
	}

	// ScopeBlock is a block seen by a scope and where it was seen.
	ScopeBlock struct {
		Loc   signals.BlockLoc
		Block signals.Block
	}
)

const defaultScopeCapacity = 64

var ScopeClass = &graph.Class{
	Name:  "Scope",
	Doc:   "keeps the blocks passing through for viewing",
	Flags: signals.Vis | signals.PassThru,
	Ports: []string{"input"},
	New: func() graph.Node {
		return &Scope{Stateful: graph.WithState(ScopeState{
			EmitterState: graph.DefaultEmitter(),
			Capacity:     defaultScopeCapacity,
		})}
	},
}

func (s *Scope) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := in.Port("input").Forward(req)
	if err != nil {
		return signals.Block{}, err
	}
	capacity := s.Get().Capacity
	if s.blocks == nil || cap(s.blocks) != capacity {
		s.blocks = make(chan ScopeBlock, capacity)
	}
	sb := ScopeBlock{Loc: req.Loc, Block: b.Clone()}
	for !signals.TrySend(s.blocks, sb) {
		// full: make room by dropping the oldest block
		signals.TryReceive(s.blocks)
	}
	return b, nil
}

func (s *Scope) Channels(in *graph.Inputs) (int, error) {
	return naturalChannels(in.Port("input"))
}

// Blocks is the channel the forwarded blocks are delivered to. It is nil
// until the scope has been evaluated once and may be replaced when the
// capacity changes.
func (s *Scope) Blocks() <-chan ScopeBlock { return s.blocks }

// Drain returns all blocks collected since the last call.
func (s *Scope) Drain() []ScopeBlock {
	if s.blocks == nil {
		return nil
	}
	return signals.Drain(s.Blocks())
}
