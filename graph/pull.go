package graph

import (
	"fmt"
	"slices"

	"github.com/vsariola/signals"
)

// fanoutCache holds the last block of a node with several consumers, and the
// consumers that have not fetched it yet. It belongs to exactly one node and
// only respond touches it.
type fanoutCache struct {
	valid   bool
	loc     signals.BlockLoc
	block   signals.Block
	pending map[Output]struct{}
}

func (c *fanoutCache) reset() {
	c.valid = false
	c.block = signals.Block{}
	clear(c.pending)
}

// lookup serves a request from the cache if the consumer is still expected to
// ask for the cached position.
func (c *fanoutCache) lookup(req Request) (signals.Block, bool) {
	if !c.valid || req.Loc.Position != c.loc.Position || req.Loc.Rate != c.loc.Rate {
		return signals.Block{}, false
	}
	key := Output{Port: req.Port, Node: req.Requestor}
	if _, ok := c.pending[key]; !ok {
		return signals.Block{}, false
	}
	block, ok := fitCached(c.block, c.loc, req.Loc)
	if !ok {
		return signals.Block{}, false
	}
	delete(c.pending, key)
	if len(c.pending) == 0 {
		c.reset()
	}
	return block, true
}

// fitCached returns a block answering want from a block computed for have.
// Both start at the same position and want must lie within have: a block
// computed at block rate holds a single frame and cannot stand in for a
// longer request.
func fitCached(block signals.Block, have, want signals.BlockLoc) (signals.Block, bool) {
	if want.Position != have.Position || !want.Within(have) {
		return signals.Block{}, false
	}
	ret := block
	if f := ret.Shape.Frames; f != 1 && f != want.Shape.Frames {
		if f < want.Shape.Frames {
			return signals.Block{}, false
		}
		ret = ret.Frames(0, want.Shape.Frames)
	}
	if c := ret.Shape.Channels; c != 1 && c != want.Shape.Channels {
		if c < want.Shape.Channels {
			return signals.Block{}, false
		}
		cut := signals.NewBlock(signals.Shape{Frames: ret.Shape.Frames, Channels: want.Shape.Channels})
		for f := 0; f < ret.Shape.Frames; f++ {
			copy(cut.Frame(f), ret.Frame(f)[:want.Shape.Channels])
		}
		ret = cut
	}
	return ret, true
}

func (c *fanoutCache) store(block signals.Block, req Request, outputs map[Output]struct{}) {
	served := Output{Port: req.Port, Node: req.Requestor}
	if c.valid && c.loc.Position == req.Loc.Position && c.loc.Rate == req.Loc.Rate {
		if _, ok := c.pending[served]; ok {
			// the cached block was too small for this consumer; the others
			// are still expected at this position
			delete(c.pending, served)
			c.valid = len(c.pending) > 0
			c.loc = req.Loc
			c.block = block
			return
		}
	}
	c.reset()
	if len(outputs) < 2 {
		return
	}
	if c.pending == nil {
		c.pending = make(map[Output]struct{}, len(outputs))
	}
	for o := range outputs {
		if o != served {
			c.pending[o] = struct{}{}
		}
	}
	c.valid = len(c.pending) > 0
	c.loc = req.Loc
	c.block = block
}

// Invalidate drops the cached block of a node, e.g. after its state changed.
func (g *Graph) Invalidate(h Handle) {
	if e, ok := g.entries[h]; ok {
		e.cache.reset()
	}
}

// Pull requests a block from a node on behalf of something outside the
// graph, typically a device callback or an offline renderer. The answer is
// broadcast to the requested shape.
func (g *Graph) Pull(h Handle, loc signals.BlockLoc) (signals.Block, error) {
	e, ok := g.entries[h]
	if !ok {
		return signals.Block{}, fmt.Errorf("pull #%d: %w", h, ErrNoNode)
	}
	if !e.class.Emits() {
		return signals.Block{}, fmt.Errorf("pull %s: %w", e.class.Name, ErrNotEmitter)
	}
	block, err := g.respond(h, Request{Loc: loc})
	if err != nil {
		return signals.Block{}, err
	}
	if !block.Shape.Fits(loc.Shape) {
		g.metrics.badShape()
		return signals.Block{}, &BadShapeError{Class: e.class.Name, Got: block.Shape, Want: loc.Shape}
	}
	return block.Broadcast(loc.Shape)
}

func (g *Graph) respond(h Handle, req Request) (signals.Block, error) {
	e := g.entries[h]
	e.last = req.Loc
	e.pulled = true
	if i := slices.Index(g.pulling, h); i >= 0 {
		return g.reenter(h, e, i, req), nil
	}
	if block, ok := e.cache.lookup(req); ok {
		g.metrics.cacheHit()
		return block, nil
	}
	g.pulling = append(g.pulling, h)
	block, err := g.eval(h, e, req)
	g.pulling = g.pulling[:len(g.pulling)-1]
	if err != nil {
		e.cache.reset()
		return signals.Block{}, err
	}
	e.feedback = block
	e.cache.store(block, req, g.outputs[h])
	return block, nil
}

// reenter answers a request that reached a node already being evaluated
// further down the stack, i.e. a feedback loop. The previous result of the
// node is used, delaying the loop by one block.
func (g *Graph) reenter(h Handle, e *entry, i int, req Request) signals.Block {
	cycle := g.pulling[i:]
	if !slices.ContainsFunc(cycle, func(n Handle) bool { return g.entries[n].class.Flags.Has(signals.Cyclic) }) {
		panic(g.cycleError(append(slices.Clone(cycle), h)))
	}
	if e.feedback.Shape.Fits(req.Loc.Shape) {
		return e.feedback
	}
	if b, ok := fitCached(e.feedback, req.Loc, req.Loc); ok {
		return b
	}
	return signals.Silence()
}

func (g *Graph) eval(h Handle, e *entry, req Request) (signals.Block, error) {
	in := g.Inputs(h)
	if !e.node.Enabled() {
		if e.class.Flags.Has(signals.PassThru) {
			return in.Port("input").Forward(req)
		}
		return signals.Silence(), nil
	}
	g.metrics.evaluated(e.class.Name)
	block, err := e.node.Eval(in, req)
	if err != nil {
		g.metrics.failed(e.class.Name)
		return signals.Block{}, fmt.Errorf("%s#%d at %v: %w", e.class.Name, h, req.Loc, err)
	}
	return block, nil
}
