package graph

import (
	"fmt"

	"github.com/vsariola/signals"
)

type (
	// Request is a demand for one block, created fresh for every pull.
	// Requestor is zero for requests issued from outside the graph.
	Request struct {
		Requestor Handle
		Port      string
		Loc       signals.BlockLoc
	}

	// Inputs gives a node access to its own ports during Eval and Channels.
	Inputs struct {
		g *Graph
		h Handle
	}

	// Port is a named input of a node.
	Port struct {
		in   *Inputs
		name string
	}
)

// Handle is the node the inputs belong to.
func (in *Inputs) Handle() Handle { return in.h }

// Port returns the named port. Asking for a port the class does not declare
// is a programming error in the node and panics.
func (in *Inputs) Port(name string) Port {
	if e, ok := in.g.entries[in.h]; ok && !e.class.HasPort(name) {
		panic(e.class.portError(name))
	}
	return Port{in: in, name: name}
}

// Bound returns the ports that currently have an input, in sorted order.
func (in *Inputs) Bound() []Port {
	links := in.g.linksIn(in.h)
	ret := make([]Port, len(links))
	for i, l := range links {
		ret[i] = Port{in: in, name: l.Port}
	}
	return ret
}

func (p Port) Name() string { return p.name }

// Upstream returns the node bound to the port, or zero.
func (p Port) Upstream() Handle {
	return p.in.g.inputs[p.in.h][p.name]
}

// IsBound reports whether the port has an input.
func (p Port) IsBound() bool {
	return p.Upstream() != 0
}

// Channels returns the natural channel count of the input. ok is false if the
// port is unbound.
func (p Port) Channels() (n int, ok bool, err error) {
	up := p.Upstream()
	if up == 0 {
		return 0, false, nil
	}
	n, err = p.in.g.Channels(up)
	return n, true, err
}

// Request pulls a block for loc from the input. An unbound port answers with
// silence. The answer is checked against the requested shape here, at the
// consumer, and a mismatch is reported as a *BadShapeError.
func (p Port) Request(loc signals.BlockLoc) (signals.Block, error) {
	up := p.Upstream()
	if up == 0 {
		return signals.Silence(), nil
	}
	g := p.in.g
	block, err := g.respond(up, Request{Requestor: p.in.h, Port: p.name, Loc: loc})
	if err != nil {
		return signals.Block{}, err
	}
	if !block.Shape.Fits(loc.Shape) {
		g.metrics.badShape()
		return signals.Block{}, &BadShapeError{Class: g.entries[up].class.Name, Got: block.Shape, Want: loc.Shape}
	}
	return block, nil
}

// Forward requests the same location as req.
func (p Port) Forward(req Request) (signals.Block, error) {
	return p.Request(req.Loc)
}

// ForwardAtBlockRate requests a single frame at the position of req. Used for
// inputs that are read once per block, like the frequency of an oscillator.
func (p Port) ForwardAtBlockRate(req Request) (signals.Block, error) {
	return p.Request(req.Loc.Resize(1))
}

// ForwardWithContext requests the window of req plus up to k frames before
// it (clipped at position 0) and k frames after it, concatenated. Each part
// is broadcast to its own shape before joining, so the result always has
// exactly the concatenated shape.
func (p Port) ForwardWithContext(req Request, k int) (signals.Block, error) {
	locs := make([]signals.BlockLoc, 0, 3)
	if before := req.Loc.Before(k); before.Shape.Frames > 0 {
		locs = append(locs, before)
	}
	locs = append(locs, req.Loc, req.Loc.After(k))
	// the channel count of the answers decides the channel count of the result
	parts := make([]signals.Block, len(locs))
	channels := 1
	for i, loc := range locs {
		b, err := p.Request(loc)
		if err != nil {
			return signals.Block{}, err
		}
		parts[i] = b
		channels = max(channels, b.Shape.Channels)
	}
	for i, loc := range locs {
		b, err := parts[i].Broadcast(signals.Shape{Frames: loc.Shape.Frames, Channels: channels})
		if err != nil {
			return signals.Block{}, fmt.Errorf("port %s: %w", p.name, err)
		}
		parts[i] = b
	}
	return signals.ConcatFrames(parts...)
}
