// Package nodes contains the built-in signal classes: constants, oscillators,
// clocks, effects, channel shapers, noise, sound files and a scope.
package nodes

import (
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

// Classes returns the built-in classes.
func Classes() []*graph.Class {
	return []*graph.Class{
		FixedClass,
		SineClass, SquareClass, SawtoothClass, TriangleClass,
		TimeClockClass, TempoClockClass,
		AddClass, MixClass, GainClass,
		FlattenClass, FlattenUnitClass, SelectClass, MergeClass,
		WhiteClass,
		FileReaderClass, FileWriterClass,
		ScopeClass,
	}
}

// Register adds the built-in classes to r.
func Register(r *graph.Registry) error {
	return r.Register(Classes()...)
}

// emitter is the state of nodes that have nothing to configure but the
// enabled switch.
type emitter = graph.Stateful[graph.EmitterState]

func newEmitter() emitter {
	return graph.WithState(graph.DefaultEmitter())
}

// timeBlock is a mono column with the time in seconds of every frame of loc.
func timeBlock(loc signals.BlockLoc, rate float64) signals.Block {
	b := signals.NewBlock(signals.Shape{Frames: loc.Shape.Frames, Channels: 1})
	for i := range b.Data {
		b.Data[i] = float32(float64(loc.Position+i) / rate)
	}
	return b
}

// forwardOrTime forwards req through p, or answers with the time of each
// frame if p is unbound.
func forwardOrTime(p graph.Port, req graph.Request) (signals.Block, error) {
	if !p.IsBound() {
		return timeBlock(req.Loc, float64(req.Loc.Rate)), nil
	}
	return p.Forward(req)
}

// apply replaces every sample of b with f(sample). b must not be shared.
func apply(b signals.Block, f func(float64) float64) signals.Block {
	for i, v := range b.Data {
		b.Data[i] = float32(f(float64(v)))
	}
	return b
}

// forwardAll forwards req through the named ports.
func forwardAll(in *graph.Inputs, req graph.Request, ports ...string) ([]signals.Block, error) {
	ret := make([]signals.Block, len(ports))
	for i, name := range ports {
		b, err := in.Port(name).Forward(req)
		if err != nil {
			return nil, err
		}
		ret[i] = b
	}
	return ret, nil
}
