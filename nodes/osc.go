package nodes

import (
	"math"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

// Osc is a periodic waveform of phase + hertz * sclock, where sclock is a
// time in seconds. Without a clock the position of the request is used.
// hertz and phase are read once per block.
type Osc struct {
	emitter
	wave func(t float64) float64
}

var oscPorts = []string{"sclock", "hertz", "phase"}

func oscClass(name, doc string, wave func(float64) float64) *graph.Class {
	return &graph.Class{
		Name:  name,
		Doc:   doc,
		Flags: signals.Generator,
		Ports: oscPorts,
		New:   func() graph.Node { return &Osc{emitter: newEmitter(), wave: wave} },
	}
}

var (
	SineClass     = oscClass("Sine", "sine wave", sine)
	SquareClass   = oscClass("Square", "square wave", square)
	SawtoothClass = oscClass("Sawtooth", "rising sawtooth wave", sawtooth)
	TriangleClass = oscClass("Triangle", "triangle wave", triangle)
)

func (o *Osc) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	t, err := forwardOrTime(in.Port("sclock"), req)
	if err != nil {
		return signals.Block{}, err
	}
	hertz, err := in.Port("hertz").ForwardAtBlockRate(req)
	if err != nil {
		return signals.Block{}, err
	}
	phase, err := in.Port("phase").ForwardAtBlockRate(req)
	if err != nil {
		return signals.Block{}, err
	}
	x, err := signals.Mul(hertz, t)
	if err != nil {
		return signals.Block{}, err
	}
	x, err = signals.Add(x, phase)
	if err != nil {
		return signals.Block{}, err
	}
	return apply(x, o.wave), nil
}

func (o *Osc) Channels(in *graph.Inputs) (int, error) {
	return graph.ImplicitChannels(in)
}

func frac(t float64) float64 {
	return t - math.Floor(t)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func sine(t float64) float64 {
	return math.Sin(2 * math.Pi * t)
}

func square(t float64) float64 {
	return sign(0.5 - frac(t))
}

func sawtooth(t float64) float64 {
	return 2*frac(t-0.5) - 1
}

func triangle(t float64) float64 {
	t -= 0.25
	v := 4*(t-0.5*math.Floor(t/0.5)) - 1
	if frac(t) < 0.5 {
		return -v
	}
	return v
}
