package graph_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

func TestFanOutEvaluatesOncePerPosition(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := graph.New(graph.WithMetrics(graph.NewMetrics(reg)))
	c, n := add(g, constClass)
	counter := n.(*constNode)
	a, _ := add(g, sumClass)
	b, _ := add(g, sumClass)
	_, err := g.Connect(c, a, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, b, "right")
	require.NoError(t, err)

	orders := [][]graph.Handle{{a, b}, {b, a}, {a, b}, {b, a}}
	for i, order := range orders {
		for _, h := range order {
			_, err := g.Pull(h, loc(i*64, 64, 1))
			require.NoError(t, err)
		}
		assert.Equal(t, i+1, counter.evals, "after position %d", i*64)
	}
}

func TestFanOutToTwoPortsOfOneNode(t *testing.T) {
	g := graph.New()
	c, n := add(g, constClass)
	counter := n.(*constNode)
	sum, _ := add(g, sumClass)
	_, err := g.Connect(c, sum, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, sum, "right")
	require.NoError(t, err)

	for pos := 0; pos < 10; pos++ {
		out, err := g.Pull(sum, loc(pos, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, []float32{2}, out.Data)
	}
	assert.Equal(t, 10, counter.evals)
}

func TestFanOutDiamond(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := graph.NewMetrics(reg)
	g := graph.New(graph.WithMetrics(m))
	c, n := add(g, constClass)
	counter := n.(*constNode)
	left, _ := add(g, doubleClass)
	right, _ := add(g, doubleClass)
	top, _ := add(g, sumClass)
	for _, l := range []struct {
		up, down graph.Handle
		port     string
	}{
		{c, left, "input"}, {c, right, "input"}, {left, top, "left"}, {right, top, "right"},
	} {
		_, err := g.Connect(l.up, l.down, l.port)
		require.NoError(t, err)
	}
	out, err := g.Pull(top, loc(0, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 4, 4, 4}, out.Data)
	assert.Equal(t, 1, counter.evals)

	// a consumer asking again for the same position recomputes
	_, err = g.Pull(left, loc(0, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, counter.evals)

	// a new position always recomputes
	_, err = g.Pull(top, loc(4, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, counter.evals)

	assert.Greater(t, testutil.ToFloat64(m.CacheHits()), 0.0)
}

func TestFanOutServesNarrowerRequest(t *testing.T) {
	g := graph.New()
	c, n := add(g, constClass)
	counter := n.(*constNode)
	wide, _ := add(g, sumClass)
	narrow, _ := add(g, sumClass)
	_, err := g.Connect(c, wide, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, narrow, "left")
	require.NoError(t, err)

	_, err = g.Pull(wide, loc(0, 8, 2))
	require.NoError(t, err)
	out, err := g.Pull(narrow, loc(0, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, out.Data)
	assert.Equal(t, 1, counter.evals)
}

func TestInvalidateDropsCachedBlock(t *testing.T) {
	g := graph.New()
	c, n := add(g, constClass)
	a, _ := add(g, sumClass)
	b, _ := add(g, sumClass)
	_, err := g.Connect(c, a, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, b, "left")
	require.NoError(t, err)

	_, err = g.Pull(a, loc(0, 1, 1))
	require.NoError(t, err)
	require.NoError(t, n.SetState(constState{EmitterState: graph.DefaultEmitter(), Value: 7}))
	g.Invalidate(c)
	out, err := g.Pull(b, loc(0, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{7}, out.Data)
}

// rampNode answers with position+frame in every frame so that blocks taken
// at different rates can be told apart.
type rampNode struct {
	graph.Stateful[sumState]
	evals int
}

func (n *rampNode) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	n.evals++
	b := signals.NewBlock(req.Loc.Shape)
	for f := 0; f < b.Shape.Frames; f++ {
		for i := range b.Frame(f) {
			b.Frame(f)[i] = float32(req.Loc.Position + f)
		}
	}
	return b, nil
}

func (n *rampNode) Channels(in *graph.Inputs) (int, error) { return 1, nil }

// holdNode reads its input once per block.
type holdNode struct {
	graph.Stateful[sumState]
}

func (n *holdNode) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	return in.Port("input").ForwardAtBlockRate(req)
}

func (n *holdNode) Channels(in *graph.Inputs) (int, error) { return graph.ImplicitChannels(in) }

var (
	rampClass = &graph.Class{Name: "Ramp", Flags: signals.Generator, New: func() graph.Node {
		return &rampNode{Stateful: graph.WithState(sumState{graph.DefaultEmitter()})}
	}}
	holdClass = &graph.Class{Name: "Hold", Flags: signals.Effect, Ports: []string{"input"}, New: func() graph.Node {
		return &holdNode{Stateful: graph.WithState(sumState{graph.DefaultEmitter()})}
	}}
)

func TestBlockRateConsumerDoesNotShortenFanOut(t *testing.T) {
	for _, holdPort := range []string{"left", "right"} {
		t.Run(holdPort, func(t *testing.T) {
			g := graph.New()
			ramp, _ := add(g, rampClass)
			hold, _ := add(g, holdClass)
			sum, _ := add(g, sumClass)
			_, err := g.Connect(ramp, hold, "input")
			require.NoError(t, err)
			rampPort := "left"
			if holdPort == "left" {
				rampPort = "right"
			}
			_, err = g.Connect(ramp, sum, rampPort)
			require.NoError(t, err)
			_, err = g.Connect(hold, sum, holdPort)
			require.NoError(t, err)

			out, err := g.Pull(sum, loc(8, 4, 1))
			require.NoError(t, err)
			assert.Equal(t, []float32{16, 17, 18, 19}, out.Data)
			out, err = g.Pull(sum, loc(12, 4, 1))
			require.NoError(t, err)
			assert.Equal(t, []float32{24, 25, 26, 27}, out.Data)
		})
	}
}

func TestRecomputeKeepsOtherConsumersPending(t *testing.T) {
	g := graph.New()
	ramp, n := add(g, rampClass)
	counter := n.(*rampNode)
	hold, _ := add(g, holdClass)
	a, _ := add(g, sumClass)
	b, _ := add(g, sumClass)
	for _, c := range []struct {
		h    graph.Handle
		port string
	}{{hold, "input"}, {a, "left"}, {b, "left"}} {
		_, err := g.Connect(ramp, c.h, c.port)
		require.NoError(t, err)
	}

	held, err := g.Pull(hold, loc(8, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{8, 8, 8, 8}, held.Data)
	out, err := g.Pull(a, loc(8, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{8, 9, 10, 11}, out.Data)
	out, err = g.Pull(b, loc(8, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{8, 9, 10, 11}, out.Data)
	assert.Equal(t, 2, counter.evals)
}
