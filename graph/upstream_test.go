package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals/graph"
)

func TestUpstreamOrder(t *testing.T) {
	g := graph.New()
	c, _ := add(g, constClass)
	mid, _ := add(g, doubleClass)
	top, _ := add(g, sumClass)
	_, err := g.Connect(c, mid, "input")
	require.NoError(t, err)
	_, err = g.Connect(mid, top, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, top, "right")
	require.NoError(t, err)

	order, err := g.Upstream(top)
	require.NoError(t, err)
	assert.Equal(t, []graph.Handle{c, mid, top}, order)
}

func TestCycleIsRefused(t *testing.T) {
	g := graph.New()
	a, _ := add(g, sumClass)
	b, _ := add(g, sumClass)
	_, err := g.Connect(a, b, "left")
	require.NoError(t, err)
	_, err = g.Connect(b, a, "left")
	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
	assert.Zero(t, g.Input(a, "left"), "a refused connection leaves the graph unchanged")

	_, err = g.Connect(a, a, "right")
	assert.ErrorAs(t, err, &cycle)
}

func TestCycleThroughTolerantNode(t *testing.T) {
	g := graph.New()
	a, _ := add(g, sumClass)
	b, _ := add(g, loopClass)
	c, _ := add(g, constClass)
	_, err := g.Connect(a, b, "left")
	require.NoError(t, err)
	_, err = g.Connect(b, a, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, b, "right")
	require.NoError(t, err)

	_, err = g.Upstream(a)
	require.NoError(t, err)
	_, err = g.Upstream(b)
	require.NoError(t, err)

	// each block the loop adds the constant to its own previous output
	for i := 1; i <= 3; i++ {
		out, err := g.Pull(a, loc((i-1)*2, 2, 1))
		require.NoError(t, err)
		assert.Equal(t, []float32{float32(i), float32(i)}, out.Data)
	}
}

func TestMustUpstreamPanicsOnlyOnIntolerableCycles(t *testing.T) {
	g := graph.New()
	a, _ := add(g, loopClass)
	_, err := g.Connect(a, a, "left")
	require.NoError(t, err)
	assert.NotPanics(t, func() { g.MustUpstream(a) })
}

func TestComponents(t *testing.T) {
	g := graph.New()
	a, _ := add(g, constClass)
	b, _ := add(g, sumClass)
	c, _ := add(g, constClass)
	_, err := g.Connect(a, b, "left")
	require.NoError(t, err)
	assert.Equal(t, [][]graph.Handle{{a, b}, {c}}, g.Components())
}
