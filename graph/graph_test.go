package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type constState struct {
	graph.EmitterState
	Value float32 `json:"value"`
}

// constNode answers every request with a block of the requested shape filled
// with Value and counts its evaluations.
type constNode struct {
	graph.Stateful[constState]
	evals int
	shape *signals.Shape
}

func (n *constNode) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	n.evals++
	if n.shape != nil {
		return signals.Filled(*n.shape, n.Get().Value), nil
	}
	return signals.Filled(req.Loc.Shape, n.Get().Value), nil
}

func (n *constNode) Channels(in *graph.Inputs) (int, error) { return 1, nil }

type sumState struct {
	graph.EmitterState
}

// sumNode adds its two inputs.
type sumNode struct {
	graph.Stateful[sumState]
	evals int
}

func (n *sumNode) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	n.evals++
	l, err := in.Port("left").Forward(req)
	if err != nil {
		return signals.Block{}, err
	}
	r, err := in.Port("right").Forward(req)
	if err != nil {
		return signals.Block{}, err
	}
	return signals.Add(l, r)
}

func (n *sumNode) Channels(in *graph.Inputs) (int, error) { return graph.ImplicitChannels(in) }

type passNode struct {
	graph.Stateful[sumState]
}

func (n *passNode) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := in.Port("input").Forward(req)
	if err != nil {
		return signals.Block{}, err
	}
	return b.Scale(2), nil
}

func (n *passNode) Channels(in *graph.Inputs) (int, error) { return graph.ImplicitChannels(in) }

var (
	constClass = &graph.Class{Name: "Const", Flags: signals.Constant, New: func() graph.Node {
		return &constNode{Stateful: graph.WithState(constState{EmitterState: graph.DefaultEmitter(), Value: 1})}
	}}
	sumClass = &graph.Class{Name: "Sum", Flags: signals.Effect, Ports: []string{"left", "right"}, New: func() graph.Node {
		return &sumNode{Stateful: graph.WithState(sumState{graph.DefaultEmitter()})}
	}}
	loopClass = &graph.Class{Name: "Loop", Flags: signals.Effect | signals.Cyclic, Ports: []string{"left", "right"}, New: func() graph.Node {
		return &sumNode{Stateful: graph.WithState(sumState{graph.DefaultEmitter()})}
	}}
	doubleClass = &graph.Class{Name: "Double", Flags: signals.Effect | signals.PassThru, Ports: []string{"input"}, New: func() graph.Node {
		return &passNode{Stateful: graph.WithState(sumState{graph.DefaultEmitter()})}
	}}
)

func add(g *graph.Graph, c *graph.Class) (graph.Handle, graph.Node) {
	n := c.New()
	return g.Add(c, n), n
}

func loc(pos, frames, channels int) signals.BlockLoc {
	return signals.BlockLoc{Position: pos, Rate: 44100, Shape: signals.Shape{Frames: frames, Channels: channels}}
}

func TestUnboundPortIsSilent(t *testing.T) {
	g := graph.New()
	sum, _ := add(g, sumClass)
	b, err := g.Pull(sum, loc(0, 4, 2))
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), b.Data)
}

func TestConnectAndPull(t *testing.T) {
	g := graph.New()
	c, _ := add(g, constClass)
	sum, _ := add(g, sumClass)
	prev, err := g.Connect(c, sum, "left")
	require.NoError(t, err)
	assert.Zero(t, prev)
	b, err := g.Pull(sum, loc(0, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, b.Data)

	c2, n2 := add(g, constClass)
	require.NoError(t, n2.SetState(constState{EmitterState: graph.DefaultEmitter(), Value: 3}))
	prev, err = g.Connect(c2, sum, "left")
	require.NoError(t, err)
	assert.Equal(t, c, prev)
	assert.Empty(t, g.Outputs(c), "rebinding must detach the previous upstream")
	assert.Equal(t, []graph.Output{{Port: "left", Node: sum}}, g.Outputs(c2))

	_, err = g.Connect(c, sum, "middle")
	var portErr *graph.BadPortError
	require.ErrorAs(t, err, &portErr)
	assert.Equal(t, []string{"left", "right"}, portErr.Options)

	_, err = g.Connect(sum, c, "input")
	assert.ErrorIs(t, err, graph.ErrNotReceiver)

	up, err := g.Disconnect(sum, "left")
	require.NoError(t, err)
	assert.Equal(t, c2, up)
	_, err = g.Disconnect(sum, "left")
	assert.ErrorIs(t, err, graph.ErrNotConnected)
}

func TestBadShapeIsReportedByThePort(t *testing.T) {
	g := graph.New()
	c, n := add(g, constClass)
	n.(*constNode).shape = &signals.Shape{Frames: 3, Channels: 1}
	sum, _ := add(g, sumClass)
	_, err := g.Connect(c, sum, "left")
	require.NoError(t, err)
	_, err = g.Pull(sum, loc(0, 10, 1))
	var shapeErr *graph.BadShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "Const", shapeErr.Class)
	assert.Equal(t, signals.Shape{Frames: 10, Channels: 1}, shapeErr.Want)
}

func TestBroadcastableAnswerIsAccepted(t *testing.T) {
	g := graph.New()
	c, n := add(g, constClass)
	n.(*constNode).shape = &signals.Shape{Frames: 1, Channels: 1}
	sum, _ := add(g, sumClass)
	_, err := g.Connect(c, sum, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, sum, "right")
	require.NoError(t, err)
	b, err := g.Pull(sum, loc(0, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, signals.Shape{Frames: 3, Channels: 2}, b.Shape)
	assert.Equal(t, []float32{2, 2, 2, 2, 2, 2}, b.Data)
}

func TestRemoveSeversBothDirections(t *testing.T) {
	g := graph.New()
	c, _ := add(g, constClass)
	mid, _ := add(g, sumClass)
	out, _ := add(g, sumClass)
	_, err := g.Connect(c, mid, "left")
	require.NoError(t, err)
	_, err = g.Connect(mid, out, "left")
	require.NoError(t, err)
	_, err = g.Connect(mid, out, "right")
	require.NoError(t, err)

	in, outs, err := g.Remove(mid)
	require.NoError(t, err)
	assert.Equal(t, []graph.Link{{Upstream: c, Downstream: mid, Port: "left"}}, in)
	assert.Equal(t, []graph.Link{
		{Upstream: mid, Downstream: out, Port: "left"},
		{Upstream: mid, Downstream: out, Port: "right"},
	}, outs)
	assert.Empty(t, g.Outputs(c))
	assert.Empty(t, g.LinksIn(out))
	assert.False(t, g.Has(mid))

	_, _, err = g.Remove(mid)
	assert.ErrorIs(t, err, graph.ErrNoNode)

	next, _ := add(g, constClass)
	assert.Greater(t, next, out, "handles are never reused")
}

func TestRate(t *testing.T) {
	g := graph.New()
	c, _ := add(g, constClass)
	assert.Equal(t, graph.RateUnknown, g.Rate(c))
	_, err := g.Pull(c, loc(0, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, graph.RateBlock, g.Rate(c))
	_, err = g.Pull(c, loc(1, 64, 1))
	require.NoError(t, err)
	assert.Equal(t, graph.RateFrame, g.Rate(c))
}

func TestDisabledNodes(t *testing.T) {
	g := graph.New()
	c, cn := add(g, constClass)
	d, dn := add(g, doubleClass)
	_, err := g.Connect(c, d, "input")
	require.NoError(t, err)

	b, err := g.Pull(d, loc(0, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, b.Data)

	require.NoError(t, dn.SetState(sumState{graph.EmitterState{Enabled: false}}))
	b, err = g.Pull(d, loc(2, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, b.Data, "a disabled pass-through node forwards its input")

	require.NoError(t, cn.SetState(constState{Value: 5}))
	b, err = g.Pull(d, loc(4, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, b.Data, "a disabled node is silent")
}

func TestForwardWithContext(t *testing.T) {
	g := graph.New()
	c, n := add(g, constClass)
	n.(*constNode).shape = &signals.Shape{Frames: 1, Channels: 1}
	h := g.Add(&graph.Class{Name: "Context", Ports: []string{"input"}, New: func() graph.Node { return nil }}, &contextNode{Stateful: graph.WithState(sumState{graph.DefaultEmitter()})})
	_, err := g.Connect(c, h, "input")
	require.NoError(t, err)

	b, err := g.Pull(h, loc(2, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, signals.Shape{Frames: 4, Channels: 1}, b.Shape)
	node, _ := g.Node(h)
	assert.Equal(t, signals.Shape{Frames: 2 + 4 + 3, Channels: 1}, node.(*contextNode).got)

	_, err = g.Pull(h, loc(0, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, signals.Shape{Frames: 4 + 3, Channels: 1}, node.(*contextNode).got)
}

type contextNode struct {
	graph.Stateful[sumState]
	got signals.Shape
}

func (n *contextNode) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := in.Port("input").ForwardWithContext(req, 3)
	if err != nil {
		return signals.Block{}, err
	}
	n.got = b.Shape
	return signals.Silence(), nil
}

func (n *contextNode) Channels(in *graph.Inputs) (int, error) { return 1, nil }

func TestImplicitChannels(t *testing.T) {
	g := graph.New()
	c, _ := add(g, constClass)
	sum, _ := add(g, sumClass)
	n, err := g.Channels(sum)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stereo := g.Add(&graph.Class{Name: "Stereo", New: func() graph.Node { return nil }}, &fixedChannels{Stateful: graph.WithState(sumState{graph.DefaultEmitter()}), n: 2})
	_, err = g.Connect(stereo, sum, "left")
	require.NoError(t, err)
	_, err = g.Connect(c, sum, "right")
	require.NoError(t, err)
	n, err = g.Channels(sum)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	three := g.Add(&graph.Class{Name: "Three", New: func() graph.Node { return nil }}, &fixedChannels{Stateful: graph.WithState(sumState{graph.DefaultEmitter()}), n: 3})
	_, err = g.Connect(three, sum, "right")
	require.NoError(t, err)
	_, err = g.Channels(sum)
	assert.True(t, errors.Is(err, graph.ErrChannelMismatch))
}

type fixedChannels struct {
	graph.Stateful[sumState]
	n int
}

func (n *fixedChannels) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	return signals.Silence(), nil
}

func (n *fixedChannels) Channels(in *graph.Inputs) (int, error) { return n.n, nil }
