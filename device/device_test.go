package device_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/graph"
	"github.com/vsariola/signals/nodes"
)

var config = signals.StreamConfig{Rate: 100, Channels: 2, Frames: 4}

func open(t *testing.T, g *graph.Graph, c *graph.Class) graph.Handle {
	t.Helper()
	node, err := c.Open(device.NullDevice)
	require.NoError(t, err)
	return g.Add(c, node)
}

func TestLookup(t *testing.T) {
	rack := device.NewRack(&device.Null{}, config)
	d, err := rack.Lookup("null", true)
	require.NoError(t, err)
	assert.Equal(t, device.NullDevice, d)
	d, err = rack.Lookup("NU", false)
	require.NoError(t, err)
	assert.Equal(t, "null", d.Name)
	_, err = rack.Lookup("speakers", true)
	assert.ErrorIs(t, err, device.ErrBadDevice)
	assert.ErrorContains(t, err, `Valid options are: "null"`)
}

func TestGuardedRackClosesStreamsOnRelease(t *testing.T) {
	ctx := &device.Null{}
	rack := device.NewRack(ctx, config)
	rack.SetGuard(func(f func()) { f() })
	g := graph.New()
	sink := open(t, g, rack.SinkClass())
	streams := ctx.Streams()
	require.Len(t, streams, 1)

	_, _, err := g.Remove(sink)
	require.NoError(t, err)
	assert.True(t, streams[0].Running(), "closing waits for Release")
	assert.Equal(t, make([]float32, 8), streams[0].Pump(1), "a destroyed sink is silent")
	require.NoError(t, rack.Release())
	assert.False(t, streams[0].Running())
	require.NoError(t, rack.Release())
}

func TestSinkPlaysInput(t *testing.T) {
	ctx := &device.Null{}
	rack := device.NewRack(ctx, config)
	g := graph.New()
	sinkClass := rack.SinkClass()
	sink := open(t, g, sinkClass)
	clock := g.Add(nodes.TimeClockClass, nodes.TimeClockClass.New())
	_, err := g.Connect(clock, sink, "input")
	require.NoError(t, err)

	streams := ctx.Streams()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].Running())
	node, _ := g.Node(sink)
	s := node.(*device.Sink)

	assert.Equal(t, make([]float32, 8), streams[0].Pump(1), "paused sinks are silent")
	s.Play()
	out := streams[0].Pump(1)
	assert.Equal(t, []float32{0, 0, 0.01, 0.01, 0.02, 0.02, 0.03, 0.03}, out)
	assert.Equal(t, device.PlaybackState{Position: 4, Active: true}, s.Playback())

	s.Seek(100)
	out = streams[0].Pump(1)
	assert.Equal(t, float32(1), out[0])

	s.Stop()
	assert.Equal(t, device.PlaybackState{}, s.Playback())

	_, _, err = g.Remove(sink)
	require.NoError(t, err)
	assert.False(t, streams[0].Running())
}

func TestSinkFailureIsSilence(t *testing.T) {
	ctx := &device.Null{}
	m := device.NewMetrics(prometheus.NewRegistry())
	rack := device.NewRack(ctx, config, device.WithMetrics(m))
	g := graph.New()
	sink := open(t, g, rack.SinkClass())
	noise := g.Add(nodes.WhiteClass, nodes.WhiteClass.New())
	node, _ := g.Node(noise)
	// three channels cannot be played on two
	require.NoError(t, node.SetState(nodes.WhiteState{EmitterState: graph.DefaultEmitter(), ChannelsState: graph.ChannelsState{Channels: 3}}))
	_, err := g.Connect(noise, sink, "input")
	require.NoError(t, err)
	sinkNode, _ := g.Node(sink)
	sinkNode.(*device.Sink).Play()
	assert.Equal(t, make([]float32, 8), ctx.Streams()[0].Pump(1))
}

func TestDeviceStateIsFixed(t *testing.T) {
	rack := device.NewRack(&device.Null{}, config)
	node, err := rack.SinkClass().Open(device.NullDevice)
	require.NoError(t, err)
	s := node.(*device.Sink).Get()
	s.Device = "other"
	var e *graph.BadStateValueError
	require.ErrorAs(t, node.SetState(s), &e)
	assert.Equal(t, "device", e.Key)

	s = node.(*device.Sink).Get()
	s.Enabled = false
	require.NoError(t, node.SetState(s))
	assert.False(t, node.Enabled())
}

func TestSourceQueue(t *testing.T) {
	ctx := &device.Null{}
	rack := device.NewRack(ctx, config)
	g := graph.New()
	src := open(t, g, rack.SourceClass())
	stream := ctx.Streams()[0]
	stream.Feed([]float32{1, 2, 3, 4})
	stream.Feed([]float32{5, 6, 7, 8})

	loc := signals.BlockLoc{Position: 0, Rate: 100, Shape: signals.Shape{Frames: 3, Channels: 2}}
	b, err := g.Pull(src, loc)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, b.Data)

	loc.Position = 3
	b, err = g.Pull(src, loc)
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 8, 0, 0, 0, 0}, b.Data, "underrun is silent")

	loc.Position = 10
	_, err = g.Pull(src, loc)
	var drift *device.DriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, 6, drift.Want.Position)

	loc.Position = 13
	_, err = g.Pull(src, loc)
	assert.NoError(t, err, "resynchronized after a drift")

	loc.Rate = 200
	loc.Position = 16
	_, err = g.Pull(src, loc)
	assert.ErrorAs(t, err, &drift)
}
