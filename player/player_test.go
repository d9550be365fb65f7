package player_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/control"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/graph"
	"github.com/vsariola/signals/nodes"
	"github.com/vsariola/signals/patch"
	"github.com/vsariola/signals/player"
)

var at = signals.MustParseCoordinates

type rig struct {
	engine  *player.Engine
	null    *device.Null
	metrics *player.Metrics
	control *control.Controller
}

func newRig(t *testing.T) *rig {
	t.Helper()
	return newRigOn(t, &device.Null{})
}

func newRigOn(t *testing.T, null *device.Null) *rig {
	t.Helper()
	rack := device.NewRack(null, signals.StreamConfig{Rate: 100, Channels: 2, Frames: 4})
	r := graph.NewRegistry()
	require.NoError(t, nodes.Register(r))
	require.NoError(t, r.Register(rack.Classes()...))
	m := patch.New(graph.New(), r, patch.WithDevices(rack))
	metrics := player.NewMetrics(prometheus.NewRegistry())
	e := player.New(m, player.WithMetrics(metrics), player.WithReleaser(rack))
	rack.SetGuard(e.Guard)
	return &rig{engine: e, null: null, metrics: metrics, control: control.New(e)}
}

func (r *rig) exec(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, r.control.Execute(l), l)
	}
}

func TestSinkPlaysThroughEngine(t *testing.T) {
	r := newRig(t)
	r.exec(t, "sink 1a null", "+ 2a Fixed value=[[0.5]]", "> 2a 1a.input", "play 1a")
	streams := r.null.Streams()
	require.Len(t, streams, 1)
	out := streams[0].Pump(2)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, out)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.metrics.Ticks()))

	r.exec(t, "* 2a value=[[0.25,-0.25]]")
	out = streams[0].Pump(1)
	assert.Equal(t, []float32{0.25, -0.25, 0.25, -0.25, 0.25, -0.25, 0.25, -0.25}, out)
	assert.Positive(t, testutil.ToFloat64(r.metrics.Jobs()))
}

func TestJobsRunBetweenBlocks(t *testing.T) {
	r := newRig(t)
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	inBlock, release := make(chan struct{}), make(chan struct{})
	go r.engine.Guard(func() {
		close(inBlock)
		<-release
		record("block 1")
	})
	<-inBlock

	done := make(chan error, 1)
	go func() {
		done <- r.engine.Exec(func(*patch.Map) error {
			record("job")
			return nil
		})
	}()
	require.Eventually(t, func() bool { return r.engine.Pending() == 1 }, time.Second, time.Millisecond)
	close(release)
	r.engine.Guard(func() { record("block 2") })
	require.NoError(t, <-done)
	assert.Equal(t, []string{"block 1", "job", "block 2"}, order)
}

func TestRender(t *testing.T) {
	r := newRig(t)
	r.exec(t, "sink 1a null", "+ 2a TimeClock", "> 2a 1a.input")
	out, err := r.engine.Render(context.Background(), at("1a"), 5, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0, 0.01, 0.01, 0.02, 0.02, 0.03, 0.03, 0.04, 0.04}, out, 1e-6)

	_, err = r.engine.Render(context.Background(), at("2a"), 5, 2)
	assert.Equal(t, patch.BadPlaybackTarget, patch.KindOf(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.engine.Render(ctx, at("1a"), 5, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShutdownClosesStreams(t *testing.T) {
	r := newRig(t)
	r.exec(t, "sink 1a null", "source 1b null", "+ 2a Sine")
	for _, s := range r.null.Streams() {
		assert.True(t, s.Running())
	}
	require.NoError(t, r.engine.Shutdown())
	for _, s := range r.null.Streams() {
		assert.False(t, s.Running())
	}
	dump, err := r.control.Dump()
	require.NoError(t, err)
	assert.Empty(t, dump)
}

func TestRemovingPlayingSinkReturns(t *testing.T) {
	r := newRigOn(t, &device.Null{Realtime: true})
	r.exec(t, "sink 1a null", "+ 2a Fixed value=[[0.5]]", "> 2a 1a.input", "play 1a")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.metrics.Ticks()) >= 2
	}, 3*time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		for range 20 {
			if err := r.control.Execute("- 1a"); err != nil {
				done <- err
				return
			}
			if err := r.control.Execute("undo"); err != nil {
				done <- err
				return
			}
			if err := r.control.Execute("play 1a"); err != nil {
				done <- err
				return
			}
		}
		done <- r.control.Execute("- 1a")
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "removing a playing sink did not return")
	}
	for _, s := range r.null.Streams() {
		assert.False(t, s.Running())
	}
}
