package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vsariola/signals"
)

type (
	// Null is an AudioContext without hardware. Its single device "null"
	// discards what is played and records silence. Streams are driven
	// manually with Pump and Feed, or by a ticker at the stream rate when
	// Realtime is set.
	Null struct {
		Realtime bool

		mu      sync.Mutex
		streams []*NullStream
		closed  bool
	}

	NullStream struct {
		cfg     signals.StreamConfig
		fill    signals.FillFunc
		consume signals.ConsumeFunc
		ticker  bool

		mu      sync.Mutex
		running bool
		cancel  context.CancelFunc
		done    chan struct{}
	}
)

// NullDevice is the only device of a Null context.
var NullDevice = signals.DeviceInfo{Name: "null", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 44100}

var ErrClosed = errors.New("audio context closed")

func (n *Null) Devices() ([]signals.DeviceInfo, error) {
	return []signals.DeviceInfo{NullDevice}, nil
}

func (n *Null) Play(dev signals.DeviceInfo, cfg signals.StreamConfig, fill signals.FillFunc) (signals.Stream, error) {
	return n.open(&NullStream{cfg: cfg, fill: fill, ticker: n.Realtime})
}

func (n *Null) Record(dev signals.DeviceInfo, cfg signals.StreamConfig, consume signals.ConsumeFunc) (signals.Stream, error) {
	return n.open(&NullStream{cfg: cfg, consume: consume, ticker: n.Realtime})
}

func (n *Null) open(s *NullStream) (*NullStream, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	n.streams = append(n.streams, s)
	return s, nil
}

// Streams returns the streams opened so far, in order.
func (n *Null) Streams() []*NullStream {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*NullStream(nil), n.streams...)
}

func (n *Null) Close() error {
	n.mu.Lock()
	streams := n.streams
	n.closed = true
	n.mu.Unlock()
	var errs []error
	for _, s := range streams {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (s *NullStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	if s.ticker {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel, s.done = cancel, make(chan struct{})
		go s.tick(ctx, s.done)
	}
	return nil
}

func (s *NullStream) tick(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	period := time.Duration(float64(time.Second) * float64(s.cfg.Frames) / float64(s.cfg.Rate))
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Pump(1)
			s.Feed(make([]float32, s.cfg.Frames*s.cfg.Channels))
		}
	}
}

func (s *NullStream) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.running, s.cancel, s.done = false, nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (s *NullStream) Close() error { return s.Stop() }

func (s *NullStream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *NullStream) Config() signals.StreamConfig { return s.cfg }

// Pump runs the fill callback of an output stream n times and returns the
// buffer of the last call.
func (s *NullStream) Pump(n int) []float32 {
	if s.fill == nil {
		return nil
	}
	out := make([]float32, s.cfg.Frames*s.cfg.Channels)
	for range n {
		s.fill(out)
	}
	return out
}

// Feed delivers in to the consume callback of an input stream.
func (s *NullStream) Feed(in []float32) {
	if s.consume != nil {
		s.consume(in)
	}
}
