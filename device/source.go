package device

import (
	"fmt"
	"time"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
	"golang.org/x/time/rate"
)

type (
	// Source answers requests with audio recorded from an input device. The
	// device callback queues what it records; requests consume the queue in
	// order and must ask for consecutive windows at the device rate.
	Source struct {
		graph.Stateful[State]
		rack    *Rack
		dev     signals.DeviceInfo
		cfg     signals.StreamConfig
		stream  signals.Stream
		queue   chan []float32
		pending []float32
		next    int
		started bool
		warn    rate.Sometimes
	}

	// DriftError is returned by a source asked for a window that does not
	// continue where the previous one ended, or for another sample rate.
	DriftError struct {
		Device string
		Want   signals.BlockLoc
		Got    signals.BlockLoc
	}
)

const sourceQueueBlocks = 16

func (e *DriftError) Error() string {
	return fmt.Sprintf("source %q drifted: expected a block at %d@%dHz, got a request for %v", e.Device, e.Want.Position, e.Want.Rate, e.Got)
}

func (r *Rack) openSource(dev signals.DeviceInfo) (*Source, error) {
	cfg := r.streamConfig(dev.MaxInputChannels)
	s := &Source{
		Stateful: graph.WithState(State{EmitterState: graph.DefaultEmitter(), Device: dev.Name, Channels: cfg.Channels}),
		rack:     r,
		dev:      dev,
		cfg:      cfg,
		queue:    make(chan []float32, sourceQueueBlocks),
		warn:     rate.Sometimes{Interval: time.Second},
	}
	stream, err := r.ctx.Record(dev, cfg, s.consume)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	s.stream = stream
	r.logger.Info("source opened", "device", dev.Name, "rate", cfg.Rate, "channels", cfg.Channels)
	return s, nil
}

func (s *Source) consume(in []float32) {
	buf := make([]float32, len(in))
	copy(buf, in)
	for !signals.TrySend(s.queue, buf) {
		// full: drop the oldest recording
		signals.TryReceive(s.queue)
		s.rack.metrics.drop()
		s.warn.Do(func() { s.rack.logger.Warn("source queue full, dropping audio", "device", s.dev.Name) })
	}
}

func (s *Source) SetState(v any) error {
	if err := fixedDevice(s.Get(), v); err != nil {
		return err
	}
	return s.Stateful.SetState(v)
}

func (s *Source) Device() signals.DeviceInfo { return s.dev }

func (s *Source) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	loc := req.Loc
	want := signals.BlockLoc{Position: s.next, Rate: s.cfg.Rate}
	if loc.Rate != s.cfg.Rate || (s.started && loc.Position != s.next) {
		// resynchronize so that only this block fails
		s.next, s.started, s.pending = loc.EndPosition(), true, nil
		return signals.Block{}, &DriftError{Device: s.dev.Name, Want: want, Got: loc}
	}
	ch := s.cfg.Channels
	need := loc.Shape.Frames * ch
	for len(s.pending) < need {
		buf, ok := signals.TryReceive(s.queue)
		if !ok {
			break
		}
		s.pending = append(s.pending, buf...)
	}
	b := signals.NewBlock(signals.Shape{Frames: loc.Shape.Frames, Channels: ch})
	n := copy(b.Data, s.pending)
	s.pending = s.pending[n:]
	if missing := (need - n) / ch; missing > 0 {
		s.rack.metrics.underrun(missing)
		s.warn.Do(func() {
			s.rack.logger.Warn("source underrun", "device", s.dev.Name, "position", loc.Position, "frames", missing)
		})
	}
	s.next, s.started = loc.EndPosition(), true
	return b, nil
}

func (s *Source) Channels(in *graph.Inputs) (int, error) { return s.cfg.Channels, nil }

func (s *Source) Destroy() error {
	s.rack.logger.Info("source closed", "device", s.dev.Name)
	return s.stream.Close()
}
