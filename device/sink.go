package device

import (
	"sync/atomic"
	"time"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
	"golang.org/x/time/rate"
)

// Sink plays its input on an output device. The device pulls a block from
// the sink every callback; the sink answers with silence while it is paused.
type Sink struct {
	graph.Stateful[State]
	rack     *Rack
	dev      signals.DeviceInfo
	cfg      signals.StreamConfig
	stream   signals.Stream
	g        *graph.Graph
	h        graph.Handle
	playback PlaybackState
	warn     rate.Sometimes
	closed   atomic.Bool
}

func (r *Rack) openSink(dev signals.DeviceInfo) (*Sink, error) {
	cfg := r.streamConfig(dev.MaxOutputChannels)
	s := &Sink{
		Stateful: graph.WithState(State{EmitterState: graph.DefaultEmitter(), Device: dev.Name, Channels: cfg.Channels}),
		rack:     r,
		dev:      dev,
		cfg:      cfg,
		warn:     rate.Sometimes{Interval: time.Second},
	}
	stream, err := r.ctx.Play(dev, cfg, s.fill)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	s.stream = stream
	r.logger.Info("sink opened", "device", dev.Name, "rate", cfg.Rate, "channels", cfg.Channels, "frames", cfg.Frames)
	return s, nil
}

func (s *Sink) Attach(g *graph.Graph, h graph.Handle) {
	s.g, s.h = g, h
}

// SetState accepts a new enabled flag; the device and channel count are
// fixed when the sink is opened.
func (s *Sink) SetState(v any) error {
	if err := fixedDevice(s.Get(), v); err != nil {
		return err
	}
	return s.Stateful.SetState(v)
}

func fixedDevice(cur State, v any) error {
	n, ok := v.(State)
	if !ok {
		return nil
	}
	switch {
	case n.Device != cur.Device:
		return &graph.BadStateValueError{Schema: "State", Key: "device", Value: n.Device, Reason: "fixed when opened"}
	case n.Channels != cur.Channels:
		return &graph.BadStateValueError{Schema: "State", Key: "channels", Value: n.Channels, Reason: "fixed when opened"}
	}
	return nil
}

func (s *Sink) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	return in.Port("input").Forward(req)
}

func (s *Sink) Channels(in *graph.Inputs) (int, error) { return s.cfg.Channels, nil }

// Device is the device the sink plays on.
func (s *Sink) Device() signals.DeviceInfo { return s.dev }

// Config is the format of the output stream.
func (s *Sink) Config() signals.StreamConfig { return s.cfg }

func (s *Sink) fill(out []float32) {
	if s.closed.Load() {
		clear(out)
		return
	}
	s.rack.run(func() {
		if s.closed.Load() {
			// destroyed while this callback waited for the guard
			clear(out)
			return
		}
		s.Fill(out)
	})
}

// Fill writes the next len(out) samples of the input into out and advances
// the playback position. A paused or disabled sink writes silence. A failed
// block is replaced with silence and logged.
func (s *Sink) Fill(out []float32) {
	if !s.playback.Active || !s.Enabled() || s.g == nil {
		clear(out)
		return
	}
	b, err := s.Render(len(out) / s.cfg.Channels)
	if err != nil {
		clear(out)
		s.rack.metrics.failure()
		s.warn.Do(func() {
			s.rack.logger.Error("sink block failed", "device", s.dev.Name, "position", s.playback.Position, "err", err)
		})
		return
	}
	copy(out, b.Data)
}

// Render pulls frames frames of the input at the playback position,
// broadcast to the channel count of the device, and advances the position
// whether or not the pull succeeds.
func (s *Sink) Render(frames int) (signals.Block, error) {
	loc := signals.BlockLoc{
		Position: s.playback.Position,
		Rate:     s.cfg.Rate,
		Shape:    signals.Shape{Frames: frames, Channels: s.cfg.Channels},
	}
	s.playback.Position += frames
	b, err := s.g.Inputs(s.h).Port("input").Request(loc)
	if err != nil {
		return signals.Block{}, err
	}
	return b.Broadcast(loc.Shape)
}

func (s *Sink) Playback() PlaybackState { return s.playback }

// SetPlayback restores a transport state.
func (s *Sink) SetPlayback(p PlaybackState) { s.playback = p }

func (s *Sink) Play() { s.playback.Active = true }

func (s *Sink) Pause() { s.playback.Active = false }

// Stop pauses and rewinds to the start.
func (s *Sink) Stop() { s.playback = PlaybackState{} }

func (s *Sink) Seek(position int) { s.playback.Position = max(position, 0) }

func (s *Sink) Destroy() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.rack.logger.Info("sink closed", "device", s.dev.Name)
	return s.rack.closeStream(s.stream)
}
