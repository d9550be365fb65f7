// Package portaudio implements signals.AudioContext with PortAudio, giving
// access to every input and output device of the host.
package portaudio

import (
	"fmt"
	"time"

	pa "github.com/gordonklaus/portaudio"
	"github.com/vsariola/signals"
)

type (
	// Context owns the PortAudio library between NewContext and Close.
	Context struct {
		latency time.Duration
	}

	Stream struct {
		stream *pa.Stream
	}
)

// NewContext initializes PortAudio. A zero latency selects the high latency
// defaults of each device.
func NewContext(latency time.Duration) (*Context, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to setup portaudio: %w", err)
	}
	return &Context{latency: latency}, nil
}

func (c *Context) Devices() ([]signals.DeviceInfo, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	ret := make([]signals.DeviceInfo, len(devices))
	for i, d := range devices {
		ret[i] = info(d)
	}
	return ret, nil
}

func info(d *pa.DeviceInfo) signals.DeviceInfo {
	return signals.DeviceInfo{
		Name:              d.Name,
		Index:             d.Index,
		MaxInputChannels:  d.MaxInputChannels,
		MaxOutputChannels: d.MaxOutputChannels,
		DefaultSampleRate: d.DefaultSampleRate,
	}
}

func (c *Context) device(dev signals.DeviceInfo) (*pa.DeviceInfo, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Index == dev.Index && d.Name == dev.Name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio device %q is gone", dev.Name)
}

func (c *Context) params(in, out *pa.DeviceInfo, cfg signals.StreamConfig) pa.StreamParameters {
	p := pa.HighLatencyParameters(in, out)
	if in != nil {
		p.Input.Channels = cfg.Channels
		if c.latency > 0 {
			p.Input.Latency = c.latency
		}
	}
	if out != nil {
		p.Output.Channels = cfg.Channels
		if c.latency > 0 {
			p.Output.Latency = c.latency
		}
	}
	p.SampleRate = float64(cfg.Rate)
	p.FramesPerBuffer = cfg.Frames
	return p
}

// Play opens an interleaved output stream driven by fill.
func (c *Context) Play(dev signals.DeviceInfo, cfg signals.StreamConfig, fill signals.FillFunc) (signals.Stream, error) {
	d, err := c.device(dev)
	if err != nil {
		return nil, err
	}
	s, err := pa.OpenStream(c.params(nil, d, cfg), func(out []float32) { fill(out) })
	if err != nil {
		return nil, fmt.Errorf("error opening output %q via portaudio: %w", dev.Name, err)
	}
	return &Stream{stream: s}, nil
}

// Record opens an interleaved input stream delivering to consume.
func (c *Context) Record(dev signals.DeviceInfo, cfg signals.StreamConfig, consume signals.ConsumeFunc) (signals.Stream, error) {
	d, err := c.device(dev)
	if err != nil {
		return nil, err
	}
	s, err := pa.OpenStream(c.params(d, nil, cfg), func(in []float32) { consume(in) })
	if err != nil {
		return nil, fmt.Errorf("error opening input %q via portaudio: %w", dev.Name, err)
	}
	return &Stream{stream: s}, nil
}

func (c *Context) Close() error {
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("termination error: %w", err)
	}
	return nil
}

func (s *Stream) Start() error { return s.stream.Start() }

func (s *Stream) Stop() error { return s.stream.Stop() }

func (s *Stream) Close() error { return s.stream.Close() }
