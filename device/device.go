// Package device binds audio devices into the graph. A Rack turns the devices
// of a signals.AudioContext into two node classes: Sink, which plays its input
// through an output device, and Source, which answers requests with what an
// input device records.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	// Rack opens device streams for sink and source nodes.
	Rack struct {
		ctx     signals.AudioContext
		config  signals.StreamConfig
		logger  *slog.Logger
		metrics *Metrics

		mu      sync.Mutex
		guard   func(func())
		guarded bool
		closing []signals.Stream
	}

	// State is the state of device nodes. Device is fixed when the node is
	// opened and kept only to serialize the node.
	State struct {
		graph.EmitterState
		Device   string `json:"device"`
		Channels int    `json:"channels" validate:"gte=1"`
	}

	// PlaybackState is the transport of a sink.
	PlaybackState struct {
		Position int
		Active   bool
	}

	Option func(*Rack)
)

var ErrBadDevice = errors.New("no such device")

func WithLogger(l *slog.Logger) Option { return func(r *Rack) { r.logger = l } }

func WithMetrics(m *Metrics) Option { return func(r *Rack) { r.metrics = m } }

// NewRack returns a rack opening streams of the given format on ctx.
func NewRack(ctx signals.AudioContext, config signals.StreamConfig, opts ...Option) *Rack {
	r := &Rack{ctx: ctx, config: config, logger: slog.Default(), guard: func(f func()) { f() }}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config is the format of the streams the rack opens.
func (r *Rack) Config() signals.StreamConfig { return r.config }

// SetGuard sets the function device callbacks run through. The player uses it
// to serialize audio callbacks with graph mutations. Once a guard is set,
// sink streams are not closed when their node is destroyed but by the next
// Release, which the owner of the guard calls after letting go of it.
func (r *Rack) SetGuard(guard func(func())) {
	r.mu.Lock()
	r.guard = guard
	r.guarded = true
	r.mu.Unlock()
}

// Release closes the streams of the sinks destroyed since the last call. It
// must not be called from a device callback.
func (r *Rack) Release() error {
	r.mu.Lock()
	streams := r.closing
	r.closing = nil
	r.mu.Unlock()
	var errs []error
	for _, s := range streams {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// closeStream closes s now, or queues it for Release if a callback might be
// waiting on the guard held by the caller.
func (r *Rack) closeStream(s signals.Stream) error {
	r.mu.Lock()
	if r.guarded {
		r.closing = append(r.closing, s)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return s.Close()
}

func (r *Rack) run(f func()) {
	r.mu.Lock()
	guard := r.guard
	r.mu.Unlock()
	guard(f)
}

// Devices lists the devices of the context.
func (r *Rack) Devices() ([]signals.DeviceInfo, error) {
	return r.ctx.Devices()
}

// Lookup finds a device by name. An exact match wins; otherwise the name must
// be a case-insensitive prefix of exactly one device. Only devices able to
// play (output) or record (!output) are considered.
func (r *Rack) Lookup(name string, output bool) (signals.DeviceInfo, error) {
	devices, err := r.ctx.Devices()
	if err != nil {
		return signals.DeviceInfo{}, err
	}
	devices = slices.DeleteFunc(devices, func(d signals.DeviceInfo) bool {
		if output {
			return !d.CanPlay()
		}
		return !d.CanRecord()
	})
	var matches []signals.DeviceInfo
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
		if strings.HasPrefix(strings.ToLower(d.Name), strings.ToLower(name)) {
			matches = append(matches, d)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	slices.Sort(names)
	for i, n := range names {
		names[i] = strconv.Quote(n)
	}
	return signals.DeviceInfo{}, fmt.Errorf("%w %q. Valid options are: %s", ErrBadDevice, name, strings.Join(names, ", "))
}

// Classes returns the Sink and Source classes bound to the rack.
func (r *Rack) Classes() []*graph.Class {
	return []*graph.Class{r.SinkClass(), r.SourceClass()}
}

func (r *Rack) SinkClass() *graph.Class {
	return &graph.Class{
		Name:  "Sink",
		Doc:   "plays its input on an output device",
		Flags: signals.SinkDevice,
		Ports: []string{"input"},
		Open:  func(dev signals.DeviceInfo) (graph.Node, error) { return r.openSink(dev) },
	}
}

func (r *Rack) SourceClass() *graph.Class {
	return &graph.Class{
		Name:  "Source",
		Doc:   "records from an input device",
		Flags: signals.SourceDevice,
		Open:  func(dev signals.DeviceInfo) (graph.Node, error) { return r.openSource(dev) },
	}
}

func (r *Rack) streamConfig(maxChannels int) signals.StreamConfig {
	cfg := r.config
	cfg.Channels = max(min(cfg.Channels, maxChannels), 1)
	return cfg
}
