// Package player runs a patch. The Engine owns the Map: every change to it
// and every read of it is a job that runs between two audio blocks, so the
// audio thread never pulls from a half edited graph.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/patch"
)

type (
	// Engine serializes jobs on a Map with the audio callbacks pulling from
	// it. Jobs are queued; the queue is drained by the next audio callback
	// before it renders, or by the submitter when no callback holds the
	// engine.
	Engine struct {
		mu      sync.Mutex
		m       *patch.Map
		jobs    chan job
		metrics *Metrics
		logger  *slog.Logger
		release Releaser
	}

	// Releaser frees resources that could not be freed while the engine was
	// held, like the streams of destroyed sinks.
	Releaser interface {
		Release() error
	}

	job struct {
		run  func(m *patch.Map) error
		done chan error
	}

	Option func(*Engine)
)

const queueSize = 1024

func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithReleaser makes Exec call r.Release after letting go of the engine.
func WithReleaser(r Releaser) Option { return func(e *Engine) { e.release = r } }

func New(m *patch.Map, opts ...Option) *Engine {
	e := &Engine{m: m, jobs: make(chan job, queueSize), logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Exec runs f on the Map between two blocks and returns its error. It must
// not be called from an audio callback.
func (e *Engine) Exec(f func(m *patch.Map) error) error {
	j := job{run: f, done: make(chan error, 1)}
	if !signals.TrySend(e.jobs, j) {
		// queue full: run it ourselves after everything queued before it
		e.mu.Lock()
		e.drain()
		err := j.run(e.m)
		e.mu.Unlock()
		return e.afterUnlock(err)
	}
	e.metrics.queued()
	e.mu.Lock()
	e.drain()
	e.mu.Unlock()
	return e.afterUnlock(<-j.done)
}

// afterUnlock runs the releaser and returns err, or the release error if err
// is nil.
func (e *Engine) afterUnlock(err error) error {
	if e.release == nil {
		return err
	}
	if rerr := e.release.Release(); rerr != nil {
		e.logger.Error("releasing resources failed", "err", rerr)
		if err == nil {
			return rerr
		}
	}
	return err
}

func (e *Engine) drain() {
	for {
		j, ok := signals.TryReceive(e.jobs)
		if !ok {
			return
		}
		j.done <- j.run(e.m)
	}
}

// Pending is the number of queued jobs.
func (e *Engine) Pending() int { return len(e.jobs) }

// Guard runs an audio callback after the queued jobs, holding the engine so
// that no job runs while it pulls. Device racks use it as their guard.
func (e *Engine) Guard(callback func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drain()
	callback()
	e.metrics.tick()
}

// Render pulls frames frames from the sink at at, blockFrames at a time,
// starting at its playback position, and returns them interleaved. Jobs
// queued meanwhile run between the blocks.
func (e *Engine) Render(ctx context.Context, at signals.Coordinates, frames, blockFrames int) ([]float32, error) {
	if blockFrames < 1 {
		return nil, fmt.Errorf("block size %d is not positive", blockFrames)
	}
	var out []float32
	for done := 0; done < frames; {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		n := min(blockFrames, frames-done)
		err := e.Exec(func(m *patch.Map) error {
			s, err := m.Sink(at)
			if err != nil {
				return err
			}
			b, err := s.Render(n)
			if err != nil {
				return fmt.Errorf("render %v at frame %d: %w", at, done, err)
			}
			out = append(out, b.Data...)
			return nil
		})
		if err != nil {
			return out, err
		}
		done += n
	}
	return out, nil
}

// Shutdown removes every node, closing the device streams.
func (e *Engine) Shutdown() error {
	return e.Exec(func(m *patch.Map) error {
		var errs []error
		for _, at := range slices.Backward(m.Coordinates()) {
			if _, err := m.Rm(at); err != nil {
				errs = append(errs, err)
			}
		}
		e.logger.Debug("engine shut down")
		return errors.Join(errs...)
	})
}
