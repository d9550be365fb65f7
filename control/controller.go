// Package control edits a patch through the command language: reversible
// commands grouped into batches, an undo history, the parser, and the
// Controller that runs sessions and scripts, saves and loads patches and
// keeps a recovery file.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
	"github.com/vsariola/signals/nodes"
	"github.com/vsariola/signals/patch"
)

type (
	// Executor runs jobs that read or modify a Map. Jobs run one at a time
	// and never while the Map is being pulled.
	Executor interface {
		Exec(job func(m *patch.Map) error) error
	}

	// Local runs jobs directly on a Map that nothing else uses.
	Local struct {
		Map *patch.Map
	}

	DeviceLister interface {
		Devices() ([]signals.DeviceInfo, error)
	}

	// Controller carries out statements of the command language on a Map.
	// It is safe for concurrent use.
	Controller struct {
		mu            sync.Mutex
		exec          Executor
		history       *History
		out           io.Writer
		logger        *slog.Logger
		devices       DeviceLister
		interactive   bool
		recoveryFile  string
		savedHash     string
		recoveredHash string
	}

	Option func(*Controller)
)

func (l Local) Exec(job func(m *patch.Map) error) error { return job(l.Map) }

// WithOutput sets where listings and reports are written. The default is
// io.Discard.
func WithOutput(w io.Writer) Option { return func(c *Controller) { c.out = w } }

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

func WithDevices(d DeviceLister) Option { return func(c *Controller) { c.devices = d } }

func WithHistorySize(n int) Option { return func(c *Controller) { c.history = NewHistory(n) } }

func WithRecoveryFile(path string) Option { return func(c *Controller) { c.recoveryFile = path } }

// WithInteractive makes Run prompt for input and report recoverable errors
// instead of stopping at them.
func WithInteractive(b bool) Option { return func(c *Controller) { c.interactive = b } }

func New(exec Executor, opts ...Option) *Controller {
	c := &Controller{
		exec:          exec,
		history:       NewHistory(DefaultHistorySize),
		out:           io.Discard,
		logger:        slog.Default(),
		savedHash:     emptyHash,
		recoveredHash: emptyHash,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes the lines read from r until r ends, ctx is done or the exit
// command is given. In interactive mode recoverable errors are reported and
// the session carries on; otherwise the first error stops the run.
func (c *Controller) Run(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()
	for n := 1; ; n++ {
		if c.interactive {
			fmt.Fprint(c.out, "> ")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return ctx.Err()
				}
			}
			err := c.Execute(line)
			switch {
			case err == nil:
			case errors.Is(err, ErrExit):
				return nil
			case c.interactive && IsRecoverable(err):
				fmt.Fprintf(c.out, "error: %v\n", err)
			case c.interactive:
				return err
			default:
				return fmt.Errorf("line %d: %w", n, err)
			}
		}
	}
}

// Execute parses and carries out one line of the command language.
func (c *Controller) Execute(line string) error {
	st, ok, err := Parse(line)
	if err != nil || !ok {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run(st)
}

func (c *Controller) run(st Statement) error {
	if st.Command != nil {
		return c.do(NewBatch(st.Command.String(), st.Command))
	}
	switch st.Verb {
	case "init":
		return c.initPatch()
	case "undo", "redo":
		return c.travel(st.Verb, st.Args)
	case "history":
		var batches []*Batch
		err := c.exec.Exec(func(*patch.Map) error {
			batches = c.history.Batches()
			return nil
		})
		if err != nil {
			return err
		}
		return listings.ExecuteTemplate(c.out, "history", batches)
	case "load":
		return c.load(st.Args[0], true)
	case "save":
		return c.save(st.Args[0])
	case "export":
		var s Snapshot
		err := c.exec.Exec(func(m *patch.Map) (err error) {
			s, err = TakeSnapshot(m)
			return err
		})
		if err != nil {
			return err
		}
		return exportSnapshot(s, st.Args[0])
	case "show":
		text, err := c.dump()
		if err != nil {
			return err
		}
		_, err = io.WriteString(c.out, text)
		return err
	case "hash":
		text, err := c.dump()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, hashText(text))
		return err
	case "play", "pause", "stop", "seek":
		return c.transport(st.Verb, st.Args)
	case "scope":
		return c.scope(st.Args[0])
	case "classes", "grep":
		var classes []*graph.Class
		err := c.exec.Exec(func(m *patch.Map) error {
			classes = m.Registry().Classes()
			return nil
		})
		if err != nil {
			return err
		}
		if st.Verb == "grep" {
			if classes, err = grep(classes, st.Args[0]); err != nil {
				return err
			}
		}
		return listings.ExecuteTemplate(c.out, "classes", classes)
	case "sources", "sinks":
		if c.devices == nil {
			return &patch.MapError{Kind: patch.BadDevice, Err: errors.New("no audio devices available")}
		}
		devices, err := c.devices.Devices()
		if err != nil {
			return err
		}
		return listings.ExecuteTemplate(c.out, "devices", devicesFor(devices, st.Verb == "sinks"))
	case "help":
		return listings.ExecuteTemplate(c.out, "help", helpEntries())
	case "exit":
		if c.interactive && c.unsaved() {
			fmt.Fprintln(c.out, "leaving with unsaved changes")
		}
		return ErrExit
	}
	return &CommandError{Kind: BadCommand, Err: errors.New("unknown command " + strconv.Quote(st.Verb)), Options: verbNames()}
}

// Do applies b and records it for undo.
func (c *Controller) Do(b *Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.do(b)
}

func (c *Controller) do(b *Batch) error {
	err := c.exec.Exec(func(m *patch.Map) error {
		_, err := c.history.Do(m, b)
		return err
	})
	if err != nil {
		return err
	}
	c.logger.Debug("batch applied", "id", b.ID, "label", b.Label, "commands", len(b.Commands))
	return nil
}

// initCommands removes every connection and then every signal of m.
func initCommands(m *patch.Map) []Command {
	var ret []Command
	for _, conn := range m.Connections() {
		ret = append(ret, Disconnect{Output: conn.Output})
	}
	for _, at := range m.Coordinates() {
		ret = append(ret, Rm{At: at})
	}
	return ret
}

func (c *Controller) initPatch() error {
	return c.exec.Exec(func(m *patch.Map) error {
		cmds := initCommands(m)
		if len(cmds) == 0 {
			return nil
		}
		_, err := c.history.Do(m, NewBatch("init", cmds...))
		return err
	})
}

func (c *Controller) travel(verb string, args []string) error {
	times := 1
	if len(args) > 0 {
		var err error
		if times, err = strconv.Atoi(args[0]); err != nil || times < 1 {
			return syntaxError("%s: %q is not a positive number", verb, args[0])
		}
	}
	for range times {
		var b *Batch
		err := c.exec.Exec(func(m *patch.Map) (err error) {
			if verb == "undo" {
				b, err = c.history.Undo(m)
			} else {
				b, err = c.history.Redo(m)
			}
			return err
		})
		if err != nil {
			return err
		}
		c.logger.Debug(verb, "id", b.ID, "label", b.Label)
	}
	return nil
}

func (c *Controller) transport(verb string, args []string) error {
	at, err := parseAt(args[0])
	if err != nil {
		return err
	}
	var position int
	if verb == "seek" {
		if position, err = strconv.Atoi(args[1]); err != nil {
			return syntaxError("seek: %q is not a frame number", args[1])
		}
	}
	return c.exec.Exec(func(m *patch.Map) error {
		s, err := m.Sink(at)
		if err != nil {
			return err
		}
		switch verb {
		case "play":
			s.Play()
		case "pause":
			s.Pause()
		case "stop":
			s.Stop()
		case "seek":
			s.Seek(position)
		}
		return nil
	})
}

func (c *Controller) scope(arg string) error {
	at, err := parseAt(arg)
	if err != nil {
		return err
	}
	var blocks []nodes.ScopeBlock
	err = c.exec.Exec(func(m *patch.Map) error {
		h, ok := m.Handle(at)
		if !ok {
			return &patch.MapError{Kind: patch.Empty, At: at}
		}
		node, _ := m.Graph().Node(h)
		s, ok := node.(*nodes.Scope)
		if !ok {
			return &patch.MapError{Kind: patch.BadSignal, At: at, Err: errors.New("not a Scope")}
		}
		blocks = s.Drain()
		return nil
	})
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		_, err = fmt.Fprintln(c.out, "no blocks")
		return err
	}
	var peak float32
	for _, b := range blocks {
		peak = max(peak, b.Block.Peak())
	}
	first, last := blocks[0].Loc, blocks[len(blocks)-1]
	_, err = fmt.Fprintf(c.out, "%d blocks, frames %d to %d at %dHz, peak %.3f, mean of last %.3f\n",
		len(blocks), first.Position, last.Loc.EndPosition(), last.Loc.Rate, peak, last.Block.Mean())
	return err
}

// Load runs the patch file at path as one undoable batch.
func (c *Controller) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(path, true)
}

func (c *Controller) load(path string, saved bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cmds, err := ParseScript(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := c.do(NewBatch("load "+path, cmds...)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if saved {
		text, err := c.dump()
		if err != nil {
			return err
		}
		c.savedHash = hashText(text)
	}
	c.logger.Info("patch loaded", "path", path, "commands", len(cmds))
	return nil
}

// Reload replaces the contents of the Map with the patch file at path, as
// one undoable batch.
func (c *Controller) Reload(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cmds, err := ParseScript(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	var text string
	err = c.exec.Exec(func(m *patch.Map) error {
		b := NewBatch("reload "+path, append(initCommands(m), cmds...)...)
		if _, err := c.history.Do(m, b); err != nil {
			return err
		}
		text = DumpText(Dump(m))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.savedHash = hashText(text)
	c.logger.Info("patch reloaded", "path", path, "commands", len(cmds))
	return nil
}

// Save writes the patch file of the Map to path.
func (c *Controller) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(path)
}

func (c *Controller) save(path string) error {
	text, err := c.dump()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("could not save patch: %w", err)
	}
	c.savedHash = hashText(text)
	c.logger.Info("patch saved", "path", path)
	return nil
}

// Dump returns the patch file text of the Map.
func (c *Controller) Dump() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dump()
}

func (c *Controller) dump() (text string, err error) {
	err = c.exec.Exec(func(m *patch.Map) error {
		text = DumpText(Dump(m))
		return nil
	})
	return text, err
}

// Hash returns the hash of the patch file text of the Map.
func (c *Controller) Hash() (string, error) {
	text, err := c.Dump()
	return hashText(text), err
}

// Unsaved reports whether the Map changed since it was last saved or
// loaded.
func (c *Controller) Unsaved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsaved()
}

func (c *Controller) unsaved() bool {
	text, err := c.dump()
	return err != nil || hashText(text) != c.savedHash
}

// SaveRecovery writes the patch to the recovery file if it changed since the
// last time.
func (c *Controller) SaveRecovery() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recoveryFile == "" {
		return errors.New("no recovery file path")
	}
	text, err := c.dump()
	if err != nil {
		return fmt.Errorf("could not dump recovery data: %w", err)
	}
	hash := hashText(text)
	if hash == c.recoveredHash {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.recoveryFile), os.ModePerm); err != nil {
		return fmt.Errorf("could not create recovery directory: %w", err)
	}
	if err := os.WriteFile(c.recoveryFile, []byte(text), 0o644); err != nil {
		return fmt.Errorf("could not write recovery file: %w", err)
	}
	c.recoveredHash = hash
	return nil
}

// Recover loads the recovery file, if there is one. The recovered patch
// counts as unsaved.
func (c *Controller) Recover() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recoveryFile == "" {
		return nil
	}
	if _, err := os.Stat(c.recoveryFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return c.load(c.recoveryFile, false)
}

// RunRecovery saves the recovery file every interval until ctx is done, and
// once more after that.
func (c *Controller) RunRecovery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.SaveRecovery(); err != nil {
				c.logger.Warn("saving recovery file failed", "path", c.recoveryFile, "err", err)
			}
		case <-ctx.Done():
			return c.SaveRecovery()
		}
	}
}
