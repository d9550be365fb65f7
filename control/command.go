package control

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/patch"
)

type (
	// Command is a mutation of a Map that has not been applied yet. Do either
	// applies it completely and returns the Applied form, or returns an error
	// and leaves the Map as it was.
	Command interface {
		Do(m *patch.Map) (Applied, error)
		// String is the command in the command language.
		String() string
	}

	// Applied is a command that has been applied and captured what it needs
	// to be undone. Undo restores the Map to the state it had before Do.
	Applied interface {
		Undo(m *patch.Map) error
		Command() Command
	}

	Add struct {
		At     signals.Coordinates
		Class  string
		Values map[string]json.RawMessage
	}

	// AddDevice opens a device: a source when Output is false, a sink
	// otherwise.
	AddDevice struct {
		At     signals.Coordinates
		Output bool
		Device string
		Values map[string]json.RawMessage
	}

	Rm struct {
		At signals.Coordinates
	}

	Edit struct {
		At     signals.Coordinates
		Values map[string]json.RawMessage
	}

	Mv struct {
		From, To signals.Coordinates
	}

	// Connect binds the Output port to the node at InputAt.
	Connect struct {
		InputAt signals.Coordinates
		Output  patch.PortInfo
	}

	Disconnect struct {
		Output patch.PortInfo
	}

	// Batch is a sequence of commands applied as a unit.
	Batch struct {
		ID       uuid.UUID
		Label    string
		Commands []Command
	}

	appliedAdd struct {
		at  signals.Coordinates
		cmd Command
	}

	appliedRm struct {
		cmd   Rm
		stash patch.LinkedSignalInfo
	}

	appliedEdit struct {
		cmd  Edit
		prev map[string]json.RawMessage
	}

	appliedMv struct{ cmd Mv }

	appliedConnect struct {
		cmd  Connect
		prev signals.Coordinates
	}

	appliedDisconnect struct {
		cmd  Disconnect
		prev signals.Coordinates
	}

	// AppliedBatch is a batch whose commands all succeeded.
	AppliedBatch struct {
		batch   *Batch
		applied []Applied
	}
)

// Class names of the device node classes added by AddDevice.
const (
	SourceClassName = "Source"
	SinkClassName   = "Sink"
)

func (c Add) Do(m *patch.Map) (Applied, error) {
	if err := m.Add(c.At, c.Class, c.Values); err != nil {
		return nil, err
	}
	return appliedAdd{at: c.At, cmd: c}, nil
}

func (c Add) String() string {
	return joinTokens(append([]string{"+", c.At.String(), c.Class}, formatValues(c.Values)...)...)
}

func (c AddDevice) className() string {
	if c.Output {
		return SinkClassName
	}
	return SourceClassName
}

func (c AddDevice) Do(m *patch.Map) (Applied, error) {
	if err := m.AddDevice(c.At, c.className(), c.Device, c.Values); err != nil {
		return nil, err
	}
	return appliedAdd{at: c.At, cmd: c}, nil
}

func (c AddDevice) String() string {
	verb := "source"
	if c.Output {
		verb = "sink"
	}
	return joinTokens(append([]string{verb, c.At.String(), c.Device}, formatValues(c.Values)...)...)
}

func (a appliedAdd) Undo(m *patch.Map) error {
	_, err := m.Rm(a.at)
	return err
}

func (a appliedAdd) Command() Command { return a.cmd }

func (c Rm) Do(m *patch.Map) (Applied, error) {
	info, err := m.Rm(c.At)
	if err != nil {
		return nil, err
	}
	return &appliedRm{cmd: c, stash: info}, nil
}

func (c Rm) String() string { return joinTokens("-", c.At.String()) }

func (a *appliedRm) Undo(m *patch.Map) error { return m.Restore(a.stash) }

func (a *appliedRm) Command() Command { return a.cmd }

func (c Edit) Do(m *patch.Map) (Applied, error) {
	prev, err := m.Edit(c.At, c.Values)
	if err != nil {
		return nil, err
	}
	return &appliedEdit{cmd: c, prev: prev}, nil
}

func (c Edit) String() string {
	return joinTokens(append([]string{"*", c.At.String()}, formatValues(c.Values)...)...)
}

func (a *appliedEdit) Undo(m *patch.Map) error {
	_, err := m.Edit(a.cmd.At, a.prev)
	return err
}

func (a *appliedEdit) Command() Command { return a.cmd }

func (c Mv) Do(m *patch.Map) (Applied, error) {
	if err := m.Mv(c.From, c.To); err != nil {
		return nil, err
	}
	return appliedMv{cmd: c}, nil
}

func (c Mv) String() string { return joinTokens("=", c.From.String(), c.To.String()) }

func (a appliedMv) Undo(m *patch.Map) error { return m.Mv(a.cmd.To, a.cmd.From) }

func (a appliedMv) Command() Command { return a.cmd }

func (c Connect) Do(m *patch.Map) (Applied, error) {
	prev, err := m.Connect(c.InputAt, c.Output.At, c.Output.Port)
	if err != nil {
		return nil, err
	}
	return &appliedConnect{cmd: c, prev: prev}, nil
}

func (c Connect) String() string { return joinTokens(">", c.InputAt.String(), c.Output.String()) }

func (a *appliedConnect) Undo(m *patch.Map) error {
	out := a.cmd.Output
	if a.prev.Valid() {
		_, err := m.Connect(a.prev, out.At, out.Port)
		return err
	}
	_, err := m.Disconnect(out.At, out.Port)
	return err
}

func (a *appliedConnect) Command() Command { return a.cmd }

func (c Disconnect) Do(m *patch.Map) (Applied, error) {
	prev, err := m.Disconnect(c.Output.At, c.Output.Port)
	if err != nil {
		return nil, err
	}
	return &appliedDisconnect{cmd: c, prev: prev}, nil
}

func (c Disconnect) String() string { return joinTokens(">/", c.Output.String()) }

func (a *appliedDisconnect) Undo(m *patch.Map) error {
	_, err := m.Connect(a.prev, a.cmd.Output.At, a.cmd.Output.Port)
	return err
}

func (a *appliedDisconnect) Command() Command { return a.cmd }

// NewBatch returns a batch of cmds with a fresh ID.
func NewBatch(label string, cmds ...Command) *Batch {
	return &Batch{ID: uuid.New(), Label: label, Commands: cmds}
}

// Do applies the commands in order. If one fails, the ones already applied
// are undone in reverse order before the error is returned. A failing undo
// leaves the Map in an unknown state and panics.
func (b *Batch) Do(m *patch.Map) (Applied, error) {
	a, err := b.apply(m)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (b *Batch) apply(m *patch.Map) (*AppliedBatch, error) {
	applied := make([]Applied, 0, len(b.Commands))
	for i, c := range b.Commands {
		a, err := c.Do(m)
		if err != nil {
			undoAll(m, applied)
			if len(b.Commands) == 1 {
				return nil, err
			}
			return nil, fmt.Errorf("%s (command %d of %d): %w", c, i+1, len(b.Commands), err)
		}
		applied = append(applied, a)
	}
	return &AppliedBatch{batch: b, applied: applied}, nil
}

func (b *Batch) String() string {
	lines := make([]string, len(b.Commands))
	for i, c := range b.Commands {
		lines[i] = c.String()
	}
	return strings.Join(lines, "\n")
}

// Undo undoes the commands of the batch in reverse order. It panics if any
// of them fails.
func (a *AppliedBatch) Undo(m *patch.Map) error {
	undoAll(m, a.applied)
	return nil
}

func (a *AppliedBatch) Command() Command { return a.batch }

func (a *AppliedBatch) Batch() *Batch { return a.batch }

func undoAll(m *patch.Map, applied []Applied) {
	for _, a := range slices.Backward(applied) {
		if err := a.Undo(m); err != nil {
			panic(fmt.Errorf("undo of %q failed, the patch is now inconsistent: %w", a.Command(), err))
		}
	}
}
