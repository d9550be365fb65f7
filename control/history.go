package control

import (
	"errors"

	"github.com/vsariola/signals/patch"
)

// DefaultHistorySize is the number of batches kept for undo when no other
// size is given.
const DefaultHistorySize = 100

// History keeps the applied batches that can be undone and the undone
// batches that can be redone. Applying a new batch forgets the redo side.
type History struct {
	undoStack []*AppliedBatch
	redoStack []*Batch
	size      int
}

func NewHistory(size int) *History {
	if size < 1 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Do applies b to m and records it for undo.
func (h *History) Do(m *patch.Map, b *Batch) (*AppliedBatch, error) {
	a, err := b.apply(m)
	if err != nil {
		return nil, err
	}
	h.push(a)
	h.redoStack = h.redoStack[:0]
	return a, nil
}

func (h *History) push(a *AppliedBatch) {
	if len(h.undoStack) >= h.size {
		copy(h.undoStack, h.undoStack[len(h.undoStack)-h.size+1:])
		h.undoStack = h.undoStack[:h.size-1]
	}
	h.undoStack = append(h.undoStack, a)
}

// Undo undoes the most recent batch and returns it.
func (h *History) Undo(m *patch.Map) (*Batch, error) {
	if len(h.undoStack) == 0 {
		return nil, &CommandError{Kind: BadUndo, Err: errors.New("nothing to undo")}
	}
	a := h.undoStack[len(h.undoStack)-1]
	a.Undo(m)
	h.undoStack = h.undoStack[:len(h.undoStack)-1]
	h.redoStack = append(h.redoStack, a.batch)
	return a.batch, nil
}

// Redo applies the most recently undone batch again and returns it. If it
// can no longer be applied, for example because its device went away, the
// error is returned and the batch stays redoable.
func (h *History) Redo(m *patch.Map) (*Batch, error) {
	if len(h.redoStack) == 0 {
		return nil, &CommandError{Kind: BadRedo, Err: errors.New("nothing to redo")}
	}
	b := h.redoStack[len(h.redoStack)-1]
	a, err := b.apply(m)
	if err != nil {
		return nil, err
	}
	h.redoStack = h.redoStack[:len(h.redoStack)-1]
	h.push(a)
	return b, nil
}

// Len returns the number of batches that can be undone and redone.
func (h *History) Len() (undo, redo int) {
	return len(h.undoStack), len(h.redoStack)
}

// Batches returns the undoable batches, oldest first.
func (h *History) Batches() []*Batch {
	ret := make([]*Batch, len(h.undoStack))
	for i, a := range h.undoStack {
		ret[i] = a.batch
	}
	return ret
}
