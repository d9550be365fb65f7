package control

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vsariola/signals/patch"
)

// CommandErrorKind classifies errors of the command layer.
type CommandErrorKind int

const (
	BadCommandSyntax CommandErrorKind = iota + 1
	BadCommand
	BadUndo
	BadRedo
)

func (k CommandErrorKind) String() string {
	switch k {
	case BadCommandSyntax:
		return "BadCommandSyntax"
	case BadCommand:
		return "BadCommand"
	case BadUndo:
		return "BadUndo"
	case BadRedo:
		return "BadRedo"
	}
	return fmt.Sprintf("CommandErrorKind(%d)", int(k))
}

// CommandError is a command that could not be parsed, is unknown, or walks
// off either end of the history. The Map is never changed when one is
// returned.
type CommandError struct {
	Kind CommandErrorKind
	// Line is the 1-based line of a script the command was read from, or
	// zero.
	Line    int
	Options []string
	Err     error
}

// ErrExit is returned by Execute when the exit command is given.
var ErrExit = errors.New("exit")

func (e *CommandError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Options) > 0 {
		fmt.Fprintf(&b, ". Valid options are: %s", strings.Join(e.Options, ", "))
	}
	return b.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

func syntaxError(format string, args ...any) error {
	return &CommandError{Kind: BadCommandSyntax, Err: fmt.Errorf(format, args...)}
}

// IsRecoverable reports whether err only rejected a command, so that an
// interactive session can report it and carry on.
func IsRecoverable(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) || patch.IsRecoverable(err)
}
