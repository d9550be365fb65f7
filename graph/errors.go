package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vsariola/signals"
)

var (
	ErrNoNode          = errors.New("no such node")
	ErrNotEmitter      = errors.New("node does not emit blocks")
	ErrNotReceiver     = errors.New("node has no ports")
	ErrNotConnected    = errors.New("port has no input")
	ErrChannelMismatch = errors.New("inputs disagree on the number of channels")
)

type (
	// BadShapeError is returned by a port when the upstream node answers a
	// request with a block that does not broadcast to the requested shape.
	BadShapeError struct {
		Class string
		Got   signals.Shape
		Want  signals.Shape
	}

	// BadStateSchemaError is returned when a node is given a state of the
	// wrong type.
	BadStateSchemaError struct {
		Want string
		Got  string
	}

	// BadStateValueError is returned when a state field fails validation.
	BadStateValueError struct {
		Schema string
		Key    string
		Value  any
		Reason string
	}

	// BadPortError names a port that does not exist on a class.
	BadPortError struct {
		Class   string
		Port    string
		Options []string
	}

	// BadPropertyError names a state field that does not exist on a class.
	BadPropertyError struct {
		Class   string
		Key     string
		Options []string
	}

	// BadClassError is returned by the registry for unknown class names.
	BadClassError struct {
		Name    string
		Options []string
	}

	// BadFlagsError is returned when a class is registered with an invalid
	// flag combination.
	BadFlagsError struct {
		Class string
		Err   error
	}

	// CycleError reports a dependency cycle that no node on it tolerates.
	// Path starts and ends with the same node.
	CycleError struct {
		Path    []Handle
		Classes []string
	}
)

func (e *BadShapeError) Error() string {
	return fmt.Sprintf("invalid response from %q: block with shape %v incompatible with requested shape %v", e.Class, e.Got, e.Want)
}

func (e *BadStateSchemaError) Error() string {
	return fmt.Sprintf("node with state %s cannot accept state of type %s", e.Want, e.Got)
}

func (e *BadStateValueError) Error() string {
	reason := ""
	if e.Reason != "" {
		reason = fmt.Sprintf(" (%s)", e.Reason)
	}
	return fmt.Sprintf("value %v is invalid for property %q in schema %s%s", e.Value, e.Key, e.Schema, reason)
}

func (e *BadPortError) Error() string {
	return fmt.Sprintf("%s has no port %q. %s", e.Class, e.Port, validOptions(e.Options))
}

func (e *BadPropertyError) Error() string {
	return fmt.Sprintf("%s has no property %q. %s", e.Class, e.Key, validOptions(e.Options))
}

func (e *BadClassError) Error() string {
	return fmt.Sprintf("no signal class named %q. %s", e.Name, validOptions(e.Options))
}

func (e *BadFlagsError) Error() string {
	return fmt.Sprintf("class %q: %v", e.Class, e.Err)
}

func (e *BadFlagsError) Unwrap() error { return e.Err }

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, h := range e.Path {
		if i < len(e.Classes) {
			parts[i] = fmt.Sprintf("%s#%d", e.Classes[i], h)
		} else {
			parts[i] = fmt.Sprintf("#%d", h)
		}
	}
	return "cycle detected: " + strings.Join(parts, " <- ")
}

func validOptions(options []string) string {
	quoted := make([]string, len(options))
	for i, o := range options {
		quoted[i] = fmt.Sprintf("%q", o)
	}
	return "Valid options are: " + strings.Join(quoted, ", ")
}
