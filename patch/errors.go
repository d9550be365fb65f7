package patch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/graph"
)

// ErrorKind classifies a failed Map operation.
type ErrorKind int

const (
	Empty ErrorKind = iota + 1
	NonEmpty
	NotConnected
	AlreadyConnected
	BadSignal
	BadPort
	BadProperty
	BadReceiver
	BadEmitter
	BadPlaybackTarget
	BadDevice
)

var kindNames = map[ErrorKind]string{
	Empty:             "Empty",
	NonEmpty:          "NonEmpty",
	NotConnected:      "NotConnected",
	AlreadyConnected:  "AlreadyConnected",
	BadSignal:         "BadSignal",
	BadPort:           "BadPort",
	BadProperty:       "BadProperty",
	BadReceiver:       "BadReceiver",
	BadEmitter:        "BadEmitter",
	BadPlaybackTarget: "BadPlaybackTarget",
	BadDevice:         "BadDevice",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MapError is returned by every failed Map operation. The Map is unchanged
// when one is returned.
type MapError struct {
	Kind    ErrorKind
	At      signals.Coordinates
	Port    string
	Options []string
	Err     error
}

func (e *MapError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v at %v", e.Kind, e.At)
	if e.Port != "" {
		fmt.Fprintf(&b, ".%s", e.Port)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else if len(e.Options) > 0 {
		fmt.Fprintf(&b, ". Valid options are: %s", strings.Join(e.Options, ", "))
	}
	return b.String()
}

func (e *MapError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first MapError in the chain of err, or zero.
func KindOf(err error) ErrorKind {
	var e *MapError
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRecoverable reports whether err is a rejected request (a bad address,
// name, value or connection) rather than a failure of the environment. Both
// leave the Map unchanged; interactive use reports recoverable errors and
// carries on.
func IsRecoverable(err error) bool {
	var (
		mapErr    *MapError
		shape     *graph.BadShapeError
		schema    *graph.BadStateSchemaError
		value     *graph.BadStateValueError
		port      *graph.BadPortError
		property  *graph.BadPropertyError
		class     *graph.BadClassError
		cycle     *graph.CycleError
		drift     *device.DriftError
		mismatch  = graph.ErrChannelMismatch
		badDevice = device.ErrBadDevice
	)
	return errors.As(err, &mapErr) ||
		errors.As(err, &shape) ||
		errors.As(err, &schema) ||
		errors.As(err, &value) ||
		errors.As(err, &port) ||
		errors.As(err, &property) ||
		errors.As(err, &class) ||
		errors.As(err, &cycle) ||
		errors.As(err, &drift) ||
		errors.Is(err, mismatch) ||
		errors.Is(err, badDevice)
}
