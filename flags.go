package signals

import (
	"errors"
	"fmt"
	"strings"
)

// Flags is the set of behavioral tags attached to a node class.
type Flags uint32

const (
	// Cyclic nodes are allowed to reach themselves through their ports.
	Cyclic Flags = 1 << iota
	SinkDevice
	SourceDevice
	// Generator produces audio from non-audio input.
	Generator
	// Effect produces audio from audio.
	Effect
	// Epoch has a predetermined maximum duration.
	Epoch
	Recorder
	Vis
	// PassThru nodes return their input instead of silence when disabled.
	PassThru
	Constant

	flagsEnd
)

const (
	Device     = SinkDevice | SourceDevice
	Audio      = Generator | Effect | SourceDevice
	SideEffect = Vis | Recorder | PassThru

	allFlags = flagsEnd - 1
)

var flagNames = []string{
	"CYCLIC",
	"SINK_DEVICE",
	"SOURCE_DEVICE",
	"GENERATOR",
	"EFFECT",
	"EPOCH",
	"RECORDER",
	"VIS",
	"PASSTHRU",
	"CONSTANT",
}

var ErrBadFlags = errors.New("invalid flag combination")

// Has reports whether all flags of o are set in f.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// Any reports whether at least one flag of o is set in f.
func (f Flags) Any(o Flags) bool {
	return f&o != 0
}

// Validate checks that f only uses known flags and does not combine flags
// that exclude each other.
func (f Flags) Validate() error {
	switch {
	case f&^allFlags != 0:
		return fmt.Errorf("%w: unknown bits %#x", ErrBadFlags, uint32(f&^allFlags))
	case f.Has(Device):
		return fmt.Errorf("%w: a node cannot be both a sink and a source device", ErrBadFlags)
	case f.Has(Constant) && f.Any(Generator|Effect|Device):
		return fmt.Errorf("%w: a constant cannot generate or process audio", ErrBadFlags)
	case f.Has(SinkDevice) && f.Any(Generator|Effect):
		return fmt.Errorf("%w: a sink device cannot produce audio", ErrBadFlags)
	}
	return nil
}

func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var names []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if rest := f &^ allFlags; rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(names, "|")
}
