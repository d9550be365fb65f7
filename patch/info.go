package patch

import (
	"cmp"
	"encoding/json"

	"github.com/vsariola/signals"
)

type (
	// SignalInfo is everything needed to recreate a node: its place, class,
	// device (for device classes) and full state.
	SignalInfo struct {
		At     signals.Coordinates        `json:"at" yaml:"at"`
		Class  string                     `json:"class" yaml:"class"`
		Device string                     `json:"device,omitempty" yaml:"device,omitempty"`
		State  map[string]json.RawMessage `json:"state" yaml:"-"`
	}

	// PortInfo names a port of the node at At.
	PortInfo struct {
		At   signals.Coordinates `json:"at" yaml:"at"`
		Port string              `json:"port" yaml:"port"`
	}

	// ConnectionInfo says that the node at InputAt feeds Output.
	ConnectionInfo struct {
		InputAt signals.Coordinates `json:"input_at" yaml:"input_at"`
		Output  PortInfo            `json:"output" yaml:"output"`
	}

	// LinkedSignalInfo is a removed node together with the connections that
	// were severed when it was removed.
	LinkedSignalInfo struct {
		SignalInfo
		LinksIn  []ConnectionInfo `json:"links_in" yaml:"links_in"`
		LinksOut []ConnectionInfo `json:"links_out" yaml:"links_out"`
	}
)

func (p PortInfo) String() string {
	return p.At.String() + "." + p.Port
}

func compareConnections(a, b ConnectionInfo) int {
	if c := a.Output.At.Compare(b.Output.At); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Output.Port, b.Output.Port); c != 0 {
		return c
	}
	return a.InputAt.Compare(b.InputAt)
}
