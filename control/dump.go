package control

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/vsariola/signals/graph"
	"github.com/vsariola/signals/patch"
	"golang.org/x/crypto/sha3"
)

// Dump returns the commands that rebuild the contents of m from an empty
// Map: sources, then sinks, then the other signals in coordinate order, then
// the connections. Only state values that differ from the class defaults are
// included.
func Dump(m *patch.Map) []Command {
	var ret []Command
	for info := range m.Sources() {
		ret = append(ret, AddDevice{At: info.At, Device: info.Device, Values: deviceValues(info)})
	}
	for info := range m.Sinks() {
		ret = append(ret, AddDevice{At: info.At, Output: true, Device: info.Device, Values: deviceValues(info)})
	}
	for info := range m.Signals() {
		class, err := m.Registry().Lookup(info.Class)
		if err != nil || class.IsDevice() {
			continue
		}
		ret = append(ret, Add{At: info.At, Class: class.Name, Values: changedValues(class, info.State)})
	}
	for _, c := range m.Connections() {
		ret = append(ret, Connect{InputAt: c.InputAt, Output: c.Output})
	}
	return ret
}

// DumpText is the patch file text of cmds.
func DumpText(cmds []Command) string {
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Hash is the hex encoded SHA3-256 of the patch file text of m. Two Maps
// with the same hash rebuild to the same patch.
func Hash(m *patch.Map) string {
	return hashText(DumpText(Dump(m)))
}

var emptyHash = hashText("")

func hashText(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func changedValues(class *graph.Class, state map[string]json.RawMessage) map[string]json.RawMessage {
	defaults, err := graph.StateValues(class.New())
	if err != nil {
		return state
	}
	var ret map[string]json.RawMessage
	for k, v := range state {
		if d, ok := defaults[k]; ok && bytes.Equal(d, v) {
			continue
		}
		if ret == nil {
			ret = map[string]json.RawMessage{}
		}
		ret[k] = v
	}
	return ret
}

// deviceValues drops the fields that are fixed when a device is opened.
func deviceValues(info patch.SignalInfo) map[string]json.RawMessage {
	var ret map[string]json.RawMessage
	for k, v := range info.State {
		switch k {
		case "device", "channels":
			continue
		case "enabled":
			if string(v) == "true" {
				continue
			}
		}
		if ret == nil {
			ret = map[string]json.RawMessage{}
		}
		ret[k] = v
	}
	return ret
}
