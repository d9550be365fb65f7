// Package patch addresses the nodes of a graph by spreadsheet-style
// coordinates. A Map keeps a bijection between coordinates and node handles
// and offers the mutations a patch is edited with. Every mutation either
// succeeds completely or returns an error and leaves the Map and its graph as
// they were.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"

	"github.com/vsariola/signals"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/graph"
)

type (
	// Devices finds audio devices by name for sinks (output) and sources.
	Devices interface {
		Lookup(name string, output bool) (signals.DeviceInfo, error)
	}

	Map struct {
		graph    *graph.Graph
		registry *graph.Registry
		devices  Devices
		byAt     map[signals.Coordinates]graph.Handle
		byNode   map[graph.Handle]signals.Coordinates
		logger   *slog.Logger
	}

	Option func(*Map)
)

func WithDevices(d Devices) Option { return func(m *Map) { m.devices = d } }

func WithLogger(l *slog.Logger) Option { return func(m *Map) { m.logger = l } }

// New returns an empty Map placing nodes in g. Class names are resolved with
// registry.
func New(g *graph.Graph, registry *graph.Registry, opts ...Option) *Map {
	m := &Map{
		graph:    g,
		registry: registry,
		byAt:     map[signals.Coordinates]graph.Handle{},
		byNode:   map[graph.Handle]signals.Coordinates{},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Map) Graph() *graph.Graph { return m.graph }

func (m *Map) Registry() *graph.Registry { return m.registry }

func (m *Map) Len() int { return len(m.byAt) }

// Handle returns the node at at.
func (m *Map) Handle(at signals.Coordinates) (graph.Handle, bool) {
	h, ok := m.byAt[at]
	if ok {
		if back, ok := m.byNode[h]; !ok || back != at {
			panic(fmt.Errorf("patch map inconsistent: %v holds node #%d which maps back to %v", at, h, back))
		}
	}
	return h, ok
}

// At returns the coordinates of a node.
func (m *Map) At(h graph.Handle) (signals.Coordinates, bool) {
	at, ok := m.byNode[h]
	return at, ok
}

func (m *Map) occupied(at signals.Coordinates) (graph.Handle, *graph.Class, error) {
	h, ok := m.Handle(at)
	if !ok {
		return 0, nil, &MapError{Kind: Empty, At: at}
	}
	c, _ := m.graph.Class(h)
	return h, c, nil
}

func (m *Map) place(at signals.Coordinates, class *graph.Class, node graph.Node) graph.Handle {
	h := m.graph.Add(class, node)
	m.byAt[at] = h
	m.byNode[h] = at
	return h
}

func (m *Map) free(at signals.Coordinates) {
	delete(m.byNode, m.byAt[at])
	delete(m.byAt, at)
}

// Add creates a node of the named class at at, with values applied to its
// default state.
func (m *Map) Add(at signals.Coordinates, className string, values map[string]json.RawMessage) error {
	if _, ok := m.Handle(at); ok {
		return &MapError{Kind: NonEmpty, At: at}
	}
	class, err := m.lookup(at, className)
	if err != nil {
		return err
	}
	if class.IsDevice() {
		return &MapError{Kind: BadSignal, At: at, Err: fmt.Errorf("%s is a device class, add it with source or sink", class.Name)}
	}
	node := class.New()
	if err := apply(at, class, node, values); err != nil {
		return err
	}
	h := m.place(at, class, node)
	m.logger.Debug("signal added", "at", at, "class", class.Name, "node", h)
	return nil
}

// AddDevice opens the named device with a device class at at.
func (m *Map) AddDevice(at signals.Coordinates, className, deviceName string, values map[string]json.RawMessage) error {
	if _, ok := m.Handle(at); ok {
		return &MapError{Kind: NonEmpty, At: at}
	}
	class, err := m.lookup(at, className)
	if err != nil {
		return err
	}
	if !class.IsDevice() {
		return &MapError{Kind: BadSignal, At: at, Err: fmt.Errorf("%s is not a device class", class.Name)}
	}
	if m.devices == nil {
		return &MapError{Kind: BadDevice, At: at, Err: errors.New("no audio devices available")}
	}
	dev, err := m.devices.Lookup(deviceName, class.Flags.Has(signals.SinkDevice))
	if err != nil {
		return &MapError{Kind: BadDevice, At: at, Err: err}
	}
	node, err := class.Open(dev)
	if err != nil {
		return fmt.Errorf("open %s %q at %v: %w", class.Name, dev.Name, at, err)
	}
	if err := apply(at, class, node, values); err != nil {
		if d, ok := node.(graph.Destroyer); ok {
			d.Destroy()
		}
		return err
	}
	h := m.place(at, class, node)
	m.logger.Debug("device added", "at", at, "class", class.Name, "device", dev.Name, "node", h)
	return nil
}

func (m *Map) lookup(at signals.Coordinates, name string) (*graph.Class, error) {
	class, err := m.registry.Lookup(name)
	if err != nil {
		return nil, &MapError{Kind: BadSignal, At: at, Options: m.registry.Names(), Err: err}
	}
	return class, nil
}

func apply(at signals.Coordinates, class *graph.Class, node graph.Node, values map[string]json.RawMessage) error {
	if len(values) == 0 {
		return nil
	}
	_, err := graph.ApplyValues(class.Name, node, values)
	var bp *graph.BadPropertyError
	if errors.As(err, &bp) {
		return &MapError{Kind: BadProperty, At: at, Options: bp.Options, Err: err}
	}
	if err != nil {
		return fmt.Errorf("%v: %w", at, err)
	}
	return nil
}

// Restore recreates a removed node with its state and reconnects the links
// that were severed when it was removed.
func (m *Map) Restore(info LinkedSignalInfo) error {
	var err error
	if info.Device != "" {
		err = m.AddDevice(info.At, info.Class, info.Device, info.State)
	} else {
		err = m.Add(info.At, info.Class, info.State)
	}
	if err != nil {
		return err
	}
	links := slices.Concat(info.LinksIn, info.LinksOut)
	for i, l := range links {
		if _, err := m.Connect(l.InputAt, l.Output.At, l.Output.Port); err != nil {
			for _, done := range slices.Backward(links[:i]) {
				m.Disconnect(done.Output.At, done.Output.Port)
			}
			m.Rm(info.At)
			return err
		}
	}
	return nil
}

// Rm removes the node at at after severing all its connections, and returns
// what is needed to restore it.
func (m *Map) Rm(at signals.Coordinates) (LinkedSignalInfo, error) {
	h, _, err := m.occupied(at)
	if err != nil {
		return LinkedSignalInfo{}, err
	}
	info, err := m.Info(at)
	if err != nil {
		return LinkedSignalInfo{}, err
	}
	in, out, err := m.graph.Remove(h)
	ret := LinkedSignalInfo{SignalInfo: info, LinksIn: m.connections(in), LinksOut: m.connections(out)}
	m.free(at)
	if err != nil {
		// the node is gone either way; a failed release is not a failed rm
		m.logger.Warn("releasing removed signal failed", "at", at, "err", err)
	}
	m.logger.Debug("signal removed", "at", at, "class", info.Class, "links_in", len(in), "links_out", len(out))
	return ret, nil
}

func (m *Map) connections(links []graph.Link) []ConnectionInfo {
	ret := make([]ConnectionInfo, 0, len(links))
	for _, l := range links {
		ret = append(ret, ConnectionInfo{
			InputAt: m.byNode[l.Upstream],
			Output:  PortInfo{At: m.byNode[l.Downstream], Port: l.Port},
		})
	}
	slices.SortFunc(ret, compareConnections)
	return ret
}

// Edit applies values to the state of the node at at and returns its
// previous state. Unknown fields and invalid values leave the state as it
// was.
func (m *Map) Edit(at signals.Coordinates, values map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	h, class, err := m.occupied(at)
	if err != nil {
		return nil, err
	}
	node, _ := m.graph.Node(h)
	prev, err := graph.ApplyValues(class.Name, node, values)
	var bp *graph.BadPropertyError
	if errors.As(err, &bp) {
		return nil, &MapError{Kind: BadProperty, At: at, Options: bp.Options, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", at, err)
	}
	m.graph.Invalidate(h)
	m.logger.Debug("signal edited", "at", at, "keys", slices.Sorted(maps.Keys(values)))
	return prev, nil
}

// Mv moves the node at from to to. If to is occupied the two nodes swap
// places. Connections follow the nodes.
func (m *Map) Mv(from, to signals.Coordinates) error {
	h, _, err := m.occupied(from)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if other, ok := m.Handle(to); ok {
		m.byAt[from], m.byNode[other] = other, from
	} else {
		delete(m.byAt, from)
	}
	m.byAt[to], m.byNode[h] = h, to
	m.logger.Debug("signal moved", "from", from, "to", to)
	return nil
}

func (m *Map) receiver(at signals.Coordinates, port string) (graph.Handle, error) {
	h, class, err := m.occupied(at)
	if err != nil {
		return 0, err
	}
	if !class.Receives() {
		return 0, &MapError{Kind: BadReceiver, At: at, Err: fmt.Errorf("%s has no ports", class.Name)}
	}
	if !class.HasPort(port) {
		return 0, &MapError{Kind: BadPort, At: at, Port: port, Options: slices.Sorted(slices.Values(class.Ports))}
	}
	return h, nil
}

// Connect binds the port of the node at outputAt to the node at inputAt and
// returns the coordinates of the node previously bound, or the zero
// Coordinates.
func (m *Map) Connect(inputAt, outputAt signals.Coordinates, port string) (signals.Coordinates, error) {
	up, upClass, err := m.occupied(inputAt)
	if err != nil {
		return signals.Coordinates{}, err
	}
	down, err := m.receiver(outputAt, port)
	if err != nil {
		return signals.Coordinates{}, err
	}
	if !upClass.Emits() {
		return signals.Coordinates{}, &MapError{Kind: BadEmitter, At: inputAt, Err: fmt.Errorf("%s does not emit", upClass.Name)}
	}
	if m.graph.Input(down, port) == up {
		return signals.Coordinates{}, &MapError{Kind: AlreadyConnected, At: outputAt, Port: port}
	}
	prev, err := m.graph.Connect(up, down, port)
	if err != nil {
		return signals.Coordinates{}, fmt.Errorf("connect %v to %v.%s: %w", inputAt, outputAt, port, err)
	}
	return m.byNode[prev], nil
}

// Disconnect clears the port of the node at outputAt and returns the
// coordinates of the node that was bound to it.
func (m *Map) Disconnect(outputAt signals.Coordinates, port string) (signals.Coordinates, error) {
	down, err := m.receiver(outputAt, port)
	if err != nil {
		return signals.Coordinates{}, err
	}
	if m.graph.Input(down, port) == 0 {
		return signals.Coordinates{}, &MapError{Kind: NotConnected, At: outputAt, Port: port}
	}
	prev, err := m.graph.Disconnect(down, port)
	if err != nil {
		return signals.Coordinates{}, err
	}
	return m.byNode[prev], nil
}

// Sink returns the sink at at, for transport control.
func (m *Map) Sink(at signals.Coordinates) (*device.Sink, error) {
	h, _, err := m.occupied(at)
	if err != nil {
		return nil, err
	}
	node, _ := m.graph.Node(h)
	s, ok := node.(*device.Sink)
	if !ok {
		return nil, &MapError{Kind: BadPlaybackTarget, At: at}
	}
	return s, nil
}

// Info describes the node at at.
func (m *Map) Info(at signals.Coordinates) (SignalInfo, error) {
	h, class, err := m.occupied(at)
	if err != nil {
		return SignalInfo{}, err
	}
	node, _ := m.graph.Node(h)
	state, err := graph.StateValues(node)
	if err != nil {
		return SignalInfo{}, err
	}
	info := SignalInfo{At: at, Class: class.Name, State: state}
	if class.IsDevice() {
		var name string
		if err := json.Unmarshal(state["device"], &name); err == nil {
			info.Device = name
		}
	}
	return info, nil
}

// Coordinates returns the occupied coordinates in order.
func (m *Map) Coordinates() []signals.Coordinates {
	return slices.SortedFunc(maps.Keys(m.byAt), signals.Coordinates.Compare)
}

// Signals yields every node in coordinate order.
func (m *Map) Signals() iter.Seq[SignalInfo] {
	return m.filter(func(*graph.Class) bool { return true })
}

// Sources yields the source devices in coordinate order.
func (m *Map) Sources() iter.Seq[SignalInfo] {
	return m.filter(func(c *graph.Class) bool { return c.Flags.Has(signals.SourceDevice) })
}

// Sinks yields the sink devices in coordinate order.
func (m *Map) Sinks() iter.Seq[SignalInfo] {
	return m.filter(func(c *graph.Class) bool { return c.Flags.Has(signals.SinkDevice) })
}

func (m *Map) filter(keep func(*graph.Class) bool) iter.Seq[SignalInfo] {
	return func(yield func(SignalInfo) bool) {
		for _, at := range m.Coordinates() {
			h := m.byAt[at]
			if c, _ := m.graph.Class(h); !keep(c) {
				continue
			}
			info, err := m.Info(at)
			if err != nil {
				continue
			}
			if !yield(info) {
				return
			}
		}
	}
}

// Connections returns every connection, ordered by the port they bind.
func (m *Map) Connections() []ConnectionInfo {
	return m.connections(m.graph.Links())
}

// Verify checks that the bijection and the graph agree.
func (m *Map) Verify() error {
	if len(m.byAt) != len(m.byNode) || len(m.byAt) != m.graph.Len() {
		return fmt.Errorf("map holds %d coordinates and %d nodes, graph holds %d", len(m.byAt), len(m.byNode), m.graph.Len())
	}
	for at, h := range m.byAt {
		if back, ok := m.byNode[h]; !ok || back != at {
			return fmt.Errorf("%v holds node #%d which maps back to %v", at, h, back)
		}
		if !m.graph.Has(h) {
			return fmt.Errorf("%v holds node #%d which is not in the graph", at, h)
		}
	}
	return nil
}
