// Package graph implements the pull-based signal graph: an arena of nodes
// addressed by Handle, connected through named ports, that compute blocks of
// audio on demand.
//
// A node never holds references to other nodes. The arena owns both
// directions of every connection (the upstream bound to each port and the set
// of ports each node serves), so detaching is a single table update.
//
// A Graph is not safe for concurrent use. Callers that mutate the graph while
// an audio callback pulls from it must serialize the two, see package player.
package graph

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/vsariola/signals"
)

type (
	// Handle identifies a node within a Graph. Handles are never reused; the
	// zero Handle means "no node".
	Handle int

	// Node is the behavior of a single node instance. Most implementations
	// embed Stateful to get the state methods.
	Node interface {
		State() any
		SetState(state any) error
		Enabled() bool
		// Eval computes the block for a request. The returned block must
		// broadcast to req.Loc.Shape.
		Eval(in *Inputs, req Request) (signals.Block, error)
		// Channels is the number of channels the node naturally produces.
		Channels(in *Inputs) (int, error)
	}

	// Destroyer is implemented by nodes holding resources (files, streams)
	// that must be released when the node is removed.
	Destroyer interface {
		Destroy() error
	}

	// Attacher is implemented by nodes that need to know their own handle,
	// e.g. sinks that pull their input from a device callback.
	Attacher interface {
		Attach(g *Graph, h Handle)
	}

	// Output is one consumer of a node: the port of the downstream node that
	// is bound to it.
	Output struct {
		Port string
		Node Handle
	}

	Graph struct {
		entries map[Handle]*entry
		inputs  map[Handle]map[string]Handle
		outputs map[Handle]map[Output]struct{}
		next    Handle

		pulling []Handle
		sizing  map[Handle]bool

		logger  *slog.Logger
		metrics *Metrics
	}

	entry struct {
		class  *Class
		node   Node
		last   signals.BlockLoc
		pulled bool
		cache  fanoutCache
		// result of the last evaluation, answered when a tolerated cycle
		// re-enters the node
		feedback signals.Block
	}
)

// Option configures a Graph.
type Option func(*Graph)

func WithLogger(l *slog.Logger) Option { return func(g *Graph) { g.logger = l } }

func WithMetrics(m *Metrics) Option { return func(g *Graph) { g.metrics = m } }

func New(opts ...Option) *Graph {
	g := &Graph{
		entries: map[Handle]*entry{},
		inputs:  map[Handle]map[string]Handle{},
		outputs: map[Handle]map[Output]struct{}{},
		sizing:  map[Handle]bool{},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Add inserts an already constructed node of the given class.
func (g *Graph) Add(class *Class, node Node) Handle {
	g.next++
	h := g.next
	g.entries[h] = &entry{class: class, node: node, feedback: signals.Silence()}
	g.inputs[h] = map[string]Handle{}
	g.outputs[h] = map[Output]struct{}{}
	if a, ok := node.(Attacher); ok {
		a.Attach(g, h)
	}
	g.logger.Debug("node added", "node", h, "class", class.Name)
	return h
}

// Remove tears a node down: every consumer of the node is detached, every
// port of the node is detached, then the node is destroyed. The connections
// that were severed are returned, inbound first.
func (g *Graph) Remove(h Handle) (in, out []Link, err error) {
	e, ok := g.entries[h]
	if !ok {
		return nil, nil, fmt.Errorf("remove #%d: %w", h, ErrNoNode)
	}
	out = g.linksOut(h)
	for _, l := range out {
		g.detach(l.Downstream, l.Port)
	}
	in = g.linksIn(h)
	for _, l := range in {
		g.detach(h, l.Port)
	}
	if len(g.outputs[h]) != 0 || len(g.inputs[h]) != 0 {
		panic(fmt.Errorf("node #%d still connected after teardown", h))
	}
	delete(g.entries, h)
	delete(g.inputs, h)
	delete(g.outputs, h)
	g.logger.Debug("node removed", "node", h, "class", e.class.Name, "links_in", len(in), "links_out", len(out))
	if d, ok := e.node.(Destroyer); ok {
		if err := d.Destroy(); err != nil {
			return in, out, fmt.Errorf("destroy %s#%d: %w", e.class.Name, h, err)
		}
	}
	return in, out, nil
}

// Link is a connection between two nodes: Upstream feeds Port of Downstream.
type Link struct {
	Upstream   Handle
	Downstream Handle
	Port       string
}

func compareLinks(a, b Link) int {
	if c := cmp.Compare(a.Downstream, b.Downstream); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Port, b.Port); c != 0 {
		return c
	}
	return cmp.Compare(a.Upstream, b.Upstream)
}

func (g *Graph) linksIn(h Handle) []Link {
	var ret []Link
	for port, up := range g.inputs[h] {
		ret = append(ret, Link{Upstream: up, Downstream: h, Port: port})
	}
	slices.SortFunc(ret, compareLinks)
	return ret
}

func (g *Graph) linksOut(h Handle) []Link {
	var ret []Link
	for o := range g.outputs[h] {
		ret = append(ret, Link{Upstream: h, Downstream: o.Node, Port: o.Port})
	}
	slices.SortFunc(ret, compareLinks)
	return ret
}

// LinksIn returns the bound ports of a node, sorted by port name.
func (g *Graph) LinksIn(h Handle) []Link { return g.linksIn(h) }

// LinksOut returns the consumers of a node.
func (g *Graph) LinksOut(h Handle) []Link { return g.linksOut(h) }

// Links returns every connection in the graph.
func (g *Graph) Links() []Link {
	var ret []Link
	for h := range g.inputs {
		ret = append(ret, g.linksIn(h)...)
	}
	slices.SortFunc(ret, compareLinks)
	return ret
}

// Connect binds port of downstream to upstream and returns the node that was
// previously bound to it (zero if none). Connections that would close a cycle
// no node on it tolerates are refused and leave the graph unchanged.
func (g *Graph) Connect(upstream, downstream Handle, port string) (Handle, error) {
	up, ok := g.entries[upstream]
	if !ok {
		return 0, fmt.Errorf("connect #%d: %w", upstream, ErrNoNode)
	}
	down, ok := g.entries[downstream]
	if !ok {
		return 0, fmt.Errorf("connect #%d: %w", downstream, ErrNoNode)
	}
	if !up.class.Emits() {
		return 0, fmt.Errorf("connect %s: %w", up.class.Name, ErrNotEmitter)
	}
	if !down.class.Receives() {
		return 0, fmt.Errorf("connect %s: %w", down.class.Name, ErrNotReceiver)
	}
	if !down.class.HasPort(port) {
		return 0, down.class.portError(port)
	}
	prev := g.inputs[downstream][port]
	g.attach(upstream, downstream, port)
	if _, err := g.Upstream(downstream); err != nil {
		g.detach(downstream, port)
		if prev != 0 {
			g.attach(prev, downstream, port)
		}
		return 0, err
	}
	g.logger.Debug("connected", "upstream", upstream, "downstream", downstream, "port", port)
	return prev, nil
}

// Disconnect clears a port and returns the node that was bound to it.
func (g *Graph) Disconnect(downstream Handle, port string) (Handle, error) {
	down, ok := g.entries[downstream]
	if !ok {
		return 0, fmt.Errorf("disconnect #%d: %w", downstream, ErrNoNode)
	}
	if !down.class.Receives() {
		return 0, fmt.Errorf("disconnect %s: %w", down.class.Name, ErrNotReceiver)
	}
	if !down.class.HasPort(port) {
		return 0, down.class.portError(port)
	}
	prev, ok := g.inputs[downstream][port]
	if !ok {
		return 0, fmt.Errorf("%s.%s: %w", down.class.Name, port, ErrNotConnected)
	}
	g.detach(downstream, port)
	g.logger.Debug("disconnected", "upstream", prev, "downstream", downstream, "port", port)
	return prev, nil
}

func (g *Graph) attach(upstream, downstream Handle, port string) {
	if prev, ok := g.inputs[downstream][port]; ok {
		delete(g.outputs[prev], Output{Port: port, Node: downstream})
	}
	g.inputs[downstream][port] = upstream
	g.outputs[upstream][Output{Port: port, Node: downstream}] = struct{}{}
	g.Invalidate(upstream)
}

func (g *Graph) detach(downstream Handle, port string) {
	up, ok := g.inputs[downstream][port]
	if !ok {
		return
	}
	delete(g.inputs[downstream], port)
	delete(g.outputs[up], Output{Port: port, Node: downstream})
	g.Invalidate(up)
}

// Input returns the node bound to a port, or zero.
func (g *Graph) Input(h Handle, port string) Handle {
	return g.inputs[h][port]
}

// Outputs returns the consumers of a node, sorted.
func (g *Graph) Outputs(h Handle) []Output {
	ret := make([]Output, 0, len(g.outputs[h]))
	for o := range g.outputs[h] {
		ret = append(ret, o)
	}
	slices.SortFunc(ret, func(a, b Output) int {
		if c := cmp.Compare(a.Node, b.Node); c != 0 {
			return c
		}
		return cmp.Compare(a.Port, b.Port)
	})
	return ret
}

func (g *Graph) Has(h Handle) bool {
	_, ok := g.entries[h]
	return ok
}

// Node returns the node instance behind a handle.
func (g *Graph) Node(h Handle) (Node, bool) {
	e, ok := g.entries[h]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Class returns the class of a node.
func (g *Graph) Class(h Handle) (*Class, bool) {
	e, ok := g.entries[h]
	if !ok {
		return nil, false
	}
	return e.class, true
}

func (g *Graph) Len() int { return len(g.entries) }

// Handles returns the handles of all nodes in creation order.
func (g *Graph) Handles() []Handle {
	ret := make([]Handle, 0, len(g.entries))
	for h := range g.entries {
		ret = append(ret, h)
	}
	slices.Sort(ret)
	return ret
}

// Inputs returns the port view of a node, as passed to Eval. Sinks use it to
// pull their input outside of a request.
func (g *Graph) Inputs(h Handle) *Inputs {
	return &Inputs{g: g, h: h}
}

// Channels returns the number of channels a node naturally produces.
func (g *Graph) Channels(h Handle) (int, error) {
	e, ok := g.entries[h]
	if !ok {
		return 0, fmt.Errorf("channels #%d: %w", h, ErrNoNode)
	}
	if g.sizing[h] {
		// only reachable through a tolerated cycle
		return 1, nil
	}
	g.sizing[h] = true
	defer delete(g.sizing, h)
	return e.node.Channels(g.Inputs(h))
}

// RequestRate classifies how a node was last pulled.
type RequestRate int

const (
	RateUnknown RequestRate = iota
	RateBlock
	RateFrame
)

func (r RequestRate) String() string {
	switch r {
	case RateBlock:
		return "BLOCK"
	case RateFrame:
		return "FRAME"
	}
	return "UNKNOWN"
}

// Rate reports the granularity of the most recent request a node served.
func (g *Graph) Rate(h Handle) RequestRate {
	e, ok := g.entries[h]
	if !ok || !e.pulled {
		return RateUnknown
	}
	switch f := e.last.Shape.Frames; {
	case f <= 0:
		return RateUnknown
	case f == 1:
		return RateBlock
	default:
		return RateFrame
	}
}
