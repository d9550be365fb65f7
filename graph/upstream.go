package graph

import (
	"fmt"
	"slices"

	"github.com/vsariola/signals"
)

// Upstream returns the closure of nodes h depends on, in dependency order:
// every node appears after the nodes it pulls from and h comes last. Each
// node is visited once. A cycle is an error unless one of the nodes on it is
// tagged Cyclic.
func (g *Graph) Upstream(h Handle) ([]Handle, error) {
	if !g.Has(h) {
		return nil, fmt.Errorf("upstream #%d: %w", h, ErrNoNode)
	}
	var (
		order   []Handle
		stack   []Handle
		visited = map[Handle]bool{}
	)
	var visit func(n Handle) error
	visit = func(n Handle) error {
		if i := slices.Index(stack, n); i >= 0 {
			cycle := stack[i:]
			if slices.ContainsFunc(cycle, g.tolerant) {
				return nil
			}
			return g.cycleError(append(slices.Clone(cycle), n))
		}
		if visited[n] {
			return nil
		}
		stack = append(stack, n)
		for _, l := range g.linksIn(n) {
			if err := visit(l.Upstream); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		visited[n] = true
		order = append(order, n)
		return nil
	}
	if err := visit(h); err != nil {
		return nil, err
	}
	return order, nil
}

// MustUpstream is like Upstream but treats a cycle as a broken invariant.
// Connect refuses intolerable cycles, so a graph built through it never
// panics here.
func (g *Graph) MustUpstream(h Handle) []Handle {
	order, err := g.Upstream(h)
	if err != nil {
		panic(err)
	}
	return order
}

func (g *Graph) tolerant(h Handle) bool {
	e, ok := g.entries[h]
	return ok && e.class.Flags.Has(signals.Cyclic)
}

func (g *Graph) cycleError(path []Handle) *CycleError {
	classes := make([]string, len(path))
	for i, h := range path {
		if e, ok := g.entries[h]; ok {
			classes[i] = e.class.Name
		}
	}
	return &CycleError{Path: path, Classes: classes}
}

// Components partitions the nodes into weakly connected components, each
// sorted by handle, ordered by their smallest handle.
func (g *Graph) Components() [][]Handle {
	parent := map[Handle]Handle{}
	var find func(h Handle) Handle
	find = func(h Handle) Handle {
		if p, ok := parent[h]; ok && p != h {
			root := find(p)
			parent[h] = root
			return root
		}
		return h
	}
	for _, h := range g.Handles() {
		parent[h] = h
	}
	for _, l := range g.Links() {
		a, b := find(l.Upstream), find(l.Downstream)
		if a != b {
			parent[max(a, b)] = min(a, b)
		}
	}
	groups := map[Handle][]Handle{}
	var roots []Handle
	for _, h := range g.Handles() {
		r := find(h)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], h)
	}
	ret := make([][]Handle, len(roots))
	for i, r := range roots {
		ret[i] = groups[r]
	}
	return ret
}
