package graph

import (
	"fmt"
	"slices"
)

// ImplicitChannels is the channel count of a node that produces as many
// channels as its inputs: the one count shared by all bound inputs, with mono
// inputs broadcasting to any count. Without inputs the node is mono.
func ImplicitChannels(in *Inputs) (int, error) {
	var counts []int
	for _, p := range in.Bound() {
		n, _, err := p.Channels()
		if err != nil {
			return 0, err
		}
		if !slices.Contains(counts, n) {
			counts = append(counts, n)
		}
	}
	if len(counts) > 1 {
		counts = slices.DeleteFunc(counts, func(n int) bool { return n == 1 })
	}
	switch len(counts) {
	case 0:
		return 1, nil
	case 1:
		return counts[0], nil
	}
	slices.Sort(counts)
	return 0, fmt.Errorf("%w: %v", ErrChannelMismatch, counts)
}
