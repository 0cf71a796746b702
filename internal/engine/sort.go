package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"modelsync/internal/model"
)

// CycleError reports a dependency cycle. No partial order over a cyclic graph
// is sound, so plan construction aborts instead of producing a best-effort
// order.
type CycleError struct {
	// Members lists the identities forming the cycle, in traversal order.
	Members []model.Identity
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Members))
	for _, m := range e.Members {
		parts = append(parts, m.String())
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// SortLeafFirst derives the sync order: every model appears after all of its
// children (leaves first, root last). Ties between simultaneously eligible
// models break by discovery order, which makes the output deterministic for a
// given graph. A failed node has no recorded children and therefore sorts as
// a leaf; self-links are ignored.
func SortLeafFirst(g *Graph) ([]model.Identity, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, errors.New("graph is empty")
	}
	if err := g.checkClosed(); err != nil {
		return nil, err
	}

	// remaining counts each node's children not yet placed in the order.
	remaining := make(map[model.Identity]int, len(g.Nodes))
	parents := make(map[model.Identity][]model.Identity, len(g.Nodes))
	for _, n := range g.byDiscoveryOrder() {
		count := 0
		for _, c := range n.Children {
			if c == n.Identity {
				continue
			}
			count++
			parents[c] = append(parents[c], n.Identity)
		}
		remaining[n.Identity] = count
	}

	// ready holds eligible nodes sorted by discovery order.
	var ready []*Node
	for _, n := range g.byDiscoveryOrder() {
		if remaining[n.Identity] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]model.Identity, 0, len(g.Nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n.Identity)

		for _, p := range parents[n.Identity] {
			remaining[p]--
			if remaining[p] == 0 {
				ord := g.Nodes[p].order
				at := sort.Search(len(ready), func(i int) bool { return ready[i].order > ord })
				ready = append(ready, nil)
				copy(ready[at+1:], ready[at:])
				ready[at] = g.Nodes[p]
			}
		}
	}

	if len(order) < len(g.Nodes) {
		placed := make(map[model.Identity]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		return nil, &CycleError{Members: cycleMembers(g, placed)}
	}
	return order, nil
}

// cycleMembers walks the unplaced remainder of the graph from its
// earliest-discovered node until a node repeats, and returns the loop.
func cycleMembers(g *Graph, placed map[model.Identity]bool) []model.Identity {
	var start *Node
	for _, n := range g.byDiscoveryOrder() {
		if !placed[n.Identity] {
			start = n
			break
		}
	}
	if start == nil {
		return nil
	}

	seenAt := make(map[model.Identity]int)
	var path []model.Identity
	cur := start
	for {
		if at, ok := seenAt[cur.Identity]; ok {
			return path[at:]
		}
		seenAt[cur.Identity] = len(path)
		path = append(path, cur.Identity)

		var next *Node
		for _, c := range cur.Children {
			if c == cur.Identity || placed[c] {
				continue
			}
			next = g.Nodes[c]
			break
		}
		if next == nil {
			// Should not happen: an unplaced node always has an unplaced child.
			return path
		}
		cur = next
	}
}
