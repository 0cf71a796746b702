package engine

import (
	"fmt"
	"sort"

	"modelsync/internal/model"
)

// DiscoveryState tracks a node's progress through breadth-first discovery.
type DiscoveryState int

const (
	StatePending DiscoveryState = iota
	StateDiscovering
	StateDiscovered
	StateFailed
)

func (s DiscoveryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDiscovering:
		return "discovering"
	case StateDiscovered:
		return "discovered"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Node is one model in the dependency graph. Nodes are owned by the
// Discoverer while discovery runs and are read-only afterwards.
type Node struct {
	Identity model.Identity
	Name     string

	// Children holds the node's direct link identities in the order they
	// were read from the document, deduplicated. A self-link is recorded
	// here but never traversed.
	Children []model.Identity

	State DiscoveryState

	// Err is the discovery failure when State is StateFailed. A failed node
	// stays in the graph as a leaf so dependents can be surfaced as skipped
	// instead of silently dropped.
	Err error

	// order is the node's discovery sequence number (BFS enqueue order).
	// It is the deterministic tie-break for topological sorting.
	order int
}

// Graph maps identities to nodes, rooted at Root. Every identity referenced
// as a child exists as a key once discovery completes.
type Graph struct {
	Root  model.Identity
	Nodes map[model.Identity]*Node
}

func newGraph(root model.Identity) *Graph {
	return &Graph{
		Root:  root,
		Nodes: make(map[model.Identity]*Node),
	}
}

func (g *Graph) Node(id model.Identity) *Node {
	if g == nil {
		return nil
	}
	return g.Nodes[id]
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}

// byDiscoveryOrder returns the graph's nodes sorted by discovery sequence.
func (g *Graph) byDiscoveryOrder() []*Node {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].order < nodes[j].order })
	return nodes
}

// checkClosed verifies the no-dangling-references invariant: every child
// identity must exist as a graph key.
func (g *Graph) checkClosed() error {
	for _, n := range g.Nodes {
		for _, c := range n.Children {
			if _, ok := g.Nodes[c]; !ok {
				return fmt.Errorf("graph references %s as a child of %s but has no node for it", c, n.Identity)
			}
		}
	}
	return nil
}

// TreeLine is one row of the indented dependency tree rendering.
type TreeLine struct {
	Depth    int
	Identity model.Identity
	Name     string
}

// FormatTree flattens the graph into indented lines starting at the root.
// A node reachable along several paths is expanded only on its first visit;
// later occurrences are listed without re-expanding, so diamonds and cycles
// render finitely.
func FormatTree(g *Graph) []TreeLine {
	if g == nil {
		return nil
	}
	var lines []TreeLine
	expanded := make(map[model.Identity]bool)

	var walk func(id model.Identity, depth int)
	walk = func(id model.Identity, depth int) {
		n := g.Nodes[id]
		if n == nil {
			return
		}
		lines = append(lines, TreeLine{Depth: depth, Identity: id, Name: n.Name})
		if expanded[id] {
			return
		}
		expanded[id] = true
		for _, c := range n.Children {
			if c == id {
				continue
			}
			walk(c, depth+1)
		}
	}
	walk(g.Root, 0)
	return lines
}
