package engine

import (
	"errors"
	"fmt"

	"modelsync/internal/model"
)

// PlanEntry is one model scheduled for sync.
type PlanEntry struct {
	Identity model.Identity
	Name     string

	// Implicit marks a dependency that was auto-included because a selected
	// model requires it. Implicit entries sync exactly like explicit ones but
	// are reported separately.
	Implicit bool

	// DiscoveryFailed carries a node whose discovery failed into the plan so
	// the orchestrator fails it up front and skips its dependents.
	DiscoveryFailed bool
	DiscoveryErr    error

	// Children lists the entry's plan-member children, self-links removed.
	Children []model.Identity
}

// Plan is the leaf-first sync order restricted to the selected models plus
// every transitive dependency of a selected model. A parent cannot be synced
// without its children present in the plan.
type Plan struct {
	Entries []PlanEntry
}

func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Entries)
}

// ImplicitCount returns how many entries were auto-included.
func (p *Plan) ImplicitCount() int {
	n := 0
	for _, e := range p.Entries {
		if e.Implicit {
			n++
		}
	}
	return n
}

// BuildPlan restricts the sorted order to the user's selection plus its
// transitive dependency closure. An empty selection means every discovered
// model, all explicit. Selecting an identity that was never discovered is an
// error rather than a silent no-op.
func BuildPlan(g *Graph, order []model.Identity, selected []model.Identity) (*Plan, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, errors.New("graph is empty")
	}
	if len(order) != len(g.Nodes) {
		return nil, fmt.Errorf("order covers %d models but graph has %d", len(order), len(g.Nodes))
	}

	selSet := make(map[model.Identity]bool, len(selected))
	for _, id := range selected {
		if g.Nodes[id] == nil {
			return nil, fmt.Errorf("selected model %s was not discovered", id)
		}
		selSet[id] = true
	}

	// Transitive closure of the selection through child links.
	include := make(map[model.Identity]bool, len(g.Nodes))
	if len(selSet) == 0 {
		for id := range g.Nodes {
			include[id] = true
		}
	} else {
		stack := make([]model.Identity, 0, len(selSet))
		for id := range selSet {
			stack = append(stack, id)
		}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if include[id] {
				continue
			}
			include[id] = true
			for _, c := range g.Nodes[id].Children {
				if c != id && !include[c] {
					stack = append(stack, c)
				}
			}
		}
	}

	plan := &Plan{Entries: make([]PlanEntry, 0, len(include))}
	for _, id := range order {
		if !include[id] {
			continue
		}
		n := g.Nodes[id]
		entry := PlanEntry{
			Identity:        id,
			Name:            n.Name,
			Implicit:        len(selSet) > 0 && !selSet[id],
			DiscoveryFailed: n.State == StateFailed,
			DiscoveryErr:    n.Err,
		}
		for _, c := range n.Children {
			if c == id || !include[c] {
				continue
			}
			entry.Children = append(entry.Children, c)
		}
		plan.Entries = append(plan.Entries, entry)
	}

	return plan, nil
}
