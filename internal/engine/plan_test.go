package engine

import (
	"testing"

	"modelsync/internal/model"
)

func diamondGraph() (*Graph, model.Identity, model.Identity, model.Identity, model.Identity) {
	r, a, b, c := ident(1), ident(2), ident(3), ident(4)
	g := buildGraph(r, []*Node{
		{Identity: r, Name: "R", Children: []model.Identity{a, b}},
		{Identity: a, Name: "A", Children: []model.Identity{c}},
		{Identity: b, Name: "B", Children: []model.Identity{c}},
		{Identity: c, Name: "C"},
	})
	return g, r, a, b, c
}

func TestBuildPlan_EmptySelectionIncludesEverythingExplicit(t *testing.T) {
	g, _, _, _, _ := diamondGraph()
	order, err := SortLeafFirst(g)
	if err != nil {
		t.Fatalf("SortLeafFirst: %v", err)
	}

	plan, err := BuildPlan(g, order, nil)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Len() != 4 {
		t.Fatalf("plan has %d entries, want 4", plan.Len())
	}
	if plan.ImplicitCount() != 0 {
		t.Fatalf("empty selection produced %d implicit entries, want 0", plan.ImplicitCount())
	}
	// Plan preserves leaf-first order.
	for i, e := range plan.Entries {
		if e.Identity != order[i] {
			t.Fatalf("plan[%d] = %s, want %s", i, e.Identity, order[i])
		}
	}
}

func TestBuildPlan_SelectionPullsInDependencyClosure(t *testing.T) {
	g, r, a, b, c := diamondGraph()
	order, _ := SortLeafFirst(g)

	plan, err := BuildPlan(g, order, []model.Identity{a})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Len() != 2 {
		t.Fatalf("plan has %d entries, want 2 (A and its dependency C)", plan.Len())
	}
	if plan.Entries[0].Identity != c || !plan.Entries[0].Implicit {
		t.Fatalf("plan[0] = %+v, want implicit C", plan.Entries[0])
	}
	if plan.Entries[1].Identity != a || plan.Entries[1].Implicit {
		t.Fatalf("plan[1] = %+v, want explicit A", plan.Entries[1])
	}
	for _, e := range plan.Entries {
		if e.Identity == r || e.Identity == b {
			t.Fatalf("plan includes unselected non-dependency %s", e.Identity)
		}
	}
}

func TestBuildPlan_ChildrenRestrictedToPlanMembers(t *testing.T) {
	g, _, a, _, c := diamondGraph()
	order, _ := SortLeafFirst(g)

	plan, err := BuildPlan(g, order, []model.Identity{a})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	for _, e := range plan.Entries {
		if e.Identity != a {
			continue
		}
		if len(e.Children) != 1 || e.Children[0] != c {
			t.Fatalf("A plan children = %v, want [C]", e.Children)
		}
	}
}

func TestBuildPlan_UnknownSelectionRejected(t *testing.T) {
	g, _, _, _, _ := diamondGraph()
	order, _ := SortLeafFirst(g)

	if _, err := BuildPlan(g, order, []model.Identity{ident(99)}); err == nil {
		t.Fatal("expected error for selection outside the discovered tree")
	}
}

func TestBuildPlan_CarriesDiscoveryFailure(t *testing.T) {
	r, a := ident(1), ident(2)
	g := buildGraph(r, []*Node{
		{Identity: r, Name: "R", Children: []model.Identity{a}},
		{Identity: a, Name: "A", State: StateFailed},
	})
	order, _ := SortLeafFirst(g)

	plan, err := BuildPlan(g, order, nil)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if !plan.Entries[0].DiscoveryFailed {
		t.Fatal("failed node not flagged in plan")
	}
	if plan.Entries[1].DiscoveryFailed {
		t.Fatal("healthy node flagged as discovery-failed")
	}
}
