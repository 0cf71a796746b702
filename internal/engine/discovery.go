package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"modelsync/internal/gateway"
	"modelsync/internal/model"
	"modelsync/internal/output"
)

// Discoverer walks the cloud-link graph breadth-first, opening each model
// detached exactly once to read its direct links. The graph acts as its own
// visited-set, so traversal cost is O(distinct models) no matter how many
// parents reference a model.
type Discoverer struct {
	gw          gateway.Gateway
	concurrency int
}

func NewDiscoverer(gw gateway.Gateway, concurrency int) (*Discoverer, error) {
	if gw == nil {
		return nil, errors.New("gateway is nil")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("discovery concurrency must be >= 1, got %d", concurrency)
	}
	return &Discoverer{gw: gw, concurrency: concurrency}, nil
}

// Discover builds the dependency graph reachable from root. A model whose
// detached open or link read fails is kept in the graph as a failed leaf and
// its subtree is not explored. Frontier nodes of the same depth are inspected
// concurrently (detached opens are read-only and side-effect-free); discovery
// order is assigned at enqueue time, so the resulting order is deterministic
// regardless of completion timing.
//
// emit may be nil when no progress reporting is wanted.
func (d *Discoverer) Discover(ctx context.Context, root model.Identity, rootName string, emit func(output.Event)) (*Graph, error) {
	if d == nil || d.gw == nil {
		return nil, errors.New("discoverer is not initialized (use NewDiscoverer)")
	}
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if root.IsZero() {
		return nil, errors.New("root identity is required")
	}
	if emit == nil {
		emit = func(output.Event) {}
	}
	if rootName == "" {
		rootName = "ROOT"
	}

	g := newGraph(root)
	g.Nodes[root] = &Node{Identity: root, Name: rootName, order: 0}
	nextOrder := 1

	ledger := NewLedger()
	// Detached handles are closed inline below; the drain only matters if a
	// worker aborts between open and close.
	defer ledger.DrainAll(context.WithoutCancel(ctx), d.gw)

	emit(output.Event{Type: output.EventDiscoveryStarted, Model: root.String(), Name: rootName})

	frontier := []*Node{g.Nodes[root]}
	for len(frontier) > 0 {
		for _, n := range frontier {
			n.State = StateDiscovering
		}

		links := make([][]gateway.Link, len(frontier))
		failures := make([]error, len(frontier))

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(d.concurrency)
		for i, n := range frontier {
			eg.Go(func() error {
				ls, err := d.inspect(egCtx, ledger, n.Identity)
				if err != nil {
					if egCtx.Err() != nil {
						return egCtx.Err()
					}
					if gateway.IsFatal(err) {
						// Host outage aborts the whole discovery.
						return err
					}
					failures[i] = err
					return nil
				}
				links[i] = ls
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("discovery aborted: %w", err)
		}

		var next []*Node
		for i, n := range frontier {
			if failures[i] != nil {
				n.State = StateFailed
				n.Err = failures[i]
				kind, _ := gateway.KindOf(failures[i])
				emit(output.Event{
					Type:      output.EventModelFailed,
					Model:     n.Identity.String(),
					Name:      n.Name,
					ErrorKind: string(kind),
					Error:     failures[i].Error(),
				})
				continue
			}

			seen := make(map[model.Identity]bool, len(links[i]))
			for _, l := range links[i] {
				if seen[l.Identity] {
					continue
				}
				seen[l.Identity] = true
				n.Children = append(n.Children, l.Identity)

				if _, ok := g.Nodes[l.Identity]; ok {
					// Already visited or queued: diamonds collapse onto one
					// node, self-links are recorded but never traversed.
					continue
				}
				child := &Node{Identity: l.Identity, Name: l.Name, order: nextOrder}
				nextOrder++
				g.Nodes[l.Identity] = child
				next = append(next, child)
			}
			n.State = StateDiscovered
			emit(output.Event{
				Type:  output.EventModelDiscovered,
				Model: n.Identity.String(),
				Name:  n.Name,
				Links: len(n.Children),
			})
		}
		frontier = next
	}

	emit(output.Event{Type: output.EventDiscoveryFinished, Models: g.Len()})
	return g, nil
}

// inspect opens one model detached, reads its direct links, and closes the
// handle immediately. Detached opens are never synced and must never be left
// open.
func (d *Discoverer) inspect(ctx context.Context, ledger *Ledger, id model.Identity) ([]gateway.Link, error) {
	h, err := d.gw.OpenDetached(ctx, id)
	if err != nil {
		return nil, err
	}
	ledger.Register(h)

	links, readErr := d.gw.ReadDirectLinks(ctx, h)
	d.gw.Close(ctx, h)
	ledger.Release(h)

	if readErr != nil {
		return nil, readErr
	}
	return links, nil
}
