package engine

import (
	"context"
	"sync"

	"modelsync/internal/gateway"
)

// Ledger tracks every currently-open gateway handle for a run. Workers
// register a handle right after opening and release it right after closing;
// DrainAll closes whatever is left when a run aborts, so no handle outlives
// its run.
type Ledger struct {
	mu   sync.Mutex
	open map[gateway.Handle]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{open: make(map[gateway.Handle]struct{})}
}

func (l *Ledger) Register(h gateway.Handle) {
	if l == nil || h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open[h] = struct{}{}
}

func (l *Ledger) Release(h gateway.Handle) {
	if l == nil || h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, h)
}

// Len returns the number of handles still open.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// DrainAll closes every handle still registered. Close is idempotent on the
// gateway side, so draining after a race with a worker's own close is safe.
func (l *Ledger) DrainAll(ctx context.Context, gw gateway.Gateway) {
	if l == nil || gw == nil {
		return
	}
	l.mu.Lock()
	handles := make([]gateway.Handle, 0, len(l.open))
	for h := range l.open {
		handles = append(handles, h)
	}
	l.open = make(map[gateway.Handle]struct{})
	l.mu.Unlock()

	for _, h := range handles {
		gw.Close(ctx, h)
	}
}
