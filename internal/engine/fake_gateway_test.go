package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"modelsync/internal/gateway"
	"modelsync/internal/model"
)

// ident builds a deterministic test identity from a single byte.
func ident(b byte) model.Identity {
	project := uuid.UUID{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	return model.Identity{
		Region:    model.RegionUS,
		ProjectID: project,
		ModelID:   uuid.UUID{b, b, b, b, b, b, b, b, b, b, b, b, b, b, b, b},
	}
}

type fakeHandle struct {
	id   model.Identity
	mode gateway.OpenMode
	seq  int
}

func (h *fakeHandle) Identity() model.Identity { return h.id }
func (h *fakeHandle) Mode() gateway.OpenMode   { return h.mode }

// fakeGateway is an in-memory scripted host. Error queues are consumed one
// entry per call; once a queue is empty the call succeeds.
type fakeGateway struct {
	mu sync.Mutex

	links map[model.Identity][]gateway.Link

	openDetachedErrs map[model.Identity][]error
	openFullErrs     map[model.Identity][]error
	applyErrs        map[model.Identity][]error
	syncErrs         map[model.Identity][]error

	// onSync, when set, runs at the start of every Sync call.
	onSync func(id model.Identity)

	seq           int
	detachedOpens map[model.Identity]int
	fullOpens     map[model.Identity]int
	closes        map[*fakeHandle]int
	syncOrder     []model.Identity

	openNow int
	openMax int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		links:            make(map[model.Identity][]gateway.Link),
		openDetachedErrs: make(map[model.Identity][]error),
		openFullErrs:     make(map[model.Identity][]error),
		applyErrs:        make(map[model.Identity][]error),
		syncErrs:         make(map[model.Identity][]error),
		detachedOpens:    make(map[model.Identity]int),
		fullOpens:        make(map[model.Identity]int),
		closes:           make(map[*fakeHandle]int),
	}
}

func (f *fakeGateway) link(parent, child model.Identity, name string) {
	f.links[parent] = append(f.links[parent], gateway.Link{Identity: child, Name: name})
}

func pop(m map[model.Identity][]error, id model.Identity) error {
	q := m[id]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	m[id] = q[1:]
	return err
}

func (f *fakeGateway) OpenDetached(ctx context.Context, id model.Identity) (gateway.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(f.openDetachedErrs, id); err != nil {
		return nil, err
	}
	f.seq++
	f.detachedOpens[id]++
	return &fakeHandle{id: id, mode: gateway.OpenDetached, seq: f.seq}, nil
}

func (f *fakeGateway) OpenFull(ctx context.Context, id model.Identity) (gateway.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(f.openFullErrs, id); err != nil {
		return nil, err
	}
	f.seq++
	f.fullOpens[id]++
	f.openNow++
	if f.openNow > f.openMax {
		f.openMax = f.openNow
	}
	return &fakeHandle{id: id, mode: gateway.OpenFull, seq: f.seq}, nil
}

func (f *fakeGateway) ReadDirectLinks(ctx context.Context, h gateway.Handle) ([]gateway.Link, error) {
	fh := h.(*fakeHandle)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[fh.id], nil
}

func (f *fakeGateway) ApplyOptions(ctx context.Context, h gateway.Handle, opts gateway.Options) error {
	fh := h.(*fakeHandle)
	f.mu.Lock()
	defer f.mu.Unlock()
	return pop(f.applyErrs, fh.id)
}

func (f *fakeGateway) Sync(ctx context.Context, h gateway.Handle) error {
	fh := h.(*fakeHandle)
	f.mu.Lock()
	hook := f.onSync
	f.mu.Unlock()
	if hook != nil {
		hook(fh.id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := pop(f.syncErrs, fh.id); err != nil {
		return err
	}
	f.syncOrder = append(f.syncOrder, fh.id)
	return nil
}

func (f *fakeGateway) Close(ctx context.Context, h gateway.Handle) {
	fh, ok := h.(*fakeHandle)
	if !ok || fh == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes[fh]++
	if fh.mode == gateway.OpenFull && f.closes[fh] == 1 {
		f.openNow--
	}
}

// checkClosesBalanced fails the test if any handle was never closed or was
// closed more than once.
func (f *fakeGateway) checkClosesBalanced() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	opened := 0
	for _, n := range f.detachedOpens {
		opened += n
	}
	for _, n := range f.fullOpens {
		opened += n
	}
	if len(f.closes) != opened {
		return fmt.Errorf("%d handles opened but %d closed", opened, len(f.closes))
	}
	for h, n := range f.closes {
		if n != 1 {
			return fmt.Errorf("handle for %s closed %d times", h.id, n)
		}
	}
	return nil
}

func (f *fakeGateway) syncedOrder() []model.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Identity, len(f.syncOrder))
	copy(out, f.syncOrder)
	return out
}

// position returns id's index in the recorded sync order, or -1.
func position(order []model.Identity, id model.Identity) int {
	for i, o := range order {
		if o == id {
			return i
		}
	}
	return -1
}
