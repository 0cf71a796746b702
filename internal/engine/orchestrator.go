package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"modelsync/internal/gateway"
	"modelsync/internal/model"
	"modelsync/internal/output"
)

// RunConfig is the per-run configuration applied to every sync task.
type RunConfig struct {
	Options gateway.Options

	// LinkReloadDelay is the pause between opening a model and syncing it,
	// so the host can re-resolve freshly-synced child links.
	LinkReloadDelay time.Duration

	// Concurrency bounds simultaneous full opens.
	Concurrency int

	Retry RetryPolicy
}

// Orchestrator executes a Plan bottom-up: a model is never opened in full
// mode until every plan-member child has synced. Scheduling decisions are
// made by a single loop; execution is concurrent up to the configured bound.
type Orchestrator struct {
	gw   gateway.Gateway
	cfg  RunConfig
	emit func(output.Event)

	ledger *Ledger

	mu    sync.Mutex
	tasks map[model.Identity]*Task
}

func NewOrchestrator(gw gateway.Gateway, cfg RunConfig, emit func(output.Event)) (*Orchestrator, error) {
	if gw == nil {
		return nil, errors.New("gateway is nil")
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if cfg.LinkReloadDelay < 0 {
		return nil, errors.New("link reload delay must be >= 0")
	}
	if emit == nil {
		emit = func(output.Event) {}
	}
	return &Orchestrator{
		gw:     gw,
		cfg:    cfg,
		emit:   emit,
		ledger: NewLedger(),
	}, nil
}

// Run executes every task in the plan to a terminal state and returns the
// per-model outcomes. Cancellation stops dequeuing new tasks; tasks already
// past OPENING run to completion (a sync cannot be safely aborted mid-write)
// and the rest are skipped. On a host-level outage the run halts, every
// still-open handle is drained, and the outage error is returned alongside
// the partial summary.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan) (*Summary, error) {
	if o == nil || o.gw == nil {
		return nil, errors.New("orchestrator is not initialized (use NewOrchestrator)")
	}
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if plan == nil || plan.Len() == 0 {
		return nil, errors.New("sync plan is empty")
	}

	// No handle may outlive the run, whatever happens below.
	defer o.ledger.DrainAll(context.WithoutCancel(ctx), o.gw)

	ordered := make([]*Task, 0, plan.Len())
	o.mu.Lock()
	o.tasks = make(map[model.Identity]*Task, plan.Len())
	for _, entry := range plan.Entries {
		if _, dup := o.tasks[entry.Identity]; dup {
			o.mu.Unlock()
			return nil, fmt.Errorf("plan contains %s twice", entry.Identity)
		}
		t := newTask(entry)
		o.tasks[entry.Identity] = t
		ordered = append(ordered, t)
	}
	for _, t := range ordered {
		o.transitionLocked(t, TaskWaitingOnChildren)
	}
	// A model that failed discovery is failed up front; its dependents are
	// skipped by propagation below, never attempted.
	for _, t := range ordered {
		if t.Entry.DiscoveryFailed {
			o.failLocked(t, discoveryFailure(t.Entry))
		}
	}
	o.mu.Unlock()

	results := make(chan *Task)
	inFlight := 0
	cancelled := false
	var fatalErr error

	ctxDone := ctx.Done()

	for {
		o.mu.Lock()
		if cancelled || fatalErr != nil {
			// The run-level halt wins over per-child skip attribution: every
			// task still waiting is skipped with the run-level reason, not
			// blamed on whichever task the halt happened to hit first.
			reason := "cancelled"
			if fatalErr != nil {
				reason = "host unavailable"
			}
			for _, t := range ordered {
				if t.State == TaskWaitingOnChildren {
					o.skipLocked(t, model.Identity{}, reason)
				}
			}
		} else {
			o.propagateSkipsLocked(ordered)
			for _, t := range ordered {
				if inFlight >= o.cfg.Concurrency {
					break
				}
				if t.State != TaskWaitingOnChildren || !o.childrenSyncedLocked(t) {
					continue
				}
				o.transitionLocked(t, TaskOpening)
				inFlight++
				go o.runTask(ctx, t, results)
			}
		}
		done := inFlight == 0 && o.allTerminalLocked(ordered)
		o.mu.Unlock()

		if done {
			break
		}

		select {
		case t := <-results:
			inFlight--
			if t.Err != nil && gateway.IsFatal(t.Err) && fatalErr == nil {
				fatalErr = t.Err
			}
		case <-ctxDone:
			cancelled = true
			ctxDone = nil
		}
	}

	summary := &Summary{Cancelled: cancelled, Outcomes: make([]Outcome, 0, len(ordered))}
	for _, t := range ordered {
		summary.Outcomes = append(summary.Outcomes, outcomeFromTask(t))
	}
	if fatalErr != nil {
		return summary, fmt.Errorf("sync run aborted: %w", fatalErr)
	}
	return summary, nil
}

// runTask drives one task through open → options → delay → sync → close.
// Gateway I/O uses a detached context: once a task is past OPENING it runs to
// completion even if the run is cancelled. Retry waits still honor the run
// context so cancellation cuts backoff short.
func (o *Orchestrator) runTask(ctx context.Context, t *Task, results chan<- *Task) {
	ioCtx := context.WithoutCancel(ctx)

	maxAttempts := 1 + o.cfg.Retry.MaxAttempts
	for attempt := 1; ; attempt++ {
		o.mu.Lock()
		t.Attempt = attempt
		if attempt > 1 {
			o.transitionLocked(t, TaskOpening)
		}
		o.mu.Unlock()

		err := o.syncOnce(ioCtx, t)
		if err == nil {
			break
		}

		retry := o.cfg.Retry.Retryable(err) && attempt < maxAttempts &&
			!gateway.IsFatal(err) && ctx.Err() == nil
		if !retry {
			o.mu.Lock()
			o.failLocked(t, err)
			o.mu.Unlock()
			break
		}
		if sleepErr := sleepCtx(ctx, o.cfg.Retry.Backoff(attempt)); sleepErr != nil {
			// Run cancelled mid-backoff; give up on this task, but record the
			// error that failed the attempt, not the context error.
			o.mu.Lock()
			o.failLocked(t, err)
			o.mu.Unlock()
			break
		}
	}

	results <- t
}

// syncOnce performs one full attempt. Whatever fails, an opened document is
// closed (best-effort) before the error is returned, never abandoned open.
func (o *Orchestrator) syncOnce(ctx context.Context, t *Task) error {
	h, err := o.gw.OpenFull(ctx, t.Entry.Identity)
	if err != nil {
		return err
	}
	o.ledger.Register(h)

	closeNow := func() {
		o.gw.Close(ctx, h)
		o.ledger.Release(h)
	}

	if err := o.gw.ApplyOptions(ctx, h, o.cfg.Options); err != nil {
		closeNow()
		return err
	}

	o.mu.Lock()
	o.transitionLocked(t, TaskSyncing)
	o.mu.Unlock()

	// Let the host re-resolve freshly-synced child links before this model's
	// own sync; a just-synced child may not be visible to the parent yet.
	// ctx here never cancels, so the pause always completes.
	_ = sleepCtx(ctx, o.cfg.LinkReloadDelay)

	if err := o.gw.Sync(ctx, h); err != nil {
		closeNow()
		return err
	}

	o.mu.Lock()
	o.transitionLocked(t, TaskClosing)
	o.mu.Unlock()

	closeNow()

	o.mu.Lock()
	o.transitionLocked(t, TaskSynced)
	o.mu.Unlock()
	return nil
}

// propagateSkipsLocked forces WAITING tasks to SKIPPED when a plan-member
// child failed or was itself skipped. Tasks are scanned in plan (leaf-first)
// order, so one pass propagates a failure through every ancestor.
func (o *Orchestrator) propagateSkipsLocked(ordered []*Task) {
	for _, t := range ordered {
		if t.State != TaskWaitingOnChildren {
			continue
		}
		for _, c := range t.Entry.Children {
			child := o.tasks[c]
			if child == nil {
				continue
			}
			switch child.State {
			case TaskFailed:
				o.skipLocked(t, child.Entry.Identity, "child failed")
			case TaskSkipped:
				cause := child.SkipCause
				if cause.IsZero() {
					cause = child.Entry.Identity
				}
				o.skipLocked(t, cause, "child skipped")
			default:
				continue
			}
			break
		}
	}
}

func (o *Orchestrator) childrenSyncedLocked(t *Task) bool {
	for _, c := range t.Entry.Children {
		child := o.tasks[c]
		if child == nil || child.State != TaskSynced {
			return false
		}
	}
	return true
}

func (o *Orchestrator) allTerminalLocked(ordered []*Task) bool {
	for _, t := range ordered {
		if !t.State.Terminal() {
			return false
		}
	}
	return true
}

func (o *Orchestrator) failLocked(t *Task, err error) {
	t.Err = err
	if kind, ok := gateway.KindOf(err); ok {
		t.ErrKind = kind
	} else {
		t.ErrKind = gateway.KindTransientIO
	}
	o.transitionLocked(t, TaskFailed)
}

func (o *Orchestrator) skipLocked(t *Task, cause model.Identity, reason string) {
	t.SkipCause = cause
	t.SkipReason = reason
	o.transitionLocked(t, TaskSkipped)
}

// transitionLocked is the single mutation point for task states. An illegal
// transition is a bug in the scheduler, not a runtime condition.
func (o *Orchestrator) transitionLocked(t *Task, to TaskState) {
	if !transitionAllowed(t.State, to) {
		panic(fmt.Sprintf("illegal task transition %s -> %s for %s", t.State, to, t.Entry.Identity))
	}
	from := t.State
	t.State = to

	e := output.Event{
		Type:     output.EventTaskState,
		Model:    t.Entry.Identity.String(),
		Name:     t.Entry.Name,
		State:    string(to),
		From:     string(from),
		Attempt:  t.Attempt,
		Terminal: to.Terminal(),
		Implicit: t.Entry.Implicit,
	}
	if t.Err != nil {
		e.Error = t.Err.Error()
		e.ErrorKind = string(t.ErrKind)
	}
	if !t.SkipCause.IsZero() {
		e.Cause = t.SkipCause.String()
	}
	o.emit(e)
}

func discoveryFailure(entry PlanEntry) error {
	if entry.DiscoveryErr != nil {
		return entry.DiscoveryErr
	}
	return gateway.NewError(gateway.KindCorruptModel, entry.Identity, errors.New("model could not be inspected during discovery"))
}
