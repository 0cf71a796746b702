package engine

import (
	"modelsync/internal/gateway"
	"modelsync/internal/model"
)

// Outcome is the final record for one plan entry.
type Outcome struct {
	Identity model.Identity
	Name     string
	Implicit bool
	State    TaskState
	Attempts int

	// ErrKind and Err are set for FAILED outcomes.
	ErrKind gateway.Kind
	Err     string

	// SkipCause names the originating failure for SKIPPED outcomes;
	// SkipReason says why (child failed, cancelled, host unavailable).
	SkipCause  string
	SkipReason string
}

// Summary is the terminal report of a sync run, in plan (leaf-first) order.
type Summary struct {
	Outcomes  []Outcome
	Cancelled bool
}

// Counts tallies terminal states.
func (s *Summary) Counts() (synced, failed, skipped int) {
	if s == nil {
		return 0, 0, 0
	}
	for _, o := range s.Outcomes {
		switch o.State {
		case TaskSynced:
			synced++
		case TaskFailed:
			failed++
		case TaskSkipped:
			skipped++
		}
	}
	return synced, failed, skipped
}

// Clean reports whether every task synced and the run was not cancelled.
func (s *Summary) Clean() bool {
	if s == nil || s.Cancelled {
		return false
	}
	_, failed, skipped := s.Counts()
	return failed == 0 && skipped == 0
}

func outcomeFromTask(t *Task) Outcome {
	o := Outcome{
		Identity: t.Entry.Identity,
		Name:     t.Entry.Name,
		Implicit: t.Entry.Implicit,
		State:    t.State,
		Attempts: t.Attempt,
	}
	if t.Err != nil {
		o.Err = t.Err.Error()
		o.ErrKind = t.ErrKind
	}
	if !t.SkipCause.IsZero() {
		o.SkipCause = t.SkipCause.String()
	}
	o.SkipReason = t.SkipReason
	return o
}
