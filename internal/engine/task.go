package engine

import (
	"fmt"

	"modelsync/internal/gateway"
	"modelsync/internal/model"
)

// TaskState is a sync task's position in its state machine.
type TaskState string

const (
	TaskQueued            TaskState = "QUEUED"
	TaskWaitingOnChildren TaskState = "WAITING_ON_CHILDREN"
	TaskOpening           TaskState = "OPENING"
	TaskSyncing           TaskState = "SYNCING"
	TaskClosing           TaskState = "CLOSING"
	TaskSynced            TaskState = "SYNCED"
	TaskFailed            TaskState = "FAILED"
	TaskSkipped           TaskState = "SKIPPED"
)

// Terminal reports whether no further transition is possible.
func (s TaskState) Terminal() bool {
	return s == TaskSynced || s == TaskFailed || s == TaskSkipped
}

// legalTransitions is the task state machine. All mutation funnels through
// Orchestrator.transition, which rejects anything not listed here. A retried
// attempt loops back to OPENING; the document is re-opened from scratch.
var legalTransitions = map[TaskState][]TaskState{
	TaskQueued:            {TaskWaitingOnChildren},
	TaskWaitingOnChildren: {TaskOpening, TaskFailed, TaskSkipped},
	TaskOpening:           {TaskSyncing, TaskOpening, TaskFailed},
	TaskSyncing:           {TaskClosing, TaskOpening, TaskFailed},
	TaskClosing:           {TaskSynced, TaskOpening, TaskFailed},
}

func transitionAllowed(from, to TaskState) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Task tracks one plan entry through the sync run. Tasks live exactly as long
// as their run; the orchestrator's scheduling loop is the only mutator.
type Task struct {
	Entry   PlanEntry
	State   TaskState
	Attempt int

	// ErrKind and Err record the originating failure for FAILED tasks.
	ErrKind gateway.Kind
	Err     error

	// SkipCause names the identity whose failure (or the run's cancellation)
	// forced a SKIPPED task; SkipReason is the human-readable why.
	SkipCause  model.Identity
	SkipReason string
}

func newTask(entry PlanEntry) *Task {
	return &Task{Entry: entry, State: TaskQueued}
}

func (t *Task) String() string {
	return fmt.Sprintf("%s[%s]", t.Entry.Identity, t.State)
}
