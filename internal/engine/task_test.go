package engine

import "testing"

func TestTaskState_Terminal(t *testing.T) {
	terminal := []TaskState{TaskSynced, TaskFailed, TaskSkipped}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s not terminal", s)
		}
	}
	active := []TaskState{TaskQueued, TaskWaitingOnChildren, TaskOpening, TaskSyncing, TaskClosing}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%s reported terminal", s)
		}
	}
}

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to TaskState
		want     bool
	}{
		{TaskQueued, TaskWaitingOnChildren, true},
		{TaskWaitingOnChildren, TaskOpening, true},
		{TaskWaitingOnChildren, TaskSkipped, true},
		{TaskWaitingOnChildren, TaskFailed, true},
		{TaskOpening, TaskSyncing, true},
		{TaskSyncing, TaskClosing, true},
		{TaskClosing, TaskSynced, true},
		// A retry re-opens from any mid-flight state.
		{TaskOpening, TaskOpening, true},
		{TaskSyncing, TaskOpening, true},
		{TaskClosing, TaskOpening, true},
		// Terminal states are final.
		{TaskSynced, TaskOpening, false},
		{TaskFailed, TaskWaitingOnChildren, false},
		{TaskSkipped, TaskOpening, false},
		// No shortcuts.
		{TaskQueued, TaskOpening, false},
		{TaskWaitingOnChildren, TaskSyncing, false},
		{TaskOpening, TaskSynced, false},
	}
	for _, tc := range cases {
		if got := transitionAllowed(tc.from, tc.to); got != tc.want {
			t.Errorf("transitionAllowed(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
