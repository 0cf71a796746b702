package output

// Event is one lifecycle record of a sync run. Sinks receive every event and
// decide what to render; the engine never blocks on a sink being interested.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
// - run.started
// - discovery.started / model.discovered / model.failed / discovery.finished
// - plan.created
// - task.state (every state transition; terminal ones carry Terminal=true)
// - run.finished
type Event struct {
	Type string `json:"type"`

	// Model is the identity string of the affected model, Name its display
	// name, where the event concerns a single model.
	Model string `json:"model,omitempty"`
	Name  string `json:"name,omitempty"`

	// State/From describe a task transition; Attempt is the attempt number
	// in effect when the transition happened.
	State    string `json:"state,omitempty"`
	From     string `json:"from,omitempty"`
	Attempt  int    `json:"attempt,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`
	Implicit bool   `json:"implicit,omitempty"`

	// ErrorKind/Error describe the originating failure; Cause names the
	// identity whose failure forced a skip.
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Cause     string `json:"cause,omitempty"`

	// Run/plan-level counters.
	Models    int  `json:"models,omitempty"`
	Links     int  `json:"links,omitempty"`
	Selected  int  `json:"selected,omitempty"`
	Implied   int  `json:"implied,omitempty"`
	Synced    int  `json:"synced,omitempty"`
	Failed    int  `json:"failed,omitempty"`
	Skipped   int  `json:"skipped,omitempty"`
	Cancelled bool `json:"cancelled,omitempty"`
	ExitCode  int  `json:"exit_code,omitempty"`
}

const (
	EventRunStarted        = "run.started"
	EventDiscoveryStarted  = "discovery.started"
	EventModelDiscovered   = "model.discovered"
	EventModelFailed       = "model.failed"
	EventDiscoveryFinished = "discovery.finished"
	EventPlanCreated       = "plan.created"
	EventTaskState         = "task.state"
	EventRunFinished       = "run.finished"
)
