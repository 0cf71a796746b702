package gateway

import (
	"errors"
	"fmt"

	"modelsync/internal/model"
)

// Kind classifies gateway failures. Transient kinds may be retried; the rest
// are terminal for the affected model.
type Kind string

const (
	KindNotFound     Kind = "not-found"
	KindAccessDenied Kind = "access-denied"
	KindLocked       Kind = "locked"
	KindTransientIO  Kind = "transient-io"
	KindSyncConflict Kind = "sync-conflict"
	KindCorruptModel Kind = "corrupt-model"
)

// ErrUnavailable marks the host itself as unreachable (not a per-model
// failure). The orchestrator treats it as fatal for the whole run.
var ErrUnavailable = errors.New("cloud document host unavailable")

// Error attaches a Kind and the affected identity to an underlying host error.
type Error struct {
	Kind     Kind
	Identity model.Identity
	Err      error
}

func NewError(kind Kind, id model.Identity, err error) *Error {
	return &Error{Kind: kind, Identity: id, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Identity, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Identity, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err, if err carries one.
func KindOf(err error) (Kind, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return "", false
}

// IsTransient reports whether err may succeed on retry. Network timeouts and
// lock contention qualify; access or data problems do not.
func IsTransient(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == KindTransientIO || kind == KindLocked
}

// IsFatal reports whether err indicates a host-level outage that should halt
// the whole run rather than fail a single task.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
