// Package gateway defines the narrow capability surface the sync engine needs
// from a cloud document host. The engine never assumes editing rights during
// discovery: a document is opened either detached (read-only, link inspection
// only) or full (edit/sync rights), and every open handle must be closed.
package gateway

import (
	"context"

	"modelsync/internal/model"
)

// OpenMode selects how a cloud document is opened.
type OpenMode string

const (
	// OpenDetached opens read-only without editing locks. Detached opens exist
	// purely to read link metadata and are never synced.
	OpenDetached OpenMode = "detached"

	// OpenFull opens with edit/sync rights against the central repository.
	OpenFull OpenMode = "full"
)

// WorksetMode mirrors the host's workset opening configuration.
type WorksetMode string

const (
	WorksetsAll        WorksetMode = "all"
	WorksetsLastViewed WorksetMode = "last-viewed"
	WorksetsSpecify    WorksetMode = "specify"
)

// Options is per-open configuration applied to a full handle before syncing.
type Options struct {
	WorksetMode WorksetMode
	// Worksets names the worksets to open when WorksetMode is WorksetsSpecify.
	Worksets []string
}

// Link describes one direct link from a parent document to a child model.
type Link struct {
	Identity model.Identity
	Name     string
}

// Handle represents an open remote document.
type Handle interface {
	Identity() model.Identity
	Mode() OpenMode
}

// Gateway is the external collaborator that opens, inspects, syncs, and
// closes cloud-hosted documents.
type Gateway interface {
	// OpenDetached opens a document read-only for link inspection.
	OpenDetached(ctx context.Context, id model.Identity) (Handle, error)

	// OpenFull opens a document with edit/sync rights.
	OpenFull(ctx context.Context, id model.Identity) (Handle, error)

	// ReadDirectLinks returns the document's immediate link references.
	// Nested (transitive) links are not included.
	ReadDirectLinks(ctx context.Context, h Handle) ([]Link, error)

	// ApplyOptions applies per-run configuration (workset policy) to a full
	// handle before syncing.
	ApplyOptions(ctx context.Context, h Handle, opts Options) error

	// Sync synchronizes a full handle with the central repository.
	Sync(ctx context.Context, h Handle) error

	// Close releases the document. Close is idempotent and never fails the
	// caller: implementations log underlying close errors and return.
	Close(ctx context.Context, h Handle)
}
