// Package docstore defines the document store the negotiation core runs
// against: a subscribable collection of shallow-merged JSON-like documents
// with optimistic-concurrency preconditions on every write.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the referenced document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when a write's precondition no longer matches
	// the stored document. The write is not applied.
	ErrConflict = errors.New("docstore: precondition failed")
	// ErrUnavailable wraps transport/serialization failures of the backing
	// store. Callers decide whether to retry; the store does not.
	ErrUnavailable = errors.New("docstore: store unavailable")
)

// Snapshot is a full copy of a document at one observed version.
type Snapshot struct {
	ID      string
	Version int64
	Data    map[string]interface{}
}

// Precondition guards an update. A zero Precondition is unconditional.
type Precondition struct {
	// ExpectedVersion, when non-zero, requires the stored document to be at
	// exactly this version.
	ExpectedVersion int64
	// ExpectedStatus, when non-empty, requires the stored document's
	// "status" field to equal it.
	ExpectedStatus string
}

// Store is the minimal document-store contract the negotiation core needs.
// Updates merge shallowly: omitted fields are left untouched, fields set to
// nil are written as null (not deleted).
type Store interface {
	// Create inserts a new document and returns its assigned id.
	Create(ctx context.Context, collection string, data map[string]interface{}) (string, error)

	// Set writes a full document under an explicit id, overwriting any
	// previous content. Used by idempotent projections.
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error

	// Get returns the current snapshot, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Snapshot, error)

	// Update shallow-merges fields into the document if the precondition
	// holds, bumping the document version. ErrConflict on a stale
	// precondition, ErrNotFound for an absent document.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre Precondition) error

	// AppendToSet atomically adds value to the array field, skipping
	// duplicates. Creates the field if absent.
	AppendToSet(ctx context.Context, collection, id, field string, value interface{}) error

	// List returns a snapshot of every document in the collection. Finite,
	// not a live stream.
	List(ctx context.Context, collection string) ([]*Snapshot, error)

	// Subscribe registers fn to be invoked with the full document on every
	// change, including the local echo of the subscriber's own writes. The
	// returned function cancels the subscription.
	Subscribe(ctx context.Context, collection, id string, fn func(*Snapshot)) (func(), error)
}
