// Package remote abstracts the versioned object store the encrypted ledger
// is pushed to. The engine only ever sees opaque blobs and opaque versions;
// it never does last-writer-wins.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// Version is an opaque marker of remote state. The zero value means "no
// remote state yet" and is the expected parent for the first push.
type Version string

// ErrNotFound is returned by Pull when the user has no remote state.
var ErrNotFound = errors.New("remote: not found")

// ConflictError is returned by Push when the remote moved past the expected
// parent version. The caller must pull and reconcile; the store never
// overwrites.
type ConflictError struct {
	Expected Version
	Actual   Version
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("remote: version conflict (expected %q, remote is %q)", e.Expected, e.Actual)
}

// SyncError wraps transient transport failures. Local state is untouched
// when one occurs.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return "remote: " + e.Op + ": " + e.Err.Error() }
func (e *SyncError) Unwrap() error { return e.Err }

// Store is the remote contract: version-addressed get/put/delete for one
// blob per user. Every successful Push is exactly one remote history entry.
type Store interface {
	// Pull fetches the user's current blob and its version. ErrNotFound
	// when the user has no remote state.
	Pull(ctx context.Context, user string) ([]byte, Version, error)

	// Push writes the blob only if the remote still is at parent.
	// Returns ConflictError on a version mismatch.
	Push(ctx context.Context, user string, data []byte, parent Version) (Version, error)

	// DeleteAll irreversibly removes the user's remote state. Succeeds if
	// there was nothing to delete.
	DeleteAll(ctx context.Context, user string) error
}
