package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Both implementations must satisfy the same contract; run the shared suite
// against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestPullNotFound(t *testing.T) {
	for name, store := range stores(t) {
		_, _, err := store.Pull(context.Background(), "alice")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		ctx := context.Background()

		v1, err := store.Push(ctx, "alice", []byte("state-1"), "")
		if err != nil {
			t.Fatalf("%s: first push failed: %v", name, err)
		}
		if v1 == "" {
			t.Fatalf("%s: empty version after push", name)
		}

		data, version, err := store.Pull(ctx, "alice")
		if err != nil {
			t.Fatalf("%s: pull failed: %v", name, err)
		}
		if string(data) != "state-1" || version != v1 {
			t.Errorf("%s: pulled %q@%q, want state-1@%q", name, data, version, v1)
		}

		v2, err := store.Push(ctx, "alice", []byte("state-2"), v1)
		if err != nil {
			t.Fatalf("%s: second push failed: %v", name, err)
		}
		if v2 == v1 {
			t.Errorf("%s: version did not advance", name)
		}
	}
}

func TestPushStaleParentConflicts(t *testing.T) {
	for name, store := range stores(t) {
		ctx := context.Background()

		v1, err := store.Push(ctx, "alice", []byte("state-1"), "")
		if err != nil {
			t.Fatalf("%s: push failed: %v", name, err)
		}
		if _, err := store.Push(ctx, "alice", []byte("state-2"), v1); err != nil {
			t.Fatalf("%s: push failed: %v", name, err)
		}

		// Second writer still holds v1: must conflict, never overwrite.
		_, err = store.Push(ctx, "alice", []byte("state-2b"), v1)
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("%s: expected ConflictError, got %v", name, err)
		}

		data, _, err := store.Pull(ctx, "alice")
		if err != nil {
			t.Fatalf("%s: pull failed: %v", name, err)
		}
		if string(data) != "state-2" {
			t.Errorf("%s: conflicting push overwrote state: %q", name, data)
		}
	}
}

func TestPushFirstWriteRequiresEmptyParent(t *testing.T) {
	for name, store := range stores(t) {
		_, err := store.Push(context.Background(), "alice", []byte("x"), "7")
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Errorf("%s: expected ConflictError for stale parent on empty remote, got %v", name, err)
		}
	}
}

func TestDeleteAll(t *testing.T) {
	for name, store := range stores(t) {
		ctx := context.Background()

		if _, err := store.Push(ctx, "alice", []byte("state"), ""); err != nil {
			t.Fatalf("%s: push failed: %v", name, err)
		}
		if err := store.DeleteAll(ctx, "alice"); err != nil {
			t.Fatalf("%s: delete failed: %v", name, err)
		}
		if _, _, err := store.Pull(ctx, "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound after delete, got %v", name, err)
		}

		// Deleting again is fine.
		if err := store.DeleteAll(ctx, "alice"); err != nil {
			t.Errorf("%s: second delete failed: %v", name, err)
		}
	}
}

func TestLocalStoreKeepsHistory(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	ctx := context.Background()

	v1, err := store.Push(ctx, "alice", []byte("one"), "")
	if err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if _, err := store.Push(ctx, "alice", []byte("two"), v1); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "alice", "history"))
	if err != nil {
		t.Fatalf("reading history dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected one history entry per push, got %d", len(entries))
	}
}
