package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LocalStore keeps the blob in a directory tree, one subdirectory per user,
// with a monotonic version counter and a copy of every pushed blob under
// history/. It backs offline use and tests; the layout mirrors the remote
// contract, including conflict detection.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) userDir(user string) string {
	return filepath.Join(s.root, user)
}

func (s *LocalStore) currentVersion(user string) (Version, error) {
	raw, err := os.ReadFile(filepath.Join(s.userDir(user), "VERSION"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", &SyncError{Op: "read version", Err: err}
	}
	return Version(strings.TrimSpace(string(raw))), nil
}

func (s *LocalStore) Pull(_ context.Context, user string) ([]byte, Version, error) {
	data, err := os.ReadFile(filepath.Join(s.userDir(user), "current.kasa"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", &SyncError{Op: "pull", Err: err}
	}

	version, err := s.currentVersion(user)
	if err != nil {
		return nil, "", err
	}
	return data, version, nil
}

func (s *LocalStore) Push(_ context.Context, user string, data []byte, parent Version) (Version, error) {
	current, err := s.currentVersion(user)
	if err != nil {
		return "", err
	}
	if current != parent {
		return "", &ConflictError{Expected: parent, Actual: current}
	}

	next := int64(1)
	if current != "" {
		n, err := strconv.ParseInt(string(current), 10, 64)
		if err != nil {
			return "", &SyncError{Op: "push", Err: fmt.Errorf("corrupt version marker %q", current)}
		}
		next = n + 1
	}

	dir := s.userDir(user)
	if err := os.MkdirAll(filepath.Join(dir, "history"), 0o755); err != nil {
		return "", &SyncError{Op: "push", Err: err}
	}

	// One push, one history entry: the full version trail stays browsable.
	historyPath := filepath.Join(dir, "history", fmt.Sprintf("%06d.kasa", next))
	if err := os.WriteFile(historyPath, data, 0o600); err != nil {
		return "", &SyncError{Op: "push", Err: err}
	}

	tmp := filepath.Join(dir, "current.kasa.tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", &SyncError{Op: "push", Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(dir, "current.kasa")); err != nil {
		return "", &SyncError{Op: "push", Err: err}
	}

	version := Version(strconv.FormatInt(next, 10))
	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte(version), 0o644); err != nil {
		return "", &SyncError{Op: "push", Err: err}
	}
	return version, nil
}

func (s *LocalStore) DeleteAll(_ context.Context, user string) error {
	if err := os.RemoveAll(s.userDir(user)); err != nil {
		return &SyncError{Op: "delete", Err: err}
	}
	return nil
}
