package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore implements Store on a Cloud Storage bucket. Object generations
// are the version markers; preconditions on writes give optimistic
// concurrency without any server-side coordination of our own.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore assumes Application Default Credentials are configured.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, &SyncError{Op: "create client", Err: err}
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) object(user string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, user, "ledger.kasa"))
}

func (s *GCSStore) Pull(ctx context.Context, user string) ([]byte, Version, error) {
	r, err := s.object(user).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", &SyncError{Op: "pull", Err: err}
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", &SyncError{Op: "pull", Err: err}
	}
	return data, Version(strconv.FormatInt(r.Attrs.Generation, 10)), nil
}

func (s *GCSStore) Push(ctx context.Context, user string, data []byte, parent Version) (Version, error) {
	var conds storage.Conditions
	if parent == "" {
		conds.DoesNotExist = true
	} else {
		generation, err := strconv.ParseInt(string(parent), 10, 64)
		if err != nil {
			return "", &SyncError{Op: "push", Err: err}
		}
		conds.GenerationMatch = generation
	}

	w := s.object(user).If(conds).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", s.pushError(ctx, user, parent, err)
	}
	if err := w.Close(); err != nil {
		return "", s.pushError(ctx, user, parent, err)
	}
	return Version(strconv.FormatInt(w.Attrs().Generation, 10)), nil
}

// pushError maps a failed precondition onto ConflictError, everything else
// onto SyncError.
func (s *GCSStore) pushError(ctx context.Context, user string, parent Version, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
		actual := Version("")
		if attrs, attrsErr := s.object(user).Attrs(ctx); attrsErr == nil {
			actual = Version(strconv.FormatInt(attrs.Generation, 10))
		}
		return &ConflictError{Expected: parent, Actual: actual}
	}
	return &SyncError{Op: "push", Err: err}
}

func (s *GCSStore) DeleteAll(ctx context.Context, user string) error {
	err := s.object(user).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return &SyncError{Op: "delete", Err: err}
	}
	return nil
}
