// Package storage handles persistence of generated images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"line-comicbot/pkg/gallery"

	"github.com/codeGROOVE-dev/retry"
	"github.com/minio/minio-go/v7"
	"google.golang.org/api/googleapi"
)

var (
	// ErrConflict is returned when an object with the same name already exists.
	ErrConflict = errors.New("storage: object already exists")
	// ErrNotFound is returned when no object matches a lookup.
	ErrNotFound = errors.New("storage: object doesn't exist")
)

// Bucket is a flat object namespace with create-only writes.
type Bucket interface {
	// Create writes data under name and fails with ErrConflict if name is taken.
	Create(ctx context.Context, name string, data []byte, mimeType string) error
	// List returns every object in store order.
	List(ctx context.Context) ([]gallery.BlobMeta, error)
	// PublicURL returns the anonymous read URL for name.
	PublicURL(name string) string
}

// Store handles image persistence.
type Store struct {
	bucket     Bucket
	logger     *slog.Logger
	now        func() time.Time
	retryDelay time.Duration
}

// New creates a new storage handler.
func New(bucket Bucket, logger *slog.Logger) *Store {
	return &Store{
		bucket:     bucket,
		logger:     logger,
		now:        time.Now,
		retryDelay: time.Second,
	}
}

// Upload stores data as a new image with the given role.
// Uploads are not retried: a half-finished write must not be replayed blindly.
func (s *Store) Upload(ctx context.Context, data []byte, mimeType string, role gallery.Role) (*gallery.StoredImage, error) {
	created := s.now().UTC()
	name := gallery.NewName(created, role, mimeType)
	contentType := gallery.MimeTypeFor(name)

	s.logger.Info("Upload starting", "name", name, "role", role, "bytes", len(data))
	start := time.Now()

	if err := s.bucket.Create(ctx, name, data, contentType); err != nil {
		s.logger.Warn("Upload failed", "name", name, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	img := &gallery.StoredImage{
		CreatedAt: created,
		Name:      name,
		URL:       s.bucket.PublicURL(name),
		Role:      role,
		Size:      int64(len(data)),
	}
	s.logger.Info("Upload completed", "name", name, "url", img.URL, "duration_ms", time.Since(start).Milliseconds())
	return img, nil
}

// List returns objects accepted by filter, in store order. A nil filter
// behaves like gallery.AllObjects.
func (s *Store) List(ctx context.Context, filter gallery.Filter) ([]gallery.BlobMeta, error) {
	all, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return all, nil
	}

	out := make([]gallery.BlobMeta, 0, len(all))
	for _, m := range all {
		if filter(m.Name) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListAll returns every object, unfiltered.
func (s *Store) ListAll(ctx context.Context) ([]gallery.BlobMeta, error) {
	return s.List(ctx, gallery.AllObjects)
}

func (s *Store) listAll(ctx context.Context) ([]gallery.BlobMeta, error) {
	var objects []gallery.BlobMeta
	err := retry.Do(
		func() error {
			var listErr error
			objects, listErr = s.bucket.List(ctx)
			if listErr != nil {
				return fmt.Errorf("list objects: %w", listErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(s.retryDelay),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(s.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying list operation after error", "attempt", n, "error", retryErr)
		}),
		retry.RetryIf(func(err error) bool {
			return !isPermanent(err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("list after retries: %w", err)
	}
	if objects == nil {
		objects = []gallery.BlobMeta{}
	}
	return objects, nil
}

// FindByHashID resolves a HashID to the first matching transformed image.
func (s *Store) FindByHashID(ctx context.Context, hashID string) (*gallery.StoredImage, error) {
	candidates, err := s.List(ctx, func(name string) bool {
		return gallery.OriginalImages(name) && containsRoleMarker(name, gallery.RoleOriginal)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Searching by hash id", "hash_id", hashID, "candidates", len(candidates))

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	name, ok := gallery.FindByHashID(names, hashID)
	if !ok {
		return nil, fmt.Errorf("hash id %s: %w", hashID, ErrNotFound)
	}

	for _, c := range candidates {
		if c.Name == name {
			return &gallery.StoredImage{
				CreatedAt: c.CreatedAt,
				Name:      c.Name,
				URL:       c.URL,
				Role:      gallery.RoleOriginal,
				Size:      c.Size,
			}, nil
		}
	}
	return nil, fmt.Errorf("hash id %s: %w", hashID, ErrNotFound)
}

// IsNotFound checks if an error indicates an image was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func containsRoleMarker(name string, role gallery.Role) bool {
	return strings.Contains(name, "_"+string(role))
}

// isPermanent reports errors that retrying cannot fix, such as a missing
// bucket or rejected credentials.
func isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return clientError(gerr.Code)
	}
	var merr minio.ErrorResponse
	if errors.As(err, &merr) {
		return clientError(merr.StatusCode)
	}
	return false
}

func clientError(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout
}
