package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"line-comicbot/pkg/gallery"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSBucket stores images in a Google Cloud Storage bucket.
type GCSBucket struct {
	client     *storage.Client
	logger     *slog.Logger
	bucket     string
	publicBase string
}

// NewGCSBucket creates a bucket backed by Cloud Storage. If publicBase is
// empty objects are addressed through storage.googleapis.com.
func NewGCSBucket(client *storage.Client, bucket, publicBase string, logger *slog.Logger) *GCSBucket {
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
	}
	return &GCSBucket{
		client:     client,
		logger:     logger,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Create writes the object only if it does not exist yet.
func (b *GCSBucket) Create(ctx context.Context, name string, data []byte, mimeType string) error {
	obj := b.client.Bucket(b.bucket).Object(name).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = mimeType
	w.CacheControl = "public, max-age=31536000"

	if _, err := w.Write(data); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			b.logger.Warn("Failed to close writer after error", "error", closeErr)
		}
		return fmt.Errorf("write to storage: %w", err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return ErrConflict
		}
		return fmt.Errorf("close storage writer: %w", err)
	}
	return nil
}

// List iterates every object in the bucket.
func (b *GCSBucket) List(ctx context.Context) ([]gallery.BlobMeta, error) {
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{})

	var out []gallery.BlobMeta
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		out = append(out, gallery.BlobMeta{
			CreatedAt: attrs.Created,
			Name:      attrs.Name,
			URL:       b.PublicURL(attrs.Name),
			Size:      attrs.Size,
		})
	}
	return out, nil
}

// PublicURL returns the anonymous read URL for name.
func (b *GCSBucket) PublicURL(name string) string {
	return b.publicBase + "/" + url.PathEscape(name)
}
