package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"line-comicbot/pkg/gallery"
)

// LocalBucket stores images in a directory, for development.
type LocalBucket struct {
	logger  *slog.Logger
	dir     string
	baseURL string
}

// NewLocalBucket creates dir if needed. Files are expected to be served at
// baseURL + "/files/".
func NewLocalBucket(dir, baseURL string, logger *slog.Logger) (*LocalBucket, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}
	return &LocalBucket{
		logger:  logger,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir returns the directory holding the files.
func (b *LocalBucket) Dir() string {
	return b.dir
}

// Create writes the file exclusively.
func (b *LocalBucket) Create(_ context.Context, name string, data []byte, _ string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid object name %q", name)
	}
	path := filepath.Join(b.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrConflict
		}
		return fmt.Errorf("open local file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			b.logger.Warn("Failed to close file after error", "path", path, "error", closeErr)
		}
		return fmt.Errorf("write to local storage: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close local file: %w", err)
	}
	b.logger.Debug("Image saved to local storage", "path", path)
	return nil
}

// List returns the directory entries sorted by name.
func (b *LocalBucket) List(_ context.Context) ([]gallery.BlobMeta, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read local storage directory: %w", err)
	}

	out := make([]gallery.BlobMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			b.logger.Warn("Failed to stat file", "file", entry.Name(), "error", err)
			continue
		}
		created := info.ModTime().UTC()
		if parsed, err := gallery.ParseName(entry.Name()); err == nil {
			created = parsed.CreatedAt
		}
		out = append(out, gallery.BlobMeta{
			CreatedAt: created,
			Name:      entry.Name(),
			URL:       b.PublicURL(entry.Name()),
			Size:      info.Size(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PublicURL returns the URL the server exposes name at.
func (b *LocalBucket) PublicURL(name string) string {
	return b.baseURL + "/files/" + url.PathEscape(name)
}
