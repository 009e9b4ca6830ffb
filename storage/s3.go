package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"line-comicbot/pkg/gallery"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible endpoint.
type S3Config struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Region     string
	Bucket     string
	PublicBase string
	UseSSL     bool
}

// S3Bucket stores images in an S3-compatible bucket via MinIO's client.
type S3Bucket struct {
	client     *minio.Client
	logger     *slog.Logger
	bucket     string
	region     string
	publicBase string
}

// NewS3Bucket creates a MinIO client from cfg.
func NewS3Bucket(cfg S3Config, logger *slog.Logger) (*S3Bucket, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	base := cfg.PublicBase
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint + "/" + cfg.Bucket
	}

	return &S3Bucket{
		client:     client,
		logger:     logger,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		publicBase: strings.TrimRight(base, "/"),
	}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (b *S3Bucket) EnsureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", b.bucket, err)
	}
	b.logger.Info("Created bucket", "bucket", b.bucket)
	return nil
}

// Create stats the key first and refuses to overwrite an existing object.
func (b *S3Bucket) Create(ctx context.Context, name string, data []byte, mimeType string) error {
	_, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return ErrConflict
	}
	if resp := minio.ToErrorResponse(err); resp.StatusCode != http.StatusNotFound && resp.Code != "NoSuchKey" {
		return fmt.Errorf("stat object: %w", err)
	}

	opts := minio.PutObjectOptions{ContentType: mimeType, CacheControl: "public, max-age=31536000"}
	if _, err := b.client.PutObject(ctx, b.bucket, name, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

// List walks the bucket listing.
func (b *S3Bucket) List(ctx context.Context) ([]gallery.BlobMeta, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []gallery.BlobMeta
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		out = append(out, gallery.BlobMeta{
			CreatedAt: obj.LastModified,
			Name:      obj.Key,
			URL:       b.PublicURL(obj.Key),
			Size:      obj.Size,
		})
	}
	return out, nil
}

// PublicURL returns the anonymous read URL for name.
func (b *S3Bucket) PublicURL(name string) string {
	return b.publicBase + "/" + url.PathEscape(name)
}
