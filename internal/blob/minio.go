// Package blob stores raw artifact bytes in MinIO and hands back stable
// retrieval URLs. Only the vector indexing coordinator talks to it.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// defaultOpTimeout bounds every object-store call. Callers often pass
// deadline-free contexts; a hung endpoint must never block them
// indefinitely.
const defaultOpTimeout = 30 * time.Second

// Config holds the object store connection settings.
type Config struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store wraps a MinIO client bound to one bucket.
type Store struct {
	client    *minio.Client
	cfg       Config
	opTimeout time.Duration
	logger    *slog.Logger
}

// New creates a blob store client. No network call happens until
// EnsureBucket or Put.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: connect to %s: %w", cfg.Endpoint, err)
	}
	return &Store{client: client, cfg: cfg, opTimeout: defaultOpTimeout, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not exist. Safe to call on
// every startup.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("blob: check bucket %q: %w", s.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("blob: make bucket %q: %w", s.cfg.Bucket, err)
	}
	s.logger.Info("blob: created bucket", "bucket", s.cfg.Bucket)
	return nil
}

// Put uploads data under key and returns its retrieval URL. Re-uploading
// the same key overwrites; last write wins.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("blob: put %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return s.URL(key), nil
}

// URL derives the deterministic retrieval URL for key without touching
// the network.
func (s *Store) URL(key string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, key)
}
