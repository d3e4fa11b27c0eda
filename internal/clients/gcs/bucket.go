package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/usaspending/data-broker/internal/platform/logger"
)

// BlobStore is the gateway to generated and uploaded submission files.
// Keys are prefixed by submission id for submission-scoped files and
// by the generation key otherwise.
type BlobStore interface {
	Upload(ctx context.Context, key string, file io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Copy performs a server-side object copy, no bytes through the
	// worker.
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	// SignedReadURL returns a time-limited GET URL for the object.
	SignedReadURL(key string, ttl time.Duration) (string, error)
	// SignedWriteURL returns a time-limited PUT URL for direct upload.
	SignedWriteURL(key string, ttl time.Duration) (string, error)
}

type bucketStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewBlobStore(log *logger.Logger) (BlobStore, error) {
	serviceLog := log.With("service", "BlobStore")

	bucketName := os.Getenv("BROKER_GCS_BUCKET_NAME")
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var BROKER_GCS_BUCKET_NAME")
	}

	ctx := context.Background()
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucketStore{
		log:    serviceLog,
		client: stClient,
		bucket: bucketName,
	}, nil
}

func (bs *bucketStore) Upload(ctx context.Context, key string, file io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	w := bs.client.Bucket(bs.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/csv"
	// Fixed chunk size keeps large D-file uploads at bounded memory.
	w.ChunkSize = 8 << 20
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer for %s: %w", key, err)
	}
	return nil
}

func (bs *bucketStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := bs.client.Bucket(bs.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return r, nil
}

func (bs *bucketStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	src := bs.client.Bucket(bs.bucket).Object(srcKey)
	dst := bs.client.Bucket(bs.bucket).Object(dstKey)
	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

func (bs *bucketStore) Delete(ctx context.Context, key string) error {
	if err := bs.client.Bucket(bs.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (bs *bucketStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	it := bs.client.Bucket(bs.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (bs *bucketStore) SignedReadURL(key string, ttl time.Duration) (string, error) {
	return bs.client.Bucket(bs.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
}

func (bs *bucketStore) SignedWriteURL(key string, ttl time.Duration) (string, error) {
	return bs.client.Bucket(bs.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:      "PUT",
		ContentType: "text/csv",
		Expires:     time.Now().Add(ttl),
	})
}
