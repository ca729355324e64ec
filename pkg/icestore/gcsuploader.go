package icestore

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GCSBatchUploaderConfig names the bucket and the object prefix.
type GCSBatchUploaderConfig struct {
	BucketName   string `yaml:"bucket_name"`
	ObjectPrefix string `yaml:"object_prefix"`
}

// KeyFunc returns the batch key an item is grouped under, e.g. "2026/01/02".
// Items with an empty key are dropped.
type KeyFunc[T any] func(item *T) string

// GCSBatchUploader writes items as gzip-compressed JSON lines, one object per
// batch key, named <prefix>/<key>/<uuid>.jsonl.gz.
type GCSBatchUploader[T any] struct {
	client GCSClient
	config GCSBatchUploaderConfig
	keyFn  KeyFunc[T]
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewGCSBatchUploader creates an uploader for the configured bucket.
func NewGCSBatchUploader[T any](
	gcsClient GCSClient,
	config GCSBatchUploaderConfig,
	keyFn KeyFunc[T],
	logger zerolog.Logger,
) (*GCSBatchUploader[T], error) {
	if gcsClient == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if config.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	if keyFn == nil {
		return nil, errors.New("batch key function cannot be nil")
	}
	return &GCSBatchUploader[T]{
		client: gcsClient,
		config: config,
		keyFn:  keyFn,
		logger: logger.With().Str("component", "GCSBatchUploader").Str("bucket", config.BucketName).Logger(),
	}, nil
}

// UploadBatch groups items by key and uploads each group in parallel. The
// errors of all failed groups are joined.
func (u *GCSBatchUploader[T]) UploadBatch(ctx context.Context, items []*T) error {
	groups := make(map[string][]*T)
	for _, item := range items {
		if item == nil {
			continue
		}
		if key := u.keyFn(item); key != "" {
			groups[key] = append(groups[key], item)
		}
	}
	if len(groups) == 0 {
		return nil
	}

	var mu sync.Mutex
	var errs []error
	var uploads sync.WaitGroup
	for key, group := range groups {
		uploads.Add(1)
		u.wg.Add(1)
		go func(key string, group []*T) {
			defer uploads.Done()
			defer u.wg.Done()
			if err := u.uploadGroup(ctx, key, group); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(key, group)
	}
	uploads.Wait()
	return errors.Join(errs...)
}

// ObjectName returns the object an upload for key is written to.
func (u *GCSBatchUploader[T]) ObjectName(key string, id uuid.UUID) string {
	return path.Join(u.config.ObjectPrefix, key, id.String()+".jsonl.gz")
}

func (u *GCSBatchUploader[T]) uploadGroup(ctx context.Context, key string, group []*T) error {
	objectName := u.ObjectName(key, uuid.New())
	// Cancelling the writer's context before Close aborts the upload, so a
	// failed encode never commits a partial object.
	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writer := u.client.Bucket(u.config.BucketName).Object(objectName).NewWriter(uploadCtx)

	pr, pw := io.Pipe()
	go func() {
		gz := gzip.NewWriter(pw)
		enc := json.NewEncoder(gz)
		for _, item := range group {
			if err := enc.Encode(item); err != nil {
				_ = pw.CloseWithError(fmt.Errorf("json encoding failed for %s: %w", objectName, err))
				return
			}
		}
		_ = pw.CloseWithError(gz.Close())
	}()

	written, copyErr := io.Copy(writer, pr)
	if copyErr != nil {
		_ = pr.CloseWithError(copyErr)
		cancel()
		_ = writer.Close()
		return fmt.Errorf("failed to stream data for GCS object %s: %w", objectName, copyErr)
	}
	if closeErr := writer.Close(); closeErr != nil {
		return fmt.Errorf("failed to close GCS object writer for %s: %w", objectName, closeErr)
	}

	u.logger.Info().
		Str("object_name", objectName).
		Int("record_count", len(group)).
		Int64("bytes_written", written).
		Msg("Uploaded batch to GCS.")
	return nil
}

// Close waits for in-flight uploads.
func (u *GCSBatchUploader[T]) Close() error {
	u.wg.Wait()
	return nil
}
