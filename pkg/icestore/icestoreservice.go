// Package icestore archives factorization results as compressed JSON lines in
// Google Cloud Storage.
package icestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// DataUploader uploads a batch of items that share a batch key.
type DataUploader[T any] interface {
	UploadBatch(ctx context.Context, items []*T) error
	Close() error
}

// NewGroupedUploadProcessor returns a BatchProcessor that splits a batch by
// keyFn and uploads each group separately. Each group is Acked or Nacked as
// a unit, so one failing day does not redeliver the others.
func NewGroupedUploadProcessor[T any](uploader DataUploader[T], keyFn KeyFunc[T], logger zerolog.Logger) messagepipeline.BatchProcessor[T] {
	return func(ctx context.Context, batch []messagepipeline.ProcessableItem[T]) error {
		groups := make(map[string][]messagepipeline.ProcessableItem[T])
		for _, item := range batch {
			key := keyFn(item.Payload)
			groups[key] = append(groups[key], item)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		var errs []error
		for key, group := range groups {
			wg.Add(1)
			go func(key string, group []messagepipeline.ProcessableItem[T]) {
				defer wg.Done()
				payloads := make([]*T, len(group))
				for i, item := range group {
					payloads[i] = item.Payload
				}

				if err := uploader.UploadBatch(ctx, payloads); err != nil {
					logger.Error().Err(err).Str("batch_key", key).Int("batch_size", len(group)).Msg("Failed to upload group, Nacking messages.")
					for _, item := range group {
						item.Original.Nack()
					}
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					return
				}
				for _, item := range group {
					item.Original.Ack()
				}
			}(key, group)
		}
		wg.Wait()
		return errors.Join(errs...)
	}
}

// NewIceStorageService assembles a BatchingService archiving T to GCS.
func NewIceStorageService[T any](
	cfg messagepipeline.BatchingServiceConfig,
	consumer messagepipeline.MessageConsumer,
	gcsClient GCSClient,
	uploaderCfg GCSBatchUploaderConfig,
	keyFn KeyFunc[T],
	transformer messagepipeline.MessageTransformer[T],
	logger zerolog.Logger,
) (*messagepipeline.BatchingService[T], error) {
	uploader, err := NewGCSBatchUploader[T](gcsClient, uploaderCfg, keyFn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS uploader: %w", err)
	}
	logger = logger.With().Str("component", "IceStorageService").Logger()

	service, err := messagepipeline.NewBatchingService[T](cfg, consumer, transformer, NewGroupedUploadProcessor[T](uploader, keyFn, logger), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create batching service for icestore: %w", err)
	}
	return service, nil
}

// NewFactorIceStoreService archives factor results from consumer, one object
// per computation day.
func NewFactorIceStoreService(
	cfg messagepipeline.BatchingServiceConfig,
	consumer messagepipeline.MessageConsumer,
	gcsClient GCSClient,
	uploaderCfg GCSBatchUploaderConfig,
	logger zerolog.Logger,
) (*messagepipeline.BatchingService[factorservice.FactorRecord], error) {
	return NewIceStorageService[factorservice.FactorRecord](
		cfg, consumer, gcsClient, uploaderCfg,
		factorservice.RecordKey,
		factorservice.NewRecordTransformer(logger),
		logger,
	)
}
