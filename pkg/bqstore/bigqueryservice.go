// Package bqstore archives factorization results in Google BigQuery.
package bqstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// NewBatchInsertProcessor returns a BatchProcessor that inserts the batch with
// inserter, Acking every message on success and Nacking every message on failure.
func NewBatchInsertProcessor[T any](inserter DataBatchInserter[T], logger zerolog.Logger) messagepipeline.BatchProcessor[T] {
	return func(ctx context.Context, batch []messagepipeline.ProcessableItem[T]) error {
		if len(batch) == 0 {
			return nil
		}

		payloads := make([]*T, len(batch))
		for i, item := range batch {
			payloads[i] = item.Payload
		}

		if err := inserter.InsertBatch(ctx, payloads); err != nil {
			logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to insert batch, Nacking all messages.")
			for _, item := range batch {
				item.Original.Nack()
			}
			return err
		}

		logger.Info().Int("batch_size", len(batch)).Msg("Inserted batch, Acking all messages.")
		for _, item := range batch {
			item.Original.Ack()
		}
		return nil
	}
}

// NewBigQueryService assembles a BatchingService that sinks T into BigQuery.
func NewBigQueryService[T any](
	cfg messagepipeline.BatchingServiceConfig,
	consumer messagepipeline.MessageConsumer,
	inserter DataBatchInserter[T],
	transformer messagepipeline.MessageTransformer[T],
	logger zerolog.Logger,
) (*messagepipeline.BatchingService[T], error) {
	if inserter == nil {
		return nil, errors.New("inserter cannot be nil")
	}
	logger = logger.With().Str("component", "BigQueryService").Logger()

	service, err := messagepipeline.NewBatchingService[T](cfg, consumer, transformer, NewBatchInsertProcessor(inserter, logger), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create batching service for bqstore: %w", err)
	}
	return service, nil
}

// NewFactorArchiveService archives factor results from consumer as FactorRecord rows.
func NewFactorArchiveService(
	cfg messagepipeline.BatchingServiceConfig,
	consumer messagepipeline.MessageConsumer,
	inserter DataBatchInserter[factorservice.FactorRecord],
	logger zerolog.Logger,
) (*messagepipeline.BatchingService[factorservice.FactorRecord], error) {
	return NewBigQueryService[factorservice.FactorRecord](cfg, consumer, inserter, factorservice.NewRecordTransformer(logger), logger)
}
