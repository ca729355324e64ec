package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BatchingServiceConfig holds the configuration for a BatchingService.
type BatchingServiceConfig struct {
	NumWorkers    int           `yaml:"num_workers"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// BatchingService transforms messages with a pool of workers and hands them
// to a BatchProcessor when a batch fills or the flush interval elapses.
type BatchingService[T any] struct {
	cfg         BatchingServiceConfig
	consumer    MessageConsumer
	transformer MessageTransformer[T]
	processor   BatchProcessor[T]
	logger      zerolog.Logger
	transformWg sync.WaitGroup
	batchWg     sync.WaitGroup
	batchChan   chan ProcessableItem[T]
}

// NewBatchingService creates a new BatchingService. Zero config values fall
// back to 5 workers, batches of 100 and a one minute flush interval.
func NewBatchingService[T any](
	cfg BatchingServiceConfig,
	consumer MessageConsumer,
	transformer MessageTransformer[T],
	processor BatchProcessor[T],
	logger zerolog.Logger,
) (*BatchingService[T], error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}
	if consumer == nil || transformer == nil || processor == nil {
		return nil, errors.New("consumer, transformer, and processor cannot be nil")
	}

	return &BatchingService[T]{
		cfg:         cfg,
		consumer:    consumer,
		transformer: transformer,
		processor:   processor,
		logger:      logger.With().Str("service", "BatchingService").Logger(),
		batchChan:   make(chan ProcessableItem[T], cfg.BatchSize*cfg.NumWorkers),
	}, nil
}

// Start starts the consumer, the transform workers and the batch worker.
func (s *BatchingService[T]) Start(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message consumer: %w", err)
	}

	s.batchWg.Add(1)
	go s.batchWorker(ctx)

	s.transformWg.Add(s.cfg.NumWorkers)
	for i := 0; i < s.cfg.NumWorkers; i++ {
		go s.transformWorker(ctx, i)
	}

	// batchChan has many writers; close it only once all of them are gone.
	go func() {
		s.transformWg.Wait()
		close(s.batchChan)
	}()

	s.logger.Info().
		Int("worker_count", s.cfg.NumWorkers).
		Int("batch_size", s.cfg.BatchSize).
		Dur("flush_interval", s.cfg.FlushInterval).
		Msg("Batching service started.")
	return nil
}

// Stop stops the consumer and waits for the final batch to be flushed.
func (s *BatchingService[T]) Stop(ctx context.Context) error {
	if err := s.consumer.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	allDone := make(chan struct{})
	go func() {
		s.transformWg.Wait()
		s.batchWg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
		s.logger.Info().Msg("Batching service stopped.")
		return nil
	case <-ctx.Done():
		s.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for workers to finish.")
		return ctx.Err()
	}
}

func (s *BatchingService[T]) transformWorker(ctx context.Context, workerID int) {
	defer s.transformWg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.consumer.Messages():
			if !ok {
				return
			}

			payload, skip, err := s.transformer(ctx, &msg)
			if err != nil {
				s.logger.Error().Err(err).Str("msg_id", msg.ID).Int("worker_id", workerID).Msg("Failed to transform message, Nacking.")
				msg.Nack()
				continue
			}
			if skip {
				msg.Ack()
				continue
			}

			select {
			case s.batchChan <- ProcessableItem[T]{Original: msg, Payload: payload}:
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}
}

func (s *BatchingService[T]) batchWorker(ctx context.Context) {
	defer s.batchWg.Done()

	batch := make([]ProcessableItem[T], 0, s.cfg.BatchSize)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func(flushCtx context.Context) {
		if len(batch) == 0 {
			return
		}
		s.logger.Debug().Int("batch_size", len(batch)).Msg("Flushing batch.")
		if err := s.processor(flushCtx, batch); err != nil {
			s.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch processor failed.")
		}
		batch = make([]ProcessableItem[T], 0, s.cfg.BatchSize)
		ticker.Reset(s.cfg.FlushInterval)
	}

	for {
		select {
		case item, ok := <-s.batchChan:
			if !ok {
				// The run context may already be cancelled; the last batch still goes out.
				flush(context.WithoutCancel(ctx))
				return
			}
			batch = append(batch, item)
			if len(batch) >= s.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
