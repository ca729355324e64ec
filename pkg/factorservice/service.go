package factorservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// Service answers factor requests from a ResultStore and publishes the
// results. Unparseable requests go to the dead-letter publisher.
type Service struct {
	store      ResultStore
	results    messagepipeline.SimplePublisher
	deadLetter messagepipeline.SimplePublisher
	seen       SeenRequests
	logger     zerolog.Logger
}

// SeenRequests records the ids of requests whose results were published, so
// that Pub/Sub redeliveries are not answered twice.
type SeenRequests = cache.PresenceCache[string, time.Time]

// NewService creates a Service. results and deadLetter may be nil, in which
// case results are only returned to the caller and bad requests only logged.
func NewService(
	store ResultStore,
	results messagepipeline.SimplePublisher,
	deadLetter messagepipeline.SimplePublisher,
	logger zerolog.Logger,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("result store cannot be nil")
	}
	return &Service{
		store:      store,
		results:    results,
		deadLetter: deadLetter,
		logger:     logger.With().Str("component", "FactorService").Logger(),
	}, nil
}

// DeduplicateWith makes the pipeline skip requests already recorded in seen.
// Without it every delivery is answered.
func (s *Service) DeduplicateWith(seen SeenRequests) {
	s.seen = seen
}

// Factorize answers a single request.
func (s *Service) Factorize(ctx context.Context, req FactorRequest) (*FactorResult, error) {
	start := time.Now()
	doc, err := s.store.Fetch(ctx, req.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to factorize %d: %w", req.Number, err)
	}
	factors, err := doc.FactorSet()
	if err != nil {
		return nil, err
	}

	result := &FactorResult{
		RequestID:  req.RequestID,
		Number:     req.Number,
		Factors:    factors,
		Prime:      isPrimeFactorization(req.Number, factors),
		ComputedAt: doc.ComputedAt,
		Elapsed:    time.Since(start).Microseconds(),
	}
	s.logger.Debug().
		Str("request_id", req.RequestID).
		Uint64("number", req.Number).
		Int("factor_count", factors.Len()).
		Int64("elapsed_us", result.Elapsed).
		Msg("Factorized number.")
	return result, nil
}

// Transformer parses request messages. Invalid requests are dead-lettered
// and skipped, so they are Acked rather than redelivered forever.
func (s *Service) Transformer() messagepipeline.MessageTransformer[FactorRequest] {
	return func(ctx context.Context, msg *messagepipeline.Message) (*FactorRequest, bool, error) {
		req, err := ParseRequest(msg)
		if err == nil {
			return req, false, nil
		}
		s.logger.Warn().Err(err).Str("msg_id", msg.ID).Msg("Rejecting unparseable factor request.")
		if s.deadLetter != nil {
			attributes := map[string]string{
				"error":  err.Error(),
				"msg_id": msg.ID,
			}
			if dlErr := s.deadLetter.Publish(ctx, msg.Payload, attributes); dlErr != nil {
				s.logger.Error().Err(dlErr).Str("msg_id", msg.ID).Msg("Failed to publish to dead-letter topic.")
				return nil, false, fmt.Errorf("dead-letter publish failed: %w", dlErr)
			}
		}
		return nil, true, nil
	}
}

// Processor factorizes a parsed request and publishes the result.
func (s *Service) Processor() messagepipeline.StreamProcessor[FactorRequest] {
	return func(ctx context.Context, _ messagepipeline.Message, req *FactorRequest) error {
		if s.alreadyAnswered(ctx, req.RequestID) {
			s.logger.Debug().Str("request_id", req.RequestID).Msg("Skipping duplicate factor request.")
			return nil
		}
		result, err := s.Factorize(ctx, *req)
		if err != nil {
			return err
		}
		if s.results != nil {
			payload, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("failed to marshal result for %d: %w", req.Number, err)
			}
			attributes := map[string]string{
				"request_id": result.RequestID,
				"number":     strconv.FormatUint(result.Number, 10),
			}
			if err := s.results.Publish(ctx, payload, attributes); err != nil {
				return fmt.Errorf("failed to publish result for %d: %w", req.Number, err)
			}
		}
		s.markAnswered(ctx, req.RequestID)
		return nil
	}
}

// alreadyAnswered reports whether id is recorded. A failing ledger answers
// false, so a request may be answered twice but is never dropped.
func (s *Service) alreadyAnswered(ctx context.Context, id string) bool {
	if s.seen == nil || id == "" {
		return false
	}
	_, err := s.seen.Fetch(ctx, id)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrNotFound) {
		s.logger.Warn().Err(err).Str("request_id", id).Msg("Seen-request lookup failed, processing anyway.")
	}
	return false
}

func (s *Service) markAnswered(ctx context.Context, id string) {
	if s.seen == nil || id == "" {
		return
	}
	if err := s.seen.Set(ctx, id, time.Now()); err != nil {
		s.logger.Warn().Err(err).Str("request_id", id).Msg("Failed to record answered request.")
	}
}

// NewFactorizationPipeline wires svc into a StreamingService reading requests
// from consumer. Empty payloads and payloads over MaxRequestSize are dropped
// before parsing.
func NewFactorizationPipeline(
	cfg messagepipeline.StreamingServiceConfig,
	consumer messagepipeline.MessageConsumer,
	svc *Service,
	logger zerolog.Logger,
) (*messagepipeline.StreamingService[FactorRequest], error) {
	if svc == nil {
		return nil, errors.New("factor service cannot be nil")
	}
	transformer := messagepipeline.WithPayloadValidation(svc.Transformer(), 1, MaxRequestSize, svc.logger)
	return messagepipeline.NewStreamingService[FactorRequest](cfg, consumer, transformer, svc.Processor(), logger)
}
