package messagepipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// WithPayloadValidation wraps inner so that messages whose payload size is
// outside [minSize, maxSize] bytes are skipped without reaching it.
func WithPayloadValidation[T any](
	inner MessageTransformer[T],
	minSize int,
	maxSize int,
	logger zerolog.Logger,
) MessageTransformer[T] {
	return func(ctx context.Context, msg *Message) (*T, bool, error) {
		size := len(msg.Payload)
		if size < minSize || size > maxSize {
			logger.Warn().
				Str("msg_id", msg.ID).
				Int("payload_size", size).
				Int("max_size", maxSize).
				Msg("Skipping message with out-of-range payload size.")
			return nil, true, nil
		}
		return inner(ctx, msg)
	}
}
