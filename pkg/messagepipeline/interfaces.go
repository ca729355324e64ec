package messagepipeline

import (
	"context"
)

// --- Stage 1: Consumer ---

// MessageConsumer is a source of messages, e.g. a Pub/Sub subscription.
type MessageConsumer interface {
	// Messages returns the channel workers read from. It is closed once the
	// consumer has stopped.
	Messages() <-chan Message
	// Start begins consumption in the background.
	Start(ctx context.Context) error
	// Stop ceases consumption and waits for background work to finish.
	Stop(ctx context.Context) error
	// Done is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// --- Stage 2: Transformer ---

// MessageTransformer decodes a Message into a typed payload.
//
// Returning skip=true Acks the message without processing it. Returning an
// error Nacks it. Implementations should return the raw struct; any
// serialization belongs to the processor.
type MessageTransformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// --- Stage 3: Processor ---

// ProcessableItem pairs a transformed payload with the message it came from.
type ProcessableItem[T any] struct {
	Original Message
	Payload  *T
}

// StreamProcessor handles one transformed message. A non-nil error Nacks it.
type StreamProcessor[T any] func(ctx context.Context, original Message, payload *T) error

// BatchProcessor handles a batch of transformed messages and owns the
// Ack/Nack of every item in it. A returned error is only logged.
type BatchProcessor[T any] func(ctx context.Context, batch []ProcessableItem[T]) error
