package messagepipeline

import (
	"time"
)

// Message is a single event received from a broker, together with the
// handles used to settle it.
type Message struct {
	MessageData

	// Attributes holds the broker metadata, e.g. Pub/Sub attributes.
	Attributes map[string]string

	// Ack marks the message as handled.
	Ack func()

	// Nack asks the broker to redeliver the message.
	Nack func()
}

// MessageData holds the payload of a message as delivered by the broker.
type MessageData struct {
	ID          string    `json:"id"`
	Payload     []byte    `json:"payload"`
	PublishTime time.Time `json:"publishTime"`
}
