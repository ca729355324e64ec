package messagepipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleSimplePublisher_PublishAndStop(t *testing.T) {
	// Arrange
	testCtx, testCancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(testCancel)

	client := newTestPubsubClient(t, "test-project")
	_, sub := createTopicAndSub(t, client, "factor-results", "factor-results-sub")

	publisher, err := messagepipeline.NewGoogleSimplePublisher(testCtx,
		messagepipeline.NewGoogleSimplePublisherDefaults("factor-results"), client, zerolog.Nop())
	require.NoError(t, err)

	// Act
	payload := []byte(`{"number":"77","factors":["7","11"]}`)
	require.NoError(t, publisher.Publish(testCtx, payload, map[string]string{"request_id": "r-1"}))

	// Assert
	var mu sync.Mutex
	var received *pubsub.Message
	receiveCtx, receiveCancel := context.WithCancel(testCtx)
	t.Cleanup(receiveCancel)
	go func() {
		err := sub.Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
			mu.Lock()
			received = msg
			mu.Unlock()
			msg.Ack()
			receiveCancel()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Subscription receive error: %v", err)
		}
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received != nil
	}, 5*time.Second, 50*time.Millisecond, "did not receive message in time")

	mu.Lock()
	assert.Equal(t, payload, received.Data)
	assert.Equal(t, "r-1", received.Attributes["request_id"])
	mu.Unlock()

	stopCtx, stopCancel := context.WithTimeout(testCtx, 2*time.Second)
	t.Cleanup(stopCancel)
	require.NoError(t, publisher.Stop(stopCtx))
}

func TestNewGoogleSimplePublisher_TopicDoesNotExist(t *testing.T) {
	testCtx, testCancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(testCancel)
	client := newTestPubsubClient(t, "test-project")

	publisher, err := messagepipeline.NewGoogleSimplePublisher(testCtx,
		messagepipeline.NewGoogleSimplePublisherDefaults("non-existent-topic"), client, zerolog.Nop())

	require.Error(t, err)
	assert.Nil(t, publisher)
	assert.Contains(t, err.Error(), "pubsub topic non-existent-topic does not exist")
}

func TestNewGoogleSimplePublisher_NilClient(t *testing.T) {
	_, err := messagepipeline.NewGoogleSimplePublisher(context.Background(),
		messagepipeline.NewGoogleSimplePublisherDefaults("t"), nil, zerolog.Nop())
	require.Error(t, err)
}
