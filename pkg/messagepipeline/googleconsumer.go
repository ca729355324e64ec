package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// GooglePubsubConsumerConfig configures a subscription consumer.
type GooglePubsubConsumerConfig struct {
	SubscriptionID         string        `yaml:"subscription_id"`
	MaxOutstandingMessages int           `yaml:"max_outstanding_messages"`
	NumGoroutines          int           `yaml:"num_goroutines"`
	SubscriptionTimeout    time.Duration `yaml:"subscription_timeout"`
	StopTimeout            time.Duration `yaml:"stop_timeout"`
}

// NewGooglePubsubConsumerDefaults returns a config for subID with the
// receive settings used across the services.
func NewGooglePubsubConsumerDefaults(subID string) *GooglePubsubConsumerConfig {
	return &GooglePubsubConsumerConfig{
		SubscriptionID:         subID,
		MaxOutstandingMessages: 100,
		NumGoroutines:          5,
		SubscriptionTimeout:    20 * time.Second,
		StopTimeout:            30 * time.Second,
	}
}

// GooglePubsubConsumer feeds messages from a Pub/Sub subscription into a channel.
type GooglePubsubConsumer struct {
	subscription       *pubsub.Subscription
	logger             zerolog.Logger
	outputChan         chan Message
	stopTimeout        time.Duration
	stopOnce           sync.Once
	startOnce          sync.Once
	cancelSubscription context.CancelFunc
	doneChan           chan struct{}
}

// NewGooglePubsubConsumer checks that the subscription exists and returns a
// consumer for it. Nothing is received until Start is called.
func NewGooglePubsubConsumer(cfg *GooglePubsubConsumerConfig, client *pubsub.Client, logger zerolog.Logger) (*GooglePubsubConsumer, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil")
	}
	if cfg == nil || cfg.SubscriptionID == "" {
		return nil, errors.New("subscription id is required")
	}
	if cfg.MaxOutstandingMessages <= 0 {
		cfg.MaxOutstandingMessages = 100
	}
	if cfg.SubscriptionTimeout <= 0 {
		cfg.SubscriptionTimeout = 20 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}

	sub := client.Subscription(cfg.SubscriptionID)

	existsCtx, cancel := context.WithTimeout(context.Background(), cfg.SubscriptionTimeout)
	defer cancel()
	exists, err := sub.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for subscription %s: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("subscription %s does not exist", cfg.SubscriptionID)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	if cfg.NumGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines
	}

	return &GooglePubsubConsumer{
		subscription: sub,
		logger:       logger.With().Str("component", "GooglePubsubConsumer").Str("subscription_id", cfg.SubscriptionID).Logger(),
		outputChan:   make(chan Message, cfg.MaxOutstandingMessages),
		stopTimeout:  cfg.StopTimeout,
		doneChan:     make(chan struct{}),
	}, nil
}

// Messages implements MessageConsumer.
func (c *GooglePubsubConsumer) Messages() <-chan Message { return c.outputChan }

// Done implements MessageConsumer.
func (c *GooglePubsubConsumer) Done() <-chan struct{} { return c.doneChan }

// Start launches the Receive loop. Cancelling ctx or calling Stop ends it.
func (c *GooglePubsubConsumer) Start(ctx context.Context) error {
	started := false
	c.startOnce.Do(func() {
		started = true
		receiveCtx, cancel := context.WithCancel(ctx)
		c.cancelSubscription = cancel
		go c.receive(receiveCtx)
	})
	if !started {
		return errors.New("consumer already started")
	}
	c.logger.Info().Msg("Started Pub/Sub message consumption.")
	return nil
}

func (c *GooglePubsubConsumer) receive(ctx context.Context) {
	defer close(c.doneChan)
	defer close(c.outputChan)

	err := c.subscription.Receive(ctx, func(receiveCtx context.Context, msg *pubsub.Message) {
		payload := make([]byte, len(msg.Data))
		copy(payload, msg.Data)

		consumed := Message{
			MessageData: MessageData{
				ID:          msg.ID,
				Payload:     payload,
				PublishTime: msg.PublishTime,
			},
			Attributes: msg.Attributes,
			Ack:        msg.Ack,
			Nack:       msg.Nack,
		}

		select {
		case c.outputChan <- consumed:
		case <-receiveCtx.Done():
			msg.Nack()
			c.logger.Warn().Str("msg_id", msg.ID).Msg("Consumer stopping, message Nacked.")
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error().Err(err).Msg("Pub/Sub Receive exited with an error.")
	}
	c.logger.Info().Msg("Pub/Sub Receive loop stopped.")
}

// Stop cancels the Receive loop and waits for it to exit, bounded by ctx and
// the configured stop timeout.
func (c *GooglePubsubConsumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		// A consumer stopped before Start can never be started.
		c.startOnce.Do(func() {})
		if c.cancelSubscription == nil {
			close(c.outputChan)
			close(c.doneChan)
			return
		}
		c.cancelSubscription()

		timer := time.NewTimer(c.stopTimeout)
		defer timer.Stop()
		select {
		case <-c.doneChan:
			c.logger.Info().Msg("Pub/Sub consumer stopped.")
		case <-ctx.Done():
			err = ctx.Err()
		case <-timer.C:
			err = errors.New("timed out waiting for Pub/Sub Receive to stop")
		}
	})
	return err
}
