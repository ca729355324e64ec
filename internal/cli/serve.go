package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/illmade-knight/go-primefactors/pkg/microservice"
	"github.com/illmade-knight/go-primefactors/pkg/primes"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve factorizations over HTTP and, if enabled, from Pub/Sub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	oracle, err := a.newOracle(ctx)
	if err != nil {
		return fmt.Errorf("failed to create primality oracle: %w", err)
	}
	defer func() { _ = oracle.Close() }()

	factorizer, err := primes.NewFactorizer(oracle)
	if err != nil {
		return err
	}

	var store *cache.CacheFallbackFetcher[uint64, factorservice.FactorDocument]
	if cfg.Results.Firestore.CollectionName != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.Results.Firestore.ProjectID, a.clientOptions()...)
		if err != nil {
			return fmt.Errorf("failed to create firestore client: %w", err)
		}
		defer func() { _ = fsClient.Close() }()
		store, err = factorservice.NewFirestoreResultStore(
			&cache.FallbackConfig{CacheWriteTimeout: cfg.Results.CacheWriteTimeout},
			&cfg.Results.Firestore, fsClient, factorizer, logger)
		if err != nil {
			return err
		}
	} else {
		store, err = factorservice.NewInMemoryResultStore(cfg.Results.CacheSize, factorizer, logger)
		if err != nil {
			return err
		}
	}
	// Closing the store also waits for pending write-backs.
	defer func() { _ = store.Close() }()

	var (
		psClient   *pubsub.Client
		results    messagepipeline.SimplePublisher
		deadLetter messagepipeline.SimplePublisher
		publishers []messagepipeline.SimplePublisher
	)
	if cfg.Pipeline.Enabled {
		psClient, err = pubsub.NewClient(ctx, cfg.ProjectID, a.clientOptions()...)
		if err != nil {
			return fmt.Errorf("failed to create pubsub client: %w", err)
		}
		defer func() { _ = psClient.Close() }()

		if cfg.Pipeline.ResultsTopic != "" {
			pub, err := messagepipeline.NewGoogleSimplePublisher(ctx,
				messagepipeline.NewGoogleSimplePublisherDefaults(cfg.Pipeline.ResultsTopic), psClient, logger)
			if err != nil {
				return err
			}
			results = pub
			publishers = append(publishers, pub)
		}
		if cfg.Pipeline.DeadLetterTopic != "" {
			pub, err := messagepipeline.NewGoogleSimplePublisher(ctx,
				messagepipeline.NewGoogleSimplePublisherDefaults(cfg.Pipeline.DeadLetterTopic), psClient, logger)
			if err != nil {
				return err
			}
			deadLetter = pub
			publishers = append(publishers, pub)
		}
	}

	svc, err := factorservice.NewService(store, results, deadLetter, logger)
	if err != nil {
		return err
	}
	if cfg.Pipeline.Enabled && cfg.Pipeline.DedupTTL > 0 {
		seen, err := a.newSeenRequests(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = seen.Close() }()
		svc.DeduplicateWith(seen)
	}
	server, err := microservice.NewFactorServer(&cfg.BaseConfig, svc, oracle, logger)
	if err != nil {
		return err
	}

	var pipelines []startStopper
	if cfg.Pipeline.Enabled {
		consumer, err := messagepipeline.NewGooglePubsubConsumer(
			messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Pipeline.RequestSubscription), psClient, logger)
		if err != nil {
			return err
		}
		pipeline, err := factorservice.NewFactorizationPipeline(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.Pipeline.NumWorkers}, consumer, svc, logger)
		if err != nil {
			return err
		}
		pipelines = append(pipelines, pipeline)
	}

	return runUntilDone(ctx, server, pipelines, publishers, shutdownTimeout)
}

// newSeenRequests remembers answered request ids in Redis when it is
// enabled, so that replicas share them, and in memory otherwise.
func (a *app) newSeenRequests(ctx context.Context) (factorservice.SeenRequests, error) {
	ttl := a.cfg.Pipeline.DedupTTL
	if !a.cfg.Redis.Enabled {
		return cache.NewInMemoryPresenceCache[string, time.Time](ttl), nil
	}
	redisCfg := a.cfg.Redis.RedisConfig
	redisCfg.KeyPrefix = "answered:"
	redisCfg.CacheTTL = ttl
	seen, err := cache.NewRedisPresenceCache[string, time.Time](ctx, &redisCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen-request cache: %w", err)
	}
	return seen, nil
}

// startStopper is the lifecycle shared by the pipeline services.
type startStopper interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// runUntilDone starts server and pipelines, then blocks until ctx is done and
// shuts everything down in order: pipelines, publishers, then the HTTP server.
func runUntilDone(
	ctx context.Context,
	server microservice.Service,
	pipelines []startStopper,
	publishers []messagepipeline.SimplePublisher,
	timeout time.Duration,
) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := server.Start(gctx); err != nil {
		return err
	}
	for i, p := range pipelines {
		if err := p.Start(gctx); err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()
			errs := []error{fmt.Errorf("failed to start pipeline: %w", err)}
			for _, started := range pipelines[:i] {
				errs = append(errs, started.Stop(shutdownCtx))
			}
			return errors.Join(append(errs, server.Shutdown(shutdownCtx))...)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		var errs []error
		for _, p := range pipelines {
			errs = append(errs, p.Stop(shutdownCtx))
		}
		for _, p := range publishers {
			errs = append(errs, p.Stop(shutdownCtx))
		}
		errs = append(errs, server.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})
	return g.Wait()
}
