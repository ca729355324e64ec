package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-primefactors/pkg/bqstore"
	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/illmade-knight/go-primefactors/pkg/icestore"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/illmade-knight/go-primefactors/pkg/microservice"
	"github.com/spf13/cobra"
)

const (
	sinkBigQuery = "bigquery"
	sinkGCS      = "gcs"
)

func newArchiveCmd(a *app) *cobra.Command {
	var sink string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive published factor results to BigQuery or GCS",
		Long: "archive reads factor results from the results subscription and writes them " +
			"to BigQuery rows or gzip-compressed JSON lines in GCS. Each sink needs its own " +
			"subscription, so one process runs one sink.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateArchive(); err != nil {
				return err
			}
			resolved, err := a.resolveSink(sink)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.archive(ctx, resolved)
		},
	}
	cmd.Flags().StringVar(&sink, "sink", "", "bigquery or gcs; defaults to whichever is configured, preferring bigquery")
	return cmd
}

func (a *app) resolveSink(sink string) (string, error) {
	archive := a.cfg.Archive
	switch sink {
	case "":
		if archive.BigQuery.TableID != "" {
			return sinkBigQuery, nil
		}
		return sinkGCS, nil
	case sinkBigQuery:
		if archive.BigQuery.DatasetID == "" || archive.BigQuery.TableID == "" {
			return "", fmt.Errorf("sink %s needs archive.bigquery.dataset_id and table_id", sink)
		}
	case sinkGCS:
		if archive.GCS.BucketName == "" {
			return "", fmt.Errorf("sink %s needs archive.gcs.bucket_name", sink)
		}
	default:
		return "", fmt.Errorf("unknown sink %q", sink)
	}
	return sink, nil
}

func (a *app) archive(ctx context.Context, sink string) error {
	cfg := a.cfg
	logger := a.logger.With().Str("sink", sink).Logger()

	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, a.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create pubsub client: %w", err)
	}
	defer func() { _ = psClient.Close() }()

	consumer, err := messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Archive.ResultsSubscription), psClient, logger)
	if err != nil {
		return err
	}

	var service *messagepipeline.BatchingService[factorservice.FactorRecord]
	switch sink {
	case sinkBigQuery:
		bqCfg := cfg.Archive.BigQuery
		if bqCfg.CredentialsFile == "" {
			bqCfg.CredentialsFile = cfg.CredentialsFile
		}
		bqClient, err := bqstore.NewProductionBigQueryClient(ctx, cfg.ProjectID, bqCfg.CredentialsFile, logger)
		if err != nil {
			return err
		}
		defer func() { _ = bqClient.Close() }()
		inserter, err := bqstore.NewBigQueryInserter[factorservice.FactorRecord](ctx, bqClient, &bqCfg, logger)
		if err != nil {
			return err
		}
		service, err = bqstore.NewFactorArchiveService(cfg.Archive.Batching, consumer, inserter, logger)
		if err != nil {
			return err
		}
	case sinkGCS:
		gcsClient, err := storage.NewClient(ctx, a.clientOptions()...)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		defer func() { _ = gcsClient.Close() }()
		service, err = icestore.NewFactorIceStoreService(
			cfg.Archive.Batching, consumer, icestore.NewGCSClientAdapter(gcsClient), cfg.Archive.GCS, logger)
		if err != nil {
			return err
		}
	}

	health := healthServer{microservice.NewBaseServer(logger, cfg.HTTPPort)}
	return runUntilDone(ctx, health, []startStopper{service}, nil, shutdownTimeout)
}

// healthServer exposes only /healthz, for archive workers.
type healthServer struct {
	*microservice.BaseServer
}

func (h healthServer) Start(context.Context) error {
	return h.BaseServer.Start()
}
