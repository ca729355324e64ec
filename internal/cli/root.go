// Package cli implements the primefactors command line.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/illmade-knight/go-primefactors/internal/config"
	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/illmade-knight/go-primefactors/pkg/primes"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger zerolog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "primefactors",
		Short:         "Distinct prime factors of 64-bit integers",
		Long:          "primefactors finds the distinct prime factors of unsigned 64-bit integers, backed by a memoized primality test.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides the config file")

	root.AddCommand(
		newFactorCmd(a),
		newIsPrimeCmd(a),
		newServeCmd(a),
		newArchiveCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	a.cfg = cfg
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", cfg.ServiceName).Logger()
	return nil
}

// newOracle builds the primality oracle, with Redis between the in-process
// cache and trial division when enabled.
func (a *app) newOracle(ctx context.Context) (*primes.Oracle, error) {
	var source cache.Fetcher[uint64, bool]
	if a.cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache[uint64, bool](ctx, &a.cfg.Redis.RedisConfig, a.logger, primes.TrialDivisionSource())
		if err != nil {
			return nil, err
		}
		source = redisCache
	}
	oracle, err := primes.NewOracle(ctx, a.cfg.Oracle, source, a.logger)
	if err != nil {
		if source != nil {
			_ = source.Close()
		}
		return nil, err
	}
	return oracle, nil
}

// clientOptions returns the Google client options for the configured
// credentials. Without a credentials file the clients use ADC.
func (a *app) clientOptions() []option.ClientOption {
	if a.cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(a.cfg.CredentialsFile)}
}
