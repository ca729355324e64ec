// Package config loads the primefactors service configuration from YAML and
// the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-primefactors/pkg/bqstore"
	"github.com/illmade-knight/go-primefactors/pkg/cache"
	"github.com/illmade-knight/go-primefactors/pkg/icestore"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/illmade-knight/go-primefactors/pkg/microservice"
	"github.com/illmade-knight/go-primefactors/pkg/primes"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// RedisConfig enables the shared primality cache.
type RedisConfig struct {
	Enabled           bool `yaml:"enabled"`
	cache.RedisConfig `yaml:",inline"`
}

// ResultsConfig selects where factorizations are stored. With no Firestore
// collection they are kept in an in-memory LRU of CacheSize entries.
type ResultsConfig struct {
	CacheSize         int                   `yaml:"cache_size"`
	CacheWriteTimeout time.Duration         `yaml:"cache_write_timeout"`
	Firestore         cache.FirestoreConfig `yaml:"firestore"`
}

// PipelineConfig configures the Pub/Sub factorization pipeline.
type PipelineConfig struct {
	Enabled             bool   `yaml:"enabled"`
	RequestSubscription string `yaml:"request_subscription"`
	ResultsTopic        string `yaml:"results_topic"`
	DeadLetterTopic     string `yaml:"dead_letter_topic"`
	NumWorkers          int    `yaml:"num_workers"`
	// DedupTTL is how long answered request ids are remembered. Zero turns
	// deduplication off.
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

// ArchiveConfig configures the archive command. Either sink may be left
// unconfigured, but not both.
type ArchiveConfig struct {
	ResultsSubscription string                                `yaml:"results_subscription"`
	BigQuery            bqstore.BigQueryDatasetConfig         `yaml:"bigquery"`
	GCS                 icestore.GCSBatchUploaderConfig       `yaml:"gcs"`
	Batching            messagepipeline.BatchingServiceConfig `yaml:"batching"`
}

// Config is the full service configuration.
type Config struct {
	microservice.BaseConfig `yaml:",inline"`

	Oracle   primes.OracleConfig `yaml:"oracle"`
	Redis    RedisConfig         `yaml:"redis"`
	Results  ResultsConfig       `yaml:"results"`
	Pipeline PipelineConfig      `yaml:"pipeline"`
	Archive  ArchiveConfig       `yaml:"archive"`
}

// Default returns the configuration used when nothing else is given: an
// unbounded prewarmed oracle, no Redis, results in memory, no pipeline.
func Default() *Config {
	return &Config{
		BaseConfig: microservice.BaseConfig{
			LogLevel:    "info",
			HTTPPort:    ":8080",
			ServiceName: "primefactors",
		},
		Redis: RedisConfig{
			RedisConfig: cache.RedisConfig{
				Addr:      "localhost:6379",
				CacheTTL:  24 * time.Hour,
				KeyPrefix: "isprime:",
			},
		},
		Results: ResultsConfig{
			CacheSize:         10000,
			CacheWriteTimeout: 5 * time.Second,
		},
		Pipeline: PipelineConfig{
			NumWorkers: 5,
			DedupTTL:   10 * time.Minute,
		},
		Archive: ArchiveConfig{
			Batching: messagepipeline.BatchingServiceConfig{
				NumWorkers:    2,
				BatchSize:     500,
				FlushInterval: time.Minute,
			},
		},
	}
}

// Load builds a Config from the defaults, the YAML file at path (if not
// empty), and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("PRIMEFACTORS_LOG_LEVEL", &c.LogLevel)
	setString("PRIMEFACTORS_HTTP_PORT", &c.HTTPPort)
	setString("GCP_PROJECT_ID", &c.ProjectID)
	setString("GOOGLE_APPLICATION_CREDENTIALS", &c.CredentialsFile)
	setString("PRIMEFACTORS_REQUEST_SUBSCRIPTION", &c.Pipeline.RequestSubscription)
	setString("PRIMEFACTORS_RESULTS_TOPIC", &c.Pipeline.ResultsTopic)
	setString("PRIMEFACTORS_DEAD_LETTER_TOPIC", &c.Pipeline.DeadLetterTopic)
	setString("PRIMEFACTORS_FIRESTORE_COLLECTION", &c.Results.Firestore.CollectionName)

	if v, ok := os.LookupEnv("REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := os.LookupEnv("PRIMEFACTORS_CACHE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRIMEFACTORS_CACHE_SIZE: %w", err)
		}
		c.Oracle.CacheSize = n
	}
	if v, ok := os.LookupEnv("PRIMEFACTORS_PIPELINE_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PRIMEFACTORS_PIPELINE_ENABLED: %w", err)
		}
		c.Pipeline.Enabled = enabled
	}

	if c.Results.Firestore.ProjectID == "" {
		c.Results.Firestore.ProjectID = c.ProjectID
	}
	return nil
}

// Validate reports the first inconsistency in the configuration.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.HTTPPort == "" {
		return errors.New("http_port is required")
	}
	if c.Oracle.CacheSize < 0 {
		return fmt.Errorf("oracle.cache_size must not be negative, got %d", c.Oracle.CacheSize)
	}
	if c.Results.CacheSize <= 0 && c.Results.Firestore.CollectionName == "" {
		return errors.New("results.cache_size must be positive when no firestore collection is set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if c.Results.Firestore.CollectionName != "" && c.Results.Firestore.ProjectID == "" {
		return errors.New("project_id is required for the firestore result store")
	}
	if c.Pipeline.Enabled {
		if c.ProjectID == "" {
			return errors.New("project_id is required when the pipeline is enabled")
		}
		if c.Pipeline.RequestSubscription == "" {
			return errors.New("pipeline.request_subscription is required when the pipeline is enabled")
		}
		if c.Pipeline.DedupTTL < 0 {
			return fmt.Errorf("pipeline.dedup_ttl must not be negative, got %s", c.Pipeline.DedupTTL)
		}
	}
	return nil
}

// ValidateArchive checks the settings the archive command needs.
func (c *Config) ValidateArchive() error {
	if c.ProjectID == "" {
		return errors.New("project_id is required for archiving")
	}
	if c.Archive.ResultsSubscription == "" {
		return errors.New("archive.results_subscription is required")
	}
	if c.Archive.BigQuery.TableID == "" && c.Archive.GCS.BucketName == "" {
		return errors.New("archive needs a bigquery table or a gcs bucket")
	}
	return nil
}
