package factorservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/rs/zerolog"
)

// FactorRecord is the archived form of a FactorResult. Numbers are decimal
// strings because BigQuery INT64 is signed.
type FactorRecord struct {
	RequestID   string    `bigquery:"request_id" json:"request_id"`
	MessageID   string    `bigquery:"message_id" json:"message_id"`
	Number      string    `bigquery:"number" json:"number"`
	Factors     []string  `bigquery:"factors" json:"factors"`
	FactorCount int       `bigquery:"factor_count" json:"factor_count"`
	Prime       bool      `bigquery:"prime" json:"prime"`
	ElapsedUS   int64     `bigquery:"elapsed_us" json:"elapsed_us"`
	ComputedAt  time.Time `bigquery:"computed_at" json:"computed_at"`
	PublishedAt time.Time `bigquery:"published_at" json:"published_at"`
}

// NewFactorRecord flattens a result for archival.
func NewFactorRecord(result *FactorResult, messageID string, publishedAt time.Time) *FactorRecord {
	sorted := result.Factors.Sorted()
	factors := make([]string, len(sorted))
	for i, f := range sorted {
		factors[i] = strconv.FormatUint(f, 10)
	}
	return &FactorRecord{
		RequestID:   result.RequestID,
		MessageID:   messageID,
		Number:      strconv.FormatUint(result.Number, 10),
		Factors:     factors,
		FactorCount: len(factors),
		Prime:       result.Prime,
		ElapsedUS:   result.Elapsed,
		ComputedAt:  result.ComputedAt,
		PublishedAt: publishedAt,
	}
}

// NewRecordTransformer decodes result messages into records. Messages that
// are not valid results are logged and skipped.
func NewRecordTransformer(logger zerolog.Logger) messagepipeline.MessageTransformer[FactorRecord] {
	log := logger.With().Str("component", "RecordTransformer").Logger()
	return func(_ context.Context, msg *messagepipeline.Message) (*FactorRecord, bool, error) {
		var result FactorResult
		if err := json.Unmarshal(msg.Payload, &result); err != nil {
			log.Warn().Err(err).Str("msg_id", msg.ID).Msg("Skipping message that is not a factor result.")
			return nil, true, nil
		}
		if result.Factors.Len() == 0 {
			log.Warn().Str("msg_id", msg.ID).Msg("Skipping result without factors.")
			return nil, true, nil
		}
		return NewFactorRecord(&result, msg.ID, msg.PublishTime), false, nil
	}
}

// RecordKey returns the value a record is partitioned by in archives, the
// day it was computed.
func RecordKey(r *FactorRecord) string {
	return fmt.Sprintf("%04d/%02d/%02d", r.ComputedAt.Year(), r.ComputedAt.Month(), r.ComputedAt.Day())
}
