package factorservice_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/illmade-knight/go-primefactors/pkg/primes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransformer(t *testing.T) {
	computed := time.Date(2026, 7, 4, 9, 30, 0, 0, time.UTC)
	published := computed.Add(time.Second)
	result := factorservice.FactorResult{
		RequestID:  "req-1",
		Number:     18446744073709551615,
		Factors:    primes.NewFactorSet(3, 5, 17, 257, 641, 65537, 6700417),
		ComputedAt: computed,
		Elapsed:    1500,
	}
	payload, err := json.Marshal(result)
	require.NoError(t, err)

	transformer := factorservice.NewRecordTransformer(zerolog.Nop())

	t.Run("Result becomes a record", func(t *testing.T) {
		msg := &messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "m-1", Payload: payload, PublishTime: published}}

		record, skip, err := transformer(context.Background(), msg)

		require.NoError(t, err)
		require.False(t, skip)
		assert.Equal(t, "req-1", record.RequestID)
		assert.Equal(t, "m-1", record.MessageID)
		assert.Equal(t, "18446744073709551615", record.Number)
		assert.Equal(t, []string{"3", "5", "17", "257", "641", "65537", "6700417"}, record.Factors)
		assert.Equal(t, 7, record.FactorCount)
		assert.False(t, record.Prime)
		assert.Equal(t, int64(1500), record.ElapsedUS)
		assert.True(t, computed.Equal(record.ComputedAt))
		assert.Equal(t, published, record.PublishedAt)
		assert.Equal(t, "2026/07/04", factorservice.RecordKey(record))
	})

	t.Run("Garbage is skipped", func(t *testing.T) {
		for _, body := range []string{"not json", `{"number": "5"}`, `{"number": "5", "factors": []}`} {
			msg := &messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "m-2", Payload: []byte(body)}}

			record, skip, err := transformer(context.Background(), msg)

			require.NoError(t, err)
			assert.True(t, skip, body)
			assert.Nil(t, record)
		}
	})
}

func TestFactorResult_JSONKeepsFullPrecision(t *testing.T) {
	result := factorservice.FactorResult{Number: 18446744073709551615, Factors: primes.NewFactorSet(3)}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"number":"18446744073709551615"`)

	var decoded factorservice.FactorResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.Number, decoded.Number)
}

func TestFactorResult_JSONKeepsLargeFactors(t *testing.T) {
	result := factorservice.FactorResult{
		Number:  18446744073709551557,
		Factors: primes.NewFactorSet(18446744073709551557),
		Prime:   true,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"factors":["18446744073709551557"]`)

	var decoded factorservice.FactorResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, result.Factors.Equal(decoded.Factors))
}
