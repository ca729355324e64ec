package icestore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(number string, day int, factors ...string) *factorservice.FactorRecord {
	return &factorservice.FactorRecord{
		Number:     number,
		Factors:    factors,
		ComputedAt: time.Date(2026, 5, day, 10, 0, 0, 0, time.UTC),
	}
}

func TestGCSBatchUploader_GroupsByKey(t *testing.T) {
	// Arrange
	client := newMockGCSClient()
	cfg := GCSBatchUploaderConfig{BucketName: "archive", ObjectPrefix: "factors"}
	uploader, err := NewGCSBatchUploader[factorservice.FactorRecord](client, cfg, factorservice.RecordKey, zerolog.Nop())
	require.NoError(t, err)

	batch := []*factorservice.FactorRecord{
		record("360", 1, "2", "3", "5"),
		record("97", 1, "97"),
		record("77", 2, "7", "11"),
		nil,
	}

	// Act
	require.NoError(t, uploader.UploadBatch(context.Background(), batch))
	require.NoError(t, uploader.Close())

	// Assert
	names := client.bucket.objectNames()
	require.Len(t, names, 2)
	assert.True(t, strings.HasPrefix(names[0], "factors/2026/05/01/"), names[0])
	assert.True(t, strings.HasPrefix(names[1], "factors/2026/05/02/"), names[1])

	for _, name := range names {
		assert.True(t, strings.HasSuffix(name, ".jsonl.gz"))
		id := strings.TrimSuffix(name[strings.LastIndex(name, "/")+1:], ".jsonl.gz")
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "object name should end in a uuid")

		writer := client.bucket.object(name)
		assert.True(t, writer.closed)
		assert.True(t, writer.committed)
	}

	day1 := decodeJSONLines[factorservice.FactorRecord](t, client.bucket.object(names[0]).buf.Bytes())
	require.Len(t, day1, 2)
	assert.Equal(t, "360", day1[0].Number)
	assert.Equal(t, []string{"97"}, day1[1].Factors)

	day2 := decodeJSONLines[factorservice.FactorRecord](t, client.bucket.object(names[1]).buf.Bytes())
	require.Len(t, day2, 1)
	assert.Equal(t, "77", day2[0].Number)
}

func TestGCSBatchUploader_CloseError(t *testing.T) {
	client := newMockGCSClient()
	client.bucket.closeErr = errors.New("precondition failed")
	uploader, err := NewGCSBatchUploader[factorservice.FactorRecord](client, GCSBatchUploaderConfig{BucketName: "b"}, factorservice.RecordKey, zerolog.Nop())
	require.NoError(t, err)

	err = uploader.UploadBatch(context.Background(), []*factorservice.FactorRecord{record("6", 3, "2", "3")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "precondition failed")
}

// unencodable fails JSON encoding when Bad is set.
type unencodable struct {
	Bad bool
}

func (u unencodable) MarshalJSON() ([]byte, error) {
	if u.Bad {
		return nil, errors.New("cannot encode")
	}
	return []byte(`{}`), nil
}

func TestGCSBatchUploader_EncodeErrorAbortsObject(t *testing.T) {
	// Arrange
	client := newMockGCSClient()
	keyFn := func(*unencodable) string { return "k" }
	uploader, err := NewGCSBatchUploader[unencodable](client, GCSBatchUploaderConfig{BucketName: "b"}, keyFn, zerolog.Nop())
	require.NoError(t, err)

	// Act
	err = uploader.UploadBatch(context.Background(), []*unencodable{{}, {Bad: true}})

	// Assert
	require.ErrorContains(t, err, "cannot encode")
	names := client.bucket.objectNames()
	require.Len(t, names, 1)
	writer := client.bucket.object(names[0])
	assert.True(t, writer.closed, "the writer is released")
	assert.False(t, writer.committed, "a partial object is never committed")
}

func TestGCSBatchUploader_ObjectName(t *testing.T) {
	uploader, err := NewGCSBatchUploader[factorservice.FactorRecord](newMockGCSClient(), GCSBatchUploaderConfig{BucketName: "b", ObjectPrefix: "p"}, factorservice.RecordKey, zerolog.Nop())
	require.NoError(t, err)
	id := uuid.MustParse("5b0c1c47-8b43-4d7c-9a43-1b1f1f0a0a0a")

	assert.Equal(t, "p/2026/05/01/5b0c1c47-8b43-4d7c-9a43-1b1f1f0a0a0a.jsonl.gz", uploader.ObjectName("2026/05/01", id))
}

func TestNewGCSBatchUploader_Validation(t *testing.T) {
	_, err := NewGCSBatchUploader[factorservice.FactorRecord](nil, GCSBatchUploaderConfig{BucketName: "b"}, factorservice.RecordKey, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewGCSBatchUploader[factorservice.FactorRecord](newMockGCSClient(), GCSBatchUploaderConfig{}, factorservice.RecordKey, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewGCSBatchUploader[factorservice.FactorRecord](newMockGCSClient(), GCSBatchUploaderConfig{BucketName: "b"}, nil, zerolog.Nop())
	assert.Error(t, err)
}
