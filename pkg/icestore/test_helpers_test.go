package icestore

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/stretchr/testify/require"
)

// mockGCSWriter writes to an in-memory buffer. Like storage.Writer, Close
// commits the object only if the writer's context is still live.
type mockGCSWriter struct {
	ctx       context.Context
	buf       bytes.Buffer
	closed    bool
	committed bool
	closeErr  error
}

func (m *mockGCSWriter) Write(p []byte) (int, error) {
	if m.closed {
		return 0, errors.New("write on closed writer")
	}
	return m.buf.Write(p)
}

func (m *mockGCSWriter) Close() error {
	if m.closed {
		return errors.New("already closed")
	}
	m.closed = true
	if m.ctx != nil && m.ctx.Err() != nil {
		return m.ctx.Err()
	}
	if m.closeErr != nil {
		return m.closeErr
	}
	m.committed = true
	return nil
}

type mockGCSObjectHandle struct {
	writer *mockGCSWriter
}

func (m *mockGCSObjectHandle) NewWriter(ctx context.Context) GCSWriter {
	m.writer.ctx = ctx
	return m.writer
}

// mockGCSBucketHandle stores created objects by name.
type mockGCSBucketHandle struct {
	mu       sync.Mutex
	objects  map[string]*mockGCSObjectHandle
	closeErr error
}

func (m *mockGCSBucketHandle) Object(name string) GCSObjectHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]*mockGCSObjectHandle)
	}
	if _, ok := m.objects[name]; !ok {
		m.objects[name] = &mockGCSObjectHandle{writer: &mockGCSWriter{closeErr: m.closeErr}}
	}
	return m.objects[name]
}

func (m *mockGCSBucketHandle) objectNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *mockGCSBucketHandle) object(name string) *mockGCSWriter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[name].writer
}

type mockGCSClient struct {
	bucket *mockGCSBucketHandle
}

func newMockGCSClient() *mockGCSClient {
	return &mockGCSClient{bucket: &mockGCSBucketHandle{}}
}

func (m *mockGCSClient) Bucket(_ string) GCSBucketHandle {
	return m.bucket
}

// decodeJSONLines gunzips data and decodes one T per line.
func decodeJSONLines[T any](t *testing.T, data []byte) []T {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = gz.Close() }()

	var out []T
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var v T
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &v))
		out = append(out, v)
	}
	require.NoError(t, scanner.Err())
	return out
}

// MockMessageConsumer is a channel-backed MessageConsumer.
type MockMessageConsumer struct {
	msgChan  chan messagepipeline.Message
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewMockMessageConsumer(bufferSize int) *MockMessageConsumer {
	return &MockMessageConsumer{
		msgChan:  make(chan messagepipeline.Message, bufferSize),
		doneChan: make(chan struct{}),
	}
}

func (m *MockMessageConsumer) Messages() <-chan messagepipeline.Message { return m.msgChan }
func (m *MockMessageConsumer) Start(_ context.Context) error            { return nil }
func (m *MockMessageConsumer) Done() <-chan struct{}                    { return m.doneChan }
func (m *MockMessageConsumer) Push(msg messagepipeline.Message)         { m.msgChan <- msg }
func (m *MockMessageConsumer) Stop(_ context.Context) error {
	m.stopOnce.Do(func() {
		close(m.msgChan)
		close(m.doneChan)
	})
	return nil
}
