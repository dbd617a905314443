package gateway

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adapsys/enclave/audit"
	"github.com/adapsys/enclave/completion"
	"github.com/adapsys/enclave/store"
)

type fixture struct {
	gw    *Gateway
	log   *audit.Log
	store *store.FileStore
	mock  *completion.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	log, err := audit.Open(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	st, err := store.NewFileStore(filepath.Join(dir, "memory", "memory.json"))
	require.NoError(t, err)

	mock := completion.NewMock()
	gw, err := New(mock, func(o *Options) {
		o.Audit = log
		o.Store = st
	})
	require.NoError(t, err)

	return &fixture{gw: gw, log: log, store: st, mock: mock}
}

func auditEvents(t *testing.T, log *audit.Log) []audit.Event {
	t.Helper()
	lines, err := log.Tail(100)
	require.NoError(t, err)
	events := make([]audit.Event, len(lines))
	for i, line := range lines {
		require.NoError(t, json.Unmarshal([]byte(line), &events[i]))
	}
	return events
}

func TestProcessRequest_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.mock.AddResponse("ping", "pong")

	got, err := f.gw.ProcessRequest(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)

	events := auditEvents(t, f.log)
	require.Len(t, events, 2, "exactly two audit events per request")
	assert.Equal(t, EventRequestReceived, events[0].Event)
	assert.Equal(t, "ping", events[0].Data["prompt"])
	assert.Equal(t, EventResponseGenerated, events[1].Event)
	assert.Equal(t, "pong", events[1].Data["response"])
	assert.Equal(t, events[0].Data["request_id"], events[1].Data["request_id"])

	state, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "pong", state[StateKeyLastResponse])
}

func TestProcessRequest_PersistsFullValueTruncatesLoggedCopy(t *testing.T) {
	f := newFixture(t)
	long := strings.Repeat("é", 450)
	f.mock.AddResponse("essay", long)

	got, err := f.gw.ProcessRequest(context.Background(), "essay")
	require.NoError(t, err)
	assert.Equal(t, long, got)

	state, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, long, state[StateKeyLastResponse], "stored copy is never truncated")

	events := auditEvents(t, f.log)
	require.Len(t, events, 2)
	logged, ok := events[1].Data["response"].(string)
	require.True(t, ok)
	assert.Equal(t, 200, len([]rune(logged)), "logged copy is capped at 200 characters")
	assert.True(t, strings.HasPrefix(long, logged))
}

func TestProcessRequest_OverwritesLastResponse(t *testing.T) {
	f := newFixture(t)
	f.mock.AddResponse("one", "first")
	f.mock.AddResponse("two", "second")

	_, err := f.gw.ProcessRequest(context.Background(), "one")
	require.NoError(t, err)
	_, err = f.gw.ProcessRequest(context.Background(), "two")
	require.NoError(t, err)

	state, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", state[StateKeyLastResponse])
}

func TestProcessRequest_BackendFailureIsRenderedAndPersisted(t *testing.T) {
	f := newFixture(t)
	f.mock.FailWith(&completion.BackendError{Provider: "ollama", Detail: "connection failed"})

	got, err := f.gw.ProcessRequest(context.Background(), "ping")
	require.NoError(t, err, "backend failures never raise to the caller")
	assert.True(t, strings.HasPrefix(got, "Error:"), "got %q", got)

	state, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, got, state[StateKeyLastResponse],
		"the rendered error is persisted exactly like a completion")

	events := auditEvents(t, f.log)
	require.Len(t, events, 2)
	assert.Equal(t, got, events[1].Data["response"])
}

func TestProcessRequest_DegradesWhenPersistenceFails(t *testing.T) {
	dir := t.TempDir()
	log, err := audit.Open(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	defer log.Close()

	mock := completion.NewMock()
	mock.AddResponse("ping", "pong")

	gw, err := New(mock, func(o *Options) {
		o.Audit = log
		o.Store = failingStore{}
	})
	require.NoError(t, err)

	got, err := gw.ProcessRequest(context.Background(), "ping")
	require.NoError(t, err, "a storage failure must not fail the request")
	assert.Equal(t, "pong", got)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	log, err := audit.Open(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)

	_, err = New(nil, func(o *Options) { o.Audit = log; o.Store = st })
	assert.Error(t, err)

	_, err = New(completion.NewMock(), func(o *Options) { o.Store = st })
	assert.Error(t, err)

	_, err = New(completion.NewMock(), func(o *Options) { o.Audit = log })
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Load() (map[string]any, error) { return nil, assert.AnError }
func (failingStore) Save(map[string]any) error     { return assert.AnError }
func (failingStore) Add(string, any) error         { return assert.AnError }
