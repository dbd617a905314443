package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestLog_RecordWritesOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(filepath.Join(dir, "logs"), func(o *Options) { o.Now = fixedClock() })
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Record("request_received", map[string]any{"prompt": "ping"}))
	require.NoError(t, log.Record("response_generated", nil))

	raw, err := os.ReadFile(log.Path())
	require.NoError(t, err)

	lines, err := log.Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, string(raw), lines[0]+"\n"+lines[1]+"\n")

	var first Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "2026-03-14 09:26:53", first.Timestamp)
	assert.Equal(t, "request_received", first.Event)
	assert.Equal(t, "ping", first.Data["prompt"])

	var second Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "response_generated", second.Event)
	assert.NotNil(t, second.Data, "nil data must be recorded as an empty object")
	assert.Empty(t, second.Data)
}

func TestLog_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "logs")
	log, err := Open(dir)
	require.NoError(t, err)
	defer log.Close()

	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestLog_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	log1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, log1.Record("first", nil))
	require.NoError(t, log1.Close())

	log2, err := Open(dir)
	require.NoError(t, err)
	defer log2.Close()
	require.NoError(t, log2.Record("second", nil))

	lines, err := log2.Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 2, "reopening must never truncate prior lines")
}

func TestLog_TailReturnsLastNOldestFirst(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	for i := 0; i < 7; i++ {
		require.NoError(t, log.Record(fmt.Sprintf("event_%d", i), nil))
	}

	lines, err := log.Tail(3)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for i, want := range []string{"event_4", "event_5", "event_6"} {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &ev))
		assert.Equal(t, want, ev.Event)
	}

	// fewer lines than requested returns all of them
	all, err := log.Tail(100)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	none, err := log.Tail(0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLog_ConcurrentRecordKeepsLineIntegrity(t *testing.T) {
	log, err := Open(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = log.Record("tick", map[string]any{"writer": w, "seq": i})
			}
		}(w)
	}
	wg.Wait()

	lines, err := log.Tail(writers * perWriter)
	require.NoError(t, err)
	require.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev), "every line must be complete JSON")
	}
}
