// Package audit implements the append-only diagnostics log of the enclave
// core. Events are written as one JSON object per line so the log can be
// tailed, shipped, or replayed with standard tooling.
package audit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// DefaultFileName is the log file created inside the log directory.
const DefaultFileName = "agent.log"

// timestampLayout is human-readable with second precision; entries are meant
// to be read by operators, not parsed back into time values.
const timestampLayout = "2006-01-02 15:04:05"

// Event is a single audit record. Events are immutable once written and are
// never merged or rewritten; ordering in the file is write order.
type Event struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
}

// Log appends structured events to a durable file. Appends are serialized by
// an internal mutex so concurrent writers cannot interleave partial lines.
type Log struct {
	mu   sync.Mutex
	path string
	f    *os.File
	now  func() time.Time
}

// Options configure a Log.
type Options struct {
	// FileName overrides DefaultFileName inside the log directory.
	FileName string
	// Now overrides the clock, used by tests for deterministic timestamps.
	Now func() time.Time
}

// Open creates (if necessary) the log directory and opens the log file for
// appending. The file is never truncated.
func Open(dir string, optFns ...func(o *Options)) (*Log, error) {
	opts := Options{FileName: DefaultFileName, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, opts.FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Log{path: path, f: f, now: opts.Now}, nil
}

// Path returns the location of the underlying log file.
func (l *Log) Path() string { return l.path }

// Record appends one event with the current timestamp. A nil data map is
// recorded as an empty object so every line has the same shape.
func (l *Log) Record(kind string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}

	entry := Event{
		Timestamp: l.now().Format(timestampLayout),
		Event:     kind,
		Data:      data,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Tail returns the last n lines verbatim, oldest first. If fewer than n lines
// exist all of them are returned. The underlying file is not mutated.
func (l *Log) Tail(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	// The log is small enough to scan forward; a ring buffer keeps only the
	// last n lines in memory.
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return ring, nil
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
