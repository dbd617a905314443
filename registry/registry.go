package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/adapsys/enclave/logging"
)

// ErrNotRegistered is returned when executing or describing an unknown handler.
var ErrNotRegistered = fmt.Errorf("handler not registered")

// Handler is a named capability exposed through the registry. Arguments
// arrive as a JSON-shaped map so handlers can be driven from the HTTP
// surface or the task queue without per-handler plumbing.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Entry describes a registered handler.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps names to handlers. Registration is explicit; there is no
// filesystem discovery. Safe for concurrent use.
type Registry struct {
	logger logging.Logger

	mu      sync.RWMutex
	entries map[string]registered
}

type registered struct {
	handler     Handler
	description string
}

// Options configure a Registry.
type Options struct {
	// Logger records registrations and executions. Defaults to NoOpLogger.
	Logger logging.Logger
}

// New constructs an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{logger: opts.Logger, entries: make(map[string]registered)}
}

// Register adds (or replaces) a handler under name.
func (r *Registry) Register(name, description string, h Handler) {
	r.mu.Lock()
	r.entries[name] = registered{handler: h, description: description}
	r.mu.Unlock()

	r.logger.Info("registered handler", "name", name)
}

// Execute runs the named handler with the given arguments.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}

	r.logger.Debug("executing handler", "name", name)
	result, err := entry.handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("handler %q: %w", name, err)
	}
	return result, nil
}

// List returns the registered handler names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the entry for a registered handler.
func (r *Registry) Describe(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return Entry{Name: name, Description: entry.description}, nil
}
