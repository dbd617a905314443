package completion

import (
	"context"
	"fmt"
)

// Completer is the minimal interface the gateway needs to drive text
// generation: one prompt in, one trimmed completion out. Failures are
// returned as errors (ideally a *BackendError) rather than encoded into the
// completion text; the caller decides how to render them.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BackendError is a structured failure from a completion backend. It keeps
// the provider, the HTTP status when one was observed, and a human-readable
// detail, so callers can branch on the kind of failure instead of parsing
// sentinel strings.
type BackendError struct {
	Provider string
	Status   int
	Detail   string
	Err      error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend error (status %d): %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s backend error: %s", e.Provider, e.Detail)
}

// Unwrap exposes the underlying transport or SDK error, if any.
func (e *BackendError) Unwrap() error { return e.Err }

// Mock is a lightweight in-memory Completer for tests and examples.
type Mock struct {
	responses map[string]string
	err       error
}

// NewMock constructs an empty Mock.
func NewMock() *Mock {
	return &Mock{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *Mock) AddResponse(prompt, response string) { m.responses[prompt] = response }

// FailWith makes every Complete call return the given error.
func (m *Mock) FailWith(err error) { m.err = err }

// Complete implements Completer.
func (m *Mock) Complete(_ context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}
