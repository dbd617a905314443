package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/adapsys/enclave/audit"
	"github.com/adapsys/enclave/completion"
	"github.com/adapsys/enclave/logging"
	"github.com/adapsys/enclave/store"
)

const (
	// EventRequestReceived is recorded before the backend call.
	EventRequestReceived = "request_received"
	// EventResponseGenerated is recorded after the result is persisted.
	EventResponseGenerated = "response_generated"

	// StateKeyLastResponse is where the most recent result is persisted.
	StateKeyLastResponse = "last_response"

	// responseLogLimit bounds the response excerpt in the audit log. It
	// bounds log-entry size only; the persisted copy is never truncated.
	responseLogLimit = 200
)

// Gateway services a single textual request: audit intake, call the backend,
// persist the result, audit completion, return the result. All collaborators
// are injected so tests and tenants get isolated instances.
type Gateway struct {
	completer completion.Completer
	log       *audit.Log
	store     store.Store
	logger    logging.Logger
}

// Options hold the Gateway's injected collaborators.
type Options struct {
	// Audit receives the two per-request events. Required.
	Audit *audit.Log
	// Store persists the last response. Required.
	Store store.Store
	// Logger receives operational messages about degraded persistence or
	// auditing. Defaults to NoOpLogger.
	Logger logging.Logger
}

// New constructs a Gateway around a Completer.
func New(completer completion.Completer, optFns ...func(o *Options)) (*Gateway, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if completer == nil {
		return nil, fmt.Errorf("gateway: completer is required")
	}
	if opts.Audit == nil {
		return nil, fmt.Errorf("gateway: audit log is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("gateway: state store is required")
	}
	return &Gateway{
		completer: completer,
		log:       opts.Audit,
		store:     opts.Store,
		logger:    opts.Logger,
	}, nil
}

// ProcessRequest forwards prompt to the completion backend and returns the
// result text.
//
// Backend failures are rendered as "Error: <detail>" and from that point on
// treated exactly like a successful completion: persisted under
// "last_response", audited, and returned with a nil error. Callers that need
// to branch on the failure kind should use the Completer directly.
//
// Audit and persistence failures degrade gracefully: they are logged through
// the injected Logger and the result is still returned. There is no
// transactionality across the steps.
func (g *Gateway) ProcessRequest(ctx context.Context, prompt string) (string, error) {
	requestID := uuid.NewString()

	if err := g.log.Record(EventRequestReceived, map[string]any{
		"request_id": requestID,
		"prompt":     prompt,
	}); err != nil {
		g.logger.Warn("audit record failed", "event", EventRequestReceived, "error", err)
	}

	result, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		// Rendered failures flow through the same persistence and audit
		// path as real completions; the stored and returned values are
		// indistinguishable from generated text except by prefix.
		result = "Error: " + err.Error()
		g.logger.Error("completion failed", "request_id", requestID, "error", err)
	}

	if err := g.store.Add(StateKeyLastResponse, result); err != nil {
		g.logger.Warn("persist last response failed", "request_id", requestID, "error", err)
	}

	if err := g.log.Record(EventResponseGenerated, map[string]any{
		"request_id": requestID,
		"response":   truncate(result, responseLogLimit),
	}); err != nil {
		g.logger.Warn("audit record failed", "event", EventResponseGenerated, "error", err)
	}

	return result, nil
}

// truncate returns the first n characters of s. Truncation operates on
// characters, not bytes, so a multibyte rune is never cut in half.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
