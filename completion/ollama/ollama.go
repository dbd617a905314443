// Package ollama provides a Completer backed by a local Ollama server. It
// speaks the plain /api/generate HTTP endpoint directly since Ollama needs no
// SDK: one JSON request, one JSON response.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/adapsys/enclave/completion"
)

// DefaultURL is used when neither an option nor OLLAMA_URL is set.
const DefaultURL = "http://localhost:11434/api/generate"

// Options configure the Ollama completer.
type Options struct {
	// URL of the generate endpoint. Defaults to OLLAMA_URL or DefaultURL.
	URL string
	// Model identifier passed to the server.
	Model string
	// Instruction is an optional system prompt prepended to every request.
	Instruction string
	// MaxTokens bounds the generated output (num_predict). Zero leaves the
	// server default in place.
	MaxTokens int
	// Timeout for the whole HTTP round trip.
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Completer calls an Ollama server.
type Completer struct {
	client *http.Client
	opts   Options
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options *requestOptions `json:"options,omitempty"`
}

type requestOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// New constructs an Ollama completer with optional overrides.
func New(optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:   "tinydolphin:1.1b",
		Timeout: 60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.URL == "" {
		opts.URL = os.Getenv("OLLAMA_URL")
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Completer{client: client, opts: opts}
}

// Complete implements completion.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  c.opts.Model,
		Prompt: prompt,
		System: c.opts.Instruction,
		Stream: false,
	}
	if c.opts.MaxTokens > 0 {
		reqBody.Options = &requestOptions{NumPredict: c.opts.MaxTokens}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &completion.BackendError{Provider: "ollama", Detail: "connection failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &completion.BackendError{Provider: "ollama", Status: resp.StatusCode, Detail: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &completion.BackendError{
			Provider: "ollama",
			Status:   resp.StatusCode,
			Detail:   strings.TrimSpace(string(body)),
		}
	}

	var gen generateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return "", &completion.BackendError{Provider: "ollama", Status: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	if gen.Error != "" {
		return "", &completion.BackendError{Provider: "ollama", Status: resp.StatusCode, Detail: gen.Error}
	}

	return strings.TrimSpace(gen.Response), nil
}
