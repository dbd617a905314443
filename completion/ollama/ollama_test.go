package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adapsys/enclave/completion"
)

// Interface compliance (compile-time assertion)
var _ completion.Completer = (*Completer)(nil)

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tinydolphin:1.1b", req.Model)
		assert.Equal(t, "ping", req.Prompt)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(generateResponse{Response: "  pong \n"})
	}))
	defer srv.Close()

	c := New(func(o *Options) { o.URL = srv.URL })
	got, err := c.Complete(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got, "completion text must be trimmed")
}

func TestComplete_SystemInstructionAndBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "You are terse.", req.System)
		require.NotNil(t, req.Options)
		assert.Equal(t, 128, req.Options.NumPredict)

		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	}))
	defer srv.Close()

	c := New(func(o *Options) {
		o.URL = srv.URL
		o.Instruction = "You are terse."
		o.MaxTokens = 128
	})
	_, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
}

func TestComplete_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(func(o *Options) { o.URL = srv.URL })
	_, err := c.Complete(context.Background(), "ping")
	require.Error(t, err)

	var be *completion.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "ollama", be.Provider)
	assert.Equal(t, http.StatusNotFound, be.Status)
	assert.Equal(t, "model not found", be.Detail)
}

func TestComplete_ConnectionRefused(t *testing.T) {
	// A server that is immediately closed gives us a dead address.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := New(func(o *Options) { o.URL = srv.URL })
	_, err := c.Complete(context.Background(), "ping")
	require.Error(t, err)

	var be *completion.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 0, be.Status)
	assert.NotNil(t, be.Unwrap())
}

func TestComplete_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{truncated"))
	}))
	defer srv.Close()

	c := New(func(o *Options) { o.URL = srv.URL })
	_, err := c.Complete(context.Background(), "ping")

	var be *completion.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "malformed response", be.Detail)
}

func TestComplete_InBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Error: "out of memory"})
	}))
	defer srv.Close()

	c := New(func(o *Options) { o.URL = srv.URL })
	_, err := c.Complete(context.Background(), "ping")

	var be *completion.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "out of memory", be.Detail)
}
