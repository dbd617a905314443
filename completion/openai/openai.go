// Package openai provides a Completer backed by the OpenAI Chat Completions
// API using the official SDK. The API key is read from OPENAI_API_KEY by the
// SDK unless a pre-configured client is supplied.
package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"

	"github.com/adapsys/enclave/completion"
)

// Options configure the OpenAI completer. Fields mirror a small subset of
// Chat Completion parameters; extend via functional options.
type Options struct {
	Model               string
	Instruction         string
	Temperature         float64
	MaxCompletionTokens int64
}

// Completer wraps the OpenAI Chat Completions API.
type Completer struct {
	client *openai.Client
	opts   Options
}

// New creates a Completer using a default client.
func New(optFns ...func(o *Options)) *Completer {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a Completer from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completer{client: client, opts: opts}
}

// Complete implements completion.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if c.opts.Instruction != "" {
		messages = append(messages, openai.SystemMessage(c.opts.Instruction))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &completion.BackendError{Provider: "openai", Detail: "no choices returned"}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func wrapAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &completion.BackendError{
			Provider: "openai",
			Status:   apiErr.StatusCode,
			Detail:   apiErr.Message,
			Err:      err,
		}
	}
	return &completion.BackendError{Provider: "openai", Detail: err.Error(), Err: err}
}
