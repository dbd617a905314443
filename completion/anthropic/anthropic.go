// Package anthropic provides a Completer backed by the Anthropic Messages
// API using the official SDK. The API key is read from ANTHROPIC_API_KEY by
// the SDK unless one is supplied via Options.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/adapsys/enclave/completion"
)

// ModelID converts a configured model identifier into the SDK's model type.
func ModelID(id string) anthropic.Model { return anthropic.Model(id) }

// Options configure the Anthropic completer.
type Options struct {
	Model       anthropic.Model
	Instruction string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Completer wraps the Anthropic Messages API.
type Completer struct {
	client *anthropic.Client
	opts   Options
}

// New creates a Completer using the official client.
func New(optFns ...func(o *Options)) *Completer {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Completer{client: &client, opts: opts}
}

// NewFromClient creates a Completer from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Completer {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completer{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Complete implements completion.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.opts.Instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.opts.Instruction}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapAPIError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &completion.BackendError{Provider: "anthropic", Detail: "no text content returned"}
	}
	return text, nil
}

func wrapAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &completion.BackendError{
			Provider: "anthropic",
			Status:   apiErr.StatusCode,
			Detail:   apiErr.Error(),
			Err:      err,
		}
	}
	return &completion.BackendError{Provider: "anthropic", Detail: err.Error(), Err: err}
}
