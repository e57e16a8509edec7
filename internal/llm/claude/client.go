// Package claude implements transcript summarization on the Anthropic
// Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxTokens caps the summary length.
const DefaultMaxTokens = 256

const systemPrompt = `You summarize spoken triage intake transcripts for emergency department staff.

Write two or three plain sentences covering the chief complaint, relevant history and any red-flag symptoms.
Do not speculate beyond what the patient or nurse said. Do not add a diagnosis or an acuity level.
Return only the summary text.`

// Summarizer condenses transcripts with a Claude model.
type Summarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Option configures a Summarizer.
type Option func(*options)

type options struct {
	baseURL    string
	maxTokens  int64
	maxRetries int
	httpClient *http.Client
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option { return func(o *options) { o.baseURL = u } }

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int64) Option { return func(o *options) { o.maxTokens = n } }

// WithMaxRetries sets SDK-level retries. The engine already bounds each call
// with a timeout, so the default is 0.
func WithMaxRetries(n int) Option { return func(o *options) { o.maxRetries = n } }

// New creates a Summarizer for the given API key and model name.
func New(apiKey, model string, opts ...Option) *Summarizer {
	o := options{
		maxTokens:  DefaultMaxTokens,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, fn := range opts {
		fn(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &Summarizer{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: o.maxTokens,
	}
}

// Summarize returns the model's summary of text. Empty output is an error.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(text))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	if len(parts) == 0 {
		return "", errors.New("claude returned no text content")
	}
	return strings.Join(parts, "\n"), nil
}

func buildPrompt(text string) string {
	return "Transcript:\n<transcript>\n" + text + "\n</transcript>"
}
