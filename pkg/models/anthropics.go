package models

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicSummarizer implements Provider on Anthropic's Messages API.
type AnthropicSummarizer struct {
	Client      *anthropic.Client
	Model       string
	MaxTokens   int
	Temperature float32
}

// NewAnthropicSummarizer disables the SDK's own retries; the gateway owns the retry policy.
func NewAnthropicSummarizer(cfg ChatConfig) *AnthropicSummarizer {
	cfg.setDefaults()
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(0),
		anthropicopt.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	cl := anthropic.NewClient(opts...)
	return &AnthropicSummarizer{
		Client:      &cl,
		Model:       defaultModel(cfg.Model, defaultAnthropicModel),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

func (a *AnthropicSummarizer) Name() string { return "anthropic" }

func (a *AnthropicSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	msg, err := a.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.Model),
		MaxTokens:   int64(a.MaxTokens),
		Temperature: anthropic.Float(float64(a.Temperature)),
		System:      []anthropic.TextBlockParam{{Text: SystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			var header http.Header
			if apiErr.Response != nil {
				header = apiErr.Response.Header
			}
			return "", &RateLimitError{Provider: a.Name(), RetryAfter: parseRetryAfter(header, time.Now()), Err: err}
		}
		return "", err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
