package models

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-3.5-turbo"

// OpenAISummarizer asks a chat-completion model for a summary.
type OpenAISummarizer struct {
	Client      *openai.Client
	Model       string
	MaxTokens   int
	Temperature float32
}

func NewOpenAISummarizer(cfg ChatConfig) *OpenAISummarizer {
	cfg.setDefaults()
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = newHTTPClient(cfg.Timeout)
	return &OpenAISummarizer{
		Client:      openai.NewClientWithConfig(clientCfg),
		Model:       defaultModel(cfg.Model, defaultOpenAIModel),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

func (o *OpenAISummarizer) Name() string { return "openai" }

func (o *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Please summarize the following information in a concise and informative way: " + text},
		},
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
	})
	if err != nil {
		return "", o.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// classify turns HTTP 429 into a RateLimitError. go-openai does not expose
// response headers, so there is no retry hint.
func (o *OpenAISummarizer) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Provider: o.Name(), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Provider: o.Name(), Err: err}
	}
	return err
}
