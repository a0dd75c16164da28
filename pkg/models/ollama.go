package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

const (
	defaultOllamaModel = "llama3.2"
	defaultOllamaHost  = "http://localhost:11434"
)

// OllamaSummarizer implements Provider on a local Ollama server.
type OllamaSummarizer struct {
	Client      *ollama.Client
	Model       string
	MaxTokens   int
	Temperature float32
}

func NewOllamaSummarizer(cfg ChatConfig) (*OllamaSummarizer, error) {
	cfg.setDefaults()
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaSummarizer{
		Client:      ollama.NewClient(u, newHTTPClient(cfg.Timeout)),
		Model:       defaultModel(cfg.Model, defaultOllamaModel),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, nil
}

func (o *OllamaSummarizer) Name() string { return "ollama" }

func (o *OllamaSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	stream := false
	req := &ollama.ChatRequest{
		Model: o.Model,
		Messages: []ollama.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: text},
		},
		Stream: &stream,
		Options: map[string]any{
			"num_predict": o.MaxTokens,
			"temperature": o.Temperature,
		},
	}

	var out strings.Builder
	err := o.Client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr ollama.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			return "", &RateLimitError{Provider: o.Name(), Err: err}
		}
		return "", err
	}
	summary := strings.TrimSpace(out.String())
	if summary == "" {
		return "", ErrEmptyResponse
	}
	return summary, nil
}
