package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiSummarizer implements Provider on Google's generative language API.
type GeminiSummarizer struct {
	Client      *genai.Client
	Model       string
	MaxTokens   int
	Temperature float32
}

func NewGeminiSummarizer(ctx context.Context, cfg ChatConfig) (*GeminiSummarizer, error) {
	cfg.setDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: missing api key")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiSummarizer{
		Client:      client,
		Model:       defaultModel(cfg.Model, defaultGeminiModel),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, nil
}

func (g *GeminiSummarizer) Name() string { return "gemini" }

func (g *GeminiSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	model := g.Client.GenerativeModel(g.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(SystemPrompt)}}
	model.SetMaxOutputTokens(int32(g.MaxTokens))
	model.SetTemperature(g.Temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
			return "", &RateLimitError{Provider: g.Name(), Err: err}
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// Close releases the underlying client.
func (g *GeminiSummarizer) Close() error {
	if g == nil || g.Client == nil {
		return nil
	}
	return g.Client.Close()
}
