package models

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxTokens is the output ceiling for every provider.
	DefaultMaxTokens = 150
	// DefaultMinTokens is the lower output bound for the abstractive model.
	DefaultMinTokens = 30
	// DefaultMaxInputChars bounds what the abstractive model receives.
	DefaultMaxInputChars = 4000
	// DefaultTemperature keeps chat completions close to deterministic.
	DefaultTemperature = 0.3
)

// ChatConfig selects and configures the chat-completion provider.
type ChatConfig struct {
	// Provider is one of openai, anthropic, gemini, ollama.
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the API endpoint (ollama host, OpenAI-compatible gateways, tests).
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

func (c *ChatConfig) setDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Enabled reports whether the config names a provider that can be reached.
// Ollama runs locally and needs no key.
func (c ChatConfig) Enabled() bool {
	switch strings.ToLower(c.Provider) {
	case "":
		return false
	case "ollama":
		return true
	default:
		return strings.TrimSpace(c.APIKey) != ""
	}
}

// NewChatProvider builds the chat-completion provider named by cfg.Provider.
func NewChatProvider(ctx context.Context, cfg ChatConfig) (Provider, error) {
	cfg.setDefaults()
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAISummarizer(cfg), nil
	case "anthropic", "claude":
		return NewAnthropicSummarizer(cfg), nil
	case "gemini", "google":
		g, err := NewGeminiSummarizer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "ollama":
		o, err := NewOllamaSummarizer(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", cfg.Provider)
	}
}

func defaultModel(model, fallback string) string {
	if strings.TrimSpace(model) == "" {
		return fallback
	}
	return model
}

// newHTTPClient returns a client whose timeout bounds each provider call.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: timeout,
			TLSHandshakeTimeout:   10 * time.Second,
		},
	}
}

// Truncate cuts text to at most max runes, appending "..." when it had to cut.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}
