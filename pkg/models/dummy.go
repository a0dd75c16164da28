package models

import (
	"context"
	"strings"
)

// MockSummary is returned for every call when no provider is configured.
const MockSummary = "This is a mock summary as no summarization provider API key was provided."

// MockSummarizer is the mock-mode provider: a fixed answer, never an error.
type MockSummarizer struct {
	Text string
}

func NewMockSummarizer(text string) *MockSummarizer {
	if strings.TrimSpace(text) == "" {
		text = MockSummary
	}
	return &MockSummarizer{Text: text}
}

func (*MockSummarizer) Name() string { return "mock" }

func (m *MockSummarizer) Summarize(context.Context, string) (string, error) {
	return m.Text, nil
}

var (
	_ Provider = (*MockSummarizer)(nil)
	_ Provider = (*LocalSummarizer)(nil)
	_ Provider = (*HuggingFaceSummarizer)(nil)
	_ Provider = (*OpenAISummarizer)(nil)
	_ Provider = (*AnthropicSummarizer)(nil)
	_ Provider = (*GeminiSummarizer)(nil)
	_ Provider = (*OllamaSummarizer)(nil)
)
