package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHuggingFaceModel   = "facebook/bart-large-cnn"
	defaultHuggingFaceBaseURL = "https://router.huggingface.co/hf-inference/models"
	maxErrorBody              = 512
)

// HuggingFaceConfig configures the abstractive summarizer.
type HuggingFaceConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	MaxInputChars int
	MinLength     int
	MaxLength     int
	Timeout       time.Duration
}

// HuggingFaceSummarizer calls the Inference API summarization task.
type HuggingFaceSummarizer struct {
	HTTP          *http.Client
	APIKey        string
	Model         string
	BaseURL       string
	MaxInputChars int
	MinLength     int
	MaxLength     int
	now           func() time.Time
}

func NewHuggingFaceSummarizer(cfg HuggingFaceConfig) *HuggingFaceSummarizer {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinTokens
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxTokens
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultHuggingFaceBaseURL
	}
	return &HuggingFaceSummarizer{
		HTTP:          newHTTPClient(cfg.Timeout),
		APIKey:        cfg.APIKey,
		Model:         defaultModel(cfg.Model, defaultHuggingFaceModel),
		BaseURL:       base,
		MaxInputChars: cfg.MaxInputChars,
		MinLength:     cfg.MinLength,
		MaxLength:     cfg.MaxLength,
		now:           time.Now,
	}
}

func (h *HuggingFaceSummarizer) Name() string { return "huggingface" }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type hfSummary struct {
	SummaryText string `json:"summary_text"`
}

type hfError struct {
	Error string `json:"error"`
}

func (h *HuggingFaceSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(hfRequest{
		Inputs: Truncate(text, h.MaxInputChars),
		Parameters: hfParameters{
			MaxLength: h.MaxLength,
			MinLength: h.MinLength,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("huggingface: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/"+h.Model, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("huggingface: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("huggingface: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{
			Provider:   h.Name(),
			RetryAfter: parseRetryAfter(resp.Header, h.now()),
			Err:        &StatusError{Provider: h.Name(), StatusCode: resp.StatusCode, Message: errorMessage(raw)},
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Provider: h.Name(), StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	summary, err := decodeHFSummary(raw)
	if err != nil {
		return "", fmt.Errorf("huggingface: %w", err)
	}
	return summary, nil
}

// decodeHFSummary accepts both the list form and the single-object form of the response.
func decodeHFSummary(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	var text string
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		var list []hfSummary
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if len(list) > 0 {
			text = list[0].SummaryText
		}
	default:
		var one hfSummary
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		text = one.SummaryText
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func errorMessage(raw []byte) string {
	var e hfError
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
