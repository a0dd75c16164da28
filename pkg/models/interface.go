// Package models adapts text-summarization backends to a single Provider contract.
package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Provider produces a short summary of text.
type Provider interface {
	Name() string
	Summarize(ctx context.Context, text string) (string, error)
}

// ErrEmptyResponse is returned when a provider answers without usable text.
var ErrEmptyResponse = errors.New("provider returned an empty summary")

// SystemPrompt is the instruction sent to chat-style providers.
const SystemPrompt = "You are a helpful assistant that summarizes AI tools and research papers in a concise and informative way."

// RateLimitError signals a provider-side throttle. RetryAfter is the provider's hint, zero if absent.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s: %v", e.Provider, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// StatusError is a non-2xx answer from an HTTP provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Message)
}

// parseRetryAfter reads a Retry-After header given either in seconds or as an HTTP date.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	if h == nil {
		return 0
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
