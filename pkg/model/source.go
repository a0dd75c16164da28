package model

import (
	"fmt"
	"strings"
)

// Source identifies where a tool record was scraped from.
type Source string

const (
	SourceGitHub      Source = "GitHub"
	SourceHuggingFace Source = "HuggingFace"
	SourceArXiv       Source = "arXiv"
)

// Metric names the metrics sub-document field used for ranking.
type Metric string

const (
	MetricStars     Metric = "stars"
	MetricDownloads Metric = "downloads"
	MetricCitations Metric = "citations"
)

// Sources returns every known source in digest order.
func Sources() []Source {
	return []Source{SourceGitHub, SourceHuggingFace, SourceArXiv}
}

// ParseSource accepts either the canonical name or the lower-case digest key.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "github":
		return SourceGitHub, nil
	case "huggingface":
		return SourceHuggingFace, nil
	case "arxiv":
		return SourceArXiv, nil
	default:
		return "", fmt.Errorf("unknown source %q", s)
	}
}

// Valid reports whether s is one of the closed set of sources.
func (s Source) Valid() bool {
	switch s {
	case SourceGitHub, SourceHuggingFace, SourceArXiv:
		return true
	}
	return false
}

// Key is the lower-case name used inside topEntries.
func (s Source) Key() string {
	return strings.ToLower(string(s))
}

// PrimaryMetric is the single metric that is meaningful for the source.
func (s Source) PrimaryMetric() Metric {
	switch s {
	case SourceHuggingFace:
		return MetricDownloads
	case SourceArXiv:
		return MetricCitations
	default:
		return MetricStars
	}
}

// Field is the dotted document path of the metric.
func (m Metric) Field() string {
	return "metrics." + string(m)
}

// Label is the heading used when rendering a metric value.
func (m Metric) Label() string {
	switch m {
	case MetricDownloads:
		return "Downloads"
	case MetricCitations:
		return "Citations"
	default:
		return "Stars"
	}
}
