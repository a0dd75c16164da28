// Package model holds the documents shared by the store, the digest compiler and the HTTP API.
// Field tags mirror the persisted layout so records serialize without a transform step.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Metrics carries every metric for uniform access; only the source's primary metric is meaningful.
type Metrics struct {
	Stars     int64 `json:"stars" bson:"stars"`
	Downloads int64 `json:"downloads" bson:"downloads"`
	Citations int64 `json:"citations" bson:"citations"`
}

// Value returns the named metric.
func (m Metrics) Value(metric Metric) int64 {
	switch metric {
	case MetricDownloads:
		return m.Downloads
	case MetricCitations:
		return m.Citations
	default:
		return m.Stars
	}
}

// Only returns a copy in which every metric other than the named one is zero.
func (m Metrics) Only(metric Metric) Metrics {
	var out Metrics
	switch metric {
	case MetricDownloads:
		out.Downloads = m.Downloads
	case MetricCitations:
		out.Citations = m.Citations
	default:
		out.Stars = m.Stars
	}
	return out
}

// TimelinePoint is one sample of the primary metric history.
type TimelinePoint struct {
	Date  time.Time `json:"date" bson:"date"`
	Value int64     `json:"value" bson:"value"`
}

// ToolRecord is one scraped artifact, keyed by URL.
type ToolRecord struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Source       Source             `json:"source" bson:"source"`
	Metrics      Metrics            `json:"metrics" bson:"metrics"`
	Timeline     []TimelinePoint    `json:"timeline,omitempty" bson:"timeline,omitempty"`
	URL          string             `json:"url" bson:"url"`
	Description  string             `json:"description" bson:"description"`
	Improvements string             `json:"improvements,omitempty" bson:"improvements,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PrimaryValue returns the value of the record's primary metric.
func (r ToolRecord) PrimaryValue() int64 {
	return r.Metrics.Value(r.Source.PrimaryMetric())
}
