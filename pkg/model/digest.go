package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateLayout is the calendar-day format used in URLs and CLI output.
const DateLayout = "2006-01-02"

// MaxTopEntries caps each per-source list inside a digest.
const MaxTopEntries = 3

// DigestEntry is a denormalized copy of a ToolRecord taken when the digest was generated.
type DigestEntry struct {
	Name         string  `json:"name" bson:"name"`
	Source       Source  `json:"source" bson:"source"`
	Description  string  `json:"description" bson:"description"`
	Metrics      Metrics `json:"metrics" bson:"metrics"`
	URL          string  `json:"url" bson:"url"`
	Improvements string  `json:"improvements" bson:"improvements"`
}

// TopEntries groups the ranked entries by source key.
type TopEntries struct {
	GitHub      []DigestEntry `json:"github" bson:"github"`
	HuggingFace []DigestEntry `json:"huggingface" bson:"huggingface"`
	ArXiv       []DigestEntry `json:"arxiv" bson:"arxiv"`
}

// For returns the list for a source.
func (t TopEntries) For(source Source) []DigestEntry {
	switch source {
	case SourceGitHub:
		return t.GitHub
	case SourceHuggingFace:
		return t.HuggingFace
	case SourceArXiv:
		return t.ArXiv
	}
	return nil
}

// Set replaces the list for a source. A nil slice is stored as empty so it serializes as [].
func (t *TopEntries) Set(source Source, entries []DigestEntry) {
	if entries == nil {
		entries = []DigestEntry{}
	}
	switch source {
	case SourceGitHub:
		t.GitHub = entries
	case SourceHuggingFace:
		t.HuggingFace = entries
	case SourceArXiv:
		t.ArXiv = entries
	}
}

// DailyDigest is the report for one calendar day. At most one exists per date.
type DailyDigest struct {
	ID                primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Date              time.Time          `json:"date" bson:"date"`
	TotalTools        int64              `json:"totalTools" bson:"totalTools"`
	NewTools          int64              `json:"newTools" bson:"newTools"`
	TopEntries        TopEntries         `json:"topEntries" bson:"topEntries"`
	Summary           string             `json:"summary" bson:"summary"`
	FormattedDocument string             `json:"formattedDocument" bson:"formattedDocument"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
}

// StartOfDay truncates t to midnight in loc. A nil loc means UTC.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayRange returns the half-open interval [day, next day) for a midnight-truncated day.
func DayRange(day time.Time) (time.Time, time.Time) {
	return day, day.AddDate(0, 0, 1)
}
