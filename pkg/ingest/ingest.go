// Package ingest loads scraped tool records from JSON, JSON Lines or YAML files into the catalog.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arkaiv/arkaiv/pkg/logger"
	"github.com/arkaiv/arkaiv/pkg/model"
	"github.com/arkaiv/arkaiv/pkg/store"
)

// DefaultMaxBytes caps a single import file.
const DefaultMaxBytes = 10 << 20

// ErrTooLarge is returned when the input exceeds MaxBytes.
var ErrTooLarge = errors.New("import file too large")

// Format is the encoding of an import file.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// DetectFormat picks the format from the file extension, falling back to sniffing the content.
func DetectFormat(name string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	trimmed := bytes.TrimSpace(head)
	switch {
	case bytes.HasPrefix(trimmed, []byte("[")):
		return FormatJSON
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSONL
	default:
		return FormatYAML
	}
}

// Record is the import shape of a tool. Source accepts either "GitHub" or "github".
type Record struct {
	Name         string        `json:"name" yaml:"name"`
	Source       string        `json:"source" yaml:"source"`
	URL          string        `json:"url" yaml:"url"`
	Description  string        `json:"description" yaml:"description"`
	Improvements string        `json:"improvements" yaml:"improvements"`
	Metrics      model.Metrics `json:"metrics" yaml:"metrics"`
	CreatedAt    time.Time     `json:"createdAt" yaml:"createdAt"`
}

// ToolRecord converts and validates the import shape.
func (r Record) ToolRecord() (model.ToolRecord, error) {
	src, err := model.ParseSource(r.Source)
	if err != nil {
		return model.ToolRecord{}, err
	}
	if strings.TrimSpace(r.URL) == "" {
		return model.ToolRecord{}, errors.New("url is required")
	}
	if r.Metrics.Stars < 0 || r.Metrics.Downloads < 0 || r.Metrics.Citations < 0 {
		return model.ToolRecord{}, errors.New("metrics must not be negative")
	}
	return model.ToolRecord{
		Name:         strings.TrimSpace(r.Name),
		Source:       src,
		URL:          strings.TrimSpace(r.URL),
		Description:  strings.TrimSpace(r.Description),
		Improvements: strings.TrimSpace(r.Improvements),
		Metrics:      r.Metrics,
		CreatedAt:    r.CreatedAt,
	}, nil
}

// Result summarizes an import run. Rejected records are reported, not fatal.
type Result struct {
	Imported int
	Rejected []Rejection
}

type Rejection struct {
	Index int
	URL   string
	Err   error
}

// Importer upserts records into a catalog.
type Importer struct {
	Catalog  store.ToolCatalog
	MaxBytes int64
	Logger   logger.Logger
}

func NewImporter(catalog store.ToolCatalog, log logger.Logger) *Importer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Importer{Catalog: catalog, MaxBytes: DefaultMaxBytes, Logger: log}
}

// ImportReader decodes r according to name's format and upserts every valid record.
// Decoding errors and repository errors abort; invalid records are skipped.
func (im *Importer) ImportReader(ctx context.Context, name string, r io.Reader) (Result, error) {
	if im.Catalog == nil {
		return Result{}, errors.New("importer requires a catalog")
	}
	maxBytes := im.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	buf, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(buf)) > maxBytes {
		return Result{}, ErrTooLarge
	}

	format := DetectFormat(name, buf[:min(len(buf), 512)])
	records, err := Decode(format, buf)
	if err != nil {
		return Result{}, fmt.Errorf("decode %s as %s: %w", name, format, err)
	}

	var res Result
	for i, rec := range records {
		tool, err := rec.ToolRecord()
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, URL: rec.URL, Err: err})
			im.Logger.Warn("Skipping invalid tool record",
				logger.Int("index", i), logger.String("url", rec.URL), logger.Error(err))
			continue
		}
		if _, err := im.Catalog.UpsertTool(ctx, tool); err != nil {
			if errors.Is(err, store.ErrInvalidRecord) {
				res.Rejected = append(res.Rejected, Rejection{Index: i, URL: rec.URL, Err: err})
				continue
			}
			return res, fmt.Errorf("upsert %s: %w", tool.URL, err)
		}
		res.Imported++
	}
	im.Logger.Info("Tool import finished",
		logger.String("file", name),
		logger.String("format", string(format)),
		logger.Int("imported", res.Imported),
		logger.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// Decode parses buf in the given format.
func Decode(format Format, buf []byte) ([]Record, error) {
	var records []Record
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(buf, &records); err != nil {
			return nil, err
		}
	case FormatJSONL:
		sc := bufio.NewScanner(bytes.NewReader(buf))
		sc.Buffer(make([]byte, 0, 64*1024), len(buf)+1)
		line := 0
		for sc.Scan() {
			line++
			text := bytes.TrimSpace(sc.Bytes())
			if len(text) == 0 {
				continue
			}
			var rec Record
			if err := json.Unmarshal(text, &rec); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			records = append(records, rec)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(buf, &records); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return records, nil
}
