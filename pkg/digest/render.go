package digest

import (
	"strings"
	"text/template"
	"time"

	"github.com/arkaiv/arkaiv/pkg/model"
)

// LongDateLayout renders e.g. "Monday, January 1, 2024".
const LongDateLayout = "Monday, January 2, 2006"

var sectionTitles = map[model.Source]struct{ heading, empty string }{
	model.SourceGitHub:      {"Top GitHub Tools", "No GitHub tools found."},
	model.SourceHuggingFace: {"Top HuggingFace Models", "No HuggingFace models found."},
	model.SourceArXiv:       {"Top arXiv Papers", "No arXiv papers found."},
}

const documentTemplate = `# AI Tools Daily Digest
## {{ .Date }}

### Overview
- Total AI Tools in Database: {{ .TotalTools }}
- New Tools Added Today: {{ .NewTools }}

### Summary
{{ .Summary }}
{{ range .Sections }}
### {{ .Heading }}
{{ if not .Entries }}
{{ .Empty }}
{{ else }}{{ range $i, $e := .Entries }}
#### {{ inc $i }}. {{ $e.Name }}
- **Description**: {{ $e.Description }}
- **{{ $e.MetricLabel }}**: {{ $e.MetricValue }}
- **URL**: {{ $e.URL }}
- **Suggested Improvements**: {{ $e.Improvements }}
{{ end }}{{ end }}{{ end }}
---
*This digest was automatically generated by the Arkaiv AI Tools Platform.*
`

var document = template.Must(template.New("digest").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(documentTemplate))

type renderEntry struct {
	model.DigestEntry
	MetricLabel string
	MetricValue int64
}

type renderSection struct {
	Heading string
	Empty   string
	Entries []renderEntry
}

type renderData struct {
	Date       string
	TotalTools int64
	NewTools   int64
	Summary    string
	Sections   []renderSection
}

// RenderMarkdown produces the human-readable report stored as formattedDocument.
// Every source gets a section; empty ones carry an explicit placeholder.
func RenderMarkdown(d model.DailyDigest, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	data := renderData{
		Date:       d.Date.In(loc).Format(LongDateLayout),
		TotalTools: d.TotalTools,
		NewTools:   d.NewTools,
		Summary:    strings.TrimSpace(d.Summary),
	}
	for _, src := range model.Sources() {
		titles := sectionTitles[src]
		section := renderSection{Heading: titles.heading, Empty: titles.empty}
		metric := src.PrimaryMetric()
		for _, e := range d.TopEntries.For(src) {
			section.Entries = append(section.Entries, renderEntry{
				DigestEntry: e,
				MetricLabel: metric.Label(),
				MetricValue: e.Metrics.Value(metric),
			})
		}
		data.Sections = append(data.Sections, section)
	}

	var sb strings.Builder
	if err := document.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
