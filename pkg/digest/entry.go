package digest

import (
	"net/url"
	"strings"

	"github.com/arkaiv/arkaiv/pkg/brief"
	"github.com/arkaiv/arkaiv/pkg/model"
)

const (
	// NoImprovements stands in for a record without improvement suggestions.
	NoImprovements = "No improvement suggestions available."
	unnamed        = "Unnamed Tool"
	missingURL     = "#"
)

// ToEntry snapshots a record into a digest entry. Blank fields get defaults rather than errors.
func ToEntry(rec model.ToolRecord, source model.Source) model.DigestEntry {
	if rec.Source.Valid() {
		source = rec.Source
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		name = unnamed
	}
	link := strings.TrimSpace(rec.URL)
	if link == "" {
		link = missingURL
	}
	desc := strings.TrimSpace(rec.Description)
	if desc == "" {
		desc = BackfillDescription(source, rec.URL)
	}
	improvements := strings.TrimSpace(rec.Improvements)
	if improvements == "" {
		improvements = NoImprovements
	}
	return model.DigestEntry{
		Name:         name,
		Source:       source,
		Description:  desc,
		Metrics:      rec.Metrics.Only(source.PrimaryMetric()),
		URL:          link,
		Improvements: improvements,
	}
}

// BackfillDescription synthesizes a placeholder description from the record URL.
func BackfillDescription(source model.Source, rawURL string) string {
	segs := pathSegments(rawURL)
	last := ""
	if len(segs) > 0 {
		last = segs[len(segs)-1]
	}
	switch source {
	case model.SourceGitHub:
		repo := last
		if len(segs) >= 2 {
			repo = segs[len(segs)-2] + "/" + last
		}
		return "GitHub repository " + repo + ". This tool needs a description update."
	case model.SourceHuggingFace:
		return "HuggingFace model for " + strings.ReplaceAll(last, "-", " ") + ". This model needs a description update."
	case model.SourceArXiv:
		return "Research paper (ID: " + last + ") from arXiv. This paper needs a description update."
	default:
		return "No description available. This entry needs a description update."
	}
}

// pathSegments returns the non-empty path segments of a URL, or of the raw string when it does not parse.
func pathSegments(rawURL string) []string {
	p := strings.TrimSpace(rawURL)
	if u, err := url.Parse(p); err == nil && u.Host != "" {
		p = u.Path
	}
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// BuildBrief renders the plaintext input handed to the summarizer.
func BuildBrief(totalTools, newTools int64, top model.TopEntries) string {
	b := brief.Brief{
		TotalTools: totalTools,
		NewTools:   newTools,
		Sections:   make(map[model.Source][]brief.Item, len(model.Sources())),
	}
	for _, src := range model.Sources() {
		for _, e := range top.For(src) {
			b.Sections[src] = append(b.Sections[src], brief.Item{Name: e.Name, Description: e.Description})
		}
	}
	return brief.Format(b)
}
