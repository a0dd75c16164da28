package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/arkaiv/arkaiv/pkg/brief"
	"github.com/arkaiv/arkaiv/pkg/model"
)

// LocalSummarizer builds a templated summary from the brief without any I/O. It never fails.
type LocalSummarizer struct{}

func NewLocalSummarizer() *LocalSummarizer { return &LocalSummarizer{} }

func (*LocalSummarizer) Name() string { return "local" }

var localPhrases = []struct {
	source model.Source
	lead   string
}{
	{model.SourceGitHub, "Notable GitHub repositories include"},
	{model.SourceHuggingFace, "Top HuggingFace models feature"},
	{model.SourceArXiv, "Key research papers include"},
}

func (*LocalSummarizer) Summarize(_ context.Context, text string) (string, error) {
	b, ok := brief.Parse(text)
	if !ok {
		return excerpt(text), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Today's digest covers %d AI tools with %d new additions.", b.TotalTools, b.NewTools)

	highlighted := false
	for _, p := range localPhrases {
		items := b.Sections[p.source]
		if len(items) == 0 {
			continue
		}
		highlighted = true
		fmt.Fprintf(&sb, " %s %s", p.lead, items[0].Name)
		switch others := len(items) - 1; others {
		case 0:
			sb.WriteString(".")
		case 1:
			sb.WriteString(" and 1 other.")
		default:
			fmt.Fprintf(&sb, " and %d others.", others)
		}
	}
	if !highlighted {
		sb.WriteString(" No ranked tools, models or papers were available for this digest.")
	}
	return sb.String(), nil
}

// excerpt summarizes text that is not a brief by quoting its opening.
func excerpt(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if flat == "" {
		return "No content was available to summarize."
	}
	return "Summary: " + Truncate(flat, DefaultMaxTokens)
}
