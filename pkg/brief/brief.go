// Package brief defines the plaintext digest brief handed to summarizers.
//
// The layout is parsed back by the local fallback summarizer, so Format and Parse
// must stay in lockstep:
//
//	Total AI Tools: 4
//	New Tools Today: 2
//
//	Top GitHub Tools:
//	- name: description
//
//	Top HuggingFace Models:
//	(none)
//
//	Top arXiv Papers:
//	- name: description
package brief

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arkaiv/arkaiv/pkg/model"
)

const (
	totalLabel = "Total AI Tools:"
	newLabel   = "New Tools Today:"
	bullet     = "- "
	emptyLine  = "(none)"
	separator  = ": "

	// NoDescription stands in for a blank description inside the brief.
	NoDescription = "No description available"
)

var sectionLabels = map[model.Source]string{
	model.SourceGitHub:      "Top GitHub Tools:",
	model.SourceHuggingFace: "Top HuggingFace Models:",
	model.SourceArXiv:       "Top arXiv Papers:",
}

// Item is one bullet line.
type Item struct {
	Name        string
	Description string
}

func (i Item) String() string {
	desc := strings.TrimSpace(i.Description)
	if desc == "" {
		desc = NoDescription
	}
	return itemName(i.Name) + separator + flatten(desc)
}

// itemName flattens a name and rewrites any separator inside it, so the first
// separator on a bullet line always ends the name.
func itemName(name string) string {
	return strings.ReplaceAll(flatten(name), separator, " - ")
}

// Brief is the structured content of the summarization input.
type Brief struct {
	TotalTools int64
	NewTools   int64
	Sections   map[model.Source][]Item
}

// Format renders b using the fixed template.
func Format(b Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d\n", totalLabel, b.TotalTools)
	fmt.Fprintf(&sb, "%s %d\n", newLabel, b.NewTools)
	for _, src := range model.Sources() {
		sb.WriteString("\n")
		sb.WriteString(sectionLabels[src])
		sb.WriteString("\n")
		items := b.Sections[src]
		if len(items) == 0 {
			sb.WriteString(emptyLine + "\n")
			continue
		}
		for _, item := range items {
			sb.WriteString(bullet + item.String() + "\n")
		}
	}
	return sb.String()
}

// Parse reads a brief back. ok is false when text does not carry the count header,
// i.e. it was not produced by Format.
func Parse(text string) (b Brief, ok bool) {
	b.Sections = make(map[model.Source][]Item)
	var (
		current  model.Source
		hasTotal bool
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, totalLabel):
			b.TotalTools, hasTotal = parseCount(line, totalLabel)
		case strings.HasPrefix(line, newLabel):
			b.NewTools, _ = parseCount(line, newLabel)
		case strings.HasPrefix(line, bullet):
			if current == "" {
				continue
			}
			b.Sections[current] = append(b.Sections[current], parseItem(strings.TrimPrefix(line, bullet)))
		default:
			if src, isLabel := sectionFor(line); isLabel {
				current = src
			}
		}
	}
	return b, hasTotal
}

func parseCount(line, label string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, label)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseItem(s string) Item {
	name, desc, _ := strings.Cut(s, separator)
	return Item{Name: strings.TrimSpace(name), Description: strings.TrimSpace(desc)}
}

func sectionFor(line string) (model.Source, bool) {
	for src, label := range sectionLabels {
		if line == label {
			return src, true
		}
	}
	return "", false
}

// flatten keeps every item on one line so the template stays parseable.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
