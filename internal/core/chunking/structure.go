package chunking

import (
	"context"
	"regexp"
	"strings"
)

// headingPattern recognizes section starts in the document kinds we
// ingest: markdown headings, numbered legal sections/articles, and
// short ALL-CAPS title lines.
var headingPattern = regexp.MustCompile(`^(#{1,6}\s+\S|(?:Section|SECTION|Article|ARTICLE|Chapter|CHAPTER|§)\s+[0-9IVXLCivxlc]|[A-Z][A-Z0-9 ,.\-]{3,79}$)`)

// structureSplitter prefers cutting at recognized section boundaries so
// no chunk straddles two sections. Sections larger than the budget fall
// back to recursive splitting internally.
type structureSplitter struct{}

func (structureSplitter) name() string { return StrategyStructure }

func (structureSplitter) cuts(ctx context.Context, text []rune, budget int) []int {
	bounds := sectionStarts(text)

	var out []int
	prev := 0
	flush := func(end int) {
		// Subdivide an oversized section with the recursive strategy.
		if end-prev > budget {
			for _, c := range (recursiveSplitter{}).cuts(ctx, text[prev:end], budget) {
				out = append(out, prev+c)
			}
		} else if end > prev {
			out = append(out, end)
		}
		prev = end
	}

	for _, b := range bounds {
		if b <= prev {
			continue
		}
		flush(b)
	}
	flush(len(text))
	return out
}

// sectionStarts returns rune offsets where a new recognized section
// begins (offset of the heading line itself).
func sectionStarts(text []rune) []int {
	var starts []int
	lineStart := 0
	s := string(text)
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && headingPattern.MatchString(trimmed) && lineStart > 0 {
			starts = append(starts, lineStart)
		}
		lineStart += len([]rune(line)) + 1
	}
	return starts
}
