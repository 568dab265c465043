package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

// TextExtractor turns an uploaded file into plain text for the
// extraction pipeline.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// DocconvExtractor converts PDFs, Word documents and HTML through
// docconv. Plain text passes straight through.
type DocconvExtractor struct {
	useReadability bool
}

var _ TextExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if isPlainText(contentType) {
		return normalize(string(data)), nil
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv: convert %q: %w", contentType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text := normalize(res.Body)
	if text == "" {
		return "", fmt.Errorf("docconv: extracted empty text for %q", contentType)
	}
	return text, nil
}

func isPlainText(contentType string) bool {
	switch {
	case strings.HasPrefix(contentType, "text/plain"),
		strings.HasPrefix(contentType, "text/markdown"),
		contentType == "":
		return true
	}
	return false
}

// normalize trims trailing whitespace per line and collapses runs of
// blank lines; extraction prompts and chunking both behave better on
// tidy input.
func normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var b strings.Builder
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
