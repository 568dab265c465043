package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextPlainPassthrough(t *testing.T) {
	e := NewDocconvExtractor(false)
	out, err := e.ExtractText(t.Context(), []byte("Hello, court.\r\n\r\n\r\nSecond paragraph.  \n"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Hello, court.\n\nSecond paragraph.", out)
}

func TestNormalizeCollapsesBlankRuns(t *testing.T) {
	assert.Equal(t, "a\n\nb", normalize("a\n\n\n\n\nb"))
	assert.Equal(t, "", normalize("   \n \t \n"))
}

func TestIsPlainText(t *testing.T) {
	assert.True(t, isPlainText("text/plain; charset=utf-8"))
	assert.True(t, isPlainText("text/markdown"))
	assert.True(t, isPlainText(""))
	assert.False(t, isPlainText("application/pdf"))
}
