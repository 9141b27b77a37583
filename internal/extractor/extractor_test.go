package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/models"
)

func TestExtractPlainText(t *testing.T) {
	e := New(1024)

	text, err := e.Extract([]byte("hello world\nsecond line"), MimeText)
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsecond line", text)
}

func TestExtractPlainTextInvalidUTF8(t *testing.T) {
	e := New(1024)

	_, err := e.Extract([]byte{0xff, 0xfe, 0xfd}, MimeText)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtractMarkdown(t *testing.T) {
	e := New(1024)
	src := "# Title\n\nFirst paragraph with **bold** text.\n\n- item one\n- item two\n"

	text, err := e.Extract([]byte(src), MimeMarkdown)
	require.NoError(t, err)

	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "First paragraph with bold text.")
	assert.Contains(t, text, "item one")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "#")
}

func TestExtractMimeParameterIgnored(t *testing.T) {
	e := New(1024)

	text, err := e.Extract([]byte("plain"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := New(1024)

	_, err := e.Extract([]byte("binary stuff"), "application/octet-stream")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtractPayloadTooLarge(t *testing.T) {
	e := New(10)

	_, err := e.Extract([]byte(strings.Repeat("a", 11)), MimeText)
	assert.ErrorIs(t, err, models.ErrPayloadTooLarge)
}

func TestExtractCorruptPDF(t *testing.T) {
	e := New(1024)

	_, err := e.Extract([]byte("not a pdf at all"), MimePDF)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtractDeterministic(t *testing.T) {
	e := New(1024)
	src := []byte("## Heading\n\nSame bytes, same text.\n")

	first, err := e.Extract(src, MimeMarkdown)
	require.NoError(t, err)
	second, err := e.Extract(src, MimeMarkdown)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
