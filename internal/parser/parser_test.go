package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	text, err := Parse([]byte("hello world"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestParseMarkdown(t *testing.T) {
	md := "# Title\n\nSome *emphasised* text with a [link](https://example.com).\n\n```\ncode block\n```\n"
	text, err := Parse([]byte(md), "doc.md")
	require.NoError(t, err)

	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "emphasised")
	assert.Contains(t, text, "link")
	assert.Contains(t, text, "code block")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "*")
	assert.NotContains(t, text, "https://example.com")
}

func TestParseMarkdownSoftBreaks(t *testing.T) {
	text, err := Parse([]byte("line one\nline two"), "doc.markdown")
	require.NoError(t, err)
	assert.Contains(t, text, "line one\nline two")
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("data"), "archive.zip")
	require.Error(t, err)

	var unsupported *UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, ".zip", unsupported.Ext)
	assert.Equal(t, "archive.zip", unsupported.Name)
}

func TestParseNoExtension(t *testing.T) {
	_, err := Parse([]byte("data"), "README")
	var unsupported *UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))
}

func TestParseExtensionCaseInsensitive(t *testing.T) {
	text, err := Parse([]byte("upper"), "NOTES.TXT")
	require.NoError(t, err)
	assert.Equal(t, "upper", text)
}

func buildPPTX(t *testing.T, slides map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range slides {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParsePPTX(t *testing.T) {
	data := buildPPTX(t, map[string]string{
		"ppt/slides/slide1.xml":           `<p:sp><a:t>First slide</a:t><a:t>more text</a:t></p:sp>`,
		"ppt/slides/slide2.xml":           `<p:sp><a:t>Second slide</a:t></p:sp>`,
		"ppt/notesSlides/notesSlide1.xml": `<p:sp><a:t>speaker notes</a:t></p:sp>`,
	})

	text, err := Parse(data, "deck.pptx")
	require.NoError(t, err)

	assert.Contains(t, text, "First slide")
	assert.Contains(t, text, "more text")
	assert.Contains(t, text, "Second slide")
	assert.NotContains(t, text, "speaker notes")
	assert.NotContains(t, text, "<a:t>")
}

func TestParsePPTXNotAnArchive(t *testing.T) {
	_, err := Parse([]byte("not a zip"), "deck.pptx")
	assert.Error(t, err)
}

func TestExtractTextRuns(t *testing.T) {
	assert.Equal(t, "a b ", extractTextRuns("<a:r><a:t>a</a:t></a:r><a:r><a:t>b</a:t></a:r>"))
	assert.Equal(t, "", extractTextRuns("<p:sp>no runs</p:sp>"))
}

func TestStripXMLTags(t *testing.T) {
	assert.Equal(t, "hello world", stripXMLTags("<w:p><w:t>hello</w:t></w:p> world"))
	assert.Equal(t, "plain", stripXMLTags("plain"))
}
