package client

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextShortTextIsSingleChunk(t *testing.T) {
	assert.Equal(t, []string{"hello"}, ChunkText("hello", 10))
	assert.Equal(t, []string{""}, ChunkText("", 10))
}

func TestChunkTextKeepsWholeLines(t *testing.T) {
	text := "line one\nline two\nline three"
	chunks := ChunkText(text, 18)
	assert.Equal(t, []string{"line one\nline two", "line three"}, chunks)
	assert.Equal(t, text, strings.Join(chunks, "\n"))
}

func TestChunkTextKeepsBlankLinesAtChunkBoundaries(t *testing.T) {
	text := "Sat 17 Oct\n\n09:00 Lesson\n\n10:00 Lesson"
	chunks := ChunkText(text, 13)
	assert.Equal(t, []string{"Sat 17 Oct\n", "09:00 Lesson\n", "10:00 Lesson"}, chunks)
	assert.Equal(t, text, strings.Join(chunks, "\n"))
}

func TestChunkTextBlankLinesNeverFormAChunk(t *testing.T) {
	text := "Sat 17 Oct\n\n09:00 Lesson\n\n10:00 Lesson\n\n"
	chunks := ChunkText(text, 12)
	assert.Equal(t, []string{"Sat 17 Oct\n", "09:00 Lesson", "10:00 Lesson"}, chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestChunkTextSplitsLongLinesByRune(t *testing.T) {
	text := strings.Repeat("🌊", 25)
	chunks := ChunkText(text, 10)
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 10)
		assert.True(t, utf8.ValidString(chunk))
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkTextNeverExceedsLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(strings.Repeat("x", i%37))
		b.WriteString("\n")
	}
	for _, chunk := range ChunkText(b.String(), 50) {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}
