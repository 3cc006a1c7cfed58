package client

import (
	"strings"
	"unicode/utf8"
)

// ChunkText splits text into pieces of at most limit characters, breaking
// between lines where possible. Lines longer than limit are split hard.
// Joining the chunks with newlines restores the text, except that blank lines
// which cannot start the next chunk within the limit collapse into the boundary.
func ChunkText(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen, currentLines := 0, 0
	currentBlank := true

	reset := func() {
		current.Reset()
		currentLen, currentLines = 0, 0
		currentBlank = true
	}
	flush := func() {
		if currentLines > 0 {
			chunks = append(chunks, current.String())
		}
		reset()
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)

		if lineLen > limit {
			if currentBlank {
				reset()
			} else {
				flush()
			}
			runes := []rune(line)
			for len(runes) > limit {
				chunks = append(chunks, string(runes[:limit]))
				runes = runes[limit:]
			}
			current.WriteString(string(runes))
			currentLen, currentLines = len(runes), 1
			currentBlank = false
			continue
		}

		sep := 0
		if currentLines > 0 {
			sep = 1
		}
		if currentLen+sep+lineLen > limit {
			if currentBlank {
				reset()
			} else {
				flush()
			}
			sep = 0
		}
		if sep == 1 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
		currentLen += sep + lineLen
		currentLines++
		currentBlank = currentBlank && line == ""
	}
	if !currentBlank || len(chunks) == 0 {
		flush()
	}

	return chunks
}
