package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// ClipArticle shortens text to at most maxChars runes, cutting on paragraph,
// line or word boundaries. maxChars <= 0 disables clipping.
func ClipArticle(text string, maxChars int) (string, error) {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, nil
	}
	chunk := maxChars / 4
	if chunk < 200 {
		chunk = min(200, maxChars)
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunk),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return "", fmt.Errorf("clip article: %w", err)
	}
	var sb strings.Builder
	n := 0
	for _, c := range chunks {
		cl := utf8.RuneCountInString(c)
		sep := 0
		if n > 0 {
			sep = 1
		}
		if n+sep+cl > maxChars {
			break
		}
		if sep > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(c)
		n += sep + cl
	}
	if n == 0 {
		return string([]rune(text)[:maxChars]), nil
	}
	return sb.String(), nil
}
