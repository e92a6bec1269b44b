package post

import "strings"

const ellipsis = "…"

// Truncate derives a bounded-length preview of a post body. Text within
// the clip length passes through unchanged. Longer text is cut to
// clipLength-1 runes and, in word-boundary mode, trimmed back to the last
// space so no word is split; a single ellipsis rune is appended.
func Truncate(text string, clipLength int, useWordBoundary bool) string {
	if clipLength < 1 {
		clipLength = 1
	}
	runes := []rune(text)
	if len(runes) <= clipLength {
		return text
	}

	clipped := string(runes[:clipLength-1])
	if useWordBoundary {
		if idx := strings.LastIndex(clipped, " "); idx >= 0 {
			clipped = clipped[:idx]
		}
	}
	return clipped + ellipsis
}
