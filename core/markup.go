package conversation

import (
	"regexp"
	"strings"
)

var (
	codeFencePattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern = regexp.MustCompile("`([^`]*)`")
	imagePattern      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	boldPattern       = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicPattern     = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	headerPattern     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bulletPattern     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	blockquotePattern = regexp.MustCompile(`(?m)^>\s?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// stripMarkup reduces a markdown-formatted answer to the plain sentences a
// narration voice should actually read. Code fences are dropped entirely,
// links and images collapse to their label, and emphasis and structural
// markers lose their punctuation.
func stripMarkup(text string) string {
	text = codeFencePattern.ReplaceAllString(text, " ")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = imagePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = boldPattern.ReplaceAllString(text, "$1$2")
	text = italicPattern.ReplaceAllString(text, "$1$2")
	text = headerPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = blockquotePattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
