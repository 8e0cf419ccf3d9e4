package markdown

import (
	"regexp"
	"strings"
)

// codeBlockPlaceholder replaces fenced code blocks, which are never read aloud.
const codeBlockPlaceholder = "[Code block skipped]"

var (
	codeBlockPattern  = regexp.MustCompile("(?s)```.*?```")
	boldPattern       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern     = regexp.MustCompile(`\*([^*]+)\*`)
	imagePattern      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	linkPattern       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	inlineCodePattern = regexp.MustCompile("`([^`]+)`")
	hrPattern         = regexp.MustCompile(`(?m)^(-{3,}|\*{3,}|_{3,})$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize strips markdown syntax from a fragment so it reads cleanly as
// speech. Transformations run in a fixed order so later patterns never
// re-match already stripped syntax; malformed markdown degrades to
// best-effort text rather than failing.
func Normalize(text string) string {
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")

	// Images before links: the image alt segment would otherwise match the
	// link pattern and leave a stray "!" behind.
	text = imagePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")

	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = hrPattern.ReplaceAllString(text, "")

	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, `\`, "")

	return strings.TrimSpace(text)
}

// stripCodeBlocks replaces fenced code blocks with a spoken placeholder.
// Applied once per document, before block splitting.
func stripCodeBlocks(content string) string {
	return codeBlockPattern.ReplaceAllString(content, codeBlockPlaceholder)
}
