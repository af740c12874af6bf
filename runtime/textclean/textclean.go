// Package textclean turns raw chat message text into plain text suitable for
// speech synthesis: HTML markup and markdown emphasis are stripped, inner text
// is kept, and whitespace is collapsed.
package textclean

import (
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Elements whose content is never spoken.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Block-level elements that end a spoken phrase.
var blockElements = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "ul": true, "ol": true, "table": true,
}

var (
	fencedCodeRegex   = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\n?(.*?)```")
	inlineCodeRegex   = regexp.MustCompile("`([^`]*)`")
	imageRegex        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRegex         = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	boldStarRegex     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderRegex    = regexp.MustCompile(`__(.+?)__`)
	italicStarRegex   = regexp.MustCompile(`\*([^*\s][^*]*?)\*`)
	italicUnderRegex  = regexp.MustCompile(`(^|[^\p{L}\p{N}_])_([^_\s][^_]*?)_([^\p{L}\p{N}_]|$)`)
	strikeRegex       = regexp.MustCompile(`~~(.+?)~~`)
	headingRegex      = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	blockquoteRegex   = regexp.MustCompile(`(?m)^\s*>\s?`)
	listBulletRegex   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	horizontalRegex   = regexp.MustCompile(`(?m)^\s*([-*_])(\s*([-*_])){2,}\s*$`)
	strayLeadRegex    = regexp.MustCompile(`(^|[\s(\["'])(?:\*{1,3}|~~)([\p{L}\p{N}])`)
	strayTrailRegex   = regexp.MustCompile(`([\p{L}\p{N}.,!?;:])(?:\*{1,3}|~~)($|[\s)\]"'.,!?;:])`)
	tagStartRegex     = regexp.MustCompile(`^(?:</?[A-Za-z][A-Za-z0-9-]*(?:\s[^<>]*)?/?>|<!--|<![A-Za-z][^<>]*>)`)
	multipleSpaceRule = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLinesRule    = regexp.MustCompile(`\s*\n\s*`)
)

// Clean returns the speakable plain text of raw. The result is empty when
// raw contains no speakable content.
//
//	Clean("**Bold** and <i>markup</i>") == "Bold and markup"
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	text := stripHTML(raw)
	text = stripMarkdown(text)
	return collapseWhitespace(text)
}

// IsEmpty reports whether raw has no speakable content once cleaned.
func IsEmpty(raw string) bool {
	return Clean(raw) == ""
}

// stripHTML keeps the text content of raw, dropping tags, comments and the
// content of non-rendered elements. Block elements become line breaks.
func stripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}
	escaped, markup := escapeLoneBrackets(raw)
	if !markup && !strings.Contains(raw, "&") {
		return raw
	}

	var b strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(escaped))
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			// io.EOF or malformed input; either way what we have is the text.
			return b.String()
		case xhtml.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] && tt == xhtml.StartTagToken {
				skipDepth++
				continue
			}
			if blockElements[tag] && skipDepth == 0 {
				b.WriteByte('\n')
			}
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if blockElements[tag] && skipDepth == 0 {
				b.WriteByte('\n')
			}
		}
	}
}

// escapeLoneBrackets escapes every '<' that does not open a tag or comment,
// so text such as "x<y and z" is not read as markup. It reports whether any
// markup was found.
func escapeLoneBrackets(raw string) (string, bool) {
	var b strings.Builder
	markup := false
	for {
		i := strings.IndexByte(raw, '<')
		if i < 0 {
			b.WriteString(raw)
			return b.String(), markup
		}
		b.WriteString(raw[:i])
		if tagStartRegex.MatchString(raw[i:]) {
			markup = true
			b.WriteByte('<')
		} else {
			b.WriteString("&lt;")
		}
		raw = raw[i+1:]
	}
}

func stripMarkdown(text string) string {
	text = fencedCodeRegex.ReplaceAllString(text, "$1")
	text = inlineCodeRegex.ReplaceAllString(text, "$1")
	text = imageRegex.ReplaceAllString(text, "$1")
	text = linkRegex.ReplaceAllString(text, "$1")
	text = horizontalRegex.ReplaceAllString(text, "")
	text = headingRegex.ReplaceAllString(text, "")
	text = blockquoteRegex.ReplaceAllString(text, "")
	text = listBulletRegex.ReplaceAllString(text, "")
	text = boldStarRegex.ReplaceAllString(text, "$1")
	text = boldUnderRegex.ReplaceAllString(text, "$1")
	text = strikeRegex.ReplaceAllString(text, "$1")
	text = italicStarRegex.ReplaceAllString(text, "$1")
	// Adjacent matches share their delimiter, so a second pass picks up the
	// ones the first skipped.
	text = italicUnderRegex.ReplaceAllString(text, "$1$2$3")
	text = italicUnderRegex.ReplaceAllString(text, "$1$2$3")
	// Unbalanced markers left on a word edge; "2 * 3" keeps its operator.
	text = strayLeadRegex.ReplaceAllString(text, "$1$2")
	return strayTrailRegex.ReplaceAllString(text, "$1$2")
}

func collapseWhitespace(text string) string {
	text = multipleSpaceRule.ReplaceAllString(text, " ")
	text = blankLinesRule.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
