// Package markup provides regex-driven extraction primitives for the narrow
// HTML subset served by the upstream source. The pages are internally
// consistent but not well-formed XML, so a permissive tokenizer is more
// robust here than a strict DOM parser that would reject minor
// malformations occurring in production pages.
package markup

import (
	"regexp"
	"strings"
)

var (
	brRe     = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	nbspRe   = regexp.MustCompile(`(?i)&nbsp;`)
	ampRe    = regexp.MustCompile(`(?i)&amp;`)
	aposRe   = regexp.MustCompile(`(?i)&#039;`)
	quotRe   = regexp.MustCompile(`(?i)&quot;`)
	spaceRe  = regexp.MustCompile(`\s+`)
	codeRe   = regexp.MustCompile(`(?i)code=([0-9A-Z]+)`)
	anchorRe = regexp.MustCompile(`(?is)<a[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	titleRe  = regexp.MustCompile(`(?i)title="([^"]*)"`)
	rowRe    = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellRe   = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
)

// StripTags replaces <br> variants with a space, removes all remaining tags,
// decodes a small set of HTML entities, collapses whitespace runs and trims.
// It is idempotent and returns "" for empty input.
func StripTags(html string) string {
	if html == "" {
		return ""
	}

	s := brRe.ReplaceAllString(html, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = nbspRe.ReplaceAllString(s, " ")
	s = ampRe.ReplaceAllString(s, "&")
	s = aposRe.ReplaceAllString(s, "'")
	s = quotRe.ReplaceAllString(s, `"`)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExtractAttribute returns the value of the first case-insensitive
// name="value" match, or "" when the attribute is absent.
func ExtractAttribute(html, name string) string {
	if html == "" || name == "" {
		return ""
	}

	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(name) + `="([^"]*)"`)
	if err != nil {
		return ""
	}

	match := re.FindStringSubmatch(html)
	if match == nil {
		return ""
	}
	return match[1]
}

// AnchorInfo holds the target, tag-stripped inner text and tag-stripped
// title of an anchor element.
type AnchorInfo struct {
	Href  string
	Text  string
	Title string
}

// ExtractAnchorInfo parses the first <a ...>...</a> in html. When no anchor
// exists, Href and Title are empty and Text is the tag-stripped whole input.
func ExtractAnchorInfo(html string) AnchorInfo {
	match := anchorRe.FindStringSubmatch(html)
	if match == nil {
		return AnchorInfo{Text: StripTags(html)}
	}

	var title string
	if titleMatch := titleRe.FindStringSubmatch(match[0]); titleMatch != nil {
		title = titleMatch[1]
	}

	return AnchorInfo{
		Href:  match[1],
		Text:  StripTags(match[2]),
		Title: StripTags(title),
	}
}

// ExtractCode returns the value of the first code= query parameter found in
// html, or "". Exchange tickers are recovered pervasively from links this way.
func ExtractCode(html string) string {
	match := codeRe.FindStringSubmatch(html)
	if match == nil {
		return ""
	}
	return match[1]
}

// Rows returns the inner content of each <tr> element in document order.
func Rows(html string) []string {
	matches := rowRe.FindAllStringSubmatch(html, -1)
	rows := make([]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, m[1])
	}
	return rows
}

// Cells returns the inner content of each <td> element in a row.
func Cells(row string) []string {
	matches := cellRe.FindAllStringSubmatch(row, -1)
	cells := make([]string, 0, len(matches))
	for _, m := range matches {
		cells = append(cells, m[1])
	}
	return cells
}
