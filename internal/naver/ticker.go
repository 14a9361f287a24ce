package naver

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRe   = regexp.MustCompile(`[^0-9A-Z]`)
	digitsOnlyRe = regexp.MustCompile(`^[0-9]+$`)
)

// NormalizeTicker canonicalizes a caller-supplied ticker: uppercase, strip
// everything but digits and uppercase letters, and left-zero-pad pure
// numeric codes to the 6-digit exchange form. Returns "" when nothing
// usable remains.
func NormalizeTicker(raw string) string {
	cleaned := nonAlnumRe.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")
	if cleaned == "" {
		return ""
	}

	if digitsOnlyRe.MatchString(cleaned) {
		if len(cleaned) < 6 {
			cleaned = strings.Repeat("0", 6-len(cleaned)) + cleaned
		}
		return cleaned[len(cleaned)-6:]
	}

	return cleaned
}

// DedupeTickers removes duplicates while preserving first-seen order.
func DedupeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
