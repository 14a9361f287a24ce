package fetcher

import (
	"time"

	"resty.dev/v3"
)

const (
	// Browser-like request headers. The upstream source blocks requests that
	// don't look like they came from a real browser.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHTML       = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptLanguage   = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"

	defaultTimeout = 15 * time.Second
)

// NewPageClient creates an HTTP client for scraping upstream HTML pages.
// Each invocation gets a fresh client; nothing is pooled across requests
// beyond the transport itself. Scraping fetches are single best-effort
// attempts, so no retry policy is configured.
func NewPageClient() *resty.Client {
	return resty.New().
		SetTimeout(defaultTimeout).
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Accept", acceptHTML).
		SetHeader("Accept-Language", acceptLanguage)
}

// NewJSONClient creates an HTTP client for JSON upstream APIs.
func NewJSONClient() *resty.Client {
	return resty.New().
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json, text/plain;q=0.9, */*;q=0.8")
}
