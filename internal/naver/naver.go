// Package naver fetches and parses market-data pages from Naver Finance.
// The upstream is a public website with no API contract: pages are EUC-KR
// encoded and tokenized with the regex primitives in internal/markup
// rather than a DOM parser. Each feed is an independent fetch-parse-
// normalize operation with no state shared across invocations.
package naver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"resty.dev/v3"

	"marketfeed/internal/fetcher"
	"marketfeed/internal/ratelimit"
)

// All session dates and quote timestamps are anchored to Korea Standard Time.
var kst = time.FixedZone("KST", 9*60*60)

// fetchDocument retrieves one upstream page and decodes it to UTF-8.
// A single failed fetch is terminal for the operation; there are no retries.
func fetchDocument(ctx context.Context, client *resty.Client, url string) (string, error) {
	if err := ratelimit.GetLimiter().Wait(ctx, ratelimit.UpstreamNaver); err != nil {
		return "", err
	}

	slog.Debug("fetching upstream page", "url", url)

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fetcher.NewTransportError(0, err)
	}
	if !resp.IsSuccess() {
		return "", fetcher.NewTransportError(resp.StatusCode(), nil)
	}

	return fetcher.DecodeEUCKR(resp.Bytes()), nil
}

// absoluteURL resolves page-relative links against the upstream host.
func absoluteURL(url string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://finance.naver.com" + url
}
