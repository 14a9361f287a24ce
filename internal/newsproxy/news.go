// Package newsproxy forwards news queries to the JSON news backend and
// sanitizes the result into a stable item shape.
package newsproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"resty.dev/v3"

	"marketfeed/internal/fetcher"
	"marketfeed/internal/ratelimit"
)

// Item is one sanitized news entry. Missing upstream fields are replaced
// with localized placeholders so the caller never sees holes.
type Item struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Link       string `json:"link"`
	PostDate   string `json:"post_date"`
	SourceName string `json:"source_name"`
	Platform   string `json:"platform"`
}

const (
	defaultKeyword = "주식 경제"
	defaultCount   = 5
	maxCount       = 50
)

var looksLikeJSONRe = regexp.MustCompile(`^\s*[\[{]`)

// Client fetches news from the configured backend.
type Client struct {
	client  *resty.Client
	baseURL string
}

// New creates a news client. apiKey is optional and sent as x-api-key when set.
func New(baseURL, apiKey string) *Client {
	client := fetcher.NewJSONClient()
	if apiKey != "" {
		client.SetHeader("x-api-key", apiKey)
	}
	return &Client{
		client:  client,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// Fetch retrieves news items for the raw caller-supplied keyword and count.
// The keyword defaults when blank; the count is clamped to 1..50.
func (c *Client) Fetch(ctx context.Context, keyword, rawCount string) ([]Item, error) {
	if err := ratelimit.GetLimiter().Wait(ctx, ratelimit.UpstreamNews); err != nil {
		return nil, err
	}

	kw := strings.TrimSpace(keyword)
	if kw == "" {
		kw = defaultKeyword
	}

	slog.Debug("fetching news", "keyword", kw, "count", clampCount(rawCount))

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"keyword": kw,
			"count":   strconv.Itoa(clampCount(rawCount)),
		}).
		Get(c.baseURL + "/api/news")
	if err != nil {
		return nil, fetcher.NewTransportError(0, err)
	}

	body := resp.Bytes()
	if !resp.IsSuccess() {
		return nil, &fetcher.Error{
			Type:       fetcher.ErrorTypeTransport,
			StatusCode: resp.StatusCode(),
			Message:    upstreamErrorText(body, resp.StatusCode()),
		}
	}

	parsed := parseMaybeJSON(body, resp.Header().Get("Content-Type"))
	var raw []rawItem
	if parsed == nil || json.Unmarshal(parsed, &raw) != nil {
		return nil, fetcher.NewParseError("뉴스 데이터 형식이 올바르지 않습니다.")
	}

	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, r.sanitize())
	}
	return items, nil
}

// clampCount parses the raw count, defaulting on garbage and bounding the
// result so a caller cannot request an unbounded upstream page.
func clampCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultCount
	}
	if n < 1 {
		return 1
	}
	if n > maxCount {
		return maxCount
	}
	return n
}

// parseMaybeJSON returns the body when it either looks like JSON or the
// upstream declared it as such, nil otherwise.
func parseMaybeJSON(body []byte, contentType string) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if !looksLikeJSONRe.Match(body) && !strings.Contains(contentType, "application/json") {
		return nil
	}
	if !json.Valid(body) {
		return nil
	}
	return body
}

// upstreamErrorText recovers the most useful error text from a failed
// upstream response: its JSON error field, its raw body, or the status.
func upstreamErrorText(body []byte, status int) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	if len(body) > 0 {
		return string(body)
	}
	return fmt.Sprintf("upstream request failed with status %d", status)
}

type rawItem struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	Link          *string `json:"link"`
	PostDate      *string `json:"post_date"`
	PostDateAlt   *string `json:"postDate"`
	SourceName    *string `json:"source_name"`
	SourceNameAlt *string `json:"sourceName"`
	Platform      *string `json:"platform"`
}

func (r rawItem) sanitize() Item {
	return Item{
		Title:      orDefault(r.Title, "제목 없음"),
		Content:    orDefault(r.Content, "내용이 제공되지 않았습니다."),
		Link:       orDefault(r.Link, ""),
		PostDate:   orDefault(coalesce(r.PostDate, r.PostDateAlt), ""),
		SourceName: orDefault(coalesce(r.SourceName, r.SourceNameAlt), ""),
		Platform:   orDefault(r.Platform, "news"),
	}
}

func coalesce(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func orDefault(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
