package kiwoom

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"marketfeed/internal/fetcher"
	"marketfeed/internal/ratelimit"
)

// Candle is one normalized daily price bar.
type Candle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ChartRequest describes one chart query after input normalization.
type ChartRequest struct {
	Symbol   string
	Count    int
	BaseDate string
	Adjusted bool
}

// Metadata carries upstream bookkeeping surfaced to the caller for
// diagnostics.
type Metadata struct {
	ReturnCode   json.RawMessage `json:"return_code,omitempty"`
	ReturnMsg    string          `json:"return_msg,omitempty"`
	RequestCount int             `json:"requestCount"`
	ContYn       string          `json:"contYn"`
	NextKey      string          `json:"nextKey"`
	TotalRaw     int             `json:"totalRaw"`
}

// ChartResult is the outcome of one chart fetch. Rows are sorted by date
// ascending and bounded to the requested count; RawCount is the number of
// distinct bars seen before truncation.
type ChartResult struct {
	Rows     []Candle
	RawCount int
	Metadata Metadata
}

const (
	defaultCount = 120
	minCount     = 20
	maxCount     = 500

	// Pagination is bounded so a misbehaving upstream cannot hold the
	// invocation open indefinitely.
	maxChartRequests = 20
)

var (
	digitRe    = regexp.MustCompile(`[0-9]+`)
	nonDigitRe = regexp.MustCompile(`[^0-9]`)
	numericRe  = regexp.MustCompile(`[^0-9+\-.]`)

	periodCodes = map[string]string{
		"day": "D", "daily": "D", "d": "D",
		"week": "W", "weekly": "W", "w": "W",
		"month": "M", "monthly": "M", "m": "M",
		"year": "Y", "yearly": "Y", "y": "Y",
	}
)

// ChartClient fetches daily candle charts.
type ChartClient struct {
	client *resty.Client
	tokens *TokenSource
	apiURL string
	apiID  string
}

// NewChartClient creates a chart client against apiURL, authenticating via
// tokens and identifying the call with the configured api-id header.
func NewChartClient(apiURL, apiID string, tokens *TokenSource) *ChartClient {
	return &ChartClient{
		client: fetcher.NewJSONClient(),
		tokens: tokens,
		apiURL: strings.TrimSpace(apiURL),
		apiID:  strings.TrimSpace(apiID),
	}
}

// Fetch retrieves up to req.Count daily bars ending at req.BaseDate,
// following upstream pagination via the cont-yn/next-key handshake. Bars are
// merged by date (later pages win) so a page overlap never duplicates a day.
func (c *ChartClient) Fetch(ctx context.Context, req ChartRequest) (ChartResult, error) {
	if c.apiURL == "" {
		return ChartResult{}, fetcher.NewValidationError("kiwoom chart API URL is not configured")
	}
	if c.apiID == "" {
		return ChartResult{}, fetcher.NewValidationError("kiwoom chart API ID is not configured")
	}

	adjusted := "0"
	if req.Adjusted {
		adjusted = "1"
	}
	payload := map[string]string{
		"stk_cd":       req.Symbol,
		"base_dt":      req.BaseDate,
		"upd_stkpc_tp": adjusted,
	}

	maxRequests := req.Count/100 + 1
	if maxRequests > maxChartRequests {
		maxRequests = maxChartRequests
	}

	merged := make(map[string]Candle)
	meta := Metadata{}
	contYn, nextKey := "", ""
	totalRaw := 0

	for requests := 0; requests < maxRequests && len(merged) < req.Count; {
		if err := ratelimit.GetLimiter().Wait(ctx, ratelimit.UpstreamKiwoom); err != nil {
			return ChartResult{}, err
		}

		resp, parsed, err := c.post(ctx, payload, contYn, nextKey, true)
		if err != nil {
			return ChartResult{}, err
		}
		requests++

		totalRaw += len(parsed.Rows)
		for _, row := range parsed.Rows {
			if candle, ok := sanitizeRow(row); ok {
				merged[candle.Date] = candle
			}
		}

		meta.ReturnCode = parsed.ReturnCode
		meta.ReturnMsg = parsed.ReturnMsg
		meta.RequestCount = requests

		contYn = strings.ToUpper(firstNonEmpty(resp.Header().Get("cont-yn"), parsed.ContYn))
		nextKey = firstNonEmpty(resp.Header().Get("next-key"), parsed.NextKey)
		if contYn != "Y" || nextKey == "" {
			break
		}
	}

	rows := make([]Candle, 0, len(merged))
	for _, candle := range merged {
		rows = append(rows, candle)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	rawCount := len(rows)
	if req.Count > 0 && len(rows) > req.Count {
		rows = rows[len(rows)-req.Count:]
	}

	meta.ContYn = contYn
	meta.NextKey = nextKey
	meta.TotalRaw = totalRaw

	return ChartResult{Rows: rows, RawCount: rawCount, Metadata: meta}, nil
}

// post issues one paginated chart request. A 401/403 invalidates the cached
// token and retries exactly once with a fresh one, unless the token is
// static and cannot be refreshed.
func (c *ChartClient) post(ctx context.Context, payload map[string]string, contYn, nextKey string, retry bool) (*resty.Response, *chartResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetHeader("api-id", c.apiID).
		SetHeader("Authorization", "Bearer "+token).
		SetBody(payload)
	if contYn == "Y" {
		req.SetHeader("cont-yn", "Y")
	}
	if nextKey != "" {
		req.SetHeader("next-key", nextKey)
	}

	resp, err := req.Post(c.apiURL)
	if err != nil {
		return nil, nil, fetcher.NewTransportError(0, err)
	}

	status := resp.StatusCode()
	if (status == 401 || status == 403) && retry && !c.tokens.Static() {
		c.tokens.Invalidate()
		return c.post(ctx, payload, contYn, nextKey, false)
	}
	if !resp.IsSuccess() {
		return nil, nil, &fetcher.Error{
			Type:       fetcher.ErrorTypeTransport,
			StatusCode: status,
			Message:    fmt.Sprintf("chart request failed: HTTP %d", status),
		}
	}

	var parsed chartResponse
	if err := json.Unmarshal(resp.Bytes(), &parsed); err != nil {
		return nil, nil, fetcher.NewParseError("chart response is not valid JSON")
	}
	return resp, &parsed, nil
}

// NormalizeSymbol reduces a caller-supplied symbol to the 6-digit exchange
// form, or "" when no digits remain.
func NormalizeSymbol(raw string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if digits == "" {
		return ""
	}
	if len(digits) < 6 {
		digits = strings.Repeat("0", 6-len(digits)) + digits
	}
	return digits[len(digits)-6:]
}

// ResolvePeriod maps caller-friendly period names to the upstream period
// code, defaulting to daily.
func ResolvePeriod(raw string) string {
	if code, ok := periodCodes[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return code
	}
	return "D"
}

// ClampCount parses the requested bar count, defaulting on garbage and
// bounding the result.
func ClampCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultCount
	}
	if n < minCount {
		return minCount
	}
	if n > maxCount {
		return maxCount
	}
	return n
}

// FormatBaseDate reduces a caller-supplied date to YYYYMMDD, falling back to
// today (KST-agnostic; the upstream interprets the value) when unusable.
func FormatBaseDate(raw string, now time.Time) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	if len(digits) >= 8 {
		return digits[:8]
	}
	return now.Format("20060102")
}

type chartResponse struct {
	Rows       []chartRow      `json:"stk_dt_pole_chart_qry"`
	ReturnCode json.RawMessage `json:"return_code,omitempty"`
	ReturnMsg  string          `json:"return_msg"`
	ContYn     string          `json:"cont-yn"`
	NextKey    string          `json:"next-key"`
}

// chartRow accepts the field spellings the upstream has been observed to
// use across API revisions.
type chartRow struct {
	Date      string `json:"dt"`
	DateAlt   string `json:"stck_bsop_date"`
	Close     string `json:"cur_prc"`
	CloseAlt  string `json:"stck_clpr"`
	Open      string `json:"open_pric"`
	OpenAlt   string `json:"stck_oprc"`
	High      string `json:"high_pric"`
	HighAlt   string `json:"stck_hgpr"`
	Low       string `json:"low_pric"`
	LowAlt    string `json:"stck_lwpr"`
	Volume    string `json:"trde_qty"`
	VolumeAlt string `json:"acml_vol"`
}

// sanitizeRow normalizes one raw bar. A bar without a usable date and close
// is dropped; missing OHLC fields fall back to values consistent with the
// close.
func sanitizeRow(row chartRow) (Candle, bool) {
	date := normalizeRowDate(firstNonEmpty(row.Date, row.DateAlt))
	closePrice, ok := safeNumber(firstNonEmpty(row.Close, row.CloseAlt))
	if date == "" || !ok {
		return Candle{}, false
	}

	open, ok := safeNumber(firstNonEmpty(row.Open, row.OpenAlt))
	if !ok {
		open = closePrice
	}
	high, ok := safeNumber(firstNonEmpty(row.High, row.HighAlt))
	if !ok {
		high = maxFloat(open, closePrice)
	}
	low, ok := safeNumber(firstNonEmpty(row.Low, row.LowAlt))
	if !ok {
		low = minFloat(open, closePrice)
	}
	volume, ok := safeNumber(firstNonEmpty(row.Volume, row.VolumeAlt))
	if !ok {
		volume = 0
	}

	return Candle{
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, true
}

func normalizeRowDate(raw string) string {
	digits := strings.Join(digitRe.FindAllString(raw, -1), "")
	if len(digits) < 8 {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", digits[:4], digits[4:6], digits[6:8])
}

// safeNumber parses a display-formatted number, tolerating signs and
// separators. Upstream prices often carry a +/- prefix.
func safeNumber(raw string) (float64, bool) {
	cleaned := numericRe.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
