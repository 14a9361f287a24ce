package naver

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"resty.dev/v3"

	"marketfeed/internal/fetcher"
	"marketfeed/internal/markup"
)

// Snapshot is one dated set of ranked net-buy rows for a trading session.
// The sort key is internal and never serialized.
type Snapshot struct {
	AsOf      string       `json:"asOf"`
	AsOfLabel string       `json:"asOfLabel"`
	Items     []NetBuyItem `json:"items"`

	sortValue int64
}

// NetBuyItem is one ranked row of the foreign net-buy table. Quantity,
// amount and volume keep the upstream display formatting verbatim.
type NetBuyItem struct {
	Rank          int    `json:"rank"`
	Name          string `json:"name"`
	Code          string `json:"code"`
	Quantity      string `json:"quantity"`
	Amount        string `json:"amount"`
	TradingVolume string `json:"tradingVolume"`
}

const (
	netBuyMaxRows = 30

	sectionMarker = `<div class="box_type_ms"`
	sectionEnd    = `<div class="c">`
)

var (
	guideDateRe = regexp.MustCompile(`(?i)<div class="sise_guide_date">([^<]*)</div>`)
	// The one table per section whose summary says "net buy".
	netBuyTableRe = regexp.MustCompile(`(?is)<table[^>]*summary="[^"]*순매수[^"]*".*?</table>`)
	sessionDateRe = regexp.MustCompile(`(\d{2})[./-](\d{2})[./-](\d{2})`)
	headerRowRe   = regexp.MustCompile(`(?i)(<th|colspan)`)
)

// NetBuyFeed fetches and parses the foreign net-buy ranking page.
type NetBuyFeed struct {
	client *resty.Client
	url    string
}

// NewNetBuyFeed creates a net-buy feed scraping the given page URL.
func NewNetBuyFeed(url string) *NetBuyFeed {
	return &NetBuyFeed{
		client: fetcher.NewPageClient(),
		url:    url,
	}
}

// Source returns the upstream URL the feed scrapes.
func (f *NetBuyFeed) Source() string {
	return f.url
}

// Fetch retrieves the page and returns its snapshots, most recent first.
func (f *NetBuyFeed) Fetch(ctx context.Context) ([]Snapshot, error) {
	doc, err := fetchDocument(ctx, f.client, f.url)
	if err != nil {
		return nil, err
	}

	snapshots := ParseNetBuy(doc)
	if len(snapshots) == 0 {
		return nil, fetcher.NewParseError("no net-buy sections found in upstream document")
	}
	return snapshots, nil
}

// ParseNetBuy splits the decoded document into date-stamped sections and
// parses each section's net-buy table. Sections are deduplicated by date
// (later occurrence wins) and ordered most recent first. A section with an
// unparsable date sorts last rather than being dropped, so one malformed
// date cannot hide the section.
func ParseNetBuy(html string) []Snapshot {
	parts := strings.Split(html, sectionMarker)
	if len(parts) < 2 {
		return nil
	}

	var snapshots []Snapshot
	seen := make(map[string]int)

	for _, part := range parts[1:] {
		if end := strings.Index(part, sectionEnd); end >= 0 {
			part = part[:end]
		}

		var rawDate string
		if m := guideDateRe.FindStringSubmatch(part); m != nil {
			rawDate = m[1]
		}
		asOf, label, sortValue := normalizeDateLabel(rawDate)

		items := parseNetBuyRows(netBuyTableRe.FindString(part))
		if len(items) == 0 {
			continue
		}

		snap := Snapshot{AsOf: asOf, AsOfLabel: label, Items: items, sortValue: sortValue}
		if idx, ok := seen[asOf]; ok {
			snapshots[idx] = snap
			continue
		}
		seen[asOf] = len(snapshots)
		snapshots = append(snapshots, snap)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].sortValue > snapshots[j].sortValue
	})
	return snapshots
}

func parseNetBuyRows(tableHTML string) []NetBuyItem {
	if tableHTML == "" {
		return nil
	}

	var items []NetBuyItem
	for _, row := range markup.Rows(tableHTML) {
		if headerRowRe.MatchString(row) {
			continue
		}

		cells := markup.Cells(row)
		if len(cells) < 4 {
			continue
		}

		name := markup.StripTags(cells[0])
		if name == "" {
			continue
		}

		items = append(items, NetBuyItem{
			Rank:          len(items) + 1,
			Name:          name,
			Code:          markup.ExtractCode(cells[0]),
			Quantity:      markup.StripTags(cells[1]),
			Amount:        markup.StripTags(cells[2]),
			TradingVolume: markup.StripTags(cells[3]),
		})
		if len(items) == netBuyMaxRows {
			break
		}
	}
	return items
}

// normalizeDateLabel canonicalizes a session date in YY.MM.DD form (mixed
// separators) to an ISO date plus a localized label. The sort value is the
// KST midnight epoch; unparsable dates get the minimum sort value so they
// order after every parsable date.
func normalizeDateLabel(raw string) (asOf, label string, sortValue int64) {
	trimmed := strings.TrimSpace(raw)

	m := sessionDateRe.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed, trimmed, math.MinInt64
	}

	yy, _ := strconv.Atoi(m[1])
	year := 2000 + yy
	asOf = fmt.Sprintf("%04d-%s-%s", year, m[2], m[3])
	label = fmt.Sprintf("%d년 %s월 %s일", year, m[2], m[3])

	t, err := time.ParseInLocation("2006-01-02", asOf, kst)
	if err != nil {
		return asOf, label, math.MinInt64
	}
	return asOf, label, t.UnixMilli()
}
