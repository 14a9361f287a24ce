package naver

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"resty.dev/v3"

	"marketfeed/internal/fetcher"
	"marketfeed/internal/markup"
)

// PopularItem is one row of the most-searched stocks ranking. All fields
// but the rank keep the upstream display formatting verbatim.
type PopularItem struct {
	Rank        int    `json:"rank"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	SearchRatio string `json:"searchRatio"`
	Price       string `json:"price"`
	Change      string `json:"change"`
	Rate        string `json:"rate"`
	Volume      string `json:"volume"`
	Open        string `json:"open"`
	High        string `json:"high"`
	Low         string `json:"low"`
}

const popularMaxRows = 30

// Data rows carry the "no" class marker on the rank cell.
var popularRowClassRe = regexp.MustCompile(`(?i)class\s*=\s*"[^"]*\bno\b`)

// PopularFeed fetches and parses the most-searched stocks page.
type PopularFeed struct {
	client *resty.Client
	url    string
}

// NewPopularFeed creates a popular-stocks feed scraping the given page URL.
func NewPopularFeed(url string) *PopularFeed {
	return &PopularFeed{
		client: fetcher.NewPageClient(),
		url:    url,
	}
}

// Source returns the upstream URL the feed scrapes.
func (f *PopularFeed) Source() string {
	return f.url
}

// Fetch retrieves the page and returns its rows ordered by rank ascending.
func (f *PopularFeed) Fetch(ctx context.Context) ([]PopularItem, error) {
	doc, err := fetchDocument(ctx, f.client, f.url)
	if err != nil {
		return nil, err
	}

	items := ParsePopularStocks(doc)
	if len(items) == 0 {
		return nil, fetcher.NewParseError("no popular stock rows found in upstream document")
	}
	return items, nil
}

// ParsePopularStocks tokenizes rows carrying the data-row class marker.
// A row is discarded when its first cell does not parse as an integer rank.
// Final ordering is by parsed rank ascending, not row order.
func ParsePopularStocks(html string) []PopularItem {
	var items []PopularItem

	for _, row := range markup.Rows(html) {
		if !popularRowClassRe.MatchString(row) {
			continue
		}

		cells := markup.Cells(row)
		if len(cells) < 10 {
			continue
		}

		rank, err := strconv.Atoi(markup.StripTags(cells[0]))
		if err != nil {
			continue
		}

		items = append(items, PopularItem{
			Rank:        rank,
			Name:        markup.StripTags(cells[1]),
			Code:        markup.ExtractCode(cells[1]),
			SearchRatio: markup.StripTags(cells[2]),
			Price:       markup.StripTags(cells[3]),
			Change:      markup.StripTags(cells[4]),
			Rate:        markup.StripTags(cells[5]),
			Volume:      markup.StripTags(cells[6]),
			Open:        markup.StripTags(cells[7]),
			High:        markup.StripTags(cells[8]),
			Low:         markup.StripTags(cells[9]),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Rank < items[j].Rank
	})
	if len(items) > popularMaxRows {
		items = items[:popularMaxRows]
	}
	return items
}
