package naver

import (
	"context"
	"regexp"

	"resty.dev/v3"

	"marketfeed/internal/fetcher"
	"marketfeed/internal/markup"
)

// ThemeLeader is a representative stock cell within a theme row. Direction
// carries the arrow-icon semantics from the cell's alt attribute.
type ThemeLeader struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	Direction string `json:"direction"`
	Link      string `json:"link"`
}

// ThemeRow is one row of the theme leaderboard. The count and rate fields
// keep the upstream display formatting verbatim.
type ThemeRow struct {
	Name                  string        `json:"name"`
	ThemeCode             string        `json:"themeCode"`
	ThemeLink             string        `json:"themeLink"`
	ChangeRate            string        `json:"changeRate"`
	AverageThreeDayChange string        `json:"averageThreeDayChange"`
	RisingCount           string        `json:"risingCount"`
	FlatCount             string        `json:"flatCount"`
	FallingCount          string        `json:"fallingCount"`
	Leaders               []ThemeLeader `json:"leaders"`
}

const themeMaxRows = 50

var (
	blankRowRe  = regexp.MustCompile(`(?i)class\s*=\s*"[^"]*(blank|division)`)
	themeDataRe = regexp.MustCompile(`(?i)col_type1`)
	themeIDRe   = regexp.MustCompile(`(?i)no=([0-9]+)`)
)

// ThemeFeed fetches and parses the theme leaderboard page.
type ThemeFeed struct {
	client *resty.Client
	url    string
}

// NewThemeFeed creates a theme feed scraping the given page URL. The theme
// page requires a Referer to serve its full table.
func NewThemeFeed(url string) *ThemeFeed {
	client := fetcher.NewPageClient().
		SetHeader("Referer", "https://finance.naver.com/")
	return &ThemeFeed{
		client: client,
		url:    url,
	}
}

// Source returns the upstream URL the feed scrapes.
func (f *ThemeFeed) Source() string {
	return f.url
}

// Fetch retrieves the page and returns its rows in document order.
func (f *ThemeFeed) Fetch(ctx context.Context) ([]ThemeRow, error) {
	doc, err := fetchDocument(ctx, f.client, f.url)
	if err != nil {
		return nil, err
	}

	rows := ParseThemeRows(doc)
	if len(rows) == 0 {
		return nil, fetcher.NewParseError("no theme rows found in upstream document")
	}
	return rows, nil
}

// ParseThemeRows tokenizes the leaderboard rows, skipping blank/divider rows
// and rows without the data-row marker. A theme row with no resolvable name
// is dropped entirely; document order is preserved.
func ParseThemeRows(html string) []ThemeRow {
	var rows []ThemeRow

	for _, row := range markup.Rows(html) {
		if blankRowRe.MatchString(row) {
			continue
		}
		if !themeDataRe.MatchString(row) {
			continue
		}

		cells := markup.Cells(row)
		if len(cells) < 7 {
			continue
		}

		themeAnchor := markup.ExtractAnchorInfo(cells[0])
		name := themeAnchor.Title
		if name == "" {
			name = themeAnchor.Text
		}
		if name == "" {
			continue
		}

		leaders := make([]ThemeLeader, 0, 2)
		end := len(cells)
		if end > 8 {
			end = 8
		}
		for _, cell := range cells[6:end] {
			if leader, ok := parseLeaderCell(cell); ok {
				leaders = append(leaders, leader)
			}
		}

		rows = append(rows, ThemeRow{
			Name:                  name,
			ThemeCode:             extractThemeID(themeAnchor.Href),
			ThemeLink:             absoluteURL(themeAnchor.Href),
			ChangeRate:            markup.StripTags(cells[1]),
			AverageThreeDayChange: markup.StripTags(cells[2]),
			RisingCount:           markup.StripTags(cells[3]),
			FlatCount:             markup.StripTags(cells[4]),
			FallingCount:          markup.StripTags(cells[5]),
			Leaders:               leaders,
		})
		if len(rows) == themeMaxRows {
			break
		}
	}
	return rows
}

// parseLeaderCell extracts one leader stock. A cell without a resolvable
// link, or with neither text nor title, is discarded.
func parseLeaderCell(cellHTML string) (ThemeLeader, bool) {
	anchor := markup.ExtractAnchorInfo(cellHTML)
	if anchor.Href == "" || (anchor.Text == "" && anchor.Title == "") {
		return ThemeLeader{}, false
	}

	name := anchor.Title
	if name == "" {
		name = anchor.Text
	}

	return ThemeLeader{
		Name:      name,
		Code:      markup.ExtractCode(anchor.Href),
		Direction: markup.ExtractAttribute(cellHTML, "alt"),
		Link:      absoluteURL(anchor.Href),
	}, true
}

func extractThemeID(href string) string {
	m := themeIDRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}
