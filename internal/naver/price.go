package naver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	"marketfeed/internal/fetcher"
)

// PriceQuote is a live price for one ticker. PriceDate is nil when the quote
// timestamp could not be reconstructed from the page; the price itself is
// only ever emitted when it parsed as a finite positive integer.
type PriceQuote struct {
	Price     int     `json:"price"`
	PriceDate *string `json:"priceDate"`
	Source    string  `json:"source"`
}

var (
	todayBlockRe = regexp.MustCompile(`(?is)<p class="no_today">(.*?)</p>`)
	// First screen-reader span inside the price block carries the number.
	blindPriceRe = regexp.MustCompile(`(?i)<span class="blind">([\d,]+)</span>`)
	priceDateRe  = regexp.MustCompile(`(?i)<span class="date">([^<]+)</span>`)
	priceTimeRe  = regexp.MustCompile(`(?i)<span class="time">([^<]+)</span>`)
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)
)

// PriceFeed fetches live prices for a watchlist of tickers, one ticker at a
// time in input order, with a fixed pacing delay between fetches so the
// upstream source is never hammered.
type PriceFeed struct {
	client  *resty.Client
	baseURL string
	pacer   *rate.Limiter
}

// NewPriceFeed creates a price feed against the given single-ticker page URL.
func NewPriceFeed(baseURL string, delay time.Duration) *PriceFeed {
	if delay <= 0 {
		delay = 120 * time.Millisecond
	}
	// The price page only responds to requests that carry a Referer.
	client := fetcher.NewPageClient().
		SetHeader("Referer", "https://finance.naver.com/")
	return &PriceFeed{
		client:  client,
		baseURL: baseURL,
		pacer:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// FetchAll fetches each ticker sequentially. A failure on one ticker is
// recorded under its ticker key and does not abort the remaining tickers.
func (f *PriceFeed) FetchAll(ctx context.Context, tickers []string) (map[string]PriceQuote, map[string]string) {
	prices := make(map[string]PriceQuote, len(tickers))
	errs := make(map[string]string)

	for _, ticker := range tickers {
		if err := f.pacer.Wait(ctx); err != nil {
			errs[ticker] = err.Error()
			continue
		}

		quote, err := f.fetchOne(ctx, ticker)
		if err != nil {
			slog.Error("watchlist price fetch failed", "ticker", ticker, "error", err)
			errs[ticker] = tickerErrorMessage(err)
			continue
		}
		prices[ticker] = quote
	}

	return prices, errs
}

func (f *PriceFeed) fetchOne(ctx context.Context, ticker string) (PriceQuote, error) {
	if ticker == "" {
		return PriceQuote{}, fetcher.NewValidationError("유효하지 않은 종목 코드입니다.")
	}

	slog.Debug("fetching ticker price", "ticker", ticker)

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("code", ticker).
		Get(f.baseURL)
	if err != nil {
		return PriceQuote{}, fetcher.NewTransportError(0, err)
	}
	if !resp.IsSuccess() {
		return PriceQuote{}, fetcher.NewTransportError(resp.StatusCode(), nil)
	}

	price, priceDate, err := ParsePrice(fetcher.DecodeEUCKR(resp.Bytes()))
	if err != nil {
		return PriceQuote{}, err
	}

	return PriceQuote{Price: price, PriceDate: priceDate, Source: "naver"}, nil
}

// tickerErrorMessage maps a structured fetch error to the per-ticker message
// recorded in the batch response.
func tickerErrorMessage(err error) string {
	if fe, ok := fetcher.AsError(err); ok {
		if fe.Type == fetcher.ErrorTypeTransport && fe.StatusCode > 0 {
			return fmt.Sprintf("네이버 금융 요청 실패: HTTP %d", fe.StatusCode)
		}
		if fe.Type == fetcher.ErrorTypeParse || fe.Type == fetcher.ErrorTypeValidation {
			return fe.Message
		}
	}
	return err.Error()
}

// ParsePrice extracts the current price and quote timestamp from a decoded
// single-ticker page. The price must parse to a finite integer after
// removing thousands separators; the timestamp is best-effort and nil when
// it cannot be reconstructed.
func ParsePrice(html string) (int, *string, error) {
	if html == "" {
		return 0, nil, fetcher.NewParseError("빈 HTML 응답입니다.")
	}

	block := todayBlockRe.FindStringSubmatch(html)
	if block == nil {
		return 0, nil, fetcher.NewParseError("가격 블록을 찾을 수 없습니다.")
	}

	blind := blindPriceRe.FindStringSubmatch(block[1])
	if blind == nil {
		return 0, nil, fetcher.NewParseError("가격 숫자를 찾을 수 없습니다.")
	}

	price, err := strconv.Atoi(strings.ReplaceAll(blind[1], ",", ""))
	if err != nil {
		return 0, nil, fetcher.NewParseError("가격 숫자 변환에 실패했습니다.")
	}

	return price, parseQuoteTime(html), nil
}

// parseQuoteTime reconstructs the quote timestamp from the separate date and
// time spans, defaulting the time portion to midnight and anchoring to KST.
func parseQuoteTime(html string) *string {
	dateMatch := priceDateRe.FindStringSubmatch(html)
	if dateMatch == nil {
		return nil
	}

	dateDigits := nonDigitRe.ReplaceAllString(dateMatch[1], "")
	if len(dateDigits) < 8 {
		return nil
	}

	hour, minute := "00", "00"
	if timeMatch := priceTimeRe.FindStringSubmatch(html); timeMatch != nil {
		timeDigits := nonDigitRe.ReplaceAllString(timeMatch[1], "")
		if len(timeDigits) >= 2 {
			hour = timeDigits[:2]
			if len(timeDigits) >= 4 {
				minute = timeDigits[2:4]
			}
		}
	}

	candidate := fmt.Sprintf("%s-%s-%sT%s:%s:00+09:00",
		dateDigits[:4], dateDigits[4:6], dateDigits[6:8], hour, minute)
	t, err := time.Parse(time.RFC3339, candidate)
	if err != nil {
		return nil
	}

	iso := t.UTC().Format(time.RFC3339)
	return &iso
}
