package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketfeed/internal/fetcher"
	"marketfeed/internal/kiwoom"
	"marketfeed/internal/naver"
)

const (
	feedCacheTTL  = 2 * time.Minute
	themeCacheTTL = 3 * time.Minute
	chartCacheTTL = time.Minute

	maxBodySize = 1 << 20
)

var kst = time.FixedZone("KST", 9*60*60)

// feedMessages are the localized error strings for one feed endpoint.
type feedMessages struct {
	fetchFailed string
	parseFailed string
	unexpected  string
}

var (
	netBuyMessages = feedMessages{
		fetchFailed: "네이버 금융 페이지를 불러오는 데 실패했습니다.",
		parseFailed: "외국인 순매수 데이터를 파싱하지 못했습니다.",
		unexpected:  "외국인 순매수 데이터를 불러오는 중 오류가 발생했습니다.",
	}
	popularMessages = feedMessages{
		fetchFailed: "네이버 금융 페이지를 불러오는 데 실패했습니다.",
		parseFailed: "인기 종목 데이터를 파싱하지 못했습니다.",
		unexpected:  "인기 종목 데이터를 불러오는 중 오류가 발생했습니다.",
	}
	themeMessages = feedMessages{
		fetchFailed: "네이버 금융 테마 페이지를 불러오는 데 실패했습니다.",
		parseFailed: "테마 데이터를 파싱하지 못했습니다.",
		unexpected:  "테마 데이터를 불러오는 중 오류가 발생했습니다.",
	}
)

func (s *Server) handleNetBuy(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.netBuy.Fetch(r.Context())
	if err != nil {
		writeFeedError(w, err, netBuyMessages)
		return
	}

	latest := snapshots[0]
	writeJSON(w, http.StatusOK, map[string]any{
		"asOf":      latest.AsOf,
		"asOfLabel": latest.AsOfLabel,
		"items":     latest.Items,
		"latest":    latest,
		"snapshots": snapshots,
		"source":    s.netBuy.Source(),
	}, feedCacheTTL)
}

func (s *Server) handlePopularStocks(w http.ResponseWriter, r *http.Request) {
	items, err := s.popular.Fetch(r.Context())
	if err != nil {
		writeFeedError(w, err, popularMessages)
		return
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"asOf":      now.UTC().Format(time.RFC3339),
		"asOfLabel": koreanDateTimeLabel(now),
		"items":     items,
		"source":    s.popular.Source(),
	}, feedCacheTTL)
}

func (s *Server) handleThemeLeaders(w http.ResponseWriter, r *http.Request) {
	rows, err := s.themes.Fetch(r.Context())
	if err != nil {
		writeFeedError(w, err, themeMessages)
		return
	}

	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"asOf":      now.UTC().Format(time.RFC3339),
		"asOfLabel": koreanDateTimeLabel(now),
		"items":     rows,
		"source":    s.themes.Source(),
	}, themeCacheTTL)
}

func (s *Server) handleWatchlistPrices(w http.ResponseWriter, r *http.Request) {
	tickers := parseTickers(r)
	if len(tickers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "tickers 파라미터가 필요합니다.",
		}, 0)
		return
	}

	prices, errs := s.prices.FetchAll(r.Context(), tickers)

	status := http.StatusOK
	payload := map[string]any{
		"success":   len(prices) > 0,
		"fetchedAt": time.Now().UTC().Format(time.RFC3339),
		"prices":    prices,
		"errors":    errs,
	}
	if len(prices) == 0 {
		status = http.StatusBadGateway
		payload["message"] = "요청한 종목의 실시간 가격을 가져오지 못했습니다."
	}
	// Live prices vary per request body; never cached.
	writeJSON(w, status, payload, 0)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := s.news.Fetch(r.Context(), q.Get("keyword"), q.Get("count"))
	if err != nil {
		if fe, ok := fetcher.AsError(err); ok {
			switch {
			case fe.Type == fetcher.ErrorTypeTransport && fe.StatusCode > 0:
				writeJSON(w, fe.StatusCode, errorBody{
					Error:   fe.Message,
					Details: map[string]any{"status": fe.StatusCode},
				}, 0)
				return
			case fe.Type == fetcher.ErrorTypeParse:
				writeJSON(w, http.StatusBadGateway, errorBody{
					Error:   fe.Message,
					Details: map[string]any{"note": "expected a JSON array from upstream response"},
				}, 0)
				return
			}
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "뉴스 데이터를 불러오는 중 문제가 발생했습니다.",
			Details: err.Error(),
		}, 0)
		return
	}

	writeJSON(w, http.StatusOK, items, feedCacheTTL)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if missing := s.cfg.MissingKiwoomVars(); len(missing) > 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Kiwoom API 환경변수가 설정되지 않았습니다.",
			"missing": missing,
		}, 0)
		return
	}

	q := r.URL.Query()
	symbol := kiwoom.NormalizeSymbol(firstQuery(q, "symbol", "code"))
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: "symbol(종목코드) 파라미터가 필요합니다. 예: 005930",
		}, 0)
		return
	}

	period := kiwoom.ResolvePeriod(firstQuery(q, "timeframe", "period"))
	if period != "D" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: "현재는 일봉(timeframe=day) 차트만 지원합니다.",
		}, 0)
		return
	}

	count := kiwoom.ClampCount(q.Get("count"))
	baseDate := kiwoom.FormatBaseDate(firstQuery(q, "baseDate", "base_dt"), time.Now().In(kst))
	adjusted := strings.TrimSpace(firstQuery(q, "adjusted", "adjust", "upd_stkpc_tp")) != "0"

	result, err := s.chart.Fetch(r.Context(), kiwoom.ChartRequest{
		Symbol:   symbol,
		Count:    count,
		BaseDate: baseDate,
		Adjusted: adjusted,
	})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error: "Kiwoom API 호출에 실패했습니다.",
			Details: map[string]any{
				"message":   err.Error(),
				"symbol":    symbol,
				"timeframe": period,
				"baseDate":  baseDate,
				"adjusted":  adjusted,
			},
		}, 0)
		return
	}

	payload := map[string]any{
		"symbol":    symbol,
		"timeframe": period,
		"count":     len(result.Rows),
		"rawCount":  result.RawCount,
		"metadata":  result.Metadata,
		"baseDate":  baseDate,
		"adjusted":  adjusted,
		"data":      result.Rows,
	}
	if len(result.Rows) == 0 {
		payload["note"] = "API 응답에 차트 데이터가 없습니다."
		writeJSON(w, http.StatusOK, payload, 0)
		return
	}
	writeJSON(w, http.StatusOK, payload, chartCacheTTL)
}

// writeFeedError maps a feed failure onto the envelope: upstream non-2xx
// forwarded verbatim, parse failures as 502, everything else as 500 with
// the raw message surfaced for diagnostics.
func writeFeedError(w http.ResponseWriter, err error, msgs feedMessages) {
	if fe, ok := fetcher.AsError(err); ok {
		switch fe.Type {
		case fetcher.ErrorTypeTransport:
			if fe.StatusCode > 0 {
				writeJSON(w, fe.StatusCode, errorBody{
					Error:   msgs.fetchFailed,
					Details: map[string]any{"status": fe.StatusCode},
				}, 0)
				return
			}
		case fetcher.ErrorTypeParse:
			writeJSON(w, http.StatusBadGateway, errorBody{Error: msgs.parseFailed}, 0)
			return
		case fetcher.ErrorTypeValidation:
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fe.Message}, 0)
			return
		}
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:   msgs.unexpected,
		Details: err.Error(),
	}, 0)
}

// parseTickers extracts, normalizes and deduplicates the requested tickers
// from either the query string or a JSON body.
func parseTickers(r *http.Request) []string {
	var raw []string
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		param := q.Get("tickers")
		if param == "" {
			param = q.Get("ticker")
		}
		raw = strings.Split(param, ",")
	} else {
		raw = tickersFromBody(r.Body)
	}

	normalized := make([]string, 0, len(raw))
	for _, v := range raw {
		if t := naver.NormalizeTicker(v); t != "" {
			normalized = append(normalized, t)
		}
	}
	return naver.DedupeTickers(normalized)
}

// tickersFromBody accepts a bare JSON array, {"tickers": [...]} or
// {"ticker": "..."}. A malformed body yields no tickers, which the handler
// rejects with 400.
func tickersFromBody(body io.Reader) []string {
	data, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil
	}

	var asArray []string
	if json.Unmarshal(data, &asArray) == nil {
		return asArray
	}

	var asObject struct {
		Tickers []string `json:"tickers"`
		Ticker  string   `json:"ticker"`
	}
	if json.Unmarshal(data, &asObject) == nil {
		if len(asObject.Tickers) > 0 {
			return asObject.Tickers
		}
		if asObject.Ticker != "" {
			return []string{asObject.Ticker}
		}
	}
	return nil
}

// koreanDateTimeLabel formats a timestamp the way the site's Korean locale
// renders it, anchored to KST.
func koreanDateTimeLabel(t time.Time) string {
	t = t.In(kst)

	ampm := "오전"
	hour := t.Hour()
	if hour >= 12 {
		ampm = "오후"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}

	return fmt.Sprintf("%d. %d. %d. %s %d:%02d",
		t.Year(), int(t.Month()), t.Day(), ampm, h12, t.Minute())
}

func firstQuery(q url.Values, keys ...string) string {
	for _, key := range keys {
		if v := q.Get(key); v != "" {
			return v
		}
	}
	return ""
}
