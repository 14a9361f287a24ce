// Package server exposes each feed operation over HTTP. It maps internal
// outcomes to a stable JSON envelope: 200 on success, 400 for malformed
// input, 502 when the upstream was reachable but unparsable, 500 for
// anything unexpected, and any upstream non-2xx status forwarded verbatim.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"marketfeed/internal/config"
	"marketfeed/internal/kiwoom"
	"marketfeed/internal/naver"
	"marketfeed/internal/newsproxy"
)

// NetBuyFeed provides foreign net-buy snapshots.
type NetBuyFeed interface {
	Fetch(ctx context.Context) ([]naver.Snapshot, error)
	Source() string
}

// PopularFeed provides the popular-stocks ranking.
type PopularFeed interface {
	Fetch(ctx context.Context) ([]naver.PopularItem, error)
	Source() string
}

// ThemeFeed provides the theme leaderboard.
type ThemeFeed interface {
	Fetch(ctx context.Context) ([]naver.ThemeRow, error)
	Source() string
}

// PriceFeed provides batch live prices with per-ticker fault isolation.
type PriceFeed interface {
	FetchAll(ctx context.Context, tickers []string) (map[string]naver.PriceQuote, map[string]string)
}

// NewsFeed provides sanitized news items from the JSON backend.
type NewsFeed interface {
	Fetch(ctx context.Context, keyword, rawCount string) ([]newsproxy.Item, error)
}

// ChartFeed provides daily candle charts.
type ChartFeed interface {
	Fetch(ctx context.Context, req kiwoom.ChartRequest) (kiwoom.ChartResult, error)
}

// Server routes the feed operations.
type Server struct {
	cfg     *config.Config
	netBuy  NetBuyFeed
	popular PopularFeed
	themes  ThemeFeed
	prices  PriceFeed
	news    NewsFeed
	chart   ChartFeed

	router chi.Router
}

// New creates a Server wiring the given feeds onto their routes.
func New(cfg *config.Config, netBuy NetBuyFeed, popular PopularFeed, themes ThemeFeed, prices PriceFeed, news NewsFeed, chart ChartFeed) *Server {
	s := &Server{
		cfg:     cfg,
		netBuy:  netBuy,
		popular: popular,
		themes:  themes,
		prices:  prices,
		news:    news,
		chart:   chart,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Handle("/api/foreign-net-buy", endpoint("GET", s.handleNetBuy))
	r.Handle("/api/popular-stocks", endpoint("GET", s.handlePopularStocks))
	r.Handle("/api/theme-leaders", endpoint("GET", s.handleThemeLeaders))
	r.Handle("/api/watchlist-prices", endpoint("GET,POST", s.handleWatchlistPrices))
	r.Handle("/api/news", endpoint("GET", s.handleNews))
	r.Handle("/api/chart", endpoint("GET", s.handleChart))

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("request complete",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// recoverer maps panics to the 500 envelope, surfacing the panic value for
// diagnostics. This is the one place internal error text passes through to
// the caller verbatim.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered", "panic", rec, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError, errorBody{
					Error:   "내부 오류가 발생했습니다.",
					Details: fmt.Sprint(rec),
				}, 0)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
