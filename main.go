package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketfeed/internal/config"
	"marketfeed/internal/kiwoom"
	"marketfeed/internal/naver"
	"marketfeed/internal/newsproxy"
	"marketfeed/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogger(cfg.LogLevel)

	// Create the feed clients. Each one is an independent fetch-parse-
	// normalize operation; they share nothing but configuration.
	netBuy := naver.NewNetBuyFeed(cfg.NetBuyURL)
	popular := naver.NewPopularFeed(cfg.PopularURL)
	themes := naver.NewThemeFeed(cfg.ThemeURL)
	prices := naver.NewPriceFeed(cfg.PriceBaseURL, cfg.PriceFetchDelay)
	news := newsproxy.New(cfg.NewsBaseURL, cfg.NewsAPIKey)

	tokens := kiwoom.NewTokenSource(cfg.ResolvedKiwoomTokenURL(), cfg.KiwoomAppKey, cfg.KiwoomAppSecret, cfg.KiwoomAccessToken)
	chart := kiwoom.NewChartClient(cfg.KiwoomChartAPIURL, cfg.KiwoomChartAPIID, tokens)

	srv := server.New(cfg, netBuy, popular, themes, prices, news, chart)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		// The watchlist batch paces its upstream fetches, so a large
		// request legitimately takes a while.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Handle interrupt signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("listening", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
