package ratelimit

import (
	"context"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

// Upstream represents the different external sources we fetch from
type Upstream string

const (
	// UpstreamNaver represents the Naver Finance HTML pages
	UpstreamNaver Upstream = "naver"
	// UpstreamKiwoom represents the Kiwoom REST API
	UpstreamKiwoom Upstream = "kiwoom"
	// UpstreamNews represents the news backend API
	UpstreamNews Upstream = "news"
)

// Limiter manages rate limits for the different upstream sources
type Limiter struct {
	limiters map[Upstream]*rate.Limiter
	mu       sync.RWMutex
}

var (
	instance *Limiter
	once     sync.Once
)

// GetLimiter returns the singleton rate limiter instance
func GetLimiter() *Limiter {
	once.Do(func() {
		instance = &Limiter{
			limiters: make(map[Upstream]*rate.Limiter),
		}
		instance.initLimiters()
	})
	return instance
}

// initLimiters initializes rate limiters for each upstream with conservative defaults
func (l *Limiter) initLimiters() {
	// In test mode, use unlimited rate limits to avoid slowing down tests
	if os.Getenv("GO_TESTING") == "1" || isTestMode() {
		l.limiters[UpstreamNaver] = rate.NewLimiter(rate.Inf, 1)
		l.limiters[UpstreamKiwoom] = rate.NewLimiter(rate.Inf, 1)
		l.limiters[UpstreamNews] = rate.NewLimiter(rate.Inf, 1)
		return
	}

	// Naver Finance is a public website with no published limit; stay well
	// below anything that could trigger its defenses.
	l.limiters[UpstreamNaver] = rate.NewLimiter(rate.Limit(3), 1)

	// Kiwoom allows 5 requests per second per credential
	l.limiters[UpstreamKiwoom] = rate.NewLimiter(rate.Limit(5), 1)

	// News backend: conservative estimate
	l.limiters[UpstreamNews] = rate.NewLimiter(rate.Limit(5), 1)
}

// isTestMode checks if we're running in test mode
func isTestMode() bool {
	for _, arg := range os.Args {
		if len(arg) > 6 && arg[:6] == "-test." {
			return true
		}
	}
	return false
}

// Wait blocks until the rate limiter permits an event for the given upstream.
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, upstream Upstream) error {
	l.mu.RLock()
	limiter, exists := l.limiters[upstream]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this upstream, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given upstream may happen now
func (l *Limiter) Allow(upstream Upstream) bool {
	l.mu.RLock()
	limiter, exists := l.limiters[upstream]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
