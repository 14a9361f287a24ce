package testutil

import (
	"context"
	"testing"

	"golang.org/x/text/encoding/korean"

	"marketfeed/internal/kiwoom"
	"marketfeed/internal/naver"
	"marketfeed/internal/newsproxy"
)

// EncodeEUCKR converts a UTF-8 fixture to the EUC-KR bytes the upstream
// source actually serves.
func EncodeEUCKR(t *testing.T, s string) []byte {
	t.Helper()
	b, err := korean.EUCKR.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("failed to encode fixture to EUC-KR: %v", err)
	}
	return b
}

// MockNetBuyFeed is a mock net-buy feed for handler tests
type MockNetBuyFeed struct {
	FetchFunc  func(ctx context.Context) ([]naver.Snapshot, error)
	SourceFunc func() string
}

// Fetch implements the feed interface
func (m *MockNetBuyFeed) Fetch(ctx context.Context) ([]naver.Snapshot, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return nil, nil
}

// Source implements the feed interface
func (m *MockNetBuyFeed) Source() string {
	if m.SourceFunc != nil {
		return m.SourceFunc()
	}
	return "mock://net-buy"
}

// MockPopularFeed is a mock popular-stocks feed for handler tests
type MockPopularFeed struct {
	FetchFunc  func(ctx context.Context) ([]naver.PopularItem, error)
	SourceFunc func() string
}

// Fetch implements the feed interface
func (m *MockPopularFeed) Fetch(ctx context.Context) ([]naver.PopularItem, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return nil, nil
}

// Source implements the feed interface
func (m *MockPopularFeed) Source() string {
	if m.SourceFunc != nil {
		return m.SourceFunc()
	}
	return "mock://popular"
}

// MockThemeFeed is a mock theme feed for handler tests
type MockThemeFeed struct {
	FetchFunc  func(ctx context.Context) ([]naver.ThemeRow, error)
	SourceFunc func() string
}

// Fetch implements the feed interface
func (m *MockThemeFeed) Fetch(ctx context.Context) ([]naver.ThemeRow, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return nil, nil
}

// Source implements the feed interface
func (m *MockThemeFeed) Source() string {
	if m.SourceFunc != nil {
		return m.SourceFunc()
	}
	return "mock://theme"
}

// MockPriceFeed is a mock batch price feed for handler tests
type MockPriceFeed struct {
	FetchAllFunc func(ctx context.Context, tickers []string) (map[string]naver.PriceQuote, map[string]string)
}

// FetchAll implements the feed interface
func (m *MockPriceFeed) FetchAll(ctx context.Context, tickers []string) (map[string]naver.PriceQuote, map[string]string) {
	if m.FetchAllFunc != nil {
		return m.FetchAllFunc(ctx, tickers)
	}
	return map[string]naver.PriceQuote{}, map[string]string{}
}

// MockNewsFeed is a mock news feed for handler tests
type MockNewsFeed struct {
	FetchFunc func(ctx context.Context, keyword, rawCount string) ([]newsproxy.Item, error)
}

// Fetch implements the feed interface
func (m *MockNewsFeed) Fetch(ctx context.Context, keyword, rawCount string) ([]newsproxy.Item, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, keyword, rawCount)
	}
	return nil, nil
}

// MockChartFeed is a mock chart feed for handler tests
type MockChartFeed struct {
	FetchFunc func(ctx context.Context, req kiwoom.ChartRequest) (kiwoom.ChartResult, error)
}

// Fetch implements the feed interface
func (m *MockChartFeed) Fetch(ctx context.Context, req kiwoom.ChartRequest) (kiwoom.ChartResult, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, req)
	}
	return kiwoom.ChartResult{}, nil
}
