// Package kiwoom fetches daily candle charts from the Kiwoom REST API.
package kiwoom

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"resty.dev/v3"

	"marketfeed/internal/fetcher"
)

// Tokens are refreshed this long before their reported expiry.
const refreshMargin = time.Minute

const defaultTokenLifetime = 8 * time.Hour

// TokenSource lazily obtains and caches the OAuth access token. The cache is
// the only state this service keeps across invocations; it is initialized on
// first use behind a mutex, not a bare mutable package variable. A static
// token from configuration bypasses the grant flow entirely.
type TokenSource struct {
	client      *resty.Client
	tokenURL    string
	appKey      string
	appSecret   string
	staticToken string

	mu     sync.Mutex
	token  string
	expiry time.Time

	now func() time.Time
}

// NewTokenSource creates a token source for the client-credentials grant at
// tokenURL. staticToken, when non-empty, is returned as-is (a leading
// "Bearer " prefix is stripped).
func NewTokenSource(tokenURL, appKey, appSecret, staticToken string) *TokenSource {
	return &TokenSource{
		client:      fetcher.NewJSONClient(),
		tokenURL:    tokenURL,
		appKey:      appKey,
		appSecret:   appSecret,
		staticToken: strings.TrimPrefix(strings.TrimSpace(staticToken), "Bearer "),
		now:         time.Now,
	}
}

// Static reports whether a static token is configured. Static tokens cannot
// be refreshed on auth failures.
func (t *TokenSource) Static() bool {
	return t.staticToken != ""
}

// Token returns a valid access token, requesting a new one only when the
// cached token is missing or inside the refresh margin.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t.staticToken != "" {
		return t.staticToken, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.token != "" && now.Before(t.expiry.Add(-refreshMargin)) {
		return t.token, nil
	}

	slog.Debug("requesting kiwoom access token", "url", t.tokenURL)

	var result tokenResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"appkey":     t.appKey,
			"appsecret":  t.appSecret,
		}).
		SetResult(&result).
		Post(t.tokenURL)
	if err != nil {
		return "", fetcher.NewTransportError(0, err)
	}
	if !resp.IsSuccess() {
		return "", &fetcher.Error{
			Type:       fetcher.ErrorTypeTransport,
			StatusCode: resp.StatusCode(),
			Message:    "token request failed: " + strings.TrimSpace(resp.String()),
		}
	}

	token := firstNonEmpty(result.AccessToken, result.AccessTokenAlt, result.Token)
	if token == "" {
		return "", fetcher.NewParseError("token response has no access_token field")
	}

	lifetime := defaultTokenLifetime
	if secs := result.expiresInSeconds(); secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	t.token = token
	t.expiry = now.Add(lifetime)
	slog.Debug("kiwoom access token issued", "expiry", t.expiry)
	return token, nil
}

// Invalidate drops the cached token so the next Token call refreshes it.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.expiry = time.Time{}
}

type tokenResponse struct {
	AccessToken    string      `json:"access_token"`
	AccessTokenAlt string      `json:"accessToken"`
	Token          string      `json:"token"`
	ExpiresIn      json.Number `json:"expires_in"`
	ExpiresInAlt   json.Number `json:"expiresIn"`
}

func (r tokenResponse) expiresInSeconds() int64 {
	for _, n := range []json.Number{r.ExpiresIn, r.ExpiresInAlt} {
		if v, err := n.Int64(); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
