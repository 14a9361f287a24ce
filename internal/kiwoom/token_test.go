package kiwoom

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"marketfeed/internal/fetcher"
)

func TestTokenSource_Static(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		total bool
	}{
		{"plain token", "abc123", "abc123", true},
		{"bearer prefix stripped", "Bearer abc123", "abc123", true},
		{"whitespace trimmed", "  abc123  ", "abc123", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NewTokenSource("http://unused.invalid", "", "", tt.raw)
			if ts.Static() != tt.total {
				t.Errorf("Static() = %v, want %v", ts.Static(), tt.total)
			}
			if !tt.total {
				return
			}
			got, err := ts.Token(context.Background())
			if err != nil {
				t.Fatalf("Token() returned unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Token() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenSource_CachesToken(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "issued-token", "expires_in": 3600}`))
	}))
	defer server.Close()

	ts := NewTokenSource(server.URL, "key", "secret", "")

	for i := 0; i < 3; i++ {
		token, err := ts.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() call %d returned unexpected error: %v", i, err)
		}
		if token != "issued-token" {
			t.Errorf("Token() = %q, want %q", token, "issued-token")
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestTokenSource_RefreshNearExpiry(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "issued-token", "expires_in": 3600}`))
	}))
	defer server.Close()

	ts := NewTokenSource(server.URL, "key", "secret", "")
	current := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return current }

	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token() returned unexpected error: %v", err)
	}

	// Still comfortably inside the lifetime: cached.
	current = current.Add(30 * time.Minute)
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token() returned unexpected error: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("token endpoint hit %d times before expiry, want 1", got)
	}

	// Inside the refresh margin: a new token is requested.
	current = time.Date(2024, 3, 15, 9, 59, 30, 0, time.UTC)
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token() returned unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("token endpoint hit %d times after expiry, want 2", got)
	}
}

func TestTokenSource_Invalidate(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "issued-token"}`))
	}))
	defer server.Close()

	ts := NewTokenSource(server.URL, "key", "secret", "")

	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token() returned unexpected error: %v", err)
	}
	ts.Invalidate()
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("Token() returned unexpected error: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("token endpoint hit %d times, want 2", got)
	}
}

func TestTokenSource_AlternateFieldSpellings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"access_token", `{"access_token": "tok"}`},
		{"accessToken", `{"accessToken": "tok"}`},
		{"token", `{"token": "tok", "expiresIn": "7200"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ts := NewTokenSource(server.URL, "key", "secret", "")
			token, err := ts.Token(context.Background())
			if err != nil {
				t.Fatalf("Token() returned unexpected error: %v", err)
			}
			if token != "tok" {
				t.Errorf("Token() = %q, want %q", token, "tok")
			}
		})
	}
}

func TestTokenSource_ErrorResponses(t *testing.T) {
	t.Run("upstream failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid credentials"}`))
		}))
		defer server.Close()

		ts := NewTokenSource(server.URL, "key", "secret", "")
		_, err := ts.Token(context.Background())
		fe, ok := fetcher.AsError(err)
		if !ok || fe.Type != fetcher.ErrorTypeTransport {
			t.Fatalf("error = %v, want a transport error", err)
		}
		if fe.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want 401", fe.StatusCode)
		}
	})

	t.Run("missing token field", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"expires_in": 3600}`))
		}))
		defer server.Close()

		ts := NewTokenSource(server.URL, "key", "secret", "")
		_, err := ts.Token(context.Background())
		fe, ok := fetcher.AsError(err)
		if !ok || fe.Type != fetcher.ErrorTypeParse {
			t.Errorf("error = %v, want a parse error", err)
		}
	})
}
