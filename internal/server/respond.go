package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// errorBody is the stable error envelope shared by every operation.
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes payload under the shared response headers. A 200 with a
// positive cacheTTL gets a short public cache directive to absorb repeated
// polling; everything else is marked non-cacheable.
func writeJSON(w http.ResponseWriter, status int, payload any, cacheTTL time.Duration) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if status == http.StatusOK && cacheTTL > 0 {
		h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheTTL.Seconds())))
	} else {
		h.Set("Cache-Control", "no-store")
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
