package server

import (
	"net/http"
	"slices"
	"strings"
)

const (
	corsAllowHeaders = "Content-Type,Authorization"
	corsMaxAge       = "3600"
)

// endpoint wraps a handler with the CORS and method policy every operation
// shares: any origin, OPTIONS preflight answered with 204 and the route's
// allowed methods, and a JSON 405 for anything else.
func endpoint(methods string, h http.HandlerFunc) http.Handler {
	allowed := strings.Split(methods, ",")
	allow := methods + ",OPTIONS"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", allow)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !slices.Contains(allowed, r.Method) {
			w.Header().Set("Allow", allow)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method Not Allowed"}, 0)
			return
		}

		h(w, r)
	})
}
