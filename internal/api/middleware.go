package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zappedin/orchestrator/internal/ratelimit"
	"github.com/zappedin/orchestrator/pkg/models"
)

// RateLimitMiddleware enforces the per-account activation budget. Requests
// with no identifiable account pass through; the handler rejects those on
// its own terms.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := accountKey(r)
			if account == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(account) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded for account " + account,
				})
				return
			}

			w.Header().Set("X-RateLimit-Remaining",
				strconv.Itoa(int(limiter.Tokens(account))))
			next.ServeHTTP(w, r)
		})
	}
}

// accountKey identifies the account a request targets: the path variable
// where the route carries one, otherwise the id inside an activation
// payload. The body is restored for the handler.
func accountKey(r *http.Request) string {
	if username := mux.Vars(r)["username"]; username != "" {
		return username
	}

	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var req models.ActivateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	if req.Account != nil && req.Account.Username != "" {
		return req.Account.Username
	}
	return req.AccountID
}
