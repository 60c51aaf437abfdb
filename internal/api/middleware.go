// Package api implements the Hypermind HTTP API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/starford/hypermind/internal/models"
)

type ctxKey int

const hypergraphIDKey ctxKey = iota

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HypergraphMiddleware stores the X-Hypergraph-ID header in the request
// context.
func HypergraphMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(models.HeaderHypergraphID))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), hypergraphIDKey, id)))
	})
}

func hypergraphID(r *http.Request) string {
	id, _ := r.Context().Value(hypergraphIDKey).(string)
	return id
}

// RateLimit rejects requests beyond the limiter's budget with 429. A nil
// limiter disables limiting.
func RateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorBody("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
