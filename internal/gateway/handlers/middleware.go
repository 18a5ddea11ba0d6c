package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vineeth-0509/open-llm/internal/shared/apikeys"
)

type contextKey string

const credentialContextKey contextKey = "credential"

// CredentialFrom returns the raw bearer credential stashed by AuthMiddleware.
func CredentialFrom(ctx context.Context) (string, bool) {
	credential, ok := ctx.Value(credentialContextKey).(string)
	return credential, ok
}

// RateLimiter reports whether a credential has exceeded its request budget.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, keyID string, limit int) (bool, int, error)
}

type Middleware struct {
	limiter   RateLimiter
	rateLimit int
}

func NewMiddleware(limiter RateLimiter, rateLimit int) *Middleware {
	return &Middleware{
		limiter:   limiter,
		rateLimit: rateLimit,
	}
}

// AuthMiddleware extracts the bearer credential. Verification is the
// orchestrator's first step; the middleware only rejects requests that carry
// no credential at all.
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing authorization header")
			return
		}

		// Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid authorization header format")
			return
		}

		ctx := context.WithValue(r.Context(), credentialContextKey, parts[1])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware enforces per-credential rate limits. Keyed by the
// credential hash so no identity lookup is needed here.
func (m *Middleware) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, ok := CredentialFrom(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		exceeded, remaining, err := m.limiter.CheckRateLimit(r.Context(), apikeys.Hash(credential), m.rateLimit)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.rateLimit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if exceeded {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AdminAuthMiddleware guards management routes with a static token.
func AdminAuthMiddleware(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "Bearer "+adminToken {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
