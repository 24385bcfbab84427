package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/stempel-app/stempel/internal/auth"
	"github.com/stempel-app/stempel/internal/metrics"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ContextKeyAccountID is the context key for the account ID.
	ContextKeyAccountID contextKey = "account_id"

	// ContextKeyEmail is the context key for the account email.
	ContextKeyEmail contextKey = "email"

	// ContextKeyToken is the context key for the raw bearer token.
	ContextKeyToken contextKey = "token"
)

// tokenCacheSize bounds the verified-token cache. The cache TTL runs
// from insertion, not from the token's issue time, so cache hits still
// check the claims' expiry.
const tokenCacheSize = 1024

func newTokenCache(ttl time.Duration) *expirable.LRU[string, *auth.Claims] {
	return expirable.NewLRU[string, *auth.Claims](tokenCacheSize, nil, ttl)
}

// AuthMiddleware creates middleware for bearer-token authentication.
// Signature checks are cached so repeated requests with the same token
// skip the JWT verification.
func AuthMiddleware(svc *auth.Service, cache *expirable.LRU[string, *auth.Claims]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "Invalid authorization header")
				return
			}
			token := parts[1]

			claims, ok := cache.Get(token)
			if ok && claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
				cache.Remove(token)
				writeError(w, http.StatusUnauthorized, "Token expired")
				return
			}
			if !ok {
				var err error
				claims, err = svc.ValidateToken(token)
				if err != nil {
					message := "Invalid token"
					if err == auth.ErrTokenExpired {
						message = "Token expired"
					}
					writeError(w, http.StatusUnauthorized, message)
					return
				}
				cache.Add(token, claims)
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, ContextKeyAccountID, claims.AccountID)
			ctx = context.WithValue(ctx, ContextKeyEmail, claims.Email)
			ctx = context.WithValue(ctx, ContextKeyToken, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggingMiddleware creates middleware for logging HTTP requests and
// recording the request counter.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			metrics.ObserveRequest(r.Method, r.URL.Path, wrapped.statusCode, duration)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Msg("API request")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RateLimiter implements a simple token bucket rate limiter.
type RateLimiter struct {
	requests map[string]*bucket
	mu       sync.Mutex
	rate     int
	window   time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerWindow int, window time.Duration) *RateLimiter {
	limiter := &RateLimiter{
		requests: make(map[string]*bucket),
		rate:     requestsPerWindow,
		window:   window,
		done:     make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Allow checks if a request from the given identifier is allowed.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	b, exists := rl.requests[identifier]
	if !exists {
		rl.requests[identifier] = &bucket{
			tokens:    rl.rate - 1,
			lastReset: now,
		}
		return true
	}

	if now.Sub(b.lastReset) > rl.window {
		b.tokens = rl.rate - 1
		b.lastReset = now
		return true
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

// cleanup periodically removes old buckets.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for id, b := range rl.requests {
				if now.Sub(b.lastReset) > rl.window*2 {
					delete(rl.requests, id)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// RateLimitMiddleware creates middleware for rate limiting.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := r.RemoteAddr
			if accountID, ok := AccountIDFromContext(r.Context()); ok {
				identifier = "account:" + accountID
			}

			if !limiter.Allow(identifier) {
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware creates middleware for CORS support.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AccountIDFromContext extracts the account ID from the request context.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(ContextKeyAccountID).(string)
	return accountID, ok
}

// EmailFromContext extracts the account email from the request context.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ContextKeyEmail).(string)
	return email, ok
}

// TokenFromContext extracts the raw bearer token from the request context.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ContextKeyToken).(string)
	return token, ok
}
