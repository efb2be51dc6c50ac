package http

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shiurlab/shiur-core/internal/adapters/driven/auth"
)

// Context keys
type contextKey string

const authContextKey contextKey = "auth_context"

// AuthMiddleware handles bearer-token authentication
type AuthMiddleware struct {
	adapter *auth.Adapter
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(adapter *auth.Adapter) *AuthMiddleware {
	return &AuthMiddleware{adapter: adapter}
}

// Authenticate validates the request token and adds the claims to the
// request context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := m.adapter.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), authContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims retrieves the token claims from the request context
func GetClaims(ctx context.Context) *auth.TokenClaims {
	if ctx == nil {
		return nil
	}
	claims, ok := ctx.Value(authContextKey).(*auth.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// extractBearerToken extracts the Bearer token from the Authorization
// header
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// LoggingMiddleware logs each request with method, path, status and
// duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

// responseWriter captures the status code for logging
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
