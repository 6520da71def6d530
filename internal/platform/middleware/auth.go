package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"rollbook/pkg/requestcontext"
)

// Claims is what the token validator hands back: the authenticated caller
// address, produced by the out-of-scope signing layer.
type Claims struct {
	Address string
}

// TokenValidator validates a bearer token and extracts its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and injects the
// caller address into the request context. The ledger core never derives
// identity itself; this is the boundary that supplies it.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"bearer token required"}`))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "token validation failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err.Error(),
				)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"invalid token"}`))
				return
			}

			ctx = requestcontext.WithCallerAddress(ctx, claims.Address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
