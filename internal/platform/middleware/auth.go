package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "certo/pkg/domain"
	"certo/pkg/requestcontext"
)

// Claims represents the claims we require from the external auth provider's
// access tokens: who is acting, and for which certification body.
type Claims struct {
	OperatorID id.OperatorID
	TenantID   id.TenantID
	Name       string
}

// TokenValidator validates bearer tokens issued by the external auth provider.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// RequireAuth enforces a valid bearer token and scopes the request context to
// the token's operator and tenant.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w, r, logger, "missing or malformed Authorization header")
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}
			ctx := requestcontext.WithOperatorID(r.Context(), claims.OperatorID)
			ctx = requestcontext.WithTenantID(ctx, claims.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response", "error", err)
	}
}
