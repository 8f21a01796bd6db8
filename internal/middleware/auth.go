package middleware

import (
	"context"
	"net/http"

	"delixmi-order-core/internal/auth"
	"delixmi-order-core/pkg/response"
)

type contextKey string

const authContextKey contextKey = "authContext"

// WithAuthContext stores claims on ctx for downstream handlers.
func WithAuthContext(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, authContextKey, claims)
}

// GetAuthContext retrieves the principal injected by Auth.
func GetAuthContext(ctx context.Context) (*auth.Claims, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	claims, ok := value.(*auth.Claims)
	return claims, ok
}

// Auth validates the bearer token and injects the parsed principal into the
// request context. It never makes an authorization decision itself — that
// is internal/authz's job, called once per handler per spec §9.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				response.ErrorEnvelope(w, "MISSING_TOKEN", http.StatusUnauthorized, "authorization token is required", nil)
				return
			}

			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				if err == auth.ErrTokenExpired {
					response.ErrorEnvelope(w, "TOKEN_EXPIRED", http.StatusUnauthorized, "authorization token has expired", nil)
					return
				}
				response.ErrorEnvelope(w, "INVALID_TOKEN", http.StatusUnauthorized, "authorization token is invalid", nil)
				return
			}

			if !claims.IsActive {
				response.ErrorEnvelope(w, "ACCOUNT_INACTIVE", http.StatusUnauthorized, "account is not active", nil)
				return
			}

			ctx := WithAuthContext(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
