package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/prepsphere/server/internal/api/problem"
	"github.com/prepsphere/server/internal/auth"
)

type contextKeyAuth string

const claimsKey contextKeyAuth = "claims"

// JWTAuth requires a valid bearer token whose role is one of allowed. The
// claims are stored in the request context for handlers and the audit log.
func JWTAuth(manager *auth.JWTManager, env string, allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, env)
				return
			}

			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Missing authorization header", err, env)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				title := "Invalid token"
				if errors.Is(err, auth.ErrMissingToken) {
					title = "Missing token"
				}
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, title, err, env)
				return
			}

			if len(allowed) > 0 && !auth.HasRole(claims.Role, allowed...) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Insufficient permissions", problem.ErrForbidden, env)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// OptionalJWTAuth attaches claims when a valid bearer token is present and
// otherwise lets the request through untouched.
func OptionalJWTAuth(manager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager != nil {
				if token, err := auth.TokenFromHeader(r.Header.Get("Authorization")); err == nil {
					if claims, err := manager.Validate(token); err == nil {
						r = r.WithContext(ContextWithClaims(r.Context(), claims))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the authenticated caller, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
