package middleware

import (
	"context"
	"net/http"
	"strings"

	"user-service/config"
	"user-service/models"
	"user-service/store"
	"user-service/utils"
)

type contextKey string

const userClaimsKey contextKey = "userClaims"

// AuthMiddleware admits requests carrying a valid access token that is still
// registered in the token store.
func AuthMiddleware(cfg config.Config, tokenStore store.TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r, cfg.Auth.AccessCookieName)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "No token provided", models.ErrCodeUnauthorized)
				return
			}

			claims, err := utils.ParseToken(token, cfg.Auth.AccessTokenSecret, cfg.Auth.Issuer)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Invalid or expired token", models.ErrCodeUnauthorized)
				return
			}

			active, err := tokenStore.Exists(r.Context(), claims.ID)
			if err != nil {
				requestLogger(r).WithError(err).Error("token store lookup failed")
				WriteError(w, http.StatusInternalServerError, internalErrorMessage, models.ErrCodeInternal)
				return
			}
			if !active {
				WriteError(w, http.StatusUnauthorized, "Token has been revoked", models.ErrCodeUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*utils.Claims)
	return claims, ok
}

func ContextWithClaims(ctx context.Context, claims *utils.Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// TokenFromRequest reads the access token from the cookie, falling back to
// a Bearer Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}
