package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"portfolio-backend/internal/biz"

	"github.com/rs/zerolog"
)

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*biz.Claims, error)
}

// AuthMiddleware validates the bearer token for protected routes (stateless).
// Supports both header-based (SPA/Mobile) and cookie-based (Web) auth.
// Failure never touches cookies.
func AuthMiddleware(authn Authenticator, cookies *CookieManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r, cookies)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}

			claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("bearer token rejected")
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ExtractBearerToken extracts the token from the Authorization header, then
// from the access token cookie.
func ExtractBearerToken(r *http.Request, cookies *CookieManager) string {
	// 1. Authorization header (for SPA/Mobile applications)
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Support "Bearer <token>" format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	// 2. Cookie (for Web applications)
	if cookies != nil {
		return cookies.AccessToken(r)
	}
	return cookieValue(r, AccessTokenCookieName)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   biz.KindUnauthorized.String(),
		"message": message,
	})
}
