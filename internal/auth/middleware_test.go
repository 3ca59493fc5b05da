package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolio-backend/internal/biz"

	"github.com/stretchr/testify/require"
)

type stubAuthenticator map[string]*biz.Claims

func (s stubAuthenticator) Authenticate(ctx context.Context, rawToken string) (*biz.Claims, error) {
	if claims, ok := s[rawToken]; ok {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func TestAuthMiddleware(t *testing.T) {
	cookies := NewCookieManager(CookiePolicy{})
	authn := stubAuthenticator{
		"header-token": {Subject: "auth0|header"},
		"cookie-token": {Subject: "auth0|cookie"},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := MustGetClaimsFromContext(r.Context())
		w.Write([]byte(claims.Subject))
	})
	handler := AuthMiddleware(authn, cookies)(next)

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{name: "no credentials", wantStatus: http.StatusUnauthorized},
		{name: "bearer header", header: "Bearer header-token", wantStatus: http.StatusOK, wantBody: "auth0|header"},
		{name: "lowercase scheme", header: "bearer header-token", wantStatus: http.StatusOK, wantBody: "auth0|header"},
		{name: "cookie", cookie: "cookie-token", wantStatus: http.StatusOK, wantBody: "auth0|cookie"},
		{name: "header wins over cookie", header: "Bearer header-token", cookie: "cookie-token", wantStatus: http.StatusOK, wantBody: "auth0|header"},
		{name: "non bearer header falls back to cookie", header: "Basic dXNlcjpwYXNz", cookie: "cookie-token", wantStatus: http.StatusOK, wantBody: "auth0|cookie"},
		{name: "invalid token", header: "Bearer forged", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: AccessTokenCookieName, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			require.Equal(t, tt.wantStatus, rec.Code)
			// guarded requests never touch cookies
			require.Empty(t, rec.Header().Values("Set-Cookie"))

			if tt.wantStatus == http.StatusOK {
				require.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, "unauthorized", body["error"])
			require.NotEmpty(t, body["message"])
		})
	}
}

func TestGetClaimsFromContext(t *testing.T) {
	_, err := GetClaimsFromContext(context.Background())
	require.ErrorIs(t, err, ErrNoClaimsInContext)

	ctx := WithClaims(context.Background(), &biz.Claims{Subject: "auth0|alice"})
	claims, err := GetClaimsFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, "auth0|alice", claims.Subject)

	require.Panics(t, func() { MustGetClaimsFromContext(context.Background()) })
}
