package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "test-client"
	testAudience = "https://api.example.com"
	testKeyID    = "test-key"
)

// fakeIdP is an Auth0-shaped identity provider on httptest.
type fakeIdP struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	mu            sync.Mutex
	tokenHandler  http.HandlerFunc
	tokenForms    []url.Values
	userinfo      map[string]any
	userinfoCode  int
	userinfoAuths []string
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIdP{key: key, userinfoCode: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		idp.mu.Lock()
		idp.tokenForms = append(idp.tokenForms, r.PostForm)
		handler := idp.tokenHandler
		idp.mu.Unlock()
		if handler == nil {
			writeTokenJSON(w, http.StatusOK, map[string]any{"access_token": "AT1", "token_type": "Bearer", "expires_in": 3600})
			return
		}
		handler(w, r)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		idp.mu.Lock()
		idp.userinfoAuths = append(idp.userinfoAuths, r.Header.Get("Authorization"))
		code, body := idp.userinfoCode, idp.userinfo
		idp.mu.Unlock()
		if code != http.StatusOK {
			http.Error(w, "userinfo unavailable", code)
			return
		}
		writeTokenJSON(w, http.StatusOK, body)
	})
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		writeTokenJSON(w, http.StatusOK, map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (f *fakeIdP) issuer() string {
	return f.server.URL + "/"
}

func (f *fakeIdP) provider(t *testing.T) *oidc.Provider {
	t.Helper()
	return StaticProviderConfig(f.issuer()).NewProvider(t.Context())
}

func (f *fakeIdP) setToken(handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenHandler = handler
}

func (f *fakeIdP) forms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenForms...)
}

// sign mints an RS256 access token; claims override the defaults.
func (f *fakeIdP) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	return signWith(t, f.key, f.issuer(), claims)
}

func signWith(t *testing.T, key *rsa.PrivateKey, issuer string, claims jwt.MapClaims) string {
	t.Helper()
	base := jwt.MapClaims{
		"iss":   issuer,
		"sub":   "auth0|alice",
		"aud":   testAudience,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
		"email": "alice@example.com",
	}
	for k, v := range claims {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, base)
	token.Header["kid"] = testKeyID
	raw, err := token.SignedString(key)
	require.NoError(t, err)
	return raw
}

func writeTokenJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
