package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"portfolio-backend/internal/biz"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GatewayConfig is the explicit configuration of the IdP gateway.
type GatewayConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Audience     string
	Scopes       []string
	// Timeout bounds every outbound call. Zero means 10s.
	Timeout time.Duration
	// HTTPClient is used for token and userinfo calls. It must not cache.
	HTTPClient *http.Client
}

// Gateway wraps the IdP token and userinfo endpoints. Every call is a single
// attempt with a fixed timeout.
type Gateway struct {
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	audience     string
	timeout      time.Duration
	httpClient   *http.Client
}

var _ biz.IdentityProvider = (*Gateway)(nil)

// NewGateway creates a gateway for the given provider.
func NewGateway(provider *oidc.Provider, cfg GatewayConfig) *Gateway {
	endpoint := provider.Endpoint()
	// client_secret in the body, never the auto-detect retry: codes are single-use
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Gateway{
		provider: provider,
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       cfg.Scopes,
		},
		audience:   cfg.Audience,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the authorization URL the browser is sent to.
func (g *Gateway) AuthCodeURL() string {
	var opts []oauth2.AuthCodeOption
	if g.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", g.audience))
	}
	return g.oauth2Config.AuthCodeURL("", opts...)
}

// ExchangeCode exchanges authorization code for tokens
func (g *Gateway) ExchangeCode(ctx context.Context, code string) (*biz.TokenSet, error) {
	ctx, cancel, answered := g.tokenContext(ctx)
	defer cancel()

	token, err := g.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, mapTokenError("exchange code", err, answered.ok.Load())
	}
	return tokenSet(token), nil
}

// FetchUserInfo looks up the claims of the access token's subject.
func (g *Gateway) FetchUserInfo(ctx context.Context, accessToken string) (*biz.Claims, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	info, err := g.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("userinfo: %w: %v", biz.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	claims, err := decodeClaims(info.Claims)
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	return claims, nil
}

// ExchangeRefreshToken refreshes an expired access token
func (g *Gateway) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*biz.TokenSet, error) {
	ctx, cancel, answered := g.tokenContext(ctx)
	defer cancel()

	tokenSource := g.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	})
	token, err := tokenSource.Token()
	if err != nil {
		return nil, mapTokenError("refresh token", err, answered.ok.Load())
	}
	return tokenSet(token), nil
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	return oidc.ClientContext(ctx, g.httpClient), cancel
}

// tokenContext is callContext for token endpoint calls. The returned
// transport reports whether the IdP answered with a 2xx status.
func (g *Gateway) tokenContext(ctx context.Context) (context.Context, context.CancelFunc, *answeredTransport) {
	base := g.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	rt := &answeredTransport{base: base}
	client := *g.httpClient
	client.Transport = rt

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	return oidc.ClientContext(ctx, &client), cancel, rt
}

type answeredTransport struct {
	base http.RoundTripper
	ok   atomic.Bool
}

func (t *answeredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		t.ok.Store(true)
	}
	return resp, err
}

func tokenSet(token *oauth2.Token) *biz.TokenSet {
	set := &biz.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		set.IDToken = idToken
	}
	return set
}

// mapTokenError turns oauth2 failures into the biz upstream taxonomy.
// answered means the IdP returned 2xx but oauth2 rejected the body, e.g.
// a response without access_token.
func mapTokenError(op string, err error, answered bool) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		upstream := &biz.UpstreamError{
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
		}
		if retrieveErr.Response != nil {
			upstream.StatusCode = retrieveErr.Response.StatusCode
		}
		return fmt.Errorf("%s: %w", op, upstream)
	}
	if isTimeout(err) {
		return fmt.Errorf("%s: %w: %v", op, biz.ErrUpstreamTimeout, err)
	}
	if answered {
		return fmt.Errorf("%s: %w: %v", op, biz.ErrUpstreamAuth, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
