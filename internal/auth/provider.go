package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"portfolio-backend/internal/conf"

	"github.com/cenkalti/backoff/v5"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog/log"
)

// NewCachingClient returns an HTTP client that honours Cache-Control on
// discovery documents and JWKS. Only use it for those public GETs: the cache
// key ignores the Authorization header.
func NewCachingClient() *http.Client {
	return &http.Client{
		Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
		Timeout:   10 * time.Second,
	}
}

// NewProvider builds the go-oidc provider for cfg. With Discover set it
// fetches .well-known/openid-configuration, retrying until ctx ends;
// otherwise it assumes the Auth0 endpoint layout under the issuer.
func NewProvider(ctx context.Context, cfg *conf.Auth, keyClient *http.Client) (*oidc.Provider, error) {
	issuer := cfg.GetIssuer()
	ctx = oidc.ClientContext(ctx, keyClient)

	if !cfg.Discover {
		return StaticProviderConfig(issuer).NewProvider(ctx), nil
	}

	provider, err := backoff.Retry(ctx, func() (*oidc.Provider, error) {
		return oidc.NewProvider(ctx, issuer)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(time.Minute),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Str("issuer", issuer).Msg("OIDC discovery failed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return provider, nil
}

// StaticProviderConfig is the Auth0 endpoint layout for issuer.
func StaticProviderConfig(issuer string) *oidc.ProviderConfig {
	base := strings.TrimSuffix(issuer, "/") + "/"
	return &oidc.ProviderConfig{
		IssuerURL:   issuer,
		AuthURL:     base + "authorize",
		TokenURL:    base + "oauth/token",
		UserInfoURL: base + "userinfo",
		JWKSURL:     base + ".well-known/jwks.json",
		Algorithms:  []string{oidc.RS256},
	}
}
