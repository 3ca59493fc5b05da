package auth

import (
	"context"
	"errors"
	"fmt"

	"portfolio-backend/internal/biz"

	"github.com/coreos/go-oidc/v3/oidc"
)

// TokenVerifier checks a bearer JWT against the IdP's published keys, its
// expiry, issuer and audience. Every failure is biz.ErrInvalidToken.
type TokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

var _ biz.TokenVerifier = (*TokenVerifier)(nil)

// NewTokenVerifier verifies with the provider's remote key set.
func NewTokenVerifier(provider *oidc.Provider, audience string) *TokenVerifier {
	return &TokenVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}
}

// NewTokenVerifierWithKeySet verifies against an explicit key set.
func NewTokenVerifierWithKeySet(issuer, audience string, keySet oidc.KeySet) *TokenVerifier {
	return &TokenVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: audience}),
	}
}

// Verify validates rawToken and returns its claims.
func (v *TokenVerifier) Verify(ctx context.Context, rawToken string) (*biz.Claims, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", biz.ErrInvalidToken, err)
	}
	claims, err := decodeClaims(token.Claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", biz.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %v", biz.ErrInvalidToken, errors.New("token has no subject"))
	}
	return claims, nil
}
