package auth

import (
	"context"
	"errors"

	"portfolio-backend/internal/biz"
)

type contextKey string

const (
	// claimsContextKey is the context key for the authenticated claims
	claimsContextKey contextKey = "authenticated_claims"
)

var (
	// ErrNoClaimsInContext is returned when no claims are found in context
	ErrNoClaimsInContext = errors.New("no authenticated user in context")
)

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *biz.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// GetClaimsFromContext extracts authenticated claims from request context
func GetClaimsFromContext(ctx context.Context) (*biz.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*biz.Claims)
	if !ok || claims == nil {
		return nil, ErrNoClaimsInContext
	}
	return claims, nil
}

// MustGetClaimsFromContext panics if no claims in context (use after auth middleware)
func MustGetClaimsFromContext(ctx context.Context) *biz.Claims {
	claims, err := GetClaimsFromContext(ctx)
	if err != nil {
		panic("expected authenticated user in context")
	}
	return claims
}
