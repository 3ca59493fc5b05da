package auth

import (
	"fmt"

	"portfolio-backend/internal/biz"
)

// decodeClaims decodes go-oidc claims (IDToken.Claims / UserInfo.Claims) into
// both the typed view and the raw map.
func decodeClaims(unmarshal func(v any) error) (*biz.Claims, error) {
	var claims biz.Claims
	if err := unmarshal(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	raw := map[string]any{}
	if err := unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	claims.Raw = raw
	return &claims, nil
}
