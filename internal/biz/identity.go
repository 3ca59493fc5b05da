package biz

import (
	"context"
	"time"
)

// TokenSet IdP 返回的令牌集合
type TokenSet struct {
	AccessToken  string
	RefreshToken string // IdP 可能不返回
	IDToken      string
	Expiry       time.Time
}

// Claims IdP 断言的身份信息
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	Picture       string `json:"picture,omitempty"`

	// Raw holds every claim as decoded, for echoing back to clients.
	Raw map[string]any `json:"-"`
}

// IdentitySource records which step of the callback produced the claims.
type IdentitySource int

const (
	SourceUserinfo IdentitySource = iota + 1
	SourceTokenClaims
)

func (s IdentitySource) String() string {
	switch s {
	case SourceUserinfo:
		return "userinfo"
	case SourceTokenClaims:
		return "token_claims"
	default:
		return "unknown"
	}
}

// Identity is the verified result of the two-step identity lookup.
type Identity struct {
	Claims *Claims
	Source IdentitySource
}

// IdentityProvider 外部 IdP 网关（由 auth 包实现）
type IdentityProvider interface {
	// AuthCodeURL 构造登录跳转地址
	AuthCodeURL() string
	// ExchangeCode 授权码换取令牌
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	// FetchUserInfo 通过 access token 获取用户信息（尽力而为）
	FetchUserInfo(ctx context.Context, accessToken string) (*Claims, error)
	// ExchangeRefreshToken 刷新令牌
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// TokenVerifier 校验 bearer token（签名、过期、issuer、audience）
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// SessionState is inferred from cookies on every request; it is never stored.
type SessionState string

const (
	StateAnonymous     SessionState = "anonymous"
	StateAuthenticated SessionState = "authenticated"
	StateExpired       SessionState = "expired"
	StateLoggedOut     SessionState = "logged_out"
)

// InferState derives the session state from which cookies are present and
// whether the access token verified.
func InferState(hasAccess, accessValid, hasRefresh bool) SessionState {
	switch {
	case hasAccess && accessValid:
		return StateAuthenticated
	case hasRefresh:
		return StateExpired
	default:
		return StateAnonymous
	}
}
