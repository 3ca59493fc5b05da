package biz

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// CookieAction tells the HTTP layer what to do with the session cookies.
type CookieAction int

const (
	CookiesUnchanged CookieAction = iota
	CookiesSet
	CookiesClearAccess
	CookiesClearAll
)

func (a CookieAction) String() string {
	switch a {
	case CookiesSet:
		return "set"
	case CookiesClearAccess:
		return "clear_access"
	case CookiesClearAll:
		return "clear_all"
	default:
		return "unchanged"
	}
}

// Outcome is the result of one session transition. It is returned even when
// the transition failed, because some failures still clear cookies.
type Outcome struct {
	Action CookieAction
	// Tokens to write when Action is CookiesSet. An empty RefreshToken keeps
	// the refresh cookie the browser already holds.
	Tokens   TokenSet
	State    SessionState
	Identity *Identity
	Profile  *Profile
	// ProvisionErr is the swallowed profile provisioning failure, if any.
	ProvisionErr error
}

// Provisioner 个人资料自动创建
type Provisioner interface {
	GetOrCreate(ctx context.Context, claims *Claims) (*Profile, error)
}

// SessionUsecase 认证会话状态机：login / callback / refresh / logout / verify
type SessionUsecase struct {
	idp         IdentityProvider
	verifier    TokenVerifier
	provisioner Provisioner
}

// NewSessionUsecase 创建 SessionUsecase
func NewSessionUsecase(idp IdentityProvider, verifier TokenVerifier, provisioner Provisioner) *SessionUsecase {
	return &SessionUsecase{
		idp:         idp,
		verifier:    verifier,
		provisioner: provisioner,
	}
}

// LoginURL returns the IdP authorize URL. No local state changes.
func (uc *SessionUsecase) LoginURL() string {
	return uc.idp.AuthCodeURL()
}

// Callback exchanges an authorization code and establishes a session.
func (uc *SessionUsecase) Callback(ctx context.Context, code string) (*Outcome, error) {
	unchanged := &Outcome{Action: CookiesUnchanged, State: StateAnonymous}
	if code == "" {
		return unchanged, newAuthError(KindBadRequest, "authorization code is missing", nil)
	}

	tokens, err := uc.idp.ExchangeCode(ctx, code)
	if err != nil {
		return unchanged, classifyExchangeError(err)
	}
	if tokens.AccessToken == "" {
		return unchanged, newAuthError(KindUnauthorized, "no access token received from identity provider", nil)
	}

	identity, err := uc.resolveIdentity(ctx, tokens.AccessToken)
	if err != nil {
		return unchanged, newAuthError(KindUnauthorized, "unable to establish identity", err)
	}

	profile, provisionErr := uc.provisionBestEffort(ctx, identity.Claims)

	zerolog.Ctx(ctx).Info().
		Str("sub", identity.Claims.Subject).
		Stringer("identity_source", identity.Source).
		Bool("refresh_token", tokens.RefreshToken != "").
		Msg("login completed")

	return &Outcome{
		Action: CookiesSet,
		Tokens: TokenSet{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			IDToken:      tokens.IDToken,
			Expiry:       tokens.Expiry,
		},
		State:        StateAuthenticated,
		Identity:     identity,
		Profile:      profile,
		ProvisionErr: provisionErr,
	}, nil
}

// resolveIdentity asks userinfo first and falls back to verifying the access
// token itself when userinfo is unavailable.
func (uc *SessionUsecase) resolveIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := uc.idp.FetchUserInfo(ctx, accessToken)
	if err == nil && claims != nil && claims.Subject != "" {
		return &Identity{Claims: claims, Source: SourceUserinfo}, nil
	}
	if err == nil {
		err = errors.New("userinfo response has no subject")
	}
	zerolog.Ctx(ctx).Warn().Err(err).Msg("userinfo unavailable, falling back to token claims")

	claims, err = uc.verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &Identity{Claims: claims, Source: SourceTokenClaims}, nil
}

// provisionBestEffort is the non-fatal provisioning branch: a failure is
// logged and handed back on the Outcome, login carries on.
func (uc *SessionUsecase) provisionBestEffort(ctx context.Context, claims *Claims) (*Profile, error) {
	profile, err := uc.provisioner.GetOrCreate(ctx, claims)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("sub", claims.Subject).
			Msg("profile provisioning failed, continuing login")
		return nil, err
	}
	return profile, nil
}

// Refresh mints a new access token from the refresh cookie.
func (uc *SessionUsecase) Refresh(ctx context.Context, refreshToken string) (*Outcome, error) {
	if refreshToken == "" {
		return &Outcome{Action: CookiesClearAccess, State: StateAnonymous},
			newAuthError(KindUnauthorized, "refresh token is missing", nil)
	}

	tokens, err := uc.idp.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			zerolog.Ctx(ctx).Info().Err(err).Msg("refresh token rejected, ending session")
			return &Outcome{Action: CookiesClearAll, State: StateLoggedOut},
				newAuthError(KindUnauthorized, "session expired, please log in again", err)
		}
		return &Outcome{Action: CookiesUnchanged, State: StateExpired}, classifyExchangeError(err)
	}
	if tokens.AccessToken == "" {
		return &Outcome{Action: CookiesUnchanged, State: StateExpired},
			newAuthError(KindUnauthorized, "no access token received from identity provider", nil)
	}

	// 未轮换时保留浏览器中已有的 refresh cookie
	rotated := tokens.RefreshToken
	if rotated == refreshToken {
		rotated = ""
	}

	zerolog.Ctx(ctx).Debug().Bool("rotated", rotated != "").Msg("session refreshed")

	return &Outcome{
		Action: CookiesSet,
		Tokens: TokenSet{
			AccessToken:  tokens.AccessToken,
			RefreshToken: rotated,
			IDToken:      tokens.IDToken,
			Expiry:       tokens.Expiry,
		},
		State: StateAuthenticated,
	}, nil
}

// Logout always succeeds.
func (uc *SessionUsecase) Logout() *Outcome {
	return &Outcome{Action: CookiesClearAll, State: StateLoggedOut}
}

// Authenticate is the guarded-request check. It never changes cookies.
func (uc *SessionUsecase) Authenticate(ctx context.Context, rawToken string) (*Claims, error) {
	if rawToken == "" {
		return nil, newAuthError(KindUnauthorized, "missing authentication token", nil)
	}
	claims, err := uc.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, newAuthError(KindUnauthorized, "invalid or expired token", err)
	}
	return claims, nil
}

// Adopt stores a bearer token obtained outside the callback (e.g. by a SPA
// SDK) as the access cookie once it verifies.
func (uc *SessionUsecase) Adopt(ctx context.Context, rawToken string) (*Outcome, error) {
	claims, err := uc.Authenticate(ctx, rawToken)
	if err != nil {
		return &Outcome{Action: CookiesUnchanged, State: StateAnonymous}, err
	}
	return &Outcome{
		Action:   CookiesSet,
		Tokens:   TokenSet{AccessToken: rawToken},
		State:    StateAuthenticated,
		Identity: &Identity{Claims: claims, Source: SourceTokenClaims},
	}, nil
}

// Status reports the inferred session state without side effects.
func (uc *SessionUsecase) Status(ctx context.Context, accessToken, refreshToken string) (SessionState, *Claims) {
	var claims *Claims
	if accessToken != "" {
		if c, err := uc.verifier.Verify(ctx, accessToken); err == nil {
			claims = c
		}
	}
	return InferState(accessToken != "", claims != nil, refreshToken != ""), claims
}

func classifyExchangeError(err error) *AuthError {
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return newAuthError(KindGatewayTimeout, "authentication service timeout, please try again", err)
	case errors.As(err, &upstream):
		return newAuthError(KindUnauthorized, "authentication failed: "+upstream.Message(), err)
	case errors.Is(err, ErrUpstreamAuth):
		return newAuthError(KindUnauthorized, "authentication failed", err)
	default:
		return newAuthError(KindInternal, "authentication failed", err)
	}
}
