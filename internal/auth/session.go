package auth

import (
	"net/http"
	"time"

	"portfolio-backend/internal/biz"
	"portfolio-backend/internal/conf"

	"github.com/rs/zerolog/log"
)

const (
	// AccessTokenCookieName is the name of the access token cookie
	AccessTokenCookieName = "access_token"
	// RefreshTokenCookieName is the name of the refresh token cookie
	RefreshTokenCookieName = "refresh_token"
)

// CookiePolicy holds the attributes shared by set and delete. Browsers only
// remove a cookie when Domain and Path match the ones it was set with.
type CookiePolicy struct {
	Domain        string
	Path          string
	SameSite      http.SameSite
	Secure        bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// NewCookiePolicy converts the configured cookie section.
func NewCookiePolicy(cfg *conf.Cookie) (CookiePolicy, error) {
	sameSite, err := cfg.SameSiteMode()
	if err != nil {
		return CookiePolicy{}, err
	}
	return CookiePolicy{
		Domain:        cfg.Domain,
		Path:          cfg.Path,
		SameSite:      sameSite,
		Secure:        cfg.Secure,
		AccessMaxAge:  cfg.AccessMaxAge,
		RefreshMaxAge: cfg.RefreshMaxAge,
	}, nil
}

// CookieManager stores session tokens in httpOnly cookies (stateless).
type CookieManager struct {
	policy CookiePolicy
}

// NewCookieManager creates a cookie manager. SameSite=None without Secure is
// rejected by browsers, so Secure is forced on in that case.
func NewCookieManager(policy CookiePolicy) *CookieManager {
	if policy.Path == "" {
		policy.Path = "/"
	}
	if policy.AccessMaxAge == 0 {
		policy.AccessMaxAge = time.Hour
	}
	if policy.RefreshMaxAge == 0 {
		policy.RefreshMaxAge = 30 * 24 * time.Hour
	}
	if policy.SameSite == http.SameSiteNoneMode && !policy.Secure {
		log.Warn().Msg("cookie same_site=none requires secure cookies, enabling secure")
		policy.Secure = true
	}
	return &CookieManager{policy: policy}
}

// Policy returns the effective policy.
func (m *CookieManager) Policy() CookiePolicy {
	return m.policy
}

// SetSession writes the access cookie and, when refreshToken is not empty,
// the refresh cookie.
func (m *CookieManager) SetSession(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, m.cookie(AccessTokenCookieName, accessToken, m.policy.AccessMaxAge))
	if refreshToken != "" {
		http.SetCookie(w, m.cookie(RefreshTokenCookieName, refreshToken, m.policy.RefreshMaxAge))
	}
}

// ClearSession deletes both cookies.
func (m *CookieManager) ClearSession(w http.ResponseWriter) {
	m.ClearAccess(w)
	http.SetCookie(w, m.expired(RefreshTokenCookieName))
}

// ClearAccess deletes the access cookie only.
func (m *CookieManager) ClearAccess(w http.ResponseWriter) {
	http.SetCookie(w, m.expired(AccessTokenCookieName))
}

// Apply materialises the cookie action of a session transition.
func (m *CookieManager) Apply(w http.ResponseWriter, action biz.CookieAction, tokens biz.TokenSet) {
	switch action {
	case biz.CookiesSet:
		m.SetSession(w, tokens.AccessToken, tokens.RefreshToken)
	case biz.CookiesClearAccess:
		m.ClearAccess(w)
	case biz.CookiesClearAll:
		m.ClearSession(w)
	}
}

// AccessToken returns the access cookie value, empty when absent.
func (m *CookieManager) AccessToken(r *http.Request) string {
	return cookieValue(r, AccessTokenCookieName)
}

// RefreshToken returns the refresh cookie value, empty when absent.
func (m *CookieManager) RefreshToken(r *http.Request) string {
	return cookieValue(r, RefreshTokenCookieName)
}

func (m *CookieManager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.policy.Path,
		Domain:   m.policy.Domain,
		HttpOnly: true,
		Secure:   m.policy.Secure,
		SameSite: m.policy.SameSite,
		MaxAge:   int(maxAge.Seconds()),
	}
}

func (m *CookieManager) expired(name string) *http.Cookie {
	c := m.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

func cookieValue(r *http.Request, name string) string {
	if cookie, err := r.Cookie(name); err == nil {
		return cookie.Value
	}
	return ""
}
