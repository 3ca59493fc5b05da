package conf

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the config structure.
type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
	Cookie Cookie `yaml:"cookie"`
	Store  Store  `yaml:"store"`
}

// Server is the server config.
type Server struct {
	BaseURL         string        `yaml:"base_url" env:"SERVER_BASE_URL"`
	Listen          string        `yaml:"listen" env:"SERVER_LISTEN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS" envSeparator:","`
}

// Auth is the identity provider config.
type Auth struct {
	// Domain is the IdP tenant host, e.g. "example.eu.auth0.com". The issuer
	// defaults to https://<domain>/.
	Domain       string        `yaml:"domain" env:"OIDC_DOMAIN"`
	Issuer       string        `yaml:"issuer" env:"OIDC_ISSUER"`
	ClientID     string        `yaml:"client_id" env:"OIDC_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"OIDC_CLIENT_SECRET"`
	Audience     string        `yaml:"audience" env:"OIDC_AUDIENCE"`
	RedirectURL  string        `yaml:"redirect_url" env:"OIDC_REDIRECT_URL"` // Optional: if not set, auto-constructed from server.base_url
	FrontendURL  string        `yaml:"frontend_url" env:"OIDC_FRONTEND_URL"`
	Scopes       []string      `yaml:"scopes"`
	Timeout      time.Duration `yaml:"timeout" env:"OIDC_TIMEOUT"`
	// Discover fetches .well-known/openid-configuration at start-up instead of
	// using the Auth0 endpoint layout.
	Discover bool `yaml:"discover" env:"OIDC_DISCOVER"`
}

// Cookie is the session cookie policy. SameSite and Domain differ between
// deployments, so none of them is hard-coded.
type Cookie struct {
	Domain        string        `yaml:"domain" env:"COOKIE_DOMAIN"`
	Path          string        `yaml:"path" env:"COOKIE_PATH"`
	SameSite      string        `yaml:"same_site" env:"COOKIE_SAME_SITE"`
	Secure        bool          `yaml:"secure" env:"COOKIE_SECURE"`
	AccessMaxAge  time.Duration `yaml:"access_max_age" env:"COOKIE_ACCESS_MAX_AGE"`
	RefreshMaxAge time.Duration `yaml:"refresh_max_age" env:"COOKIE_REFRESH_MAX_AGE"`
}

// Store is the profile store config.
type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER"` // sqlite | postgres
	Path   string `yaml:"path" env:"STORE_SQLITE_PATH"`
	DSN    string `yaml:"dsn" env:"POSTGRES_CONNECTION_STRING"`

	MaxConns int32 `yaml:"max_conns" env:"POSTGRES_MAX_CONNS"`
	MinConns int32 `yaml:"min_conns" env:"POSTGRES_MIN_CONNS"`
}

// DefaultScopes are requested on every login; offline_access yields a
// refresh token.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access"}

// GetRedirectURL returns the OIDC callback URL
// If RedirectURL is explicitly configured, use it
// Otherwise, construct from server base_url + hardcoded callback path
func (a *Auth) GetRedirectURL(serverBaseURL string) string {
	if a.RedirectURL != "" {
		return a.RedirectURL
	}
	return strings.TrimRight(serverBaseURL, "/") + "/api/auth/callback"
}

// GetIssuer returns the configured issuer or the one implied by Domain.
func (a *Auth) GetIssuer() string {
	if a.Issuer != "" {
		return a.Issuer
	}
	return "https://" + strings.TrimSuffix(a.Domain, "/") + "/"
}

// GetAudience is the audience access tokens must carry, the client ID when
// no API audience is configured.
func (a *Auth) GetAudience() string {
	if a.Audience != "" {
		return a.Audience
	}
	return a.ClientID
}

// SameSiteMode parses the configured SameSite policy.
func (c *Cookie) SameSiteMode() (http.SameSite, error) {
	switch strings.ToLower(c.SameSite) {
	case "", "default":
		return http.SameSiteDefaultMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid cookie.same_site %q", c.SameSite)
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8000"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Auth.FrontendURL == "" {
		c.Auth.FrontendURL = "http://localhost:5173/"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{strings.TrimRight(c.Auth.FrontendURL, "/")}
	}
	if len(c.Auth.Scopes) == 0 {
		c.Auth.Scopes = DefaultScopes
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = 10 * time.Second
	}
	if c.Cookie.Path == "" {
		c.Cookie.Path = "/"
	}
	if c.Cookie.SameSite == "" {
		c.Cookie.SameSite = "lax"
	}
	if c.Cookie.AccessMaxAge == 0 {
		c.Cookie.AccessMaxAge = time.Hour
	}
	if c.Cookie.RefreshMaxAge == 0 {
		c.Cookie.RefreshMaxAge = 30 * 24 * time.Hour
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/portfolio.db"
	}
}

// Validate checks the config after defaults are applied.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Domain == "" && c.Auth.Issuer == "" {
		errs = append(errs, errors.New("auth.domain or auth.issuer is required"))
	}
	if c.Auth.ClientID == "" {
		errs = append(errs, errors.New("auth.client_id is required"))
	}
	if c.Auth.ClientSecret == "" {
		errs = append(errs, errors.New("auth.client_secret is required (or OIDC_CLIENT_SECRET)"))
	}
	if _, err := c.Cookie.SameSiteMode(); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver (or POSTGRES_CONNECTION_STRING)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}

// Load loads config from file, then applies env overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// 允许仅通过环境变量配置
	default:
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
