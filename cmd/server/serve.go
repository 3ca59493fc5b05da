package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"portfolio-backend/internal/api"
	"portfolio-backend/internal/auth"
	"portfolio-backend/internal/biz"
	"portfolio-backend/internal/conf"
	"portfolio-backend/internal/data"
	"portfolio-backend/internal/logger"
	"portfolio-backend/internal/server"
	"portfolio-backend/internal/service"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Conf string `help:"config path, eg: --conf config.yaml" default:"configs/config.yaml" env:"CONFIG_PATH" type:"path"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("starting server")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	// load config
	cfg, err := conf.Load(c.Conf)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 手动依赖注入
	// data 层
	profileRepo, err := data.NewProfileRepo(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to init profile repo: %w", err)
	}
	defer profileRepo.Close()
	log.Info().Str("driver", cfg.Store.Driver).Msg("profile store ready")

	// auth 层
	provider, err := auth.NewProvider(ctx, &cfg.Auth, auth.NewCachingClient())
	if err != nil {
		return err
	}
	redirectURL := cfg.Auth.GetRedirectURL(cfg.Server.BaseURL)
	gateway := auth.NewGateway(provider, auth.GatewayConfig{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURL:  redirectURL,
		Audience:     cfg.Auth.Audience,
		Scopes:       cfg.Auth.Scopes,
		Timeout:      cfg.Auth.Timeout,
	})
	verifier := auth.NewTokenVerifier(provider, cfg.Auth.GetAudience())

	policy, err := auth.NewCookiePolicy(&cfg.Cookie)
	if err != nil {
		return err
	}
	cookies := auth.NewCookieManager(policy)
	log.Info().
		Str("issuer", cfg.Auth.GetIssuer()).
		Str("redirect_url", redirectURL).
		Msg("OIDC authentication enabled (stateless)")

	// biz 层
	provisioner := biz.NewProfileProvisioner(profileRepo)
	sessionUsecase := biz.NewSessionUsecase(gateway, verifier, provisioner)
	// service 层
	authService := service.NewAuthService(sessionUsecase)
	// api 层
	authHandler := api.NewAuthHandler(authService, cookies, cfg.Auth.FrontendURL)
	router := api.NewRouter(authHandler, log)

	srv := server.New(server.Config{
		Addr:            cfg.Server.Listen,
		CORSOrigins:     cfg.Server.CORSOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, log)
	return srv.Run(ctx)
}
