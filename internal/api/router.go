package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// NewRouter 创建路由并注册所有 handler
func NewRouter(authHandler *AuthHandler, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(logger), Recoverer)
	// middleware only runs on matched routes
	r.NotFoundHandler = RequestLogger(logger)(http.HandlerFunc(notFound))
	r.MethodNotAllowedHandler = RequestLogger(logger)(methodNotAllowed())

	// Health check endpoint (public, no auth)
	r.HandleFunc("/health", HealthCheckHandler).Methods(http.MethodGet)
	r.Handle("/health", methodNotAllowed(http.MethodGet))

	// Auth routes; /api/protected is guarded inside RegisterRoutes
	apiRouter := r.PathPrefix("/api").Subrouter()
	authHandler.RegisterRoutes(apiRouter)

	return r
}
