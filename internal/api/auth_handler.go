package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"portfolio-backend/internal/auth"
	"portfolio-backend/internal/biz"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService AuthService
	cookies     *auth.CookieManager
	frontendURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService, cookies *auth.CookieManager, frontendURL string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		frontendURL: frontendURL,
	}
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/login", h.login).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", h.callback).Methods(http.MethodGet)
	r.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodDelete, http.MethodPost)
	r.HandleFunc("/auth/session", h.adopt).Methods(http.MethodPost)
	r.HandleFunc("/auth/status", h.status).Methods(http.MethodGet)

	// /protected must run under the auth middleware so claims are in context
	r.Handle("/protected", auth.AuthMiddleware(h.authService, h.cookies)(http.HandlerFunc(h.protected))).Methods(http.MethodGet)

	// mux drops the method mismatch once a later route with its own
	// Methods matcher is tried, so every path gets an explicit 405
	routeMethods := map[string][]string{
		"/login":         {http.MethodGet},
		"/auth/login":    {http.MethodGet},
		"/auth/callback": {http.MethodGet},
		"/auth/refresh":  {http.MethodPost},
		"/auth/logout":   {http.MethodDelete, http.MethodPost},
		"/auth/session":  {http.MethodPost},
		"/auth/status":   {http.MethodGet},
		"/protected":     {http.MethodGet},
	}
	for path, methods := range routeMethods {
		r.Handle(path, methodNotAllowed(methods...))
	}
}

// login redirects to the identity provider
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.authService.LoginURL(), http.StatusFound)
}

// callback exchanges the authorization code and sets the session cookies
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// IdP 侧失败（如用户拒绝授权）
	if errParam := query.Get("error"); errParam != "" {
		msg := query.Get("error_description")
		if msg == "" {
			msg = errParam
		}
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   biz.KindUnauthorized.String(),
			Message: "Authentication failed: " + msg,
		})
		return
	}

	result, err := h.authService.Callback(r.Context(), query.Get("code"))
	h.cookies.Apply(w, result.Action, result.Tokens)
	if err != nil {
		writeError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("profile_id", result.ProfileID).
		Str("identity_source", result.Source).
		Msg("session established")

	// Redirect to frontend
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// refresh rotates the session using the refresh token cookie
func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.authService.Refresh(r.Context(), h.cookies.RefreshToken(r))
	h.cookies.Apply(w, result.Action, result.Tokens)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Token refreshed successfully"})
}

// logout clears both cookies, whether or not they exist
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	result := h.authService.Logout(r.Context())
	h.cookies.Apply(w, result.Action, result.Tokens)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// adopt verifies a token obtained by the front-end and stores it as the access cookie
func (h *AuthHandler) adopt(w http.ResponseWriter, r *http.Request) {
	var req AdoptTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   biz.KindBadRequest.String(),
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.authService.Adopt(r.Context(), req.Token)
	h.cookies.Apply(w, result.Action, result.Tokens)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Cookie set successfully"})
}

// status reports the session state inferred from cookies
func (h *AuthHandler) status(w http.ResponseWriter, r *http.Request) {
	resp := h.authService.Status(r.Context(), auth.ExtractBearerToken(r, h.cookies), h.cookies.RefreshToken(r))
	writeJSON(w, http.StatusOK, resp)
}

// protected returns the decoded claims of the caller
func (h *AuthHandler) protected(w http.ResponseWriter, r *http.Request) {
	claims := auth.MustGetClaimsFromContext(r.Context())

	user := claims.Raw
	if user == nil {
		user = map[string]any{"sub": claims.Subject}
	}
	writeJSON(w, http.StatusOK, ProtectedResponse{
		Message: "You are authenticated!",
		User:    user,
	})
}

var kindStatus = map[biz.Kind]int{
	biz.KindBadRequest:     http.StatusBadRequest,
	biz.KindUnauthorized:   http.StatusUnauthorized,
	biz.KindGatewayTimeout: http.StatusGatewayTimeout,
	biz.KindInternal:       http.StatusInternalServerError,
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := biz.KindOf(err)
	message := "Authentication failed"
	var authErr *biz.AuthError
	if errors.As(err, &authErr) {
		message = authErr.Message
	}

	event := zerolog.Ctx(r.Context()).Warn()
	if kind == biz.KindInternal {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Stringer("kind", kind).Msg("auth request failed")

	writeJSON(w, kindStatus[kind], ErrorResponse{
		Error:   kind.String(),
		Message: message,
	})
}
