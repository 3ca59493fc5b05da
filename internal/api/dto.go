package api

import (
	"context"

	"portfolio-backend/internal/biz"
)

// SessionResult 会话状态迁移结果 DTO
type SessionResult struct {
	Action biz.CookieAction `json:"-"`
	Tokens biz.TokenSet     `json:"-"`

	State     string         `json:"state"`
	Source    string         `json:"identity_source,omitempty"`
	ProfileID string         `json:"profile_id,omitempty"`
	User      map[string]any `json:"user,omitempty"`
}

// AdoptTokenRequest 前端 SDK 获取的 token，写入 cookie
type AdoptTokenRequest struct {
	Token string `json:"token"`
}

// MessageResponse 通用消息响应
type MessageResponse struct {
	Message string `json:"message"`
}

// ProtectedResponse 受保护接口响应
type ProtectedResponse struct {
	Message string         `json:"message"`
	User    map[string]any `json:"user"`
}

// StatusResponse 会话状态响应
type StatusResponse struct {
	State      string         `json:"state"`
	CanRefresh bool           `json:"can_refresh"`
	User       map[string]any `json:"user,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AuthService 认证服务接口（由 service 层实现）
//
// For Callback, Refresh and Adopt the result is non-nil even when err is not,
// since a failed transition may still clear cookies.
type AuthService interface {
	LoginURL() string
	Callback(ctx context.Context, code string) (*SessionResult, error)
	Refresh(ctx context.Context, refreshToken string) (*SessionResult, error)
	Logout(ctx context.Context) *SessionResult
	Adopt(ctx context.Context, token string) (*SessionResult, error)
	Status(ctx context.Context, accessToken, refreshToken string) *StatusResponse
	Authenticate(ctx context.Context, rawToken string) (*biz.Claims, error)
}
