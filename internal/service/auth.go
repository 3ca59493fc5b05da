package service

import (
	"context"

	"portfolio-backend/internal/api"
	"portfolio-backend/internal/biz"
)

// authService 认证服务实现
type authService struct {
	sessionUsecase *biz.SessionUsecase
}

// NewAuthService 创建 AuthService
func NewAuthService(sessionUsecase *biz.SessionUsecase) api.AuthService {
	return &authService{
		sessionUsecase: sessionUsecase,
	}
}

func (s *authService) LoginURL() string {
	return s.sessionUsecase.LoginURL()
}

// Callback 授权码回调，进行 DTO 转换
func (s *authService) Callback(ctx context.Context, code string) (*api.SessionResult, error) {
	outcome, err := s.sessionUsecase.Callback(ctx, code)
	return toSessionResult(outcome), err
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*api.SessionResult, error) {
	outcome, err := s.sessionUsecase.Refresh(ctx, refreshToken)
	return toSessionResult(outcome), err
}

func (s *authService) Logout(ctx context.Context) *api.SessionResult {
	return toSessionResult(s.sessionUsecase.Logout())
}

func (s *authService) Adopt(ctx context.Context, token string) (*api.SessionResult, error) {
	outcome, err := s.sessionUsecase.Adopt(ctx, token)
	return toSessionResult(outcome), err
}

func (s *authService) Status(ctx context.Context, accessToken, refreshToken string) *api.StatusResponse {
	state, claims := s.sessionUsecase.Status(ctx, accessToken, refreshToken)
	resp := &api.StatusResponse{
		State:      string(state),
		CanRefresh: refreshToken != "",
	}
	if claims != nil {
		resp.User = claimsMap(claims)
	}
	return resp
}

func (s *authService) Authenticate(ctx context.Context, rawToken string) (*biz.Claims, error) {
	return s.sessionUsecase.Authenticate(ctx, rawToken)
}

// biz.Outcome -> api.SessionResult
func toSessionResult(outcome *biz.Outcome) *api.SessionResult {
	if outcome == nil {
		return &api.SessionResult{Action: biz.CookiesUnchanged}
	}
	result := &api.SessionResult{
		Action: outcome.Action,
		Tokens: outcome.Tokens,
		State:  string(outcome.State),
	}
	if outcome.Identity != nil {
		result.Source = outcome.Identity.Source.String()
		result.User = claimsMap(outcome.Identity.Claims)
	}
	if outcome.Profile != nil {
		result.ProfileID = outcome.Profile.ID
	}
	return result
}

// claimsMap 优先返回原始 claims
func claimsMap(claims *biz.Claims) map[string]any {
	if claims == nil {
		return nil
	}
	if len(claims.Raw) > 0 {
		return claims.Raw
	}
	m := map[string]any{"sub": claims.Subject}
	if claims.Email != "" {
		m["email"] = claims.Email
	}
	if claims.Name != "" {
		m["name"] = claims.Name
	}
	return m
}
