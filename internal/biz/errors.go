package biz

import (
	"errors"
	"fmt"
)

// 上游 IdP 相关错误
var (
	ErrUpstreamAuth    = errors.New("upstream authentication failed")
	ErrUpstreamTimeout = errors.New("upstream authentication timeout")
	ErrInvalidGrant    = errors.New("invalid grant")
	ErrInvalidToken    = errors.New("invalid token")
)

// 对外错误分类（映射到 HTTP 状态码）
var (
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrGatewayTimeout = errors.New("gateway timeout")
	ErrInternal       = errors.New("internal error")
)

// invalidGrantCodes are upstream error codes after which the refresh token
// can never succeed again.
var invalidGrantCodes = map[string]struct{}{
	"invalid_grant": {},
}

// IsInvalidGrantCode reports whether an IdP error code means the grant itself
// is dead rather than the call having failed transiently.
func IsInvalidGrantCode(code string) bool {
	_, ok := invalidGrantCodes[code]
	return ok
}

// UpstreamError is a non-success response from the identity provider.
type UpstreamError struct {
	StatusCode  int
	Code        string
	Description string
}

const genericUpstreamMessage = "failed to exchange credentials with identity provider"

func (e *UpstreamError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("identity provider returned %d", e.StatusCode)
	}
	return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, e.Code)
}

// Message is the human readable cause, falling back to a generic text when
// the IdP sent none.
func (e *UpstreamError) Message() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return genericUpstreamMessage
}

// Unwrap classifies the error as ErrInvalidGrant or ErrUpstreamAuth.
func (e *UpstreamError) Unwrap() error {
	if IsInvalidGrantCode(e.Code) {
		return ErrInvalidGrant
	}
	return ErrUpstreamAuth
}

// Kind is the user visible class of an authentication failure.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindGatewayTimeout
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindGatewayTimeout:
		return "gateway_timeout"
	default:
		return "internal_error"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindBadRequest:
		return ErrBadRequest
	case KindUnauthorized:
		return ErrUnauthorized
	case KindGatewayTimeout:
		return ErrGatewayTimeout
	default:
		return ErrInternal
	}
}

// AuthError is returned by SessionUsecase for every failed transition.
type AuthError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUnauthorized) match on the kind.
func (e *AuthError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newAuthError(kind Kind, message string, err error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternal
}
