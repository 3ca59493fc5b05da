package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrProfileNotFound = errors.New("profile not found")
var ErrProfileExists = errors.New("profile already exists")

// Profile 本地个人资料，ID 始终等于 IdP subject
type Profile struct {
	ID        string
	FirstName string
	LastName  string
	AvatarURL string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// ProfileRepo 个人资料仓库接口
type ProfileRepo interface {
	// FindByID 按 subject 查找，不存在返回 ErrProfileNotFound
	FindByID(ctx context.Context, id string) (*Profile, error)
	// Create 在单独事务中插入，主键冲突返回 ErrProfileExists
	Create(ctx context.Context, profile *Profile) (*Profile, error)
	// Close 关闭仓库连接
	Close() error
}

// ProfileProvisioner finds or creates the profile tied to a verified subject.
type ProfileProvisioner struct {
	repo ProfileRepo
}

// NewProfileProvisioner 创建 ProfileProvisioner
func NewProfileProvisioner(repo ProfileRepo) *ProfileProvisioner {
	return &ProfileProvisioner{repo: repo}
}

// GetOrCreate is idempotent on claims.Subject. An existing profile is
// returned untouched; a lost insert race re-reads the winning row.
func (p *ProfileProvisioner) GetOrCreate(ctx context.Context, claims *Claims) (*Profile, error) {
	if claims == nil || claims.Subject == "" {
		return nil, fmt.Errorf("provision profile: missing subject")
	}

	profile, err := p.repo.FindByID(ctx, claims.Subject)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, fmt.Errorf("provision profile: %w", err)
	}

	created, err := p.repo.Create(ctx, profileFromClaims(claims))
	switch {
	case err == nil:
		zerolog.Ctx(ctx).Info().Str("profile_id", created.ID).Msg("profile created")
		return created, nil
	case errors.Is(err, ErrProfileExists):
		// 并发首次登录：读取胜出方写入的记录
		profile, err = p.repo.FindByID(ctx, claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("provision profile: reread after conflict: %w", err)
		}
		return profile, nil
	default:
		return nil, fmt.Errorf("provision profile: %w", err)
	}
}

func profileFromClaims(claims *Claims) *Profile {
	first, last := claims.GivenName, claims.FamilyName
	if first == "" && last == "" && claims.Name != "" && claims.Name != claims.Email {
		first, last, _ = strings.Cut(strings.TrimSpace(claims.Name), " ")
		last = strings.TrimSpace(last)
	}
	return &Profile{
		ID:        claims.Subject,
		FirstName: first,
		LastName:  last,
		AvatarURL: claims.Picture,
		Email:     claims.Email,
	}
}
