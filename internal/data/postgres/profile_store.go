package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-backend/internal/biz"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ProfileStore implements biz.ProfileRepo using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

var _ biz.ProfileRepo = (*ProfileStore)(nil)

// NewProfileStore creates a new PostgreSQL-backed profile store.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// FindByID retrieves a profile by subject.
func (s *ProfileStore) FindByID(ctx context.Context, id string) (*biz.Profile, error) {
	query := `
		SELECT id, created_at,
			COALESCE(first_name, ''), COALESCE(last_name, ''),
			COALESCE(avatar_url, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM profiles
		WHERE id = $1
	`

	var profile biz.Profile
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.CreatedAt,
		&profile.FirstName,
		&profile.LastName,
		&profile.AvatarURL,
		&profile.Email,
		&profile.Phone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", biz.ErrProfileNotFound, id)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// Create inserts the profile in its own transaction. The primary key decides
// concurrent first logins; the loser gets biz.ErrProfileExists.
func (s *ProfileStore) Create(ctx context.Context, profile *biz.Profile) (*biz.Profile, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	query := `
		INSERT INTO profiles (
			id, created_at, first_name, last_name, avatar_url, email, phone
		) VALUES (
			$1, $2, NULLIF($3::text, ''), NULLIF($4::text, ''), NULLIF($5::text, ''), NULLIF($6::text, ''), NULLIF($7::text, '')
		)
	`

	createdAt := time.Now().UTC()
	_, err = tx.Exec(ctx, query,
		profile.ID,
		createdAt,
		profile.FirstName,
		profile.LastName,
		profile.AvatarURL,
		profile.Email,
		profile.Phone,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", biz.ErrProfileExists, profile.ID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", biz.ErrProfileExists, profile.ID)
		}
		return nil, fmt.Errorf("failed to commit profile: %w", err)
	}

	log.Debug().Str("profile_id", profile.ID).Msg("Created profile")

	created := *profile
	created.CreatedAt = createdAt
	return &created, nil
}

// Close closes the underlying pool.
func (s *ProfileStore) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
