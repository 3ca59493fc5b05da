package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"portfolio-backend/internal/biz"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// sqliteProfileRepo SQLite 实现的个人资料仓库
type sqliteProfileRepo struct {
	db *sql.DB
}

// NewSQLiteProfileRepo 创建 SQLite 个人资料仓库
func NewSQLiteProfileRepo(dbPath string) (biz.ProfileRepo, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite 单写者：串行化连接，避免 SQLITE_BUSY；:memory: 也依赖同一连接
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// 创建 profiles 表，id 即 IdP subject
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			first_name TEXT,
			last_name TEXT,
			avatar_url TEXT,
			email TEXT,
			phone TEXT
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create profiles table: %w", err)
	}

	return &sqliteProfileRepo{db: db}, nil
}

// FindByID 按 subject 查找
func (r *sqliteProfileRepo) FindByID(ctx context.Context, id string) (*biz.Profile, error) {
	var (
		profile                           biz.Profile
		first, last, avatar, email, phone sql.NullString
		createdAt                         time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at, first_name, last_name, avatar_url, email, phone
		FROM profiles WHERE id = ?
	`, id).Scan(&profile.ID, &createdAt, &first, &last, &avatar, &email, &phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", biz.ErrProfileNotFound, id)
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	profile.CreatedAt = createdAt
	profile.FirstName = first.String
	profile.LastName = last.String
	profile.AvatarURL = avatar.String
	profile.Email = email.String
	profile.Phone = phone.String
	return &profile, nil
}

// Create 在单独事务中插入，主键冲突返回 biz.ErrProfileExists
func (r *sqliteProfileRepo) Create(ctx context.Context, profile *biz.Profile) (*biz.Profile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	createdAt := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, created_at, first_name, last_name, avatar_url, email, phone)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, profile.ID, createdAt,
		nullString(profile.FirstName), nullString(profile.LastName),
		nullString(profile.AvatarURL), nullString(profile.Email), nullString(profile.Phone))
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", biz.ErrProfileExists, profile.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit profile: %w", err)
	}

	log.Debug().Str("profile_id", profile.ID).Msg("Created profile")

	created := *profile
	created.CreatedAt = createdAt
	return &created, nil
}

// Close 关闭数据库连接
func (r *sqliteProfileRepo) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
