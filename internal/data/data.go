package data

import (
	"context"
	"fmt"
	"time"

	"portfolio-backend/internal/biz"
	"portfolio-backend/internal/conf"
	"portfolio-backend/internal/data/postgres"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// NewProfileRepo 根据配置选择仓库实现（sqlite / postgres）
func NewProfileRepo(ctx context.Context, cfg conf.Store) (biz.ProfileRepo, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteProfileRepo(cfg.Path)
	case "postgres":
		// 启动时数据库可能尚未就绪，带退避重试
		pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
			return postgres.NewPool(ctx, &postgres.PoolConfig{
				ConnString:  cfg.DSN,
				MaxConns:    cfg.MaxConns,
				MinConns:    cfg.MinConns,
				AutoMigrate: true,
			})
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxElapsedTime(time.Minute),
			backoff.WithNotify(func(err error, next time.Duration) {
				log.Warn().Err(err).Dur("retry_in", next).Msg("postgres not ready")
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres profile store: %w", err)
		}
		return postgres.NewProfileStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
