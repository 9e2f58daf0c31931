package infra

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nafee3/nafee3/internal/config"
	"github.com/nafee3/nafee3/internal/logging"
)

// Backends are the optional stores the API runs on. A nil field means the
// in-memory implementation is used instead.
type Backends struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Open connects whatever cfg names and migrates Postgres. Missing URLs are
// only logged; config.Load already refused them outside development.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Backends, error) {
	logger = logging.OrDiscard(logger)
	var b Backends

	if cfg.DatabaseURL != "" {
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL, PostgresOptions{
			MaxConns:       cfg.DBMaxConns,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return Backends{}, err
		}
		b.DB = db
		if err := Migrate(ctx, db); err != nil {
			b.Close(logger)
			return Backends{}, err
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL, cfg.ConnectTimeout)
		if err != nil {
			b.Close(logger)
			return Backends{}, err
		}
		b.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, codes and rate limits are kept in memory")
	}
	return b, nil
}

// Close releases every open backend.
func (b Backends) Close(logger *slog.Logger) {
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			logging.OrDiscard(logger).Warn("close redis", "error", err)
		}
	}
	if b.DB != nil {
		b.DB.Close()
	}
}
