// Package app assembles the audit-log stack shared by the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/devicehub/devicehub/internal/adapter/ipresolver"
	"github.com/devicehub/devicehub/internal/adapter/persistence"
	"github.com/devicehub/devicehub/internal/config"
	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/ports"
	"github.com/devicehub/devicehub/internal/usecase"
)

// NewLogger builds the process logger from configuration. Production always logs JSON.
func NewLogger(cfg *config.Config, service string) logger.Logger {
	format := cfg.Logging.Format
	if cfg.IsProduction() {
		format = "json"
	}
	return logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.Logging.Level,
		Format:      format,
		ServiceName: service,
	})
}

// OpenDatabase opens the Postgres pool. A failed ping is logged, not fatal:
// the audit log keeps working against its fallback store.
func OpenDatabase(ctx context.Context, cfg *config.Config, log logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxConnections / 2)
	db.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Warn(ctx, "Database unreachable at startup", map[string]interface{}{"error": err.Error()})
	} else {
		log.Info(ctx, "Database connection established", nil)
	}
	return db, nil
}

// OpenFallback opens the configured fallback store. The returned closer
// releases the underlying connection.
func OpenFallback(ctx context.Context, cfg *config.Config) (ports.FallbackStore, io.Closer, error) {
	switch cfg.Audit.FallbackBackend {
	case "sqlite":
		db, err := persistence.OpenSQLite(cfg.Audit.FallbackPath)
		if err != nil {
			return nil, nil, err
		}
		store, err := persistence.NewSQLiteFallbackStore(ctx, db, cfg.Audit.FallbackKey)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db, nil

	case "memory":
		return persistence.NewMemoryFallbackStore(), nopCloser{}, nil

	case "redis":
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opt)
		return persistence.NewRedisFallbackStore(client, cfg.Audit.FallbackKey), client, nil

	default:
		return nil, nil, fmt.Errorf("unknown audit fallback backend: %s", cfg.Audit.FallbackBackend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewAuditLogService wires the Postgres table, its existence probe, the
// fallback store and the public IP resolver into one service
func NewAuditLogService(cfg *config.Config, db *sql.DB, fallback ports.FallbackStore, log logger.Logger) *usecase.AuditLogService {
	repo := persistence.NewPostgresAuditRepository(db)
	resolver := ipresolver.New(cfg.Audit.IPLookupEnabled, cfg.Audit.IPLookupURL, cfg.Audit.IPLookupTimeout)

	return usecase.NewAuditLogService(repo, repo, fallback, resolver, ports.SystemClock{}, log, usecase.AuditLogServiceConfig{
		StoreTimeout:    cfg.Audit.StoreTimeout,
		IPLookupTimeout: cfg.Audit.IPLookupTimeout,
	})
}
