package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/devicehub/devicehub/internal/infra/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one versioned schema change
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// LoadMigrations reads NNN_name.up.sql / NNN_name.down.sql pairs from dir in fsys,
// ordered by version. Files without a numeric prefix are skipped.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		version, name, kind, err := parseMigrationName(e.Name())
		if err != nil {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if kind == "down" {
			m.Down = string(body)
		} else {
			m.Up = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %03d_%s has no up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// parseMigrationName splits 001_create_devices.up.sql into (1, create_devices, up).
// A file without .up or .down is an up script.
func parseMigrationName(filename string) (int, string, string, error) {
	base := strings.TrimSuffix(strings.ToLower(filename), ".sql")
	kind := "up"
	switch {
	case strings.HasSuffix(base, ".down"):
		kind = "down"
		base = strings.TrimSuffix(base, ".down")
	case strings.HasSuffix(base, ".up"):
		base = strings.TrimSuffix(base, ".up")
	}

	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 || parts[1] == "" {
		return 0, "", "", errors.New("invalid migration filename")
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil || version <= 0 {
		return 0, "", "", errors.New("invalid migration version")
	}
	return version, parts[1], kind, nil
}

// Migrator applies schema migrations and tracks them in schema_migrations
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	logger     logger.Logger
}

// NewMigrator creates a migrator over the embedded schema
func NewMigrator(db *sql.DB, log logger.Logger) (*Migrator, error) {
	migrations, err := LoadMigrations(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return &Migrator{db: db, migrations: migrations, logger: log}, nil
}

// Migrations returns the known migrations in version order
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// Up applies every pending migration and returns the versions applied
func (m *Migrator) Up(ctx context.Context) ([]int, error) {
	if err := m.ensureSchemaMigrations(ctx); err != nil {
		return nil, err
	}

	var applied []int
	for _, mig := range m.migrations {
		done, err := m.isApplied(ctx, mig.Version)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		m.logger.Info(ctx, "Applying migration", map[string]interface{}{"version": mig.Version, "name": mig.Name})
		err = m.inTx(ctx, mig.Up, `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
			mig.Version, mig.Name, time.Now().UTC())
		if err != nil {
			return applied, fmt.Errorf("failed applying %03d_%s: %w", mig.Version, mig.Name, err)
		}
		applied = append(applied, mig.Version)
	}
	return applied, nil
}

// Down reverts up to steps applied migrations, newest first. steps <= 0 reverts all.
func (m *Migrator) Down(ctx context.Context, steps int) ([]int, error) {
	if err := m.ensureSchemaMigrations(ctx); err != nil {
		return nil, err
	}

	var reverted []int
	for i := len(m.migrations) - 1; i >= 0; i-- {
		if steps > 0 && len(reverted) >= steps {
			break
		}
		mig := m.migrations[i]
		done, err := m.isApplied(ctx, mig.Version)
		if err != nil {
			return reverted, err
		}
		if !done {
			continue
		}
		if mig.Down == "" {
			return reverted, fmt.Errorf("migration %03d_%s has no down script", mig.Version, mig.Name)
		}

		m.logger.Info(ctx, "Reverting migration", map[string]interface{}{"version": mig.Version, "name": mig.Name})
		err = m.inTx(ctx, mig.Down, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
		if err != nil {
			return reverted, fmt.Errorf("failed reverting %03d_%s: %w", mig.Version, mig.Name, err)
		}
		reverted = append(reverted, mig.Version)
	}
	return reverted, nil
}

func (m *Migrator) ensureSchemaMigrations(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) isApplied(ctx context.Context, version int) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	return exists, err
}

// inTx runs script and the bookkeeping statement atomically
func (m *Migrator) inTx(ctx context.Context, script, bookkeeping string, args ...interface{}) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
