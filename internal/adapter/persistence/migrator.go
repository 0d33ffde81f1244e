package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
)

// Migration directions
const (
	MigrationUp   = "up"
	MigrationDown = "down"
)

var ErrInvalidMigrationName = errors.New("invalid migration file name")

// Migration is one versioned SQL file, e.g. 001_create_complaints.up.sql
type Migration struct {
	Version   int
	Name      string
	Path      string
	Direction string
}

// LoadMigrations reads dir and returns its migrations sorted by version.
// Files without a numeric prefix are skipped; plain .sql files count as up.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		m, err := parseMigrationName(e.Name())
		if err != nil {
			continue
		}
		m.Path = filepath.Join(dir, e.Name())
		migrations = append(migrations, m)
	}

	sort.SliceStable(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func parseMigrationName(filename string) (Migration, error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return Migration{}, ErrInvalidMigrationName
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil || version < 0 {
		return Migration{}, ErrInvalidMigrationName
	}

	name := strings.TrimSuffix(strings.ToLower(parts[1]), ".sql")
	direction := MigrationUp
	switch {
	case strings.HasSuffix(name, ".down"):
		direction = MigrationDown
		name = strings.TrimSuffix(name, ".down")
	case strings.HasSuffix(name, ".up"):
		name = strings.TrimSuffix(name, ".up")
	}

	return Migration{Version: version, Name: name, Direction: direction}, nil
}

// Migrator applies migrations tracked in the schema_migrations table
type Migrator struct {
	db     *sql.DB
	dir    string
	logger logger.Logger
}

func NewMigrator(db *sql.DB, dir string, log logger.Logger) *Migrator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Migrator{db: db, dir: dir, logger: log}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) isApplied(ctx context.Context, version int) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
	return exists, err
}

// Up applies every pending up migration in version order and returns how
// many ran. Each migration and its bookkeeping row commit together.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	migrations, err := LoadMigrations(m.dir)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mig := range migrations {
		if mig.Direction != MigrationUp {
			continue
		}
		done, err := m.isApplied(ctx, mig.Version)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		m.logger.Info(ctx, "Applying migration", map[string]interface{}{
			"version": mig.Version,
			"name":    mig.Name,
		})
		err = m.run(ctx, mig, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Down reverts applied migrations newest first. steps <= 0 reverts all.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	migrations, err := LoadMigrations(m.dir)
	if err != nil {
		return 0, err
	}

	reverted := 0
	for i := len(migrations) - 1; i >= 0; i-- {
		mig := migrations[i]
		if mig.Direction != MigrationDown {
			continue
		}
		if steps > 0 && reverted >= steps {
			break
		}
		done, err := m.isApplied(ctx, mig.Version)
		if err != nil {
			return reverted, err
		}
		if !done {
			continue
		}

		m.logger.Info(ctx, "Reverting migration", map[string]interface{}{
			"version": mig.Version,
			"name":    mig.Name,
		})
		if err := m.run(ctx, mig, "DELETE FROM schema_migrations WHERE version = $1", mig.Version); err != nil {
			return reverted, err
		}
		reverted++
	}
	return reverted, nil
}

func (m *Migrator) run(ctx context.Context, mig Migration, bookkeeping string, args ...interface{}) error {
	body, err := os.ReadFile(mig.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", mig.Path, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("failed applying %s: %w", mig.Path, err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return fmt.Errorf("failed to record migration %03d: %w", mig.Version, err)
	}
	return tx.Commit()
}
