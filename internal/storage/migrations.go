package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// Migrator applies numbered SQL migrations from an embedded filesystem.
// Files are named NNN_name.up.sql; the applied version is tracked in a
// schema_migrations table. Each migration runs in its own transaction.
type Migrator struct {
	db          *sql.DB
	files       fs.FS
	placeholder string // "?" for sqlite, "$1" for postgres
}

type migration struct {
	version uint
	name    string
	path    string
}

// NewMigrator creates a Migrator over files. placeholder is the bind
// parameter syntax of the driver.
func NewMigrator(db *sql.DB, files fs.FS, placeholder string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("migrations: database connection is required")
	}
	if placeholder == "" {
		placeholder = "?"
	}
	return &Migrator{db: db, files: files, placeholder: placeholder}, nil
}

// Up applies every migration newer than the current version and returns
// how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return 0, fmt.Errorf("migrations: failed to create schema table: %w", err)
	}

	migrations, err := m.load()
	if err != nil {
		return 0, err
	}
	current, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mig := range migrations {
		if mig.version <= current {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Version returns the highest applied migration, or 0.
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	var version uint
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrations: failed to query version: %w", err)
	}
	return version, nil
}

func (m *Migrator) apply(ctx context.Context, mig migration) error {
	body, err := fs.ReadFile(m.files, mig.path)
	if err != nil {
		return fmt.Errorf("migrations: failed to read %s: %w", mig.path, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrations: failed to begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("migrations: failed to apply version %d (%s): %w", mig.version, mig.name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ("+m.placeholder+")", mig.version); err != nil {
		return fmt.Errorf("migrations: failed to record version %d: %w", mig.version, err)
	}
	return tx.Commit()
}

// load lists NNN_name.up.sql files in version order.
func (m *Migrator) load() ([]migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to read directory: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, migration{
			version: uint(v),
			name:    strings.TrimSuffix(rest, ".up.sql"),
			path:    name,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
