// Package connections opens the storage backend named by the configured
// database URL.
package connections

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/internal/storage/jsonfile"
	"github.com/scrypster/companion/internal/storage/postgres"
	"github.com/scrypster/companion/internal/storage/redisstore"
	"github.com/scrypster/companion/internal/storage/sqlite"
)

// DefaultDatabaseFile is the SQLite file created under the data path.
const DefaultDatabaseFile = "companion.db"

// Kind identifies a backend.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
	KindJSONFile Kind = "jsonfile"
)

// Target is a resolved backend plus the argument its Open takes.
type Target struct {
	Kind Kind
	DSN  string
}

var passwordPattern = regexp.MustCompile(`(password\s*=\s*)\S+`)

// SanitizeDSN replaces the password in a DSN with [REDACTED] for safe logging.
// It handles URL and key=value forms.
func SanitizeDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err == nil && u.User != nil {
			if _, hasPassword := u.User.Password(); hasPassword {
				u.User = url.UserPassword(u.User.Username(), "[REDACTED]")
				return u.String()
			}
		}
	}
	return passwordPattern.ReplaceAllString(dsn, "${1}[REDACTED]")
}

// Resolve maps a database URL to a backend. An empty URL means SQLite under
// dataPath.
func Resolve(databaseURL, dataPath string) (Target, error) {
	if databaseURL == "" {
		return Target{Kind: KindSQLite, DSN: filepath.Join(dataPath, DefaultDatabaseFile)}, nil
	}

	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		// A bare path is a SQLite file.
		return Target{Kind: KindSQLite, DSN: databaseURL}, nil
	}

	switch strings.ToLower(scheme) {
	case "sqlite", "sqlite3":
		if rest == "" {
			return Target{}, fmt.Errorf("%w: sqlite url needs a path", storage.ErrInvalidInput)
		}
		return Target{Kind: KindSQLite, DSN: rest}, nil
	case "postgres", "postgresql":
		return Target{Kind: KindPostgres, DSN: databaseURL}, nil
	case "redis", "rediss":
		return Target{Kind: KindRedis, DSN: databaseURL}, nil
	case "file":
		u, err := url.Parse(databaseURL)
		if err != nil || u.Path == "" {
			return Target{}, fmt.Errorf("%w: file url needs a directory", storage.ErrInvalidInput)
		}
		return Target{Kind: KindJSONFile, DSN: u.Path}, nil
	default:
		return Target{}, fmt.Errorf("%w: unsupported database scheme %q", storage.ErrInvalidInput, scheme)
	}
}

// Open resolves and opens the configured backend.
func Open(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	target, err := Resolve(cfg.Storage.DatabaseURL, cfg.Storage.DataPath)
	if err != nil {
		return nil, err
	}
	log.Printf("connections: opening %s store at %s", target.Kind, SanitizeDSN(target.DSN))

	switch target.Kind {
	case KindPostgres:
		return postgres.Open(ctx, target.DSN)
	case KindRedis:
		return redisstore.Open(ctx, target.DSN)
	case KindJSONFile:
		return jsonfile.Open(target.DSN)
	default:
		return sqlite.Open(ctx, target.DSN)
	}
}
