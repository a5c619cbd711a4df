// Package backup snapshots, verifies, and restores the SQLite database.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	filePrefix = "companion-"
	fileSuffix = ".db"
	stampFmt   = "20060102T150405.000000000Z"
)

// ErrVerifyFailed is returned when a backup fails its integrity check.
var ErrVerifyFailed = errors.New("backup integrity check failed")

// Info describes a backup file.
type Info struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	Verified  bool      `json:"verified"`
}

// Create snapshots the database at dbPath into dir with VACUUM INTO, which
// yields a consistent copy even while the source is in WAL mode. With
// verify set the snapshot is integrity-checked and removed if it fails.
func Create(dbPath, dir string, verify bool) (*Info, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("backup: source database: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create directory: %w", err)
	}

	now := time.Now().UTC()
	dest := filepath.Join(dir, filePrefix+now.Format(stampFmt)+fileSuffix)

	src, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("backup: open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.Exec("VACUUM INTO " + quote(dest)); err != nil {
		return nil, fmt.Errorf("backup: vacuum into %s: %w", dest, err)
	}

	info := &Info{Path: dest, Timestamp: now}
	if verify {
		if err := Verify(dest); err != nil {
			_ = os.Remove(dest)
			return nil, err
		}
		info.Verified = true
	}
	if st, err := os.Stat(dest); err == nil {
		info.Size = st.Size()
	}
	return info, nil
}

// Verify runs PRAGMA integrity_check against the backup at path.
func Verify(path string) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrVerifyFailed, filepath.Base(path), err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s: %s", ErrVerifyFailed, filepath.Base(path), result)
	}
	return nil
}

// Restore replaces the database at target with the backup at path. The
// target must not be open. Stale WAL and shared-memory files are removed so
// they cannot replay over the restored data.
func Restore(path, target string) error {
	if err := Verify(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("backup: create target directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: open backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".restore-*")
	if err != nil {
		return fmt.Errorf("backup: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("backup: copy: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("backup: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("backup: close temp: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(target + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("backup: remove %s: %w", target+suffix, err)
		}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("backup: replace %s: %w", target, err)
	}
	return Verify(target)
}

// List returns the backups in dir, newest first. A missing directory has
// no backups.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: read directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp, err := time.Parse(stampFmt, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue // not one of ours
		}
		st, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(dir, name),
			Timestamp: stamp,
			Size:      st.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Prune deletes all but the newest keep backups in dir and returns how many
// were removed.
func Prune(dir string, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("backup: keep must be at least 1")
	}
	backups, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, b := range backups[min(keep, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("backup: remove %s: %w", b.Path, err)
		}
		removed++
	}
	return removed, nil
}

// quote renders s as a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
