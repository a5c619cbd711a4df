//go:build !windows

package jsonfile

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockFile is held exclusively while a store reads or writes the directory.
const LockFile = ".lock"

// lockDir blocks until this process holds the directory lock.
func lockDir(dir string) (func(), error) {
	path := filepath.Join(dir, LockFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("jsonfile: failed to lock %s: %w", path, err)
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}
