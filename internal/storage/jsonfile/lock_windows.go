//go:build windows

package jsonfile

// LockFile is unused on Windows.
const LockFile = ".lock"

// lockDir is a no-op on Windows; only one process may use a directory there.
func lockDir(dir string) (func(), error) {
	return func() {}, nil
}
