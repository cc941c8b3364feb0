package util

import (
	"os"
)

const (
	// the owner can make/remove files inside the directory
	privateDirMode = 0700
)

// EnsureDir creates dirpath if it does not already exist.
func EnsureDir(dirpath string) error {
	info, err := os.Stat(dirpath)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return os.ErrExist
	}
	return os.MkdirAll(dirpath, privateDirMode)
}
