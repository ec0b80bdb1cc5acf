//go:build windows

package store

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/windows"
)

// isLocked reports whether err means another process holds the file open.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
