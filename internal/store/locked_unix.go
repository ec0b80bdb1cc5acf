//go:build !windows

package store

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// isLocked reports whether err means the file cannot be replaced right now.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY)
}
