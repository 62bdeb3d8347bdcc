//go:build !windows

package export

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
)

// createNoFollow creates a file for writing without following a symlink in
// the final component. Directory components are covered by Policy.Validate.
func createNoFollow(path string) (*os.File, error) {
	fd, err := syscall.Open(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0600)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write to symlink")
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openNoFollow opens a file for reading without following a symlink in the
// final component.
func openNoFollow(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		switch {
		case stderrors.Is(err, syscall.ELOOP):
			return nil, errors.NewInvalidRequest("cannot read from symlink")
		case stderrors.Is(err, syscall.ENOENT):
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
