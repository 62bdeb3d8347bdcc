//go:build windows

package export

import (
	"os"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
)

// createNoFollow creates a file for writing. Windows has no O_NOFOLLOW;
// Policy.Validate has already rejected symlinked targets.
func createNoFollow(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
}

func openNoFollow(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
