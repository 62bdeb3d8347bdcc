package export

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
)

// writeAtomic writes to a temp file next to path and renames it into place,
// so an existing file survives any failure.
func writeAtomic(path string, write func(w io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("create export directory: %w", err))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return errors.NewInternal(fmt.Errorf("temp file name: %w", err))
	}
	tmp := path + "." + hex.EncodeToString(suffix) + ".tmp"

	f, err := createNoFollow(tmp)
	if err != nil {
		return errors.As(err)
	}
	defer func() {
		if f != nil {
			f.Close()
		}
		if err != nil {
			os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return errors.As(err)
	}
	if err := bw.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := f.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := f.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("close export file: %w", err))
	}
	f = nil

	// os.Rename would follow a symlink planted after validation
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tmp, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("finalize export: %w", err))
	}
	return nil
}
