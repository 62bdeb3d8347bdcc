package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roninrabbat-maker/adventure-forge/internal/config"
	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // import
	PathCheckWrite                      // transcript or backup export
)

// Policy decides where export and import files may live.
type Policy struct {
	// ExportsDir is always allowed (<baseDir>/exports).
	ExportsDir string

	// AllowedPaths are extra absolute directories.
	AllowedPaths []string

	// AllowUnsafe drops the directory restriction. Symlink checks still apply.
	AllowUnsafe bool
}

// NewPolicy builds the policy for a base directory (usually ~/.forge).
func NewPolicy(baseDir string, cfg *config.Config) Policy {
	p := Policy{ExportsDir: filepath.Join(baseDir, "exports")}
	if cfg != nil {
		p.AllowedPaths = cfg.AllowedPaths
		p.AllowUnsafe = cfg.AllowUnsafePaths
	}
	return p
}

// Validate checks path for traversal, extension (one of exts), directory
// placement and symlinks.
//
// Files must sit directly in an allowed directory, never in a subdirectory
// of one. Together with O_NOFOLLOW on the final component this leaves no
// intermediate component that could be swapped for a symlink between the
// check and the open.
func (p Policy) Validate(path string, mode PathCheckMode, exts ...string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !hasExt(cleaned, exts) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have one of the extensions %v", exts))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if !p.AllowUnsafe {
		allowed, err := p.allowedDirs()
		if err != nil {
			return err
		}
		parent := filepath.Dir(absPath)
		if !isDirectlyIn(parent, allowed) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowed))
		}
		if info, err := os.Lstat(parent); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// allowedDirs returns the exports dir plus absolute allowed paths, with
// existing symlinked entries resolved to their targets.
func (p Policy) allowedDirs() ([]string, error) {
	dirs := []string{p.ExportsDir}
	for _, d := range p.AllowedPaths {
		if filepath.IsAbs(d) {
			dirs = append(dirs, filepath.Clean(d))
		}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		out = append(out, abs)
	}
	return out, nil
}

func isDirectlyIn(parent string, dirs []string) bool {
	parent = filepath.Clean(parent)
	for _, d := range dirs {
		if parent == filepath.Clean(d) {
			return true
		}
	}
	return false
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	}) {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeForFilename makes s safe to embed in a file name.
func SanitizeForFilename(s string) string {
	s = strings.NewReplacer("/", "-", "\\", "-", "..", "-", " ", "-").Replace(s)

	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	s = b.String()
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-.")
	if s == "" {
		s = "unnamed"
	}
	return s
}
