package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned for paths that resolve outside the base
// directory.
var ErrPathEscape = errors.New("access to this path is forbidden")

// Resolver resolves and validates paths relative to a base directory.
type Resolver struct {
	Root string
}

// Resolve returns an absolute, cleaned path within the root. Absolute
// inputs are interpreted relative to the root. Symlinks that point outside
// the root are rejected.
func (r Resolver) Resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	rootAbs, err := r.rootAbs()
	if err != nil {
		return "", err
	}

	targetAbs := filepath.Join(rootAbs, filepath.FromSlash(clean))
	if !within(rootAbs, targetAbs) {
		return "", ErrPathEscape
	}

	if real, err := filepath.EvalSymlinks(targetAbs); err == nil {
		realRoot, rerr := filepath.EvalSymlinks(rootAbs)
		if rerr != nil {
			realRoot = rootAbs
		}
		if !within(realRoot, real) {
			return "", ErrPathEscape
		}
	}
	return targetAbs, nil
}

// IsRoot reports whether abs is the root directory itself.
func (r Resolver) IsRoot(abs string) bool {
	rootAbs, err := r.rootAbs()
	return err == nil && rootAbs == abs
}

func (r Resolver) rootAbs() (string, error) {
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	return rootAbs, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
