package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// pathResolver confines file tool paths to a workspace root, rejecting any
// path (relative or absolute) that would resolve outside of it.
type pathResolver struct {
	root string
}

func newPathResolver(root string) pathResolver {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return pathResolver{root: root}
}

func (r pathResolver) resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	rootAbs, err := filepath.Abs(r.root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetAbs, nil
}
