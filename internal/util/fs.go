package util

import (
	"fmt"
	"os"
	"path/filepath"
)

func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// SafeJoin joins the last element of name onto root. Names that reduce to
// nothing or to a parent reference are rejected so the result stays under root.
func SafeJoin(root, name string) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("unsafe path element %q", name)
	}
	return filepath.Join(root, base), nil
}
