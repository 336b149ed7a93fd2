package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveUnder joins rel onto root and rejects results that escape root.
// rel uses forward slashes and may start with one.
func ResolveUnder(root, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("path contains NUL byte")
	}
	cleaned := filepath.FromSlash(strings.TrimPrefix(rel, "/"))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path %q must be relative", rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	full := filepath.Join(absRoot, cleaned)
	if full != absRoot && !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, root)
	}
	return full, nil
}
