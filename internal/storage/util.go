package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir ensures the parent directory of a file path exists.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// NormalizeWebsite trims a website key as it is stored.
func NormalizeWebsite(website string) string {
	return strings.ToLower(strings.TrimSpace(website))
}
