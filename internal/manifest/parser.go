package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads, validates and decodes the manifest at path.
func Load(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse validates and decodes manifest bytes. path is only used in errors.
func Parse(data []byte, path string) (*Package, error) {
	result, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("validating manifest %s: %w", path, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("invalid manifest %s: %s", path, result)
	}

	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return &pkg, nil
}

// FindRoot returns the nearest directory at or above start that contains a
// manifest. The second return value is false when the filesystem root is
// reached without finding one.
func FindRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, FileName)); err == nil && !info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// EntryPath resolves the declared main file against the package root.
// It returns "" when the manifest declares no entry.
func (p *Package) EntryPath(root string) string {
	main := strings.TrimSpace(p.Main)
	if main == "" {
		return ""
	}
	if filepath.IsAbs(main) {
		return filepath.Clean(main)
	}
	return filepath.Join(root, filepath.FromSlash(main))
}
