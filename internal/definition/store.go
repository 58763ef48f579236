// Package definition loads environment, container and volume definitions and
// the secrets that accompany them from a definitions root.
package definition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/willia4/electriclemur-v3/pkg/yaml"
)

// ErrNotFound is returned when a requested definition file does not exist.
var ErrNotFound = errors.New("definition not found")

var extensions = []string{".json", ".yaml", ".yml"}

// Store reads definitions below Root. Secrets live under SecretsDir.
type Store struct {
	Root       string
	SecretsDir string
}

// NewStore returns a Store rooted at root. An empty secretsDir defaults to
// <root>/secrets.
func NewStore(root, secretsDir string) *Store {
	if secretsDir == "" {
		secretsDir = filepath.Join(root, "secrets")
	}
	return &Store{Root: root, SecretsDir: secretsDir}
}

// find returns the first existing <dir>/<name><ext>.
func (s *Store) find(dir, name string) (string, error) {
	for _, ext := range extensions {
		path := filepath.Join(s.Root, dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrNotFound, dir, name)
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return yaml.Unmarshal(path, data, v)
}

// listNames returns the definition names in dir in lexical order.
func (s *Store) listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		known := false
		for _, x := range extensions {
			if ext == x {
				known = true
			}
		}
		if !known {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
