// Package embedded extracts an embedded file tree onto disk.
package embedded

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/willia4/electriclemur-v3/pkg/log"
)

// Manager copies every file of an fs.FS below a target directory.
type Manager struct {
	embeddedFS fs.FS
	targetDir  string
}

// NewManager creates a new embedded files manager.
func NewManager(embeddedFS fs.FS, targetDir string) *Manager {
	return &Manager{
		embeddedFS: embeddedFS,
		targetDir:  targetDir,
	}
}

// SyncFiles writes the embedded files into the target directory and returns
// the paths it wrote. Existing files are kept unless overwrite is set, so
// local edits to extracted files survive later runs.
func (m *Manager) SyncFiles(overwrite bool) ([]string, error) {
	if err := os.MkdirAll(m.targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	var written []string
	err := fs.WalkDir(m.embeddedFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		targetPath := filepath.Join(m.targetDir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(targetPath, 0o755)
		}

		if !overwrite {
			if _, err := os.Stat(targetPath); err == nil {
				log.Debug("[Ansible] keeping existing file", "path", targetPath)
				return nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}

		data, err := fs.ReadFile(m.embeddedFS, path)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %s: %w", path, err)
		}
		if err := os.WriteFile(targetPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", targetPath, err)
		}
		written = append(written, targetPath)
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("failed to extract embedded files: %w", err)
	}
	return written, nil
}
