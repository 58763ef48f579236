// Package playbooks ships the ansible playbooks the reconciler runs.
package playbooks

import (
	"embed"
	"io/fs"

	"github.com/willia4/electriclemur-v3/pkg/embedded"
	"github.com/willia4/electriclemur-v3/pkg/log"
)

//go:embed files/*.yaml
var files embed.FS

// FS returns the playbooks rooted at their file names.
func FS() fs.FS {
	sub, err := fs.Sub(files, "files")
	if err != nil {
		panic(err)
	}
	return sub
}

// Sync extracts the playbooks into dir. Existing files are kept unless
// overwrite is set.
func Sync(dir string, overwrite bool) ([]string, error) {
	written, err := embedded.NewManager(FS(), dir).SyncFiles(overwrite)
	if err != nil {
		return written, err
	}
	if len(written) > 0 {
		log.Info("[Ansible] extracted playbooks", "dir", dir, "count", len(written))
	}
	return written, nil
}
