package ansible

import (
	"context"

	log "github.com/willia4/electriclemur-v3/pkg/log"
)

// DirectoryExists reports whether path exists on the host.
func (c *Client) DirectoryExists(ctx context.Context, path string) (bool, error) {
	m := &StatModule{Path: path}
	if err := c.RunModule(ctx, m); err != nil {
		return false, err
	}
	return m.Exists, nil
}

// CreateDirectory creates path on the host unless it already exists.
func (c *Client) CreateDirectory(ctx context.Context, path string) error {
	exists, err := c.DirectoryExists(ctx, path)
	if err != nil {
		return err
	}
	if exists {
		log.Debug("[Ansible] directory already exists", "path", path)
		return nil
	}

	log.Info("[Ansible] creating directory", "host", c.config.Host, "path", path)
	return c.RunModule(ctx, &FileModule{Path: path, State: "directory"})
}

// SetFileMode changes the permissions of path.
func (c *Client) SetFileMode(ctx context.Context, path, mode string) error {
	log.Info("[Ansible] setting file mode", "path", path, "mode", mode)
	return c.RunModule(ctx, &FileModule{Path: path, Mode: mode})
}

// Chown recursively changes the owner of path.
func (c *Client) Chown(ctx context.Context, path, owner string) error {
	log.Info("[Ansible] changing owner", "path", path, "owner", owner)
	return c.RunModule(ctx, &FileModule{Path: path, Owner: owner, Recurse: true})
}

// UploadFile copies a local file to dest on the host and returns its checksum.
func (c *Client) UploadFile(ctx context.Context, src, dest string) (string, error) {
	log.Info("[Ansible] uploading file", "src", src, "dest", dest)
	m := &CopyModule{Src: src, Dest: dest}
	if err := c.RunModule(ctx, m); err != nil {
		return "", err
	}
	log.Debug("[Ansible] uploaded file", "dest", dest, "checksum", m.Checksum, "changed", m.Changed)
	return m.Checksum, nil
}

// UploadFiles copies each file to dest, one after another, stopping at the
// first failure.
func (c *Client) UploadFiles(ctx context.Context, srcs []string, dest string) error {
	for _, src := range srcs {
		if _, err := c.UploadFile(ctx, src, dest); err != nil {
			return err
		}
	}
	return nil
}

// AddLine ensures line is present in file.
func (c *Client) AddLine(ctx context.Context, file, line string) (bool, error) {
	m := &LineInFileModule{Dest: file, Line: line, State: "present"}
	if err := c.RunModule(ctx, m); err != nil {
		return false, err
	}
	log.Info("[Ansible] line added", "file", file, "changed", m.Changed)
	return m.Changed, nil
}

// RemoveLines deletes every line of file matching regex.
func (c *Client) RemoveLines(ctx context.Context, file, regex string) (bool, error) {
	m := &LineInFileModule{Dest: file, Regexp: regex, State: "absent"}
	if err := c.RunModule(ctx, m); err != nil {
		return false, err
	}
	log.Info("[Ansible] lines removed", "file", file, "changed", m.Changed)
	return m.Changed, nil
}

// RunCommand runs command on the host and returns ansible's output.
func (c *Client) RunCommand(ctx context.Context, command string) (string, error) {
	log.Info("[Ansible] running command", "host", c.config.Host, "command", command)
	m := &CommandModule{Command: command}
	if err := c.RunModule(ctx, m); err != nil {
		return m.Output, err
	}
	return m.Output, nil
}

// ListFiles returns the paths under dir, optionally filtered by a find
// pattern such as "*.sqldump".
func (c *Client) ListFiles(ctx context.Context, dir, pattern string) ([]string, error) {
	m := &FindModule{Paths: dir, Patterns: pattern}
	if err := c.RunModule(ctx, m); err != nil {
		return nil, err
	}
	log.Debug("[Ansible] listed files", "path", dir, "examined", m.Examined, "found", len(m.Files))
	return m.Files, nil
}
