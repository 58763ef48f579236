package ansible

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSON is returned when module output carries no JSON document.
	ErrNoJSON = errors.New("no JSON in ansible output")
	// ErrModuleFailed is returned when ansible reports the module failed.
	ErrModuleFailed = errors.New("ansible module failed")
)

// Module is an ad-hoc ansible module invocation.
type Module interface {
	ModuleName() string
	ModuleArgs() string
	// SkipVolumes selects the no-volumes inventory.
	SkipVolumes() bool
	// Parse consumes ansible's raw output.
	Parse(raw string) error
}

// jsonResult parses the `host | STATUS => {...}` form most modules print.
type jsonResult struct {
	Changed bool   `json:"changed"`
	Failed  bool   `json:"failed"`
	Msg     string `json:"msg"`

	body json.RawMessage
}

func (r *jsonResult) SkipVolumes() bool { return true }

func (r *jsonResult) Parse(raw string) error {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return fmt.Errorf("%w: %q", ErrNoJSON, strings.TrimSpace(raw))
	}

	r.body = json.RawMessage(raw[start : end+1])
	if err := json.Unmarshal(r.body, r); err != nil {
		return fmt.Errorf("failed to decode ansible output: %w", err)
	}
	if r.Failed {
		return fmt.Errorf("%w: %s", ErrModuleFailed, r.Msg)
	}
	return nil
}

func (r *jsonResult) decode(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("failed to decode ansible output: %w", err)
	}
	return nil
}

func quoted(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// StatModule reports whether a path exists.
type StatModule struct {
	jsonResult
	Path string

	Exists bool
	IsDir  bool
}

func (m *StatModule) ModuleName() string { return "stat" }
func (m *StatModule) ModuleArgs() string { return "path=" + m.Path }

func (m *StatModule) Parse(raw string) error {
	if err := m.jsonResult.Parse(raw); err != nil {
		return err
	}
	var out struct {
		Stat struct {
			Exists bool `json:"exists"`
			IsDir  bool `json:"isdir"`
		} `json:"stat"`
	}
	if err := m.decode(&out); err != nil {
		return err
	}
	m.Exists, m.IsDir = out.Stat.Exists, out.Stat.IsDir
	return nil
}

// FileModule sets state, mode or ownership of a path.
type FileModule struct {
	jsonResult
	Path    string
	State   string
	Mode    string
	Owner   string
	Group   string
	Recurse bool
}

func (m *FileModule) ModuleName() string { return "file" }

func (m *FileModule) ModuleArgs() string {
	args := []string{"path=" + m.Path}
	if m.State != "" {
		args = append(args, "state="+m.State)
	}
	if m.Mode != "" {
		args = append(args, "mode="+m.Mode)
	}
	if m.Owner != "" {
		args = append(args, "owner="+m.Owner)
	}
	if m.Group != "" {
		args = append(args, "group="+m.Group)
	}
	if m.Recurse {
		args = append(args, "recurse=yes")
	}
	return strings.Join(args, " ")
}

// CopyModule uploads a local file.
type CopyModule struct {
	jsonResult
	Src  string
	Dest string

	Checksum string
}

func (m *CopyModule) ModuleName() string { return "copy" }
func (m *CopyModule) ModuleArgs() string { return fmt.Sprintf("src=%s dest=%s", m.Src, m.Dest) }

func (m *CopyModule) Parse(raw string) error {
	if err := m.jsonResult.Parse(raw); err != nil {
		return err
	}
	var out struct {
		Checksum string `json:"checksum"`
	}
	if err := m.decode(&out); err != nil {
		return err
	}
	m.Checksum = out.Checksum
	return nil
}

// LineInFileModule adds or removes lines of a remote file.
type LineInFileModule struct {
	jsonResult
	Dest   string
	Regexp string
	Line   string
	// State is "present" or "absent".
	State string
}

func (m *LineInFileModule) ModuleName() string { return "lineinfile" }

func (m *LineInFileModule) ModuleArgs() string {
	args := fmt.Sprintf("dest=%s state=%s", m.Dest, m.State)
	if m.Regexp != "" {
		args += " regexp=" + quoted(m.Regexp)
	}
	if m.Line != "" {
		args += " line=" + quoted(m.Line)
	}
	return args
}

// CommandModule runs a shell-free command on the host. Its output is plain
// text, so success is read from ansible's status marker.
type CommandModule struct {
	jsonResult
	Command string

	Output string
}

func (m *CommandModule) ModuleName() string { return "command" }
func (m *CommandModule) ModuleArgs() string { return m.Command }

func (m *CommandModule) Parse(raw string) error {
	m.Output = raw
	m.Msg = raw
	m.Changed = strings.Contains(raw, "| SUCCESS") || strings.Contains(raw, "| CHANGED")
	if !m.Changed {
		return fmt.Errorf("%w: %s", ErrModuleFailed, strings.TrimSpace(raw))
	}
	return nil
}

// FindModule lists files under a directory.
type FindModule struct {
	jsonResult
	Paths    string
	Patterns string

	Files    []string
	Examined int
}

func (m *FindModule) ModuleName() string { return "find" }

func (m *FindModule) ModuleArgs() string {
	args := "paths=" + m.Paths
	if m.Patterns != "" {
		args += " patterns=" + quoted(m.Patterns)
	}
	return args
}

func (m *FindModule) Parse(raw string) error {
	if err := m.jsonResult.Parse(raw); err != nil {
		return err
	}
	var out struct {
		Examined int `json:"examined"`
		Files    []struct {
			Path string `json:"path"`
		} `json:"files"`
	}
	if err := m.decode(&out); err != nil {
		return err
	}
	m.Examined = out.Examined
	m.Files = make([]string, 0, len(out.Files))
	for _, f := range out.Files {
		m.Files = append(m.Files, f.Path)
	}
	return nil
}
