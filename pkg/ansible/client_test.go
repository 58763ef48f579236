package ansible

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/willia4/electriclemur-v3/pkg/runner/runnertest"
)

func newTestClient(fake *runnertest.Fake, logs string) *Client {
	c := NewClient(fake, Config{
		PlaybooksPath:          "/opt/lemur/ansible",
		InventoryPath:          "/opt/lemur/ansible/prod-inventory.sh",
		NoVolumesInventoryPath: "/opt/lemur/ansible/prod-inventory-no-volumes.sh",
		Host:                   "lemur",
		LogsPath:               logs,
	})
	c.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC) }
	return c
}

func TestModuleArgs(t *testing.T) {
	tests := []struct {
		name   string
		module Module
		want   string
	}{
		{name: "stat", module: &StatModule{Path: "/srv"}, want: "path=/srv"},
		{name: "mkdir", module: &FileModule{Path: "/srv", State: "directory"}, want: "path=/srv state=directory"},
		{name: "mode", module: &FileModule{Path: "/srv/key", Mode: "0600"}, want: "path=/srv/key mode=0600"},
		{name: "chown", module: &FileModule{Path: "/srv", Owner: "root", Recurse: true}, want: "path=/srv owner=root recurse=yes"},
		{name: "copy", module: &CopyModule{Src: "a.txt", Dest: "/srv/"}, want: "src=a.txt dest=/srv/"},
		{name: "add line", module: &LineInFileModule{Dest: "/etc/hosts", Line: "1.2.3.4 db", State: "present"}, want: `dest=/etc/hosts state=present line="1.2.3.4 db"`},
		{name: "remove lines", module: &LineInFileModule{Dest: "/etc/hosts", Regexp: `^1\.2`, State: "absent"}, want: `dest=/etc/hosts state=absent regexp="^1\.2"`},
		{name: "quotes escaped", module: &LineInFileModule{Dest: "/f", Line: `say "hi"`, State: "present"}, want: `dest=/f state=present line="say \"hi\""`},
		{name: "find", module: &FindModule{Paths: "/v", Patterns: "*.sqldump"}, want: `paths=/v patterns="*.sqldump"`},
		{name: "command", module: &CommandModule{Command: "systemctl restart docker"}, want: "systemctl restart docker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.module.ModuleArgs(); got != tt.want {
				t.Errorf("ModuleArgs() = %q, want %q", got, tt.want)
			}
			if !tt.module.SkipVolumes() {
				t.Errorf("ad-hoc modules should use the no-volumes inventory")
			}
		})
	}
}

func TestRunModuleArguments(t *testing.T) {
	fake := runnertest.New()
	fake.On("-m stat").Return(`lemur | SUCCESS => {"changed": false, "stat": {"exists": true, "isdir": true}}`)

	c := newTestClient(fake, "")
	exists, err := c.DirectoryExists(context.Background(), "/srv/data")
	if err != nil {
		t.Fatalf("DirectoryExists() error = %v", err)
	}
	if !exists {
		t.Errorf("DirectoryExists() = false")
	}

	cmd := fake.Calls()[0]
	want := []string{"lemur", "-i", "/opt/lemur/ansible/prod-inventory-no-volumes.sh", "-m", "stat", "-a", "path=/srv/data"}
	if cmd.Program != "ansible" || !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("command = %s %v", cmd.Program, cmd.Args)
	}
	if cmd.Env["ANSIBLE_HOST_KEY_CHECKING"] != "False" {
		t.Errorf("env = %v", cmd.Env)
	}
}

func TestCreateDirectorySkipsExisting(t *testing.T) {
	fake := runnertest.New()
	fake.On("-m stat").Return(`lemur | SUCCESS => {"stat": {"exists": true}}`)

	c := newTestClient(fake, "")
	if err := c.CreateDirectory(context.Background(), "/srv"); err != nil {
		t.Fatalf("CreateDirectory() error = %v", err)
	}
	if fake.Count("-m file") != 0 {
		t.Errorf("unexpected file module call: %v", fake.Lines())
	}
}

func TestCreateDirectoryCreatesMissing(t *testing.T) {
	fake := runnertest.New()
	fake.On("-m stat").Return(`lemur | SUCCESS => {"stat": {"exists": false}}`)
	fake.On("-m file").Return(`lemur | CHANGED => {"changed": true, "path": "/srv", "state": "directory"}`)

	c := newTestClient(fake, "")
	if err := c.CreateDirectory(context.Background(), "/srv"); err != nil {
		t.Fatalf("CreateDirectory() error = %v", err)
	}
	if fake.Count("-m file -a path=/srv state=directory") != 1 {
		t.Errorf("calls = %v", fake.Lines())
	}
}

func TestRunModuleFailureCarriesMessage(t *testing.T) {
	fake := runnertest.New()
	fake.On("-m copy").Return(`lemur | FAILED! => {"changed": false, "failed": true, "msg": "Could not find or access 'missing.txt'"}`)

	c := newTestClient(fake, "")
	_, err := c.UploadFile(context.Background(), "missing.txt", "/srv/")
	if !errors.Is(err, ErrModuleFailed) {
		t.Fatalf("error = %v, want ErrModuleFailed", err)
	}
	if !strings.Contains(err.Error(), "missing.txt") {
		t.Errorf("error %q should carry the module message", err)
	}
}

func TestRunModuleExitErrorWithoutOutput(t *testing.T) {
	fake := runnertest.New()
	fake.On("-m lineinfile").Fail(2, "")

	c := newTestClient(fake, "")
	_, err := c.AddLine(context.Background(), "/etc/hosts", "x")
	if err == nil {
		t.Fatal("AddLine() error = nil")
	}
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("error = %v, want ErrNoJSON for empty output", err)
	}
}

func TestRunModuleNoJSON(t *testing.T) {
	fake := runnertest.New()
	fake.On("-m stat").Return("lemur | UNREACHABLE!")

	c := newTestClient(fake, "")
	if _, err := c.DirectoryExists(context.Background(), "/srv"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("error = %v, want ErrNoJSON", err)
	}
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name   string
		output string
		ok     bool
	}{
		{name: "legacy success marker", output: "lemur | SUCCESS | rc=0 >>\nok", ok: true},
		{name: "changed marker", output: "lemur | CHANGED | rc=0 >>\nok", ok: true},
		{name: "failed", output: "lemur | FAILED | rc=1 >>\nnope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := runnertest.New()
			fake.On("-m command").Return(tt.output)

			c := newTestClient(fake, "")
			out, err := c.RunCommand(context.Background(), "true")
			if tt.ok && err != nil {
				t.Errorf("RunCommand() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrModuleFailed) {
				t.Errorf("RunCommand() error = %v, want ErrModuleFailed", err)
			}
			if out != tt.output {
				t.Errorf("RunCommand() output = %q", out)
			}
		})
	}
}

func TestListFiles(t *testing.T) {
	fake := runnertest.New()
	fake.On("-m find").Return(`lemur | SUCCESS => {"examined": 3, "files": [{"path": "/v/a.sqldump"}, {"path": "/v/b.sqldump"}]}`)

	c := newTestClient(fake, "")
	files, err := c.ListFiles(context.Background(), "/v", "*.sqldump")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	want := []string{"/v/a.sqldump", "/v/b.sqldump"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("ListFiles() = %v, want %v", files, want)
	}
}

func TestUploadFilesStopsAtFirstFailure(t *testing.T) {
	fake := runnertest.New()
	fake.On("src=b").Return(`lemur | FAILED! => {"failed": true, "msg": "boom"}`)
	fake.On("-m copy").Return(`lemur | CHANGED => {"changed": true, "checksum": "abc"}`)

	c := newTestClient(fake, "")
	err := c.UploadFiles(context.Background(), []string{"a", "b", "c"}, "/srv/")
	if err == nil {
		t.Fatal("UploadFiles() error = nil")
	}
	if fake.Count("src=c") != 0 {
		t.Errorf("upload continued after failure: %v", fake.Lines())
	}
}

func TestRunPlaybookInventorySelection(t *testing.T) {
	fake := runnertest.New()
	fake.On("ansible-playbook").Return("PLAY RECAP")

	c := newTestClient(fake, "")
	ctx := context.Background()
	if _, err := c.RunPlaybook(ctx, Playbook{Name: ConfigureDockerCerts, SkipVolumes: true}); err != nil {
		t.Fatalf("RunPlaybook() error = %v", err)
	}
	if _, err := c.RunPlaybook(ctx, Playbook{Name: UploadFiles, Vars: map[string]string{"b": "2", "a": "1"}}); err != nil {
		t.Fatalf("RunPlaybook() error = %v", err)
	}

	lines := fake.Lines()
	want0 := "ansible-playbook -i /opt/lemur/ansible/prod-inventory-no-volumes.sh /opt/lemur/ansible/configure-docker-certs.yaml"
	want1 := "ansible-playbook -i /opt/lemur/ansible/prod-inventory.sh /opt/lemur/ansible/upload-files.yaml -e a=1 -e b=2"
	if lines[0] != want0 {
		t.Errorf("line[0] = %q, want %q", lines[0], want0)
	}
	if lines[1] != want1 {
		t.Errorf("line[1] = %q, want %q", lines[1], want1)
	}
	if !fake.Calls()[0].Echo {
		t.Errorf("playbook output should be echoed")
	}
}

func TestRunPlaybookWritesLog(t *testing.T) {
	dir := t.TempDir()
	fake := runnertest.New()
	fake.On("ansible-playbook").Fail(2, "fatal: unreachable")

	c := newTestClient(fake, dir)
	res, err := c.RunPlaybook(context.Background(), Playbook{Name: UploadFiles})
	if err == nil {
		t.Fatal("RunPlaybook() error = nil")
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", res.ExitCode)
	}

	if filepath.Dir(res.LogPath) != dir {
		t.Errorf("LogPath = %q, want under %q", res.LogPath, dir)
	}
	if !strings.HasPrefix(filepath.Base(res.LogPath), "20240301123045_upload-files_") {
		t.Errorf("log name = %q", filepath.Base(res.LogPath))
	}

	content, err := os.ReadFile(res.LogPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	for _, want := range []string{"fatal: unreachable", "Exit Code: 2"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
}

func TestGetLogPath(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := getLogPath(dir, "nested/play.yaml", "id1", now)
	want := filepath.Join(dir, "20240102030405_nested_play_id1.log")
	if got != want {
		t.Errorf("getLogPath() = %q, want %q", got, want)
	}
}
