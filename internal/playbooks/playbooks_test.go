package playbooks

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/willia4/electriclemur-v3/pkg/ansible"
)

func TestPlaybooksCoverClientNames(t *testing.T) {
	for _, name := range []string{ansible.ConfigureDockerCerts, ansible.UploadFiles} {
		data, err := fs.ReadFile(FS(), name+".yaml")
		if err != nil {
			t.Fatalf("playbook %s missing: %v", name, err)
		}
		if !strings.Contains(string(data), "hosts:") {
			t.Errorf("playbook %s has no play", name)
		}
	}
}

func TestConfigureDockerCertsUsesVars(t *testing.T) {
	data, err := fs.ReadFile(FS(), ansible.ConfigureDockerCerts+".yaml")
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"{{ fqdn }}", "{{ docker_cert_dir }}", "{{ docker_port }}"} {
		if !strings.Contains(string(data), v) {
			t.Errorf("playbook does not use %s", v)
		}
	}
}

func TestSync(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ansible")
	written, err := Sync(dir, false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(written) != 2 {
		t.Errorf("written = %v", written)
	}
	if _, err := os.Stat(filepath.Join(dir, "configure-docker-certs.yaml")); err != nil {
		t.Error(err)
	}

	written, err = Sync(dir, false)
	if err != nil || len(written) != 0 {
		t.Errorf("second Sync() = %v, %v", written, err)
	}
}
