package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lemur.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Droplet.Image != "fedora-28-x64-atomic" || cfg.Droplet.Region != "nyc3" {
		t.Errorf("droplet defaults = %+v", cfg.Droplet)
	}
	if cfg.DNS.TTL != 30 {
		t.Errorf("dns ttl = %d, want 30", cfg.DNS.TTL)
	}
	if cfg.Docker.Port != 2376 {
		t.Errorf("docker port = %d, want 2376", cfg.Docker.Port)
	}
	if cfg.Database.Settle() != 30*time.Second {
		t.Errorf("settle = %v", cfg.Database.Settle())
	}
	if len(cfg.Inventory.Volumes) != 3 {
		t.Errorf("inventory volumes = %v", cfg.Inventory.Volumes)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
[binaries]
doctl = "/usr/local/bin/doctl"

[digitalocean]
context = "personal"

[droplet]
size = "s-2vcpu-4gb"
ssh_keys = ["b2:32:08"]

[dns]
ttl = 300

[database]
settle_seconds = 5

[[inventory.volume]]
role = "siteCom"
variable = "sitecom_volume_id"
field = "name"

[log]
level = "debug"
format = "json"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Binaries.Doctl != "/usr/local/bin/doctl" {
		t.Errorf("doctl = %q", cfg.Binaries.Doctl)
	}
	if cfg.Binaries.Docker != "docker" {
		t.Errorf("docker default lost: %q", cfg.Binaries.Docker)
	}
	if cfg.DigitalOcean.Context != "personal" {
		t.Errorf("context = %q", cfg.DigitalOcean.Context)
	}
	if cfg.Droplet.Size != "s-2vcpu-4gb" || cfg.Droplet.Image != "fedora-28-x64-atomic" {
		t.Errorf("droplet = %+v", cfg.Droplet)
	}
	if len(cfg.Droplet.SSHKeys) != 1 || cfg.Droplet.SSHKeys[0] != "b2:32:08" {
		t.Errorf("ssh keys = %v", cfg.Droplet.SSHKeys)
	}
	if cfg.DNS.TTL != 300 {
		t.Errorf("ttl = %d", cfg.DNS.TTL)
	}
	if cfg.Database.Settle() != 5*time.Second {
		t.Errorf("settle = %v", cfg.Database.Settle())
	}
	if len(cfg.Inventory.Volumes) != 1 || cfg.Inventory.Volumes[0].Role != "siteCom" {
		t.Errorf("inventory volumes = %+v", cfg.Inventory.Volumes)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "debug" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad toml", content: "[dns\nttl = 1", want: "failed to parse"},
		{name: "zero ttl", content: "[dns]\nttl = 0", want: "dns.ttl"},
		{name: "port range", content: "[docker]\nport = 70000", want: "docker.port"},
		{name: "log format", content: "[log]\nformat = \"xml\"", want: "log.format"},
		{name: "inventory field", content: "[[inventory.volume]]\nrole = \"a\"\nvariable = \"b\"\nfield = \"size\"", want: "field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestPathsResolve(t *testing.T) {
	p := Paths{Root: "/srv/lemur", Secrets: "secrets", Playbooks: "/opt/ansible", Logs: ""}
	if got := p.SecretsDir(); got != "/srv/lemur/secrets" {
		t.Errorf("SecretsDir() = %q", got)
	}
	if got := p.PlaybooksDir(); got != "/opt/ansible" {
		t.Errorf("PlaybooksDir() = %q", got)
	}
	if got := p.LogsDir(); got != "" {
		t.Errorf("LogsDir() = %q, want empty", got)
	}
}
