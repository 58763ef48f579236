package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/willia4/electriclemur-v3/pkg/doctl"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/log"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigFile is looked up in the definitions root when --config is not given.
	DefaultConfigFile = "lemur.toml"

	DefaultDatabaseImage = "mariadb:10.4.5"
	DefaultAWSCLIImage   = "willia4/aws_cli"
	DefaultSFTPImage     = "atmoz/sftp:alpine"
	DefaultProxyImage    = "traefik:1.7"
	DefaultSettle        = 30 * time.Second
)

// Binaries names the external tools the CLI drives.
type Binaries struct {
	Doctl           string `toml:"doctl"`
	Docker          string `toml:"docker"`
	Ansible         string `toml:"ansible"`
	AnsiblePlaybook string `toml:"ansible_playbook"`
}

// DigitalOcean selects doctl credentials.
type DigitalOcean struct {
	Context     string `toml:"context"`
	AccessToken string `toml:"access_token"`
}

type DNS struct {
	TTL int `toml:"ttl"`
}

type Docker struct {
	Port int `toml:"port"`
}

// Paths locates definitions, playbooks and logs. Relative paths are resolved
// against Root.
type Paths struct {
	Root      string `toml:"root"`
	Secrets   string `toml:"secrets"`
	Playbooks string `toml:"playbooks"`
	Logs      string `toml:"logs"`
}

type Database struct {
	Image         string `toml:"image"`
	SettleSeconds int    `toml:"settle_seconds"`
	BackupVolume  string `toml:"backup_volume"`
}

// Settle is how long to wait for a fresh database container to accept
// connections.
func (d Database) Settle() time.Duration {
	return time.Duration(d.SettleSeconds) * time.Second
}

type Images struct {
	AWSCLI string `toml:"aws_cli"`
	SFTP   string `toml:"sftp"`
	Proxy  string `toml:"proxy"`
}

// InventoryVolume maps a volume role to an inventory variable.
type InventoryVolume struct {
	Role     string `toml:"role"`
	Variable string `toml:"variable"`
	// Field is "mountpoint" or "name".
	Field string `toml:"field"`
}

type Inventory struct {
	Group   string            `toml:"group"`
	User    string            `toml:"user"`
	Volumes []InventoryVolume `toml:"volume"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config holds the application configuration
type Config struct {
	Binaries     Binaries           `toml:"binaries"`
	DigitalOcean DigitalOcean       `toml:"digitalocean"`
	Droplet      doctl.Provisioning `toml:"droplet"`
	DNS          DNS                `toml:"dns"`
	Docker       Docker             `toml:"docker"`
	Paths        Paths              `toml:"paths"`
	Database     Database           `toml:"database"`
	Images       Images             `toml:"images"`
	Inventory    Inventory          `toml:"inventory"`
	Log          Log                `toml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Binaries: Binaries{
			Doctl:           doctl.DefaultBinary,
			Docker:          docker.DefaultBinary,
			Ansible:         "ansible",
			AnsiblePlaybook: "ansible-playbook",
		},
		Droplet: doctl.Provisioning{
			Image:             "fedora-28-x64-atomic",
			Size:              "s-1vcpu-2gb",
			Region:            "nyc3",
			PrivateNetworking: true,
		},
		DNS:    DNS{TTL: doctl.DefaultRecordTTL},
		Docker: Docker{Port: docker.DefaultTLSPort},
		Paths: Paths{
			Root:      ".",
			Secrets:   "secrets",
			Playbooks: "ansible",
			Logs:      filepath.Join("logs", "ansible"),
		},
		Database: Database{
			Image:         DefaultDatabaseImage,
			SettleSeconds: int(DefaultSettle / time.Second),
			BackupVolume:  "database_backup",
		},
		Images: Images{
			AWSCLI: DefaultAWSCLIImage,
			SFTP:   DefaultSFTPImage,
			Proxy:  DefaultProxyImage,
		},
		Inventory: Inventory{
			Group: "lemur",
			User:  "root",
			Volumes: []InventoryVolume{
				{Role: "database", Variable: "databaseMount", Field: "mountpoint"},
				{Role: "sshKeys", Variable: "ssh_key_mount", Field: "mountpoint"},
				{Role: "sshUser", Variable: "ssh_user_mount", Field: "mountpoint"},
			},
		},
		Log: Log{Level: "info", Format: log.FormatText},
	}
}

// LoadConfig loads the configuration from a TOML file. A missing file yields
// the defaults; a file that exists but cannot be parsed is an error.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		return config, config.Validate()
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		log.Debug("[Config] no config file, using defaults", "path", configPath)
		return config, config.Validate()
	}

	meta, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		log.Warn("[Config] ignoring unknown keys", "path", configPath, "keys", strings.Join(keys, ","))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.DNS.TTL <= 0 {
		return fmt.Errorf("dns.ttl must be positive, got %d", c.DNS.TTL)
	}
	if c.Docker.Port <= 0 || c.Docker.Port > 65535 {
		return fmt.Errorf("docker.port out of range: %d", c.Docker.Port)
	}
	if c.Database.SettleSeconds < 0 {
		return fmt.Errorf("database.settle_seconds must not be negative")
	}
	switch c.Log.Format {
	case log.FormatText, log.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", log.FormatText, log.FormatJSON, c.Log.Format)
	}
	for _, v := range c.Inventory.Volumes {
		if v.Role == "" || v.Variable == "" {
			return fmt.Errorf("inventory volume entries need role and variable")
		}
		if v.Field != "mountpoint" && v.Field != "name" {
			return fmt.Errorf("inventory volume %s: field must be mountpoint or name, got %q", v.Role, v.Field)
		}
	}
	return nil
}

// Resolve returns p joined to the root unless it is absolute.
func (p Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

// SecretsDir is the absolute-or-root-relative secrets directory.
func (p Paths) SecretsDir() string { return p.Resolve(p.Secrets) }

// PlaybooksDir holds playbooks and inventory scripts.
func (p Paths) PlaybooksDir() string { return p.Resolve(p.Playbooks) }

// LogsDir is where playbook logs go. Empty disables them.
func (p Paths) LogsDir() string { return p.Resolve(p.Logs) }
