package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/willia4/electriclemur-v3/internal/config"
	"github.com/willia4/electriclemur-v3/internal/definition"
	"github.com/willia4/electriclemur-v3/internal/inventory"
	"github.com/willia4/electriclemur-v3/internal/reconcile"
	"github.com/willia4/electriclemur-v3/internal/ui"
	"github.com/willia4/electriclemur-v3/pkg/ansible"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/doctl"
	"github.com/willia4/electriclemur-v3/pkg/log"
	"github.com/willia4/electriclemur-v3/pkg/runner"
)

type globalFlags struct {
	verbose       bool
	configPath    string
	root          string
	yes           bool
	logFormat     string
	noInteraction bool
}

// app is the configuration and definitions shared by one invocation.
type app struct {
	flags *globalFlags
	cfg   *config.Config
	store *definition.Store
	exec  runner.Executor
	out   io.Writer
}

// configFile returns the config path: --config, else lemur.toml in the root.
func (f *globalFlags) configFile() string {
	if f.configPath != "" {
		return f.configPath
	}
	root := f.root
	if root == "" {
		root = "."
	}
	return filepath.Join(root, config.DefaultConfigFile)
}

func (f *globalFlags) load(out io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(f.configFile())
	if err != nil {
		return nil, err
	}
	if f.root != "" {
		cfg.Paths.Root = f.root
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.verbose {
		cfg.Log.Level = "debug"
	}
	log.InitLog(cfg.Log.Level, cfg.Log.Format)

	return &app{
		flags: f,
		cfg:   cfg,
		store: definition.NewStore(cfg.Paths.Root, cfg.Paths.SecretsDir()),
		exec:  runner.New(),
		out:   out,
	}, nil
}

func (a *app) cloud() *doctl.Client {
	return doctl.NewClient(a.exec, doctl.Config{
		Binary:       a.cfg.Binaries.Doctl,
		Context:      a.cfg.DigitalOcean.Context,
		AccessToken:  a.cfg.DigitalOcean.AccessToken,
		Provisioning: a.cfg.Droplet,
		RecordTTL:    a.cfg.DNS.TTL,
		Verbose:      a.flags.verbose,
	})
}

func (a *app) dockerConnection(env *definition.Environment) docker.Connection {
	return docker.Connection{
		Host:     env.FQDN,
		Port:     a.cfg.Docker.Port,
		CertPath: env.DockerCertPath,
		Binary:   a.cfg.Binaries.Docker,
		Verbose:  a.flags.verbose,
	}
}

func (a *app) docker(env *definition.Environment) *docker.Client {
	return docker.NewClient(a.exec, a.dockerConnection(env))
}

// inventoryScripts returns the paths of the two dynamic inventory scripts for
// env: with and without volume variables.
func (a *app) inventoryScripts(env string) (string, string) {
	dir := a.cfg.Paths.PlaybooksDir()
	return filepath.Join(dir, env+"-inventory.sh"), filepath.Join(dir, env+"-inventory-no-volumes.sh")
}

func (a *app) host(env *definition.Environment) *ansible.Client {
	withVolumes, noVolumes := a.inventoryScripts(env.Name)
	return ansible.NewClient(a.exec, ansible.Config{
		AnsibleBinary:          a.cfg.Binaries.Ansible,
		PlaybookBinary:         a.cfg.Binaries.AnsiblePlaybook,
		PlaybooksPath:          a.cfg.Paths.PlaybooksDir(),
		InventoryPath:          withVolumes,
		NoVolumesInventoryPath: noVolumes,
		Host:                   a.cfg.Inventory.Group,
		LogsPath:               a.cfg.Paths.LogsDir(),
		Verbose:                a.flags.verbose,
	})
}

// environment loads the named environment definition.
func (a *app) environment(name string) (*definition.Environment, error) {
	env, err := a.store.Environment(name)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	return env, nil
}

func (a *app) reconciler(env *definition.Environment) *reconcile.Reconciler {
	r := reconcile.New(env, a.cloud(), a.docker(env), a.host(env), a.store.Secrets(env), a.store,
		ui.Confirmer(a.flags.yes), reconcile.Options{
			Images: reconcile.Images{
				Database: a.cfg.Database.Image,
				AWSCLI:   a.cfg.Images.AWSCLI,
				SFTP:     a.cfg.Images.SFTP,
				Proxy:    a.cfg.Images.Proxy,
			},
			Settle:       a.cfg.Database.Settle(),
			BackupVolume: a.cfg.Database.BackupVolume,
			DockerPort:   a.cfg.Docker.Port,
		})
	r.Out = a.out
	return r
}

func (a *app) inventory(env *definition.Environment) *inventory.Emitter {
	secrets := a.store.Secrets(env)
	vars := make([]inventory.VolumeVar, 0, len(a.cfg.Inventory.Volumes))
	for _, v := range a.cfg.Inventory.Volumes {
		vars = append(vars, inventory.VolumeVar{Role: v.Role, Variable: v.Variable, Field: v.Field})
	}
	return &inventory.Emitter{
		Env:           env,
		Group:         a.cfg.Inventory.Group,
		User:          a.cfg.Inventory.User,
		Volumes:       vars,
		AWSKeyPath:    secrets.AWSKeyPath(),
		AWSSecretPath: secrets.AWSSecretPath(),
		Droplets:      a.cloud(),
		Docker:        a.docker(env),
	}
}

// volumeRoles lists the configured inventory roles followed by every
// defined volume, without duplicates.
func (a *app) volumeRoles() ([]string, error) {
	defs, err := a.store.Volumes()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var roles []string
	add := func(role string) {
		if role != "" && !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	for _, v := range a.cfg.Inventory.Volumes {
		add(v.Role)
	}
	for _, d := range defs {
		add(d.Name)
	}
	return roles, nil
}

func shellSingleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// inventoryScript renders a script ansible runs as a dynamic inventory. It
// calls back into this binary with the same config and root.
func inventoryScript(exe, configPath, root, env string, noVolumes bool) string {
	base := []string{shellSingleQuote(exe), "--config", shellSingleQuote(configPath), "--root", shellSingleQuote(root), "inventory"}
	list := strings.Join(append(append([]string{}, base...), "list", "--environment", shellSingleQuote(env)), " ")
	if noVolumes {
		list += " --noVolumes"
	}
	host := strings.Join(append(append([]string{}, base...), "host", `"$2"`, "--environment", shellSingleQuote(env)), " ")

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("if [ \"$1\" = \"--host\" ]; then\n")
	b.WriteString("  exec " + host + "\n")
	b.WriteString("fi\n")
	b.WriteString("exec " + list + "\n")
	return b.String()
}

// writeInventoryScripts (re)writes both inventory scripts for env.
func (a *app) writeInventoryScripts(env string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate lemur binary: %w", err)
	}
	configPath, err := filepath.Abs(a.flags.configFile())
	if err != nil {
		return err
	}
	root, err := filepath.Abs(a.cfg.Paths.Root)
	if err != nil {
		return err
	}

	withVolumes, noVolumes := a.inventoryScripts(env)
	if err := os.MkdirAll(filepath.Dir(withVolumes), 0o755); err != nil {
		return fmt.Errorf("create inventory directory: %w", err)
	}
	scripts := map[string]string{
		withVolumes: inventoryScript(exe, configPath, root, env, false),
		noVolumes:   inventoryScript(exe, configPath, root, env, true),
	}
	for path, content := range scripts {
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			return fmt.Errorf("write inventory script %s: %w", path, err)
		}
		log.Debug("[Ansible] wrote inventory script", "path", path)
	}
	return nil
}
