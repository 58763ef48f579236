package ansible

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/willia4/electriclemur-v3/pkg/log"
	"github.com/willia4/electriclemur-v3/pkg/runner"

	"github.com/google/uuid"
)

const (
	DefaultAnsibleBinary  = "ansible"
	DefaultPlaybookBinary = "ansible-playbook"

	// ConfigureDockerCerts installs the daemon TLS material. It runs before
	// any volume exists, so it uses the no-volumes inventory.
	ConfigureDockerCerts = "configure-docker-certs"
	// UploadFiles copies local secret files into their volumes.
	UploadFiles = "upload-files"
)

type Config struct {
	// AnsibleBinary runs ad-hoc modules.
	AnsibleBinary string
	// PlaybookBinary runs playbooks.
	PlaybookBinary string
	// PlaybooksPath is the directory holding <name>.yaml playbooks.
	PlaybooksPath string
	// InventoryPath is the dynamic inventory that includes volume variables.
	InventoryPath string
	// NoVolumesInventoryPath is the dynamic inventory without volume variables.
	NoVolumesInventoryPath string
	// Host is the inventory host pattern targeted by ad-hoc modules.
	Host string
	// LogsPath is where playbook run logs are written. Empty disables them.
	LogsPath string
	// Verbose echoes ansible output to the console.
	Verbose bool
}

// Playbook is a single playbook run.
type Playbook struct {
	Name string
	Vars map[string]string
	// SkipVolumes selects the no-volumes inventory.
	SkipVolumes bool
}

// Result represents the result of a playbook execution
type Result struct {
	// ExitCode is the exit code of ansible-playbook
	ExitCode int
	// LogPath is the path to the log file, empty when logging is disabled
	LogPath string
}

// Client drives ansible against a single environment's host.
type Client struct {
	exec   runner.Executor
	config Config
	now    func() time.Time
}

// NewClient creates a new Ansible client
func NewClient(exec runner.Executor, config Config) *Client {
	if config.AnsibleBinary == "" {
		config.AnsibleBinary = DefaultAnsibleBinary
	}
	if config.PlaybookBinary == "" {
		config.PlaybookBinary = DefaultPlaybookBinary
	}
	if config.NoVolumesInventoryPath == "" {
		config.NoVolumesInventoryPath = config.InventoryPath
	}
	return &Client{
		exec:   exec,
		config: config,
		now:    time.Now,
	}
}

func (c *Client) environment() map[string]string {
	return map[string]string{"ANSIBLE_HOST_KEY_CHECKING": "False"}
}

func (c *Client) inventory(skipVolumes bool) string {
	if skipVolumes {
		return c.config.NoVolumesInventoryPath
	}
	return c.config.InventoryPath
}

// getLogPath returns the path to the log file for the given ID with timestamp and playbook name
func getLogPath(logsDir, playbook, id string, now time.Time) string {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		log.Printf("Failed to create log directory: %v", err)
	}

	timestamp := now.Format("20060102150405")

	cleanPlaybook := strings.ReplaceAll(playbook, "/", "_")
	cleanPlaybook = strings.ReplaceAll(cleanPlaybook, "\\", "_")
	cleanPlaybook = strings.TrimSuffix(cleanPlaybook, ".yml")
	cleanPlaybook = strings.TrimSuffix(cleanPlaybook, ".yaml")

	filename := fmt.Sprintf("%s_%s_%s.log", timestamp, cleanPlaybook, id)
	return filepath.Join(logsDir, filename)
}

func playbookArgs(inventory, playbookPath string, vars map[string]string) []string {
	args := []string{"-i", inventory, playbookPath}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, vars[k]))
	}
	return args
}

// RunPlaybook runs a playbook to completion, echoing its output. When
// LogsPath is set the output is also kept in a per-run log file.
func (c *Client) RunPlaybook(ctx context.Context, pb Playbook) (Result, error) {
	id := uuid.New().String()
	playbookPath := filepath.Join(c.config.PlaybooksPath, pb.Name+".yaml")
	args := playbookArgs(c.inventory(pb.SkipVolumes), playbookPath, pb.Vars)

	log.Info("[Ansible] running playbook", "playbook", pb.Name, "run_id", id, "skip_volumes", pb.SkipVolumes)

	res, err := c.exec.Execute(ctx, runner.Command{
		Program: c.config.PlaybookBinary,
		Args:    args,
		Env:     c.environment(),
		Echo:    true,
	})

	result := Result{ExitCode: res.ExitCode}
	if c.config.LogsPath != "" {
		result.LogPath = getLogPath(c.config.LogsPath, pb.Name, id, c.now())
		if werr := writeRunLog(result.LogPath, id, c.config.PlaybookBinary, args, res, err); werr != nil {
			log.Warn("[Ansible] failed to write playbook log", "path", result.LogPath, "error", werr)
		}
	}

	if err != nil {
		log.Info(fmt.Sprintf("Ansible playbook %s failed with exit code %d", pb.Name, res.ExitCode), "run_id", id)
		return result, fmt.Errorf("playbook %s: %w", pb.Name, err)
	}

	log.Info(fmt.Sprintf("Ansible playbook %s completed successfully", pb.Name), "run_id", id)
	return result, nil
}

func writeRunLog(path, id, program string, args []string, res runner.Result, runErr error) error {
	logFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()

	fmt.Fprintf(logFile, "=== Ansible Command Execution (ID: %s) ===\n", id)
	fmt.Fprintf(logFile, "Command: %s %s\n", program, strings.Join(args, " "))
	fmt.Fprintf(logFile, "=== Output ===\n\n")
	fmt.Fprint(logFile, res.Stdout)
	if res.Stderr != "" {
		fmt.Fprintf(logFile, "\n=== Stderr ===\n%s", res.Stderr)
	}
	if runErr != nil {
		fmt.Fprintf(logFile, "\n=== Error (Exit Code: %d) ===\n%v\n", res.ExitCode, runErr)
	}
	_, err = fmt.Fprintf(logFile, "\n=== Execution Completed (Exit Code: %d) ===\n", res.ExitCode)
	return err
}

// RunModule runs a single ad-hoc module against the configured host and lets
// the module parse ansible's output.
func (c *Client) RunModule(ctx context.Context, m Module) error {
	args := []string{
		c.config.Host,
		"-i", c.inventory(m.SkipVolumes()),
		"-m", m.ModuleName(),
		"-a", m.ModuleArgs(),
	}

	log.Debug("[Ansible] running module", "module", m.ModuleName(), "args", m.ModuleArgs(), "host", c.config.Host)
	res, err := c.exec.Execute(ctx, runner.Command{
		Program: c.config.AnsibleBinary,
		Args:    args,
		Env:     c.environment(),
		Echo:    c.config.Verbose,
	})
	if err != nil {
		if runner.ExitCode(err) > 0 {
			if perr := m.Parse(res.Output()); perr != nil {
				return fmt.Errorf("module %s on %s: %w", m.ModuleName(), c.config.Host, perr)
			}
		}
		return fmt.Errorf("module %s on %s: %w", m.ModuleName(), c.config.Host, err)
	}

	if err := m.Parse(res.Output()); err != nil {
		return fmt.Errorf("module %s on %s: %w", m.ModuleName(), c.config.Host, err)
	}
	return nil
}
