// Package capabilities detects the external tools lemur drives and their
// versions.
package capabilities

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/willia4/electriclemur-v3/pkg/log"
	"github.com/willia4/electriclemur-v3/pkg/runner"
)

// Capability names
const (
	CapabilityDoctl           = "doctl"
	CapabilityDocker          = "docker"
	CapabilityAnsible         = "ansible"
	CapabilityAnsiblePlaybook = "ansible-playbook"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// Tool is a binary probed with a version command.
type Tool struct {
	Name   string
	Binary string
	Args   []string
}

// Status is the outcome of probing one tool.
type Status struct {
	Name      string
	Binary    string
	Version   string
	Available bool
	Err       error
}

// SystemInfo represents basic system information
type SystemInfo struct {
	OS   string
	Arch string
}

// GetSystemInfo returns the current system information
func GetSystemInfo() SystemInfo {
	return SystemInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// Tools returns the probes for the given binaries.
func Tools(doctl, docker, ansible, ansiblePlaybook string) []Tool {
	return []Tool{
		{Name: CapabilityDoctl, Binary: doctl, Args: []string{"version"}},
		{Name: CapabilityDocker, Binary: docker, Args: []string{"--version"}},
		{Name: CapabilityAnsible, Binary: ansible, Args: []string{"--version"}},
		{Name: CapabilityAnsiblePlaybook, Binary: ansiblePlaybook, Args: []string{"--version"}},
	}
}

// ParseVersion returns the first dotted version number in output.
func ParseVersion(output string) string {
	return versionPattern.FindString(output)
}

// Detect probes every tool in order. A tool that cannot run is reported as
// unavailable rather than failing the whole probe.
func Detect(ctx context.Context, exec runner.Executor, tools []Tool) []Status {
	statuses := make([]Status, 0, len(tools))
	for _, t := range tools {
		st := Status{Name: t.Name, Binary: t.Binary}
		res, err := exec.Execute(ctx, runner.Command{Program: t.Binary, Args: t.Args})
		if err != nil {
			st.Err = err
			log.Debug("[Capabilities] tool unavailable", "tool", t.Name, "binary", t.Binary, "error", err)
		} else {
			st.Available = true
			st.Version = ParseVersion(res.Stdout)
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// Missing returns an error naming every unavailable tool, or nil.
func Missing(statuses []Status) error {
	var missing []string
	for _, st := range statuses {
		if !st.Available {
			missing = append(missing, st.Binary)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing tools: %s", strings.Join(missing, ", "))
}
