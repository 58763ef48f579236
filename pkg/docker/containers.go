package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/willia4/electriclemur-v3/pkg/log"
	"github.com/willia4/electriclemur-v3/pkg/runner"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

// Container is the `docker container inspect` representation.
type Container = container.InspectResponse

// DefaultRestartPolicy is applied when a spec leaves Restart empty.
const DefaultRestartPolicy = "always"

var ErrInvalidSpec = errors.New("invalid container spec")

// Label is a container label.
type Label struct {
	Key   string
	Value string
}

// VolumeBinding mounts the volume holding Role at MountPath.
type VolumeBinding struct {
	Role      string
	MountPath string
}

// PortBinding publishes ContainerPort on HostPort.
type PortBinding struct {
	ContainerPort int
	HostPort      int
}

func (p PortBinding) String() string {
	return strconv.Itoa(p.HostPort) + ":" + strconv.Itoa(p.ContainerPort)
}

// EnvVar is a container environment variable. Names are upper-cased when the
// container is started. Secret values are kept out of logs.
type EnvVar struct {
	Name   string
	Value  string
	Secret bool
}

// ContainerSpec is the desired state of a single container.
type ContainerSpec struct {
	Name    string
	Image   string
	Restart string
	Labels  []Label
	Volumes []VolumeBinding
	Ports   []PortBinding
	Links   []string
	Env     []EnvVar
	Command []string
	// Binds are host:container bind mounts passed through unchanged.
	Binds []string
}

// Validate checks the spec can be turned into a `docker run` invocation.
func (s ContainerSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSpec)
	}
	if s.Image == "" {
		return fmt.Errorf("%w: container %s has no image", ErrInvalidSpec, s.Name)
	}
	if len(s.Ports) > 0 {
		specs := make([]string, 0, len(s.Ports))
		for _, p := range s.Ports {
			specs = append(specs, p.String())
		}
		if _, _, err := nat.ParsePortSpecs(specs); err != nil {
			return fmt.Errorf("%w: container %s: %v", ErrInvalidSpec, s.Name, err)
		}
	}
	for _, v := range s.Volumes {
		if v.Role == "" || v.MountPath == "" {
			return fmt.Errorf("%w: container %s has an incomplete volume binding", ErrInvalidSpec, s.Name)
		}
	}
	for _, b := range s.Binds {
		if !strings.Contains(b, ":") {
			return fmt.Errorf("%w: container %s: bind %q needs host:container", ErrInvalidSpec, s.Name, b)
		}
	}
	for _, e := range s.Env {
		if e.Name == "" {
			return fmt.Errorf("%w: container %s has an unnamed environment variable", ErrInvalidSpec, s.Name)
		}
	}
	return nil
}

// InspectContainer returns the container with the given name or id, or nil
// when docker reports it does not exist.
func (c *Client) InspectContainer(ctx context.Context, nameOrID string) (*Container, error) {
	res, err := c.run(ctx, []string{"container", "inspect", nameOrID})
	if err != nil {
		if runner.ExitCode(err) > 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("inspect container %s on %s: %w", nameOrID, c.conn.Host, err)
	}

	var containers []Container
	if err := json.Unmarshal([]byte(res.Output()), &containers); err != nil {
		return nil, fmt.Errorf("failed to decode container inspect response: %w", err)
	}
	if len(containers) == 0 || containers[0].ContainerJSONBase == nil {
		return nil, nil
	}
	return &containers[0], nil
}

// DeleteContainer force-removes the named container. It reports whether a
// container was removed; a missing container is not an error.
func (c *Client) DeleteContainer(ctx context.Context, name string) (bool, error) {
	existing, err := c.InspectContainer(ctx, name)
	if err != nil {
		return false, err
	}
	if existing == nil {
		log.Debug("[Docker] container not present", "host", c.conn.Host, "container", name)
		return false, nil
	}

	log.Info("[Docker] removing container", "host", c.conn.Host, "container", name, "id", existing.ID)
	if _, err := c.run(ctx, []string{"rm", "--force", existing.ID}); err != nil {
		return false, fmt.Errorf("remove container %s on %s: %w", name, c.conn.Host, err)
	}
	return true, nil
}

// ReconcileContainer replaces any container named spec.Name with a fresh one
// built from spec. Volumes are resolved by role, creating them when missing.
func (c *Client) ReconcileContainer(ctx context.Context, spec ContainerSpec) (*Container, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if _, err := c.DeleteContainer(ctx, spec.Name); err != nil {
		return nil, err
	}

	return c.start(ctx, spec)
}

// EnsureContainer starts spec only when no container with its name exists.
// It reports whether a container was started.
func (c *Client) EnsureContainer(ctx context.Context, spec ContainerSpec) (*Container, bool, error) {
	if err := spec.Validate(); err != nil {
		return nil, false, err
	}

	existing, err := c.InspectContainer(ctx, spec.Name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		log.Debug("[Docker] container already present", "host", c.conn.Host, "container", spec.Name)
		return existing, false, nil
	}

	created, err := c.start(ctx, spec)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (c *Client) start(ctx context.Context, spec ContainerSpec) (*Container, error) {
	mounts := make([]string, 0, len(spec.Volumes)+len(spec.Binds))
	for _, binding := range spec.Volumes {
		v, err := c.ReconcileVolume(ctx, binding.Role)
		if err != nil {
			return nil, fmt.Errorf("container %s: %w", spec.Name, err)
		}
		mounts = append(mounts, v.Name+":"+binding.MountPath)
	}
	mounts = append(mounts, spec.Binds...)

	args, redact := runArgs(spec, mounts)

	log.Info("[Docker] starting container", "host", c.conn.Host, "container", spec.Name, "image", spec.Image)
	res, err := c.run(ctx, args, redact...)
	if err != nil {
		return nil, fmt.Errorf("start container %s on %s: %w", spec.Name, c.conn.Host, err)
	}

	id := lastLine(res.Output())
	if id == "" {
		id = spec.Name
	}
	created, err := c.InspectContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("container %s not found after start", spec.Name)
	}
	return created, nil
}

// runArgs renders spec as `docker run -d` arguments and returns the indices of
// secret values.
func runArgs(spec ContainerSpec, mounts []string) ([]string, []int) {
	restart := spec.Restart
	if restart == "" {
		restart = DefaultRestartPolicy
	}

	args := []string{"run", "-d", "--restart", restart, "--name", spec.Name}
	for _, l := range spec.Labels {
		args = append(args, "--label", l.Key+"="+l.Value)
	}
	for _, m := range mounts {
		args = append(args, "--volume", m)
	}
	for _, p := range spec.Ports {
		args = append(args, "--publish", p.String())
	}
	for _, l := range spec.Links {
		args = append(args, "--link", l)
	}

	var redact []int
	for _, e := range spec.Env {
		args = append(args, "--env", strings.ToUpper(e.Name)+"="+e.Value)
		if e.Secret {
			redact = append(redact, len(args)-1)
		}
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)
	return args, redact
}
