package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/willia4/electriclemur-v3/internal/definition"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/log"
)

// ProxyContainer is the traefik instance routing to every site container.
const ProxyContainer = "traefik_proxy"

const (
	sftpSuffix      = "_sftp"
	sftpUsersSecret = "sftp_users"
	sftpKeysRole    = "sshKeys"
	sftpUserRole    = "sshUser"
)

// ContainerOptions control how definitions become containers.
type ContainerOptions struct {
	// NoSidecar disables sftp sidecar expansion.
	NoSidecar bool
}

// ExpandSidecars returns defs with an sftp sidecar definition inserted after
// each definition that asks for one.
func ExpandSidecars(defs []definition.ContainerDefinition, image string) []definition.ContainerDefinition {
	out := make([]definition.ContainerDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, def)
		if def.SFTP != nil {
			out = append(out, sftpSidecar(def, image))
		}
	}
	return out
}

func sftpSidecar(parent definition.ContainerDefinition, image string) definition.ContainerDefinition {
	return definition.ContainerDefinition{
		Name:  parent.Name + sftpSuffix,
		Image: image,
		Volumes: []definition.ContainerVolume{
			{Type: sftpKeysRole, MountPoint: "/etc/ssh/keys"},
			{Type: sftpUserRole, MountPoint: "/home/sftpuser/.ssh/keys"},
			{Type: parent.SFTP.Volume, MountPoint: "/home/sftpuser/data"},
		},
		Ports: []definition.ContainerPort{{ContainerPort: 22, HostPort: parent.SFTP.Port}},
		Env: map[string]definition.EnvValue{
			"SFTP_USERS": {SecretName: sftpUsersSecret},
			"PUID":       {Literal: "0"},
			"PGID":       {Literal: "0"},
		},
	}
}

// RoutingLabels returns the traefik labels for a definition with a host route.
func (r *Reconciler) RoutingLabels(def definition.ContainerDefinition) []docker.Label {
	if def.HostRoute == "" {
		return nil
	}
	rule := "Host: " + r.Env.MapURL(def.HostRoute)
	if def.PathRoute != "" {
		rule += "; PathPrefixStrip: " + def.PathRoute
	}
	return []docker.Label{
		{Key: "traefik.frontend.rule", Value: rule},
		{Key: "traefik.enable", Value: "true"},
	}
}

// ContainerSpec turns a definition into a docker spec, resolving secrets.
// Env names are upper-cased.
func (r *Reconciler) ContainerSpec(def definition.ContainerDefinition) (docker.ContainerSpec, error) {
	spec := docker.ContainerSpec{
		Name:    def.Name,
		Image:   def.Image,
		Restart: docker.DefaultRestartPolicy,
		Labels:  r.RoutingLabels(def),
		Links:   def.Links,
		Command: def.Command,
	}
	for _, v := range def.Volumes {
		spec.Volumes = append(spec.Volumes, docker.VolumeBinding{Role: v.Type, MountPath: v.MountPoint})
	}
	for _, p := range def.Ports {
		spec.Ports = append(spec.Ports, docker.PortBinding{ContainerPort: p.ContainerPort, HostPort: p.HostPort})
	}
	for _, name := range def.EnvNames() {
		value := def.Env[name]
		resolved, err := r.Secrets.Resolve(value)
		if err != nil {
			return docker.ContainerSpec{}, fmt.Errorf("container %s env %s: %w", def.Name, name, err)
		}
		spec.Env = append(spec.Env, docker.EnvVar{Name: strings.ToUpper(name), Value: resolved, Secret: value.IsSecret()})
	}
	return spec, nil
}

func (r *Reconciler) proxySpec() docker.ContainerSpec {
	return docker.ContainerSpec{
		Name:    ProxyContainer,
		Image:   r.Options.Images.Proxy,
		Ports:   []docker.PortBinding{{ContainerPort: 8080, HostPort: 8080}, {ContainerPort: 80, HostPort: 80}},
		Binds:   []string{"/var/run/docker.sock:/var/run/docker.sock"},
		Command: []string{"--api", "--docker"},
	}
}

// EnsureProxy starts the traefik proxy unless it is already running.
func (r *Reconciler) EnsureProxy(ctx context.Context) (*docker.Container, error) {
	c, started, err := r.Docker.EnsureContainer(ctx, r.proxySpec())
	if err != nil {
		return nil, fmt.Errorf("proxy container: %w", err)
	}
	if started {
		log.Info("[Docker] started proxy", "host", r.Env.FQDN)
	}
	return c, nil
}

// CreateContainer replaces the containers defined in containers/<name>.
// The proxy name is handled without a definition file.
func (r *Reconciler) CreateContainer(ctx context.Context, name string, opts ContainerOptions) ([]*docker.Container, error) {
	if name == ProxyContainer {
		c, err := r.Docker.ReconcileContainer(ctx, r.proxySpec())
		if err != nil {
			return nil, fmt.Errorf("proxy container: %w", err)
		}
		return []*docker.Container{c}, nil
	}

	defs, err := r.Definitions.Containers(name)
	if err != nil {
		return nil, fmt.Errorf("load container %s: %w", name, err)
	}
	return r.createContainers(ctx, defs, opts)
}

// CreateAllContainers ensures the proxy and replaces every defined container.
func (r *Reconciler) CreateAllContainers(ctx context.Context, opts ContainerOptions) ([]*docker.Container, error) {
	defs, err := r.Definitions.ListContainerDefinitions()
	if err != nil {
		return nil, fmt.Errorf("load container definitions: %w", err)
	}

	proxy, err := r.EnsureProxy(ctx)
	if err != nil {
		return nil, err
	}
	created, err := r.createContainers(ctx, defs, opts)
	return append([]*docker.Container{proxy}, created...), err
}

func (r *Reconciler) createContainers(ctx context.Context, defs []definition.ContainerDefinition, opts ContainerOptions) ([]*docker.Container, error) {
	if !opts.NoSidecar {
		defs = ExpandSidecars(defs, r.Options.Images.SFTP)
	}

	var created []*docker.Container
	for _, def := range defs {
		spec, err := r.ContainerSpec(def)
		if err != nil {
			return created, err
		}
		c, err := r.Docker.ReconcileContainer(ctx, spec)
		if err != nil {
			return created, fmt.Errorf("create container %s on %s: %w", def.Name, r.Env.FQDN, err)
		}
		created = append(created, c)
	}
	return created, nil
}
