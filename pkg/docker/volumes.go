package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	log "github.com/willia4/electriclemur-v3/pkg/log"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
)

// RoleLabel is the volume label that ties a volume to its purpose.
const RoleLabel = "volumeRole"

// Volume is the `docker volume inspect` representation.
type Volume = volume.Volume

// RoleFilter selects volumes labelled with role.
func RoleFilter(role string) filters.Args {
	return filters.NewArgs(filters.Arg("label", RoleLabel+"="+role))
}

func filterFlags(f filters.Args) []string {
	keys := f.Keys()
	sort.Strings(keys)

	var flags []string
	for _, k := range keys {
		values := f.Get(k)
		sort.Strings(values)
		for _, v := range values {
			flags = append(flags, "--filter", k+"="+v)
		}
	}
	return flags
}

// ListVolumeNames returns the names of volumes matching f.
func (c *Client) ListVolumeNames(ctx context.Context, f filters.Args) ([]string, error) {
	args := append([]string{"volume", "ls", "-q"}, filterFlags(f)...)
	res, err := c.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("list volumes on %s: %w", c.conn.Host, err)
	}

	var names []string
	for _, line := range strings.Split(res.Output(), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// InspectVolumes returns details for the named volumes, in docker's order.
func (c *Client) InspectVolumes(ctx context.Context, names ...string) ([]Volume, error) {
	if len(names) == 0 {
		return nil, nil
	}

	res, err := c.run(ctx, append([]string{"volume", "inspect"}, names...))
	if err != nil {
		return nil, fmt.Errorf("inspect volumes %v on %s: %w", names, c.conn.Host, err)
	}

	var volumes []Volume
	if err := json.Unmarshal([]byte(res.Output()), &volumes); err != nil {
		return nil, fmt.Errorf("failed to decode volume inspect response: %w", err)
	}
	return volumes, nil
}

// ListVolumesByRole returns every volume labelled with role.
func (c *Client) ListVolumesByRole(ctx context.Context, role string) ([]Volume, error) {
	names, err := c.ListVolumeNames(ctx, RoleFilter(role))
	if err != nil {
		return nil, err
	}
	return c.InspectVolumes(ctx, names...)
}

// CreateVolume creates a volume named <role>-<unix millis> labelled with role.
func (c *Client) CreateVolume(ctx context.Context, role string) (*Volume, error) {
	name := role + "-" + millis(c.now())

	log.Info("[Docker] creating volume", "host", c.conn.Host, "role", role, "volume", name)
	res, err := c.run(ctx, []string{"volume", "create", "--label", RoleLabel + "=" + role, name})
	if err != nil {
		return nil, fmt.Errorf("create volume %s on %s: %w", name, c.conn.Host, err)
	}

	created := lastLine(res.Output())
	if created == "" {
		created = name
	}
	volumes, err := c.InspectVolumes(ctx, created)
	if err != nil {
		return nil, err
	}
	if len(volumes) == 0 {
		return nil, fmt.Errorf("volume %s not found after create", created)
	}
	return &volumes[0], nil
}

// ReconcileVolume returns the volume for role, creating it when none exists.
// When several volumes carry the role the first one docker reports is used.
func (c *Client) ReconcileVolume(ctx context.Context, role string) (*Volume, error) {
	volumes, err := c.ListVolumesByRole(ctx, role)
	if err != nil {
		return nil, err
	}

	switch len(volumes) {
	case 0:
		return c.CreateVolume(ctx, role)
	case 1:
	default:
		names := make([]string, 0, len(volumes))
		for _, v := range volumes {
			names = append(names, v.Name)
		}
		log.Warn("[Docker] multiple volumes share a role, using the first", "role", role, "volumes", names)
	}

	log.Debug("[Docker] volume exists", "role", role, "volume", volumes[0].Name)
	return &volumes[0], nil
}
