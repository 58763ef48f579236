// Package inventory renders the dynamic ansible inventory for an environment.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/willia4/electriclemur-v3/internal/definition"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/doctl"
	"github.com/willia4/electriclemur-v3/pkg/log"
)

// Volume fields an inventory variable can carry.
const (
	FieldMountpoint = "mountpoint"
	FieldName       = "name"
)

// VolumeVar exposes one volume role as an inventory variable.
type VolumeVar struct {
	Role     string
	Variable string
	Field    string
}

// Group is one ansible inventory group.
type Group struct {
	Hosts    []string          `json:"hosts"`
	Vars     map[string]string `json:"vars"`
	Children []string          `json:"children"`
}

// VolumeEntry is one row of VolumeList.
type VolumeEntry struct {
	Role       string `json:"role"`
	Name       string `json:"name"`
	Mountpoint string `json:"mountpoint"`
}

type DropletFinder interface {
	FindDroplet(ctx context.Context, name string) (*doctl.Droplet, error)
}

type VolumeResolver interface {
	ReconcileVolume(ctx context.Context, role string) (*docker.Volume, error)
}

// Emitter builds inventory output for one environment.
type Emitter struct {
	Env           *definition.Environment
	Group         string
	User          string
	Volumes       []VolumeVar
	AWSKeyPath    string
	AWSSecretPath string

	Droplets DropletFinder
	Docker   VolumeResolver
}

// List returns the inventory with the environment's single host. Volume
// variables are resolved through docker unless noVolumes is set.
func (e *Emitter) List(ctx context.Context, noVolumes bool) (map[string]Group, error) {
	vars := map[string]string{
		"ansible_user":                  e.User,
		"fqdn":                          e.Env.FQDN,
		"secretsPath":                   e.Env.SecretPath,
		"aws_backup_access_key_path":    e.AWSKeyPath,
		"aws_backup_access_secret_path": e.AWSSecretPath,
	}

	if !noVolumes {
		for _, v := range e.Volumes {
			vol, err := e.Docker.ReconcileVolume(ctx, v.Role)
			if err != nil {
				return nil, fmt.Errorf("inventory volume %s: %w", v.Role, err)
			}
			switch v.Field {
			case FieldName:
				vars[v.Variable] = vol.Name
			default:
				vars[v.Variable] = vol.Mountpoint
			}
		}
	} else {
		log.Debug("[Ansible] inventory without volume variables", "environment", e.Env.Name)
	}

	return map[string]Group{
		e.Group: {
			Hosts:    []string{e.Env.FQDN},
			Vars:     vars,
			Children: []string{},
		},
	}, nil
}

// Host returns the per-host variables. All variables live on the group.
func (e *Emitter) Host(string) map[string]string {
	return map[string]string{}
}

// IP returns the droplet's public address.
func (e *Emitter) IP(ctx context.Context) (string, error) {
	d, err := e.Droplets.FindDroplet(ctx, e.Env.DropletName)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", fmt.Errorf("could not get droplet for %s", e.Env.DropletName)
	}
	ip, ok := doctl.PublicIPv4(d)
	if !ok {
		return "", fmt.Errorf("droplet %s has no public address", d.Name)
	}
	return ip, nil
}

func (e *Emitter) FQDN() string {
	return e.Env.FQDN
}

// VolumeList resolves each role, creating missing volumes.
func (e *Emitter) VolumeList(ctx context.Context, roles []string) ([]VolumeEntry, error) {
	entries := make([]VolumeEntry, 0, len(roles))
	for _, role := range roles {
		v, err := e.Docker.ReconcileVolume(ctx, role)
		if err != nil {
			return nil, err
		}
		entries = append(entries, VolumeEntry{Role: role, Name: v.Name, Mountpoint: v.Mountpoint})
	}
	return entries, nil
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
