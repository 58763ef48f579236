package reconcile

import (
	"context"
	"fmt"

	"github.com/willia4/electriclemur-v3/internal/definition"
	"github.com/willia4/electriclemur-v3/pkg/ansible"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/log"
)

// VolumePath returns the host mountpoint of the volume holding role,
// creating the volume when needed.
func (r *Reconciler) VolumePath(ctx context.Context, role string) (string, error) {
	v, err := r.Docker.ReconcileVolume(ctx, role)
	if err != nil {
		return "", err
	}
	return v.Mountpoint, nil
}

// VolumeID returns the name of the volume holding role, creating the volume
// when needed.
func (r *Reconciler) VolumeID(ctx context.Context, role string) (string, error) {
	v, err := r.Docker.ReconcileVolume(ctx, role)
	if err != nil {
		return "", err
	}
	return v.Name, nil
}

// UploadVolumes creates every defined volume and fills it from its source.
func (r *Reconciler) UploadVolumes(ctx context.Context) error {
	defs, err := r.Definitions.Volumes()
	if err != nil {
		return fmt.Errorf("load volume definitions: %w", err)
	}

	for _, def := range defs {
		v, err := r.Docker.ReconcileVolume(ctx, def.Name)
		if err != nil {
			return err
		}
		if err := r.uploadVolume(ctx, def, v); err != nil {
			return fmt.Errorf("volume %s: %w", def.Name, err)
		}
		if def.Owner != "" {
			if err := r.Host.Chown(ctx, v.Mountpoint, def.Owner); err != nil {
				return fmt.Errorf("volume %s: %w", def.Name, err)
			}
		}
	}
	return nil
}

func (r *Reconciler) uploadVolume(ctx context.Context, def definition.VolumeDefinition, v *docker.Volume) error {
	if def.Source == nil {
		return nil
	}

	switch def.Source.Type {
	case definition.SourceS3:
		creds, err := r.Secrets.AWSCredentials()
		if err != nil {
			return err
		}
		log.Info("[Docker] syncing volume from s3", "volume", v.Name, "source", def.Source.S3ID)
		args := []string{
			"-v", v.Name + ":/v",
			"-e", "AWS_ACCESS_KEY_ID=" + creds.AccessKey,
			"-e", "AWS_SECRET_ACCESS_KEY=" + creds.AccessSecret,
			r.Options.Images.AWSCLI,
			"aws", "s3", "sync", "--delete", "s3://" + def.Source.S3ID, "/v",
		}
		_, err = r.Docker.RunOnce(ctx, args, 3, 5)
		return err

	case definition.SourceLocalSecret:
		mode := "0644"
		if def.Name == r.Options.KeyVolume {
			mode = "0600"
		}
		log.Info("[Ansible] uploading secret files to volume", "volume", v.Name, "files", len(def.Source.Files))
		for _, f := range def.Source.Files {
			res, err := r.Host.RunPlaybook(ctx, ansible.Playbook{
				Name: ansible.UploadFiles,
				Vars: map[string]string{
					"src":  r.Secrets.Path(f),
					"dest": v.Mountpoint + "/",
					"mode": mode,
				},
			})
			if err != nil {
				return fmt.Errorf("upload %s: %w", f, err)
			}
			if res.LogPath != "" {
				log.Debug("[Ansible] playbook log written", "path", res.LogPath)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown source: %s", def.Source.Type)
	}
}

// LockKeyMaterial makes private keys in the key volume readable by the owner
// only. It does nothing when no such volume is defined.
func (r *Reconciler) LockKeyMaterial(ctx context.Context) error {
	defs, err := r.Definitions.Volumes()
	if err != nil {
		return fmt.Errorf("load volume definitions: %w", err)
	}
	defined := false
	for _, d := range defs {
		if d.Name == r.Options.KeyVolume {
			defined = true
		}
	}
	if !defined {
		return nil
	}

	mount, err := r.VolumePath(ctx, r.Options.KeyVolume)
	if err != nil {
		return err
	}
	for _, pattern := range r.Options.KeyPatterns {
		files, err := r.Host.ListFiles(ctx, mount, pattern)
		if err != nil {
			return fmt.Errorf("list key material in %s: %w", mount, err)
		}
		for _, f := range files {
			if err := r.Host.SetFileMode(ctx, f, "0600"); err != nil {
				return err
			}
		}
	}
	return nil
}
