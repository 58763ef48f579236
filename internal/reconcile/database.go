package reconcile

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/log"
)

const (
	DatabaseContainer = "database"
	databaseRole      = "database"
	databaseMount     = "/var/lib/mysql"
	rootPasswordKey   = "database_root_password"
	backupPattern     = "*.sqldump"
)

var databaseNamePattern = regexp.MustCompile(`^[A-Za-z0-9_$-]+$`)

// Backup is a database dump found in the backup volume.
type Backup struct {
	// Database is the file name without its .sqldump extension.
	Database string
	// Path is the absolute path on the host.
	Path string
	// VolumePath is Path relative to the volume mountpoint.
	VolumePath string
	// Volume is the backup volume's name.
	Volume string
}

func (r *Reconciler) databaseSpec() (docker.ContainerSpec, error) {
	password, err := r.Secrets.Secret(rootPasswordKey)
	if err != nil {
		return docker.ContainerSpec{}, err
	}
	return docker.ContainerSpec{
		Name:    DatabaseContainer,
		Image:   r.Options.Images.Database,
		Volumes: []docker.VolumeBinding{{Role: databaseRole, MountPath: databaseMount}},
		Env:     []docker.EnvVar{{Name: "MYSQL_ROOT_PASSWORD", Value: password, Secret: true}},
	}, nil
}

// EnsureDatabase starts the database container unless it is already there.
func (r *Reconciler) EnsureDatabase(ctx context.Context) (*docker.Container, bool, error) {
	spec, err := r.databaseSpec()
	if err != nil {
		return nil, false, err
	}
	c, started, err := r.Docker.EnsureContainer(ctx, spec)
	if err != nil {
		return nil, false, fmt.Errorf("database container: %w", err)
	}
	if started {
		log.Info("[Docker] created database container", "host", r.Env.FQDN)
	} else {
		log.Info("[Docker] database container already exists", "host", r.Env.FQDN)
	}
	return c, started, nil
}

// DatabaseBackups lists the dumps in the backup volume.
func (r *Reconciler) DatabaseBackups(ctx context.Context) ([]Backup, error) {
	v, err := r.Docker.ReconcileVolume(ctx, r.Options.BackupVolume)
	if err != nil {
		return nil, err
	}
	files, err := r.Host.ListFiles(ctx, v.Mountpoint, backupPattern)
	if err != nil {
		return nil, fmt.Errorf("list backups in %s: %w", v.Mountpoint, err)
	}

	backups := make([]Backup, 0, len(files))
	for _, f := range files {
		backups = append(backups, Backup{
			Database:   strings.TrimSuffix(path.Base(f), ".sqldump"),
			Path:       f,
			VolumePath: strings.TrimPrefix(strings.TrimPrefix(f, v.Mountpoint), "/"),
			Volume:     v.Name,
		})
	}
	return backups, nil
}

// mysql runs statement through a throwaway client linked to the database
// container, optionally mounting volume at /v.
func (r *Reconciler) mysql(ctx context.Context, volume, statement string) (string, error) {
	password, err := r.Secrets.Secret(rootPasswordKey)
	if err != nil {
		return "", err
	}

	args := []string{"--link", DatabaseContainer}
	if volume != "" {
		args = append(args, "-v", volume+":/v")
	}
	args = append(args, r.Options.Images.Database,
		"mysql", "-h", DatabaseContainer, "-u", "root", "--password="+password, "--skip-column-names", "-e")
	redact := len(args) - 3
	args = append(args, statement)

	return r.Docker.RunOnce(ctx, args, redact)
}

// DatabaseExists asks the server whether schema name exists.
func (r *Reconciler) DatabaseExists(ctx context.Context, name string) (bool, error) {
	if !databaseNamePattern.MatchString(name) {
		return false, fmt.Errorf("invalid database name %q", name)
	}
	out, err := r.mysql(ctx, "", fmt.Sprintf("SELECT count(*) FROM information_schema.schemata WHERE schema_name = '%s'", name))
	if err != nil {
		return false, fmt.Errorf("check database %s: %w", name, err)
	}

	fields := strings.Fields(out)
	if len(fields) == 0 {
		return false, fmt.Errorf("check database %s: empty response", name)
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return false, fmt.Errorf("check database %s: unexpected response %q", name, out)
	}
	return n > 0, nil
}

// RestoreDatabase sources a backup into the server.
func (r *Reconciler) RestoreDatabase(ctx context.Context, b Backup) error {
	log.Info("[Docker] restoring database", "database", b.Database, "backup", b.Path)
	if _, err := r.mysql(ctx, b.Volume, "source "+path.Join("/v", b.VolumePath)); err != nil {
		return fmt.Errorf("restore database %s: %w", b.Database, err)
	}
	return nil
}

// RestoreDatabases ensures the database container, waits for it to settle and
// restores every backup whose database does not exist yet.
func (r *Reconciler) RestoreDatabases(ctx context.Context) error {
	if _, _, err := r.EnsureDatabase(ctx); err != nil {
		return err
	}

	log.Info("[Docker] waiting for database to settle", "delay", r.Options.Settle)
	if r.Sleep != nil {
		if err := r.Sleep(ctx, r.Options.Settle); err != nil {
			return err
		}
	}

	backups, err := r.DatabaseBackups(ctx)
	if err != nil {
		return err
	}
	for _, b := range backups {
		exists, err := r.DatabaseExists(ctx, b.Database)
		if err != nil {
			return err
		}
		if exists {
			log.Info("[Docker] database already exists", "database", b.Database)
			continue
		}
		if err := r.RestoreDatabase(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
