// Package reconcile drives the cloud, docker and host clients to bring an
// environment to the state its definitions describe.
package reconcile

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/willia4/electriclemur-v3/internal/definition"
	"github.com/willia4/electriclemur-v3/internal/ui"
	"github.com/willia4/electriclemur-v3/pkg/ansible"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/doctl"
)

var (
	// ErrNothingToDelete is returned by DeleteEnvironment when neither the
	// droplet nor any DNS record exists.
	ErrNothingToDelete = errors.New("nothing to delete")
	// ErrDeclined is returned when the user answers no to a confirmation.
	ErrDeclined = errors.New("declined by user")
	// ErrDropletNotFound is returned when an operation needs an existing droplet.
	ErrDropletNotFound = errors.New("droplet not found")
)

// CloudClient is the part of the doctl client the reconciler uses.
type CloudClient interface {
	FindDroplet(ctx context.Context, name string) (*doctl.Droplet, error)
	CreateDroplet(ctx context.Context, name string) (*doctl.Droplet, error)
	DeleteDroplet(ctx context.Context, d *doctl.Droplet) error
	FindRecord(ctx context.Context, fqdn string) (*doctl.DNSRecord, error)
	ReconcileARecord(ctx context.Context, fqdn, ip string) (*doctl.DNSRecord, doctl.Action, error)
	DeleteRecord(ctx context.Context, r *doctl.DNSRecord) error
}

// DockerClient is the part of the docker client the reconciler uses.
type DockerClient interface {
	ReconcileContainer(ctx context.Context, spec docker.ContainerSpec) (*docker.Container, error)
	EnsureContainer(ctx context.Context, spec docker.ContainerSpec) (*docker.Container, bool, error)
	ReconcileVolume(ctx context.Context, role string) (*docker.Volume, error)
	RunOnce(ctx context.Context, args []string, redact ...int) (string, error)
}

// HostClient is the part of the ansible client the reconciler uses.
type HostClient interface {
	RunPlaybook(ctx context.Context, pb ansible.Playbook) (ansible.Result, error)
	CreateDirectory(ctx context.Context, path string) error
	UploadFiles(ctx context.Context, srcs []string, dest string) error
	SetFileMode(ctx context.Context, path, mode string) error
	Chown(ctx context.Context, path, owner string) error
	ListFiles(ctx context.Context, dir, pattern string) ([]string, error)
}

// Definitions supplies container and volume definitions.
type Definitions interface {
	Containers(name string) ([]definition.ContainerDefinition, error)
	ListContainerDefinitions() ([]definition.ContainerDefinition, error)
	Volumes() ([]definition.VolumeDefinition, error)
}

// Secrets resolves secret values for one environment.
type Secrets interface {
	Secret(name string) (string, error)
	Resolve(v definition.EnvValue) (string, error)
	AWSCredentials() (definition.AWSCredentials, error)
	Path(name string) string
}

// Images are the fixed images the reconciler starts on its own.
type Images struct {
	Database string
	AWSCLI   string
	SFTP     string
	Proxy    string
}

// Options tune a Reconciler. Empty fields other than Settle fall back to
// DefaultOptions; a zero Settle means no wait.
type Options struct {
	Images Images
	// Settle is the pause between starting the database and restoring backups.
	Settle time.Duration
	// BackupVolume holds *.sqldump files to restore.
	BackupVolume string
	// DockerPort is the TLS port the daemon is configured to listen on.
	DockerPort int
	// RemoteCertDir receives the daemon's server certificates.
	RemoteCertDir string
	// KeyVolume holds ssh key material whose files matching any of
	// KeyPatterns are made owner-only after upload.
	KeyVolume   string
	KeyPatterns []string
}

// DefaultOptions returns the options used for unset fields.
func DefaultOptions() Options {
	return Options{
		Images: Images{
			Database: "mariadb:10.4.5",
			AWSCLI:   "willia4/aws_cli",
			SFTP:     "atmoz/sftp:alpine",
			Proxy:    "traefik:1.7",
		},
		Settle:        30 * time.Second,
		BackupVolume:  "database_backup",
		DockerPort:    docker.DefaultTLSPort,
		RemoteCertDir: "/etc/docker/certs",
		KeyVolume:     "sshKeys",
		KeyPatterns:   []string{"*_key", "*.pem"},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Images.Database == "" {
		o.Images.Database = d.Images.Database
	}
	if o.Images.AWSCLI == "" {
		o.Images.AWSCLI = d.Images.AWSCLI
	}
	if o.Images.SFTP == "" {
		o.Images.SFTP = d.Images.SFTP
	}
	if o.Images.Proxy == "" {
		o.Images.Proxy = d.Images.Proxy
	}
	if o.BackupVolume == "" {
		o.BackupVolume = d.BackupVolume
	}
	if o.DockerPort == 0 {
		o.DockerPort = d.DockerPort
	}
	if o.RemoteCertDir == "" {
		o.RemoteCertDir = d.RemoteCertDir
	}
	if o.KeyVolume == "" {
		o.KeyVolume = d.KeyVolume
	}
	if len(o.KeyPatterns) == 0 {
		o.KeyPatterns = d.KeyPatterns
	}
	return o
}

// Reconciler coordinates one environment. Every step runs sequentially.
type Reconciler struct {
	Env         *definition.Environment
	Cloud       CloudClient
	Docker      DockerClient
	Host        HostClient
	Secrets     Secrets
	Definitions Definitions
	Confirm     ui.ConfirmFunc
	Out         io.Writer
	Options     Options

	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Reconciler writing progress to stdout.
func New(env *definition.Environment, cloud CloudClient, dockerClient DockerClient, host HostClient,
	secrets Secrets, defs Definitions, confirm ui.ConfirmFunc, opts Options) *Reconciler {
	return &Reconciler{
		Env:         env,
		Cloud:       cloud,
		Docker:      dockerClient,
		Host:        host,
		Secrets:     secrets,
		Definitions: defs,
		Confirm:     confirm,
		Out:         os.Stdout,
		Options:     opts.withDefaults(),
		Sleep:       sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Reconciler) out() io.Writer {
	if r.Out == nil {
		return io.Discard
	}
	return r.Out
}

func (r *Reconciler) confirm(question string) error {
	if r.Confirm == nil {
		return ErrDeclined
	}
	ok, err := r.Confirm(question)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}
