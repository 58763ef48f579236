package reconcile

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/willia4/electriclemur-v3/pkg/ansible"
	"github.com/willia4/electriclemur-v3/pkg/certs"
	"github.com/willia4/electriclemur-v3/pkg/log"
)

var serverTLSFiles = []string{"ca.pem", "server-cert.pem", "server-key.pem"}

// InitDocker generates TLS material for the droplet's daemon, installs the
// server half on the host and has the configure-docker-certs playbook switch
// the daemon to TLS.
func (r *Reconciler) InitDocker(ctx context.Context, ip string) error {
	bundle, err := certs.GenerateDockerTLS(r.Env.DockerCertRoot, certs.Options{
		Hosts: r.Env.DomainNames,
		IPs:   []string{ip},
	})
	if err != nil {
		return fmt.Errorf("generate docker tls for %s: %w", r.Env.FQDN, err)
	}

	remote := r.Options.RemoteCertDir
	if err := r.Host.CreateDirectory(ctx, remote); err != nil {
		return fmt.Errorf("create %s on %s: %w", remote, r.Env.FQDN, err)
	}

	srcs := make([]string, 0, len(serverTLSFiles))
	for _, name := range serverTLSFiles {
		srcs = append(srcs, filepath.Join(bundle.ServerDir, name))
	}
	if err := r.Host.UploadFiles(ctx, srcs, remote+"/"); err != nil {
		return fmt.Errorf("upload docker tls to %s: %w", r.Env.FQDN, err)
	}
	if err := r.Host.SetFileMode(ctx, path.Join(remote, "server-key.pem"), "0600"); err != nil {
		return err
	}

	log.Info("[Docker] enabling TLS on daemon", "host", r.Env.FQDN, "port", r.Options.DockerPort)
	res, err := r.Host.RunPlaybook(ctx, ansible.Playbook{
		Name: ansible.ConfigureDockerCerts,
		Vars: map[string]string{
			"fqdn":            r.Env.FQDN,
			"docker_cert_dir": remote,
			"docker_port":     strconv.Itoa(r.Options.DockerPort),
		},
		SkipVolumes: true,
	})
	if err != nil {
		return fmt.Errorf("playbook %s on %s: %w", ansible.ConfigureDockerCerts, r.Env.FQDN, err)
	}
	if res.LogPath != "" {
		log.Debug("[Ansible] playbook log written", "path", res.LogPath)
	}
	return nil
}
