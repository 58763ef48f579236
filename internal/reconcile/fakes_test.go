package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/willia4/electriclemur-v3/internal/definition"
	"github.com/willia4/electriclemur-v3/pkg/ansible"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/doctl"

	"github.com/docker/docker/api/types/container"
)

type journal struct {
	calls []string
}

func (j *journal) record(format string, a ...any) {
	j.calls = append(j.calls, fmt.Sprintf(format, a...))
}

func (j *journal) count(prefix string) int {
	n := 0
	for _, c := range j.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (j *journal) index(prefix string) int {
	for i, c := range j.calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

type fakeCloud struct {
	*journal
	droplet *doctl.Droplet
	records map[string]*doctl.DNSRecord
	failOn  string
}

func newDroplet(name, ip string) *doctl.Droplet {
	d := &doctl.Droplet{ID: 42, Name: name}
	d.Networks.V4 = []doctl.Network{
		{IPAddress: "10.0.0.2", Type: "private"},
		{IPAddress: ip, Type: "public"},
	}
	return d
}

func (f *fakeCloud) FindDroplet(_ context.Context, name string) (*doctl.Droplet, error) {
	f.record("find-droplet %s", name)
	if f.droplet != nil && f.droplet.Name == name {
		return f.droplet, nil
	}
	return nil, nil
}

func (f *fakeCloud) CreateDroplet(_ context.Context, name string) (*doctl.Droplet, error) {
	f.record("create-droplet %s", name)
	f.droplet = newDroplet(name, "203.0.113.10")
	return f.droplet, nil
}

func (f *fakeCloud) DeleteDroplet(_ context.Context, d *doctl.Droplet) error {
	f.record("delete-droplet %d", d.ID)
	if f.failOn == "delete-droplet" {
		return fmt.Errorf("boom")
	}
	f.droplet = nil
	return nil
}

func (f *fakeCloud) FindRecord(_ context.Context, fqdn string) (*doctl.DNSRecord, error) {
	f.record("find-record %s", fqdn)
	return f.records[fqdn], nil
}

func (f *fakeCloud) ReconcileARecord(_ context.Context, fqdn, ip string) (*doctl.DNSRecord, doctl.Action, error) {
	f.record("reconcile-record %s %s", fqdn, ip)
	if f.records == nil {
		f.records = map[string]*doctl.DNSRecord{}
	}
	existing := f.records[fqdn]
	switch {
	case existing == nil:
		r := &doctl.DNSRecord{ID: len(f.records) + 100, Type: "A", Data: ip}
		f.records[fqdn] = r
		return r, doctl.Created, nil
	case existing.Data != ip:
		existing.Data = ip
		return existing, doctl.Updated, nil
	default:
		return existing, doctl.Unchanged, nil
	}
}

func (f *fakeCloud) DeleteRecord(_ context.Context, r *doctl.DNSRecord) error {
	f.record("delete-record %d", r.ID)
	return nil
}

type fakeDocker struct {
	*journal
	containers map[string]bool
	volumes    map[string]*docker.Volume
	// runOnce answers RunOnce calls whose joined args contain the key.
	runOnce map[string]string
	specs   []docker.ContainerSpec
	runArgs [][]string
	redacts [][]int
}

func inspected(name string) *docker.Container {
	return &docker.Container{ContainerJSONBase: &container.ContainerJSONBase{ID: name + "-id", Name: "/" + name}}
}

func (f *fakeDocker) ReconcileContainer(_ context.Context, spec docker.ContainerSpec) (*docker.Container, error) {
	f.record("reconcile-container %s", spec.Name)
	f.specs = append(f.specs, spec)
	if f.containers == nil {
		f.containers = map[string]bool{}
	}
	f.containers[spec.Name] = true
	return inspected(spec.Name), nil
}

func (f *fakeDocker) EnsureContainer(_ context.Context, spec docker.ContainerSpec) (*docker.Container, bool, error) {
	f.record("ensure-container %s", spec.Name)
	f.specs = append(f.specs, spec)
	if f.containers[spec.Name] {
		return inspected(spec.Name), false, nil
	}
	if f.containers == nil {
		f.containers = map[string]bool{}
	}
	f.containers[spec.Name] = true
	return inspected(spec.Name), true, nil
}

func (f *fakeDocker) ReconcileVolume(_ context.Context, role string) (*docker.Volume, error) {
	f.record("reconcile-volume %s", role)
	if f.volumes == nil {
		f.volumes = map[string]*docker.Volume{}
	}
	v, ok := f.volumes[role]
	if !ok {
		v = &docker.Volume{Name: role + "-1", Mountpoint: "/var/lib/docker/volumes/" + role + "-1/_data"}
		f.volumes[role] = v
	}
	return v, nil
}

func (f *fakeDocker) RunOnce(_ context.Context, args []string, redact ...int) (string, error) {
	line := strings.Join(args, " ")
	f.record("run-once %s", line)
	f.runArgs = append(f.runArgs, args)
	f.redacts = append(f.redacts, redact)
	for k, v := range f.runOnce {
		if strings.Contains(line, k) {
			return v, nil
		}
	}
	return "", nil
}

type fakeHost struct {
	*journal
	files     map[string][]string
	playbooks []ansible.Playbook
}

func (f *fakeHost) RunPlaybook(_ context.Context, pb ansible.Playbook) (ansible.Result, error) {
	f.record("playbook %s", pb.Name)
	f.playbooks = append(f.playbooks, pb)
	return ansible.Result{}, nil
}

func (f *fakeHost) CreateDirectory(_ context.Context, path string) error {
	f.record("mkdir %s", path)
	return nil
}

func (f *fakeHost) UploadFiles(_ context.Context, srcs []string, dest string) error {
	f.record("upload %s -> %s", strings.Join(srcs, ","), dest)
	return nil
}

func (f *fakeHost) SetFileMode(_ context.Context, path, mode string) error {
	f.record("chmod %s %s", mode, path)
	return nil
}

func (f *fakeHost) Chown(_ context.Context, path, owner string) error {
	f.record("chown %s %s", owner, path)
	return nil
}

func (f *fakeHost) ListFiles(_ context.Context, dir, pattern string) ([]string, error) {
	f.record("find %s %s", dir, pattern)
	return f.files[dir+"|"+pattern], nil
}

type fakeDefinitions struct {
	containers map[string][]definition.ContainerDefinition
	order      []string
	volumes    []definition.VolumeDefinition
}

func (f *fakeDefinitions) Containers(name string) ([]definition.ContainerDefinition, error) {
	defs, ok := f.containers[name]
	if !ok {
		return nil, fmt.Errorf("%w: containers/%s", definition.ErrNotFound, name)
	}
	return defs, nil
}

func (f *fakeDefinitions) ListContainerDefinitions() ([]definition.ContainerDefinition, error) {
	var all []definition.ContainerDefinition
	for _, name := range f.order {
		all = append(all, f.containers[name]...)
	}
	return all, nil
}

func (f *fakeDefinitions) Volumes() ([]definition.VolumeDefinition, error) {
	return f.volumes, nil
}

type fakeSecrets struct {
	values map[string]string
}

func (f *fakeSecrets) Secret(name string) (string, error) {
	v, ok := f.values[name]
	if !ok {
		return "", fmt.Errorf("could not find %s in environment_secrets.json", name)
	}
	return v, nil
}

func (f *fakeSecrets) Resolve(v definition.EnvValue) (string, error) {
	switch {
	case v.SecretName != "":
		return f.Secret(v.SecretName)
	case v.DatabaseName != "":
		return f.Secret(v.DatabaseName + "." + v.DatabaseValue)
	default:
		return v.Literal, nil
	}
}

func (f *fakeSecrets) AWSCredentials() (definition.AWSCredentials, error) {
	return definition.AWSCredentials{AccessKey: "AKIA", AccessSecret: "shh"}, nil
}

func (f *fakeSecrets) Path(name string) string {
	return "/secrets/staging/" + name
}

type fixture struct {
	j       *journal
	cloud   *fakeCloud
	docker  *fakeDocker
	host    *fakeHost
	defs    *fakeDefinitions
	secrets *fakeSecrets
	answers []bool
	asked   []string
	r       *Reconciler
}

func newFixture(env *definition.Environment) *fixture {
	j := &journal{}
	f := &fixture{
		j:      j,
		cloud:  &fakeCloud{journal: j},
		docker: &fakeDocker{journal: j},
		host:   &fakeHost{journal: j, files: map[string][]string{}},
		defs:   &fakeDefinitions{containers: map[string][]definition.ContainerDefinition{}},
		secrets: &fakeSecrets{values: map[string]string{
			"database_root_password": "rootpw",
			"sftp_users":             "site:pw:::data",
		}},
	}
	confirm := func(q string) (bool, error) {
		f.asked = append(f.asked, q)
		if len(f.answers) == 0 {
			return false, nil
		}
		a := f.answers[0]
		f.answers = f.answers[1:]
		return a, nil
	}
	f.r = New(env, f.cloud, f.docker, f.host, f.secrets, f.defs, confirm, Options{})
	f.r.Out = &strings.Builder{}
	f.r.Sleep = func(_ context.Context, d time.Duration) error {
		j.record("sleep %s", d)
		return nil
	}
	return f
}
