package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/willia4/electriclemur-v3/internal/ui"
	"github.com/willia4/electriclemur-v3/pkg/doctl"
	"github.com/willia4/electriclemur-v3/pkg/log"
)

// CreateOptions skip individual stages of CreateEnvironment.
type CreateOptions struct {
	SkipDNS      bool
	SkipInit     bool
	SkipVolumes  bool
	SkipDatabase bool
}

// DNSResult is the outcome of reconciling one domain name.
type DNSResult struct {
	FQDN   string
	Record *doctl.DNSRecord
	Action doctl.Action
}

// EnsureDroplet finds the environment's droplet or creates it. An existing
// droplet must be confirmed before the run continues.
func (r *Reconciler) EnsureDroplet(ctx context.Context) (*doctl.Droplet, bool, error) {
	name := r.Env.DropletName
	log.Info("[Droplet] checking if droplet exists", "droplet", name)

	d, err := r.Cloud.FindDroplet(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("find droplet %s: %w", name, err)
	}
	if d != nil {
		if err := r.confirm(fmt.Sprintf("Droplet %s already exists and will not be created. Continue anyway?", name)); err != nil {
			return nil, false, err
		}
		return d, false, nil
	}

	log.Info("[Droplet] droplet will be created", "droplet", name)
	d, err = r.Cloud.CreateDroplet(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("create droplet %s: %w", name, err)
	}
	return d, true, nil
}

// ReconcileDNS points every domain name of the environment at ip, in order.
func (r *Reconciler) ReconcileDNS(ctx context.Context, ip string) ([]DNSResult, error) {
	results := make([]DNSResult, 0, len(r.Env.DomainNames))
	for _, fqdn := range r.Env.DomainNames {
		record, action, err := r.Cloud.ReconcileARecord(ctx, fqdn, ip)
		if err != nil {
			return results, fmt.Errorf("reconcile dns %s: %w", fqdn, err)
		}
		log.Info("[DNS] record reconciled", "fqdn", fqdn, "ip", ip, "action", action.String())
		fmt.Fprintln(r.out(), ui.SuccessMsg("%s %s -> %s", action, fqdn, ip))
		results = append(results, DNSResult{FQDN: fqdn, Record: record, Action: action})
	}
	return results, nil
}

func publicIP(d *doctl.Droplet) (string, error) {
	ip, ok := doctl.PublicIPv4(d)
	if !ok {
		return "", fmt.Errorf("droplet %s has no public address", d.Name)
	}
	return ip, nil
}

// CreateEnvironment brings up the droplet, DNS, docker TLS, volume content and
// databases, in that order.
func (r *Reconciler) CreateEnvironment(ctx context.Context, opts CreateOptions) error {
	d, _, err := r.EnsureDroplet(ctx)
	if err != nil {
		return err
	}
	ip, err := publicIP(d)
	if err != nil {
		return err
	}

	fmt.Fprint(r.out(), ui.KeyValues("",
		ui.KV("Name", d.Name),
		ui.KV("Id", strconv.Itoa(d.ID)),
		ui.KV("IP", ip),
	))

	if !opts.SkipDNS {
		if _, err := r.ReconcileDNS(ctx, ip); err != nil {
			return err
		}
	}
	if !opts.SkipInit {
		if err := r.InitDocker(ctx, ip); err != nil {
			return err
		}
	}
	if !opts.SkipVolumes {
		if err := r.UploadVolumes(ctx); err != nil {
			return err
		}
		if err := r.LockKeyMaterial(ctx); err != nil {
			return err
		}
	}
	if !opts.SkipDatabase {
		if err := r.RestoreDatabases(ctx); err != nil {
			return err
		}
	}
	return nil
}

type deleteAction struct {
	description string
	run         func(ctx context.Context) error
}

// DeleteEnvironment removes the droplet and every DNS record of the
// environment after confirmation.
func (r *Reconciler) DeleteEnvironment(ctx context.Context) error {
	var actions []deleteAction

	d, err := r.Cloud.FindDroplet(ctx, r.Env.DropletName)
	if err != nil {
		return fmt.Errorf("find droplet %s: %w", r.Env.DropletName, err)
	}
	if d != nil {
		actions = append(actions, deleteAction{
			description: fmt.Sprintf("delete droplet %s (%d)", d.Name, d.ID),
			run:         func(ctx context.Context) error { return r.Cloud.DeleteDroplet(ctx, d) },
		})
	}

	seen := make(map[int]bool)
	for _, fqdn := range r.Env.DomainNames {
		record, err := r.Cloud.FindRecord(ctx, fqdn)
		if err != nil {
			return fmt.Errorf("find dns record %s: %w", fqdn, err)
		}
		if record == nil || seen[record.ID] {
			continue
		}
		seen[record.ID] = true
		actions = append(actions, deleteAction{
			description: fmt.Sprintf("delete dns record %s (%d)", fqdn, record.ID),
			run:         func(ctx context.Context) error { return r.Cloud.DeleteRecord(ctx, record) },
		})
	}

	if len(actions) == 0 {
		return ErrNothingToDelete
	}

	descriptions := make([]string, 0, len(actions))
	for _, a := range actions {
		descriptions = append(descriptions, a.description)
	}
	ui.Plan(r.out(), "Pending actions for "+r.Env.Name, descriptions)

	if err := r.confirm("Perform above actions?"); err != nil {
		return err
	}

	for _, a := range actions {
		log.Info("[Droplet] running delete action", "action", a.description)
		if err := a.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", a.description, err)
		}
	}
	return nil
}

// UpdateDNS re-points every domain at the droplet's current address.
func (r *Reconciler) UpdateDNS(ctx context.Context) ([]DNSResult, error) {
	d, err := r.Cloud.FindDroplet(ctx, r.Env.DropletName)
	if err != nil {
		return nil, fmt.Errorf("find droplet %s: %w", r.Env.DropletName, err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrDropletNotFound, r.Env.DropletName)
	}
	ip, err := publicIP(d)
	if err != nil {
		return nil, err
	}
	return r.ReconcileDNS(ctx, ip)
}
