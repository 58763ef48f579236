package doctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	log "github.com/willia4/electriclemur-v3/pkg/log"
	"github.com/willia4/electriclemur-v3/pkg/runner"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultBinary    = "doctl"
	DefaultRecordTTL = 30

	apexLabel   = "@"
	recordTypeA = "A"
)

// ErrApexRecord is returned when a missing zone-apex A record would have to be
// created. Apex records are managed outside this tool.
var ErrApexRecord = errors.New("cannot create apex A record; create it in the DigitalOcean portal")

// Config holds Cloud client configuration
type Config struct {
	// Binary is the doctl executable.
	Binary string
	// Context selects a doctl auth context. Empty uses doctl's default.
	Context string
	// AccessToken overrides doctl's stored token when set.
	AccessToken string
	// Provisioning is applied to every droplet create.
	Provisioning Provisioning
	// RecordTTL is the TTL written on created or updated A records.
	RecordTTL int
	// Verbose echoes doctl output to the console.
	Verbose bool
}

// Client talks to DigitalOcean through the doctl CLI. DNS record listings are
// cached per zone for the lifetime of the client.
type Client struct {
	exec   runner.Executor
	config Config

	mu      sync.Mutex
	records map[string][]DNSRecord
}

// NewClient creates a new Cloud client
func NewClient(exec runner.Executor, config Config) *Client {
	if config.Binary == "" {
		config.Binary = DefaultBinary
	}
	if config.RecordTTL <= 0 {
		config.RecordTTL = DefaultRecordTTL
	}
	return &Client{
		exec:    exec,
		config:  config,
		records: make(map[string][]DNSRecord),
	}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+4)
	var redact []int
	if c.config.Context != "" {
		full = append(full, "--context", c.config.Context)
	}
	if c.config.AccessToken != "" {
		full = append(full, "--access-token", c.config.AccessToken)
		redact = append(redact, len(full)-1)
	}
	full = append(full, args...)

	res, err := c.exec.Execute(ctx, runner.Command{
		Program: c.config.Binary,
		Args:    full,
		Echo:    c.config.Verbose,
		Redact:  redact,
	})
	if err != nil {
		return "", err
	}
	return res.Output(), nil
}

func decode[T any](output, op string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(output), &v); err != nil {
		return v, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return v, nil
}

// ListDroplets returns every droplet in the account.
func (c *Client) ListDroplets(ctx context.Context) ([]Droplet, error) {
	out, err := c.run(ctx, "compute", "droplet", "list", "-o", "json")
	if err != nil {
		return nil, fmt.Errorf("list droplets: %w", err)
	}
	return decode[[]Droplet](out, "droplet list")
}

// FindDroplet returns the first droplet with the exact name, or nil when none
// exists.
func (c *Client) FindDroplet(ctx context.Context, name string) (*Droplet, error) {
	droplets, err := c.ListDroplets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range droplets {
		if droplets[i].Name == name {
			return &droplets[i], nil
		}
	}
	return nil, nil
}

// CreateDroplet provisions a droplet and waits until it is active.
func (c *Client) CreateDroplet(ctx context.Context, name string) (*Droplet, error) {
	p := c.config.Provisioning
	args := []string{"compute", "droplet", "create", name}
	if p.PrivateNetworking {
		args = append(args, "--enable-private-networking")
	}
	args = append(args,
		"--image", p.Image,
		"--size", p.Size,
		"--region", p.Region,
	)
	if len(p.SSHKeys) > 0 {
		args = append(args, "--ssh-keys", strings.Join(p.SSHKeys, ","))
	}
	if len(p.Tags) > 0 {
		args = append(args, "--tag-names", strings.Join(p.Tags, ","))
	}
	args = append(args, "--wait", "-o", "json")

	log.Info("[Droplet] creating droplet", "droplet", name, "image", p.Image, "size", p.Size, "region", p.Region)
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("create droplet %s: %w", name, err)
	}

	droplets, err := decode[[]Droplet](out, "droplet create")
	if err != nil {
		return nil, err
	}
	if len(droplets) == 0 {
		return nil, fmt.Errorf("create droplet %s: doctl returned no droplet", name)
	}
	return &droplets[0], nil
}

// DeleteDroplet force-deletes a droplet by id.
func (c *Client) DeleteDroplet(ctx context.Context, d *Droplet) error {
	log.Info("[Droplet] deleting droplet", "droplet", d.Name, "id", d.ID)
	if _, err := c.run(ctx, "compute", "droplet", "delete", strconv.Itoa(d.ID), "--force"); err != nil {
		return fmt.Errorf("delete droplet %s (%d): %w", d.Name, d.ID, err)
	}
	return nil
}

// PublicIPv4 returns the address of the first network tagged "public".
func PublicIPv4(d *Droplet) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, n := range d.Networks.V4 {
		if n.Type == "public" {
			return n.IPAddress, true
		}
	}
	return "", false
}

// ParseDomain splits fqdn into its zone and subdomain using the public
// suffix list.
func ParseDomain(fqdn string) (ParsedDomain, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(fqdn)), ".")
	if name == "" {
		return ParsedDomain{}, fmt.Errorf("parse domain: empty name")
	}

	zone, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return ParsedDomain{}, fmt.Errorf("parse domain %s: %w", fqdn, err)
	}
	tld, _ := publicsuffix.PublicSuffix(name)

	p := ParsedDomain{
		Zone:   zone,
		TLD:    tld,
		Domain: strings.TrimSuffix(zone, "."+tld),
	}
	if name != zone {
		p.Subdomain = strings.TrimSuffix(name, "."+zone)
	}
	return p, nil
}

// ListRecords returns the records of a zone. The first call per zone queries
// doctl; later calls are served from the cache until the zone is invalidated.
func (c *Client) ListRecords(ctx context.Context, zone string) ([]DNSRecord, error) {
	c.mu.Lock()
	cached, ok := c.records[zone]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	out, err := c.run(ctx, "compute", "domain", "records", "list", zone, "-o", "json")
	if err != nil {
		return nil, fmt.Errorf("list records in %s: %w", zone, err)
	}
	records, err := decode[[]DNSRecord](out, "records list")
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Zone = zone
	}

	c.mu.Lock()
	c.records[zone] = records
	c.mu.Unlock()

	log.Debug("[DNS] cached zone records", "zone", zone, "count", len(records))
	return records, nil
}

// InvalidateZone drops the cached record listing for zone.
func (c *Client) InvalidateZone(zone string) {
	c.mu.Lock()
	delete(c.records, zone)
	c.mu.Unlock()
}

// InvalidateAll drops every cached record listing.
func (c *Client) InvalidateAll() {
	c.mu.Lock()
	c.records = make(map[string][]DNSRecord)
	c.mu.Unlock()
}

// FindRecord returns the A record for fqdn, or nil when none exists.
func (c *Client) FindRecord(ctx context.Context, fqdn string) (*DNSRecord, error) {
	parsed, err := ParseDomain(fqdn)
	if err != nil {
		return nil, err
	}
	records, err := c.ListRecords(ctx, parsed.Zone)
	if err != nil {
		return nil, err
	}

	label := parsed.RecordName()
	for i := range records {
		if records[i].Name == label && records[i].Type == recordTypeA {
			r := records[i]
			return &r, nil
		}
	}
	return nil, nil
}

// ReconcileARecord makes fqdn resolve to ip. A missing record is created, a
// stale one is updated in place and a correct one is returned untouched.
func (c *Client) ReconcileARecord(ctx context.Context, fqdn, ip string) (*DNSRecord, Action, error) {
	parsed, err := ParseDomain(fqdn)
	if err != nil {
		return nil, Unchanged, err
	}

	existing, err := c.FindRecord(ctx, fqdn)
	if err != nil {
		return nil, Unchanged, err
	}

	switch {
	case existing == nil:
		r, err := c.createARecord(ctx, parsed, ip)
		return r, Created, err
	case existing.Data != ip:
		r, err := c.updateARecord(ctx, parsed, existing.ID, ip)
		return r, Updated, err
	default:
		log.Debug("[DNS] record already correct", "fqdn", fqdn, "ip", ip)
		return existing, Unchanged, nil
	}
}

func (c *Client) createARecord(ctx context.Context, parsed ParsedDomain, ip string) (*DNSRecord, error) {
	if parsed.Subdomain == "" {
		return nil, fmt.Errorf("zone %s: %w", parsed.Zone, ErrApexRecord)
	}

	log.Info("[DNS] creating A record", "zone", parsed.Zone, "name", parsed.Subdomain, "ip", ip)
	out, err := c.run(ctx, "compute", "domain", "records", "create", parsed.Zone,
		"--record-name", parsed.Subdomain,
		"--record-type", recordTypeA,
		"--record-data", ip,
		"--record-ttl", strconv.Itoa(c.config.RecordTTL),
		"-o", "json",
	)
	c.InvalidateZone(parsed.Zone)
	if err != nil {
		return nil, fmt.Errorf("create A record %s in %s: %w", parsed.Subdomain, parsed.Zone, err)
	}
	return firstRecord(out, parsed.Zone, "records create")
}

func (c *Client) updateARecord(ctx context.Context, parsed ParsedDomain, id int, ip string) (*DNSRecord, error) {
	log.Info("[DNS] updating A record", "zone", parsed.Zone, "name", parsed.RecordName(), "id", id, "ip", ip)
	out, err := c.run(ctx, "compute", "domain", "records", "update", parsed.Zone,
		"--record-id", strconv.Itoa(id),
		"--record-type", recordTypeA,
		"--record-data", ip,
		"--record-ttl", strconv.Itoa(c.config.RecordTTL),
		"-o", "json",
	)
	c.InvalidateZone(parsed.Zone)
	if err != nil {
		return nil, fmt.Errorf("update A record %d in %s: %w", id, parsed.Zone, err)
	}
	return firstRecord(out, parsed.Zone, "records update")
}

func firstRecord(out, zone, op string) (*DNSRecord, error) {
	records, err := decode[[]DNSRecord](out, op)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s in %s: doctl returned no record", op, zone)
	}
	r := records[0]
	r.Zone = zone
	return &r, nil
}

// DeleteRecord force-deletes a record by zone and id.
func (c *Client) DeleteRecord(ctx context.Context, r *DNSRecord) error {
	log.Info("[DNS] deleting record", "zone", r.Zone, "name", r.Name, "id", r.ID)
	_, err := c.run(ctx, "compute", "domain", "records", "delete", r.Zone, strconv.Itoa(r.ID), "--force")
	c.InvalidateZone(r.Zone)
	if err != nil {
		return fmt.Errorf("delete record %s (%d) in %s: %w", r.Name, r.ID, r.Zone, err)
	}
	return nil
}
