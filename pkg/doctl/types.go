package doctl

import "time"

// Droplet is the subset of `doctl compute droplet` JSON output the toolkit
// relies on.
type Droplet struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Memory   int    `json:"memory"`
	VCPUs    int    `json:"vcpus"`
	Disk     int    `json:"disk"`
	Status   string `json:"status"`
	SizeSlug string `json:"size_slug"`
	Region   struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	} `json:"region"`
	Image struct {
		ID           int    `json:"id"`
		Name         string `json:"name"`
		Distribution string `json:"distribution"`
	} `json:"image"`
	Networks struct {
		V4 []Network `json:"v4"`
	} `json:"networks"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// Network is one droplet network interface.
type Network struct {
	IPAddress string `json:"ip_address"`
	Netmask   string `json:"netmask"`
	Gateway   string `json:"gateway"`
	Type      string `json:"type"`
}

// DNSRecord is one record in a DigitalOcean-managed zone. Zone is not part of
// the doctl output and is filled in by the client.
type DNSRecord struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Data     string `json:"data"`
	Priority *int   `json:"priority"`
	TTL      int    `json:"ttl"`
	Zone     string `json:"zone"`
}

// ParsedDomain is a fully-qualified name split at its registrable domain.
type ParsedDomain struct {
	Subdomain string
	Domain    string
	TLD       string
	Zone      string
}

// RecordName returns the record label for the name, "@" for the zone apex.
func (p ParsedDomain) RecordName() string {
	if p.Subdomain == "" {
		return apexLabel
	}
	return p.Subdomain
}

// Provisioning holds the fixed parameters used when creating droplets.
type Provisioning struct {
	Image             string   `toml:"image"`
	Size              string   `toml:"size"`
	Region            string   `toml:"region"`
	SSHKeys           []string `toml:"ssh_keys"`
	PrivateNetworking bool     `toml:"private_networking"`
	Tags              []string `toml:"tags"`
}

// Action describes what a reconcile call did.
type Action int

const (
	Unchanged Action = iota
	Created
	Updated
)

func (a Action) String() string {
	switch a {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}
