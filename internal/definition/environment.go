package definition

import (
	"fmt"
	"path/filepath"
	"strings"
)

// URLAlias rewrites a production host name for an environment.
type URLAlias struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Environment is a named deployment target: one droplet and the DNS names
// that point at it.
type Environment struct {
	Name        string     `json:"environmentName"`
	DropletName string     `json:"dropletName"`
	DomainNames []string   `json:"domainNames"`
	URLMap      []URLAlias `json:"urlMap"`

	// Derived on load.
	FQDN           string `json:"-"`
	SecretPath     string `json:"-"`
	DockerCertRoot string `json:"-"`
	DockerCertPath string `json:"-"`
}

// Validate checks the fields every operation relies on.
func (e *Environment) Validate() error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return fmt.Errorf("environmentName is required")
	case strings.TrimSpace(e.DropletName) == "":
		return fmt.Errorf("environment %s: dropletName is required", e.Name)
	case len(e.DomainNames) == 0 || strings.TrimSpace(e.DomainNames[0]) == "":
		return fmt.Errorf("environment %s: at least one domain name is required", e.Name)
	}
	return nil
}

// MapURL returns the environment's alias for host, or host unchanged.
func (e *Environment) MapURL(host string) string {
	for _, a := range e.URLMap {
		if strings.EqualFold(a.Key, host) {
			return a.Value
		}
	}
	return host
}

// Environment loads environments/<name>.json (or .yaml) and derives its
// secret and certificate paths.
func (s *Store) Environment(name string) (*Environment, error) {
	path, err := s.find("environments", name)
	if err != nil {
		return nil, err
	}

	var env Environment
	if err := decodeFile(path, &env); err != nil {
		return nil, err
	}
	if env.Name == "" {
		env.Name = name
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	env.FQDN = env.DomainNames[0]
	env.SecretPath = filepath.Join(s.SecretsDir, env.Name)
	env.DockerCertRoot = filepath.Join(env.SecretPath, "docker_certs", env.FQDN)
	env.DockerCertPath = filepath.Join(env.DockerCertRoot, "client")
	return &env, nil
}
