package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Database credential fields an env value may reference.
const (
	DatabaseUsername = "username"
	DatabasePassword = "password"
)

type ContainerVolume struct {
	Type       string `json:"type"`
	MountPoint string `json:"mountPoint"`
}

type ContainerPort struct {
	ContainerPort int `json:"containerPort"`
	HostPort      int `json:"hostPort"`
}

// SFTP asks for an sftp sidecar serving one of the container's volumes.
type SFTP struct {
	Port   int    `json:"port"`
	Volume string `json:"volume"`
}

// EnvValue is a literal string, a secret reference or a database credential
// reference.
type EnvValue struct {
	Literal       string
	SecretName    string
	DatabaseName  string
	DatabaseValue string
}

// IsSecret reports whether the value is resolved from the secret store.
func (v EnvValue) IsSecret() bool {
	return v.SecretName != "" || v.DatabaseName != ""
}

func (v *EnvValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty env value")
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &v.Literal)
	case '{':
		var ref struct {
			SecretName    string `json:"secretName"`
			DatabaseName  string `json:"databaseName"`
			DatabaseValue string `json:"databaseValue"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		switch {
		case ref.SecretName != "":
			v.SecretName = ref.SecretName
		case ref.DatabaseName != "":
			if ref.DatabaseValue != DatabaseUsername && ref.DatabaseValue != DatabasePassword {
				return fmt.Errorf("databaseValue must be %q or %q, got %q", DatabaseUsername, DatabasePassword, ref.DatabaseValue)
			}
			v.DatabaseName = ref.DatabaseName
			v.DatabaseValue = ref.DatabaseValue
		default:
			return fmt.Errorf("env value object needs secretName or databaseName")
		}
		return nil
	case '[':
		return fmt.Errorf("env value cannot be an array")
	default:
		// Numbers and booleans are passed through as written.
		v.Literal = string(data)
		return nil
	}
}

func (v EnvValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.SecretName != "":
		return json.Marshal(map[string]string{"secretName": v.SecretName})
	case v.DatabaseName != "":
		return json.Marshal(map[string]string{"databaseName": v.DatabaseName, "databaseValue": v.DatabaseValue})
	default:
		return json.Marshal(v.Literal)
	}
}

// ContainerDefinition describes one container of a site.
type ContainerDefinition struct {
	Name      string              `json:"name"`
	Image     string              `json:"image"`
	HostRoute string              `json:"hostRoute,omitempty"`
	PathRoute string              `json:"pathRoute,omitempty"`
	Volumes   []ContainerVolume   `json:"volumes,omitempty"`
	Ports     []ContainerPort     `json:"ports,omitempty"`
	Links     []string            `json:"links,omitempty"`
	Env       map[string]EnvValue `json:"env,omitempty"`
	SFTP      *SFTP               `json:"sftp,omitempty"`
	Command   []string            `json:"command,omitempty"`
}

// EnvNames returns the env keys in sorted order.
func (d *ContainerDefinition) EnvNames() []string {
	names := make([]string, 0, len(d.Env))
	for k := range d.Env {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (d *ContainerDefinition) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("container definition requires a name")
	}
	if strings.TrimSpace(d.Image) == "" {
		return fmt.Errorf("container %s: image is required", d.Name)
	}
	if d.PathRoute != "" && d.HostRoute == "" {
		return fmt.Errorf("container %s: pathRoute requires hostRoute", d.Name)
	}
	for _, v := range d.Volumes {
		if v.Type == "" || v.MountPoint == "" {
			return fmt.Errorf("container %s: volumes need type and mountPoint", d.Name)
		}
	}
	if d.SFTP != nil && (d.SFTP.Port <= 0 || d.SFTP.Volume == "") {
		return fmt.Errorf("container %s: sftp needs port and volume", d.Name)
	}
	return nil
}

// definitionList decodes either a single definition object or an array.
type definitionList []ContainerDefinition

func (l *definitionList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []ContainerDefinition
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one ContainerDefinition
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = definitionList{one}
	return nil
}

// Containers loads containers/<name>.json (or .yaml).
func (s *Store) Containers(name string) ([]ContainerDefinition, error) {
	path, err := s.find("containers", name)
	if err != nil {
		return nil, err
	}

	var defs definitionList
	if err := decodeFile(path, &defs); err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%s: no container definitions", path)
	}
	for i := range defs {
		if err := defs[i].validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return defs, nil
}

// ContainerNames lists the definition files under containers/ in lexical order.
func (s *Store) ContainerNames() ([]string, error) {
	return s.listNames("containers")
}

// ListContainerDefinitions loads every definition file under containers/.
func (s *Store) ListContainerDefinitions() ([]ContainerDefinition, error) {
	names, err := s.ContainerNames()
	if err != nil {
		return nil, err
	}
	var all []ContainerDefinition
	for _, name := range names {
		defs, err := s.Containers(name)
		if err != nil {
			return nil, err
		}
		all = append(all, defs...)
	}
	return all, nil
}
