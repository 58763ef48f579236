package definition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/willia4/electriclemur-v3/pkg/log"
)

const (
	environmentSecretsFile  = "environment_secrets.json"
	databaseCredentialsFile = "database_credentials.json"
	awsKeyFile              = "backup_access_key.txt"
	awsSecretFile           = "backup_access_secret.txt"
)

// AWSCredentials authenticate the backup bucket sync.
type AWSCredentials struct {
	AccessKey    string
	AccessSecret string
}

type databaseCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SecretStore reads an environment's secrets. Files are read once.
type SecretStore struct {
	dir    string
	awsDir string

	mu       sync.Mutex
	env      map[string]string
	database map[string]databaseCredential
}

// Secrets returns the secret store for env.
func (s *Store) Secrets(env *Environment) *SecretStore {
	return &SecretStore{
		dir:    env.SecretPath,
		awsDir: filepath.Join(s.SecretsDir, "aws"),
	}
}

// Path returns the absolute path of a file in the environment's secrets directory.
func (s *SecretStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// AWSKeyPath and AWSSecretPath locate the backup credentials.
func (s *SecretStore) AWSKeyPath() string    { return filepath.Join(s.awsDir, awsKeyFile) }
func (s *SecretStore) AWSSecretPath() string { return filepath.Join(s.awsDir, awsSecretFile) }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Secret reads name from environment_secrets.json.
func (s *SecretStore) Secret(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(environmentSecretsFile)
	if s.env == nil {
		log.Debug("[Secrets] reading environment secrets", "path", path)
		var m map[string]string
		if err := readJSON(path, &m); err != nil {
			return "", err
		}
		if m == nil {
			m = map[string]string{}
		}
		s.env = m
	}

	v, ok := s.env[name]
	if !ok {
		return "", fmt.Errorf("could not find %s in %s", name, path)
	}
	return v, nil
}

// DatabaseCredential returns the username or password recorded for db.
func (s *SecretStore) DatabaseCredential(db, field string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(databaseCredentialsFile)
	if s.database == nil {
		log.Debug("[Secrets] reading database credentials", "path", path)
		var m map[string]databaseCredential
		if err := readJSON(path, &m); err != nil {
			return "", err
		}
		if m == nil {
			m = map[string]databaseCredential{}
		}
		s.database = m
	}

	cred, ok := s.database[db]
	if !ok {
		return "", fmt.Errorf("could not find %s in %s", db, path)
	}
	switch field {
	case DatabaseUsername:
		return cred.Username, nil
	case DatabasePassword:
		return cred.Password, nil
	default:
		return "", fmt.Errorf("unknown database credential field %q", field)
	}
}

// Resolve turns an env value into its final string.
func (s *SecretStore) Resolve(v EnvValue) (string, error) {
	switch {
	case v.SecretName != "":
		return s.Secret(v.SecretName)
	case v.DatabaseName != "":
		return s.DatabaseCredential(v.DatabaseName, v.DatabaseValue)
	default:
		return v.Literal, nil
	}
}

// AWSCredentials reads the backup access key pair shared by all environments.
func (s *SecretStore) AWSCredentials() (AWSCredentials, error) {
	key, err := os.ReadFile(s.AWSKeyPath())
	if err != nil {
		return AWSCredentials{}, fmt.Errorf("failed to read aws access key: %w", err)
	}
	secret, err := os.ReadFile(s.AWSSecretPath())
	if err != nil {
		return AWSCredentials{}, fmt.Errorf("failed to read aws access secret: %w", err)
	}
	return AWSCredentials{
		AccessKey:    strings.TrimSpace(string(key)),
		AccessSecret: strings.TrimSpace(string(secret)),
	}, nil
}
