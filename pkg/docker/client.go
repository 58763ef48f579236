package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/willia4/electriclemur-v3/pkg/log"
	"github.com/willia4/electriclemur-v3/pkg/runner"
)

const (
	DefaultBinary  = "docker"
	DefaultTLSPort = 2376
)

// Connection describes how to reach a remote Docker daemon over TLS.
type Connection struct {
	// Host is the daemon's DNS name.
	Host string
	// Port is the daemon's TLS port
	Port int
	// CertPath holds ca.pem, cert.pem and key.pem for the client.
	CertPath string
	// Binary is the docker CLI executable.
	Binary string
	// Verbose echoes docker output to the console.
	Verbose bool
}

func (c Connection) withDefaults() Connection {
	if c.Port == 0 {
		c.Port = DefaultTLSPort
	}
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	return c
}

// URL returns the daemon address in DOCKER_HOST form.
func (c Connection) URL() string {
	c = c.withDefaults()
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// Args returns the global CLI flags selecting the daemon and its TLS material.
func (c Connection) Args() []string {
	return []string{
		"--host", c.URL(),
		"--tlsverify",
		"--tlscacert", filepath.Join(c.CertPath, "ca.pem"),
		"--tlscert", filepath.Join(c.CertPath, "cert.pem"),
		"--tlskey", filepath.Join(c.CertPath, "key.pem"),
	}
}

// EnvPair is a single environment variable assignment.
type EnvPair struct {
	Key   string
	Value string
}

// Env returns the variables that point a plain docker CLI at the daemon.
func (c Connection) Env() []EnvPair {
	return []EnvPair{
		{Key: "DOCKER_TLS_VERIFY", Value: "1"},
		{Key: "DOCKER_HOST", Value: c.URL()},
		{Key: "DOCKER_CERT_PATH", Value: c.CertPath},
	}
}

// Client runs docker CLI commands against one remote daemon.
type Client struct {
	exec runner.Executor
	conn Connection
	now  func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithClock replaces the clock used to name new volumes.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Docker client
func NewClient(exec runner.Executor, conn Connection, opts ...Option) *Client {
	c := &Client{
		exec: exec,
		conn: conn.withDefaults(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connection returns the connection the client was built with.
func (c *Client) Connection() Connection {
	return c.conn
}

// run executes a docker subcommand. redact holds indices into args whose
// values must not be logged.
func (c *Client) run(ctx context.Context, args []string, redact ...int) (runner.Result, error) {
	prefix := c.conn.Args()
	full := append(prefix, args...)

	shifted := make([]int, 0, len(redact))
	for _, i := range redact {
		shifted = append(shifted, i+len(prefix))
	}

	res, err := c.exec.Execute(ctx, runner.Command{
		Program: c.conn.Binary,
		Args:    full,
		Echo:    c.conn.Verbose,
		Redact:  shifted,
	})
	if err != nil {
		log.Debug("[Docker] command failed", "host", c.conn.Host, "command", args[0], "error", err)
	}
	return res, err
}

// RunOnce starts a throwaway container with `run --rm` and returns its output.
func (c *Client) RunOnce(ctx context.Context, args []string, redact ...int) (string, error) {
	full := append([]string{"run", "--rm"}, args...)
	shifted := make([]int, 0, len(redact))
	for _, i := range redact {
		shifted = append(shifted, i+2)
	}

	res, err := c.run(ctx, full, shifted...)
	if err != nil {
		return "", fmt.Errorf("run one-off container on %s: %w", c.conn.Host, err)
	}
	return res.Output(), nil
}

// lastLine returns the final non-empty line of s.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func millis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
