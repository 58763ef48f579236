package certs

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateDockerTLS(t *testing.T) {
	dir := t.TempDir()

	b, err := GenerateDockerTLS(dir, Options{
		Hosts:    []string{"web.example.com"},
		IPs:      []string{"203.0.113.7"},
		Validity: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("GenerateDockerTLS() error = %v", err)
	}
	if !b.Generated {
		t.Errorf("Generated = false on first run")
	}

	for _, name := range []string{"ca.pem", "ca-key.pem", "server-cert.pem", "server-key.pem"} {
		if !CertificateExists(filepath.Join(b.ServerDir, name)) {
			t.Errorf("missing server/%s", name)
		}
	}
	for _, name := range []string{"ca.pem", "cert.pem", "key.pem"} {
		if !CertificateExists(filepath.Join(b.ClientDir, name)) {
			t.Errorf("missing client/%s", name)
		}
	}

	info, err := os.Stat(filepath.Join(b.ClientDir, "key.pem"))
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key mode = %v, want 0600", info.Mode().Perm())
	}

	raw, err := os.ReadFile(filepath.Join(b.ServerDir, "server-cert.pem"))
	if err != nil {
		t.Fatalf("read server cert: %v", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		t.Fatal("server cert is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse server cert: %v", err)
	}
	if err := cert.VerifyHostname("web.example.com"); err != nil {
		t.Errorf("server cert hostname: %v", err)
	}
	if err := cert.VerifyHostname("203.0.113.7"); err != nil {
		t.Errorf("server cert IP: %v", err)
	}

	cfg, err := LoadClientTLS(b.ClientDir, "web.example.com")
	if err != nil {
		t.Fatalf("LoadClientTLS() error = %v", err)
	}
	if cfg.ServerName != "web.example.com" {
		t.Errorf("ServerName = %q", cfg.ServerName)
	}
}

func TestGenerateDockerTLSReusesExisting(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Hosts: []string{"web.example.com"}}

	if _, err := GenerateDockerTLS(dir, opts); err != nil {
		t.Fatalf("first GenerateDockerTLS() error = %v", err)
	}
	before, err := os.ReadFile(filepath.Join(dir, "client", "cert.pem"))
	if err != nil {
		t.Fatal(err)
	}

	b, err := GenerateDockerTLS(dir, opts)
	if err != nil {
		t.Fatalf("second GenerateDockerTLS() error = %v", err)
	}
	if b.Generated {
		t.Errorf("Generated = true, want reuse")
	}
	after, _ := os.ReadFile(filepath.Join(dir, "client", "cert.pem"))
	if string(before) != string(after) {
		t.Errorf("client certificate was regenerated")
	}

	opts.Force = true
	b, err = GenerateDockerTLS(dir, opts)
	if err != nil {
		t.Fatalf("forced GenerateDockerTLS() error = %v", err)
	}
	if !b.Generated {
		t.Errorf("Generated = false with Force")
	}
}

func TestGenerateDockerTLSValidation(t *testing.T) {
	if _, err := GenerateDockerTLS(t.TempDir(), Options{}); err == nil {
		t.Errorf("expected error without hosts")
	}
	if _, err := GenerateDockerTLS(t.TempDir(), Options{IPs: []string{"not-an-ip"}}); err == nil {
		t.Errorf("expected error for invalid IP")
	}
}

func TestLoadClientTLSRejectsForeignCA(t *testing.T) {
	a, err := GenerateDockerTLS(t.TempDir(), Options{Hosts: []string{"a.example.com"}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateDockerTLS(t.TempDir(), Options{Hosts: []string{"b.example.com"}})
	if err != nil {
		t.Fatal(err)
	}

	foreignCA, err := os.ReadFile(filepath.Join(b.ClientDir, "ca.pem"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(a.ClientDir, "ca.pem"), foreignCA, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadClientTLS(a.ClientDir, "a.example.com"); err == nil {
		t.Errorf("LoadClientTLS() accepted a certificate from another CA")
	}
}

func TestGenerateDockerTLSReissuesServerForNewIP(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Hosts: []string{"web.example.com"}, IPs: []string{"203.0.113.7"}}
	if _, err := GenerateDockerTLS(dir, opts); err != nil {
		t.Fatal(err)
	}
	clientBefore, err := os.ReadFile(filepath.Join(dir, "client", "cert.pem"))
	if err != nil {
		t.Fatal(err)
	}

	opts.IPs = []string{"198.51.100.4"}
	b, err := GenerateDockerTLS(dir, opts)
	if err != nil {
		t.Fatalf("GenerateDockerTLS() error = %v", err)
	}
	if b.Generated || !b.ServerReissued {
		t.Errorf("Generated = %v, ServerReissued = %v, want only the server reissued", b.Generated, b.ServerReissued)
	}

	clientAfter, _ := os.ReadFile(filepath.Join(dir, "client", "cert.pem"))
	if string(clientBefore) != string(clientAfter) {
		t.Errorf("client certificate changed")
	}

	server, err := readCertificate(filepath.Join(b.ServerDir, "server-cert.pem"))
	if err != nil {
		t.Fatal(err)
	}
	if err := server.VerifyHostname("198.51.100.4"); err != nil {
		t.Errorf("reissued server cert lacks new IP: %v", err)
	}
	ca, err := readCertificate(filepath.Join(b.ClientDir, "ca.pem"))
	if err != nil {
		t.Fatal(err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(ca)
	if _, err := server.Verify(x509.VerifyOptions{Roots: roots, DNSName: "web.example.com"}); err != nil {
		t.Errorf("reissued server cert does not chain to the client CA: %v", err)
	}

	b, err = GenerateDockerTLS(dir, opts)
	if err != nil {
		t.Fatal(err)
	}
	if b.Generated || b.ServerReissued {
		t.Errorf("third run should reuse: %+v", b)
	}
}

func TestGenerateDockerTLSRegeneratesMissingServerBundle(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Hosts: []string{"web.example.com"}}
	if _, err := GenerateDockerTLS(dir, opts); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(dir, "server")); err != nil {
		t.Fatal(err)
	}

	b, err := GenerateDockerTLS(dir, opts)
	if err != nil {
		t.Fatalf("GenerateDockerTLS() error = %v", err)
	}
	if !b.Generated {
		t.Errorf("Generated = false, want fresh material")
	}
	for _, name := range []string{"ca.pem", "ca-key.pem", "server-cert.pem", "server-key.pem"} {
		if !CertificateExists(filepath.Join(b.ServerDir, name)) {
			t.Errorf("missing server/%s", name)
		}
	}
	if _, err := LoadClientTLS(b.ClientDir, "web.example.com"); err != nil {
		t.Errorf("LoadClientTLS() error = %v", err)
	}
}
