package certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/willia4/electriclemur-v3/pkg/log"
)

const DefaultValidity = 5 * 365 * 24 * time.Hour

// Options controls Docker TLS generation.
type Options struct {
	// Hosts are DNS names the server certificate is valid for.
	Hosts []string
	// IPs are addresses the server certificate is valid for.
	IPs []string
	// Validity is the lifetime of every generated certificate.
	Validity time.Duration
	// Force regenerates material even when a client bundle exists.
	Force bool
}

// Bundle locates generated TLS material.
type Bundle struct {
	ServerDir string
	ClientDir string
	// Generated is true when a new CA and both bundles were written.
	Generated bool
	// ServerReissued is true when only the server certificate was replaced,
	// signed by the existing CA.
	ServerReissued bool
}

func (b Bundle) serverFiles() []string {
	return []string{
		filepath.Join(b.ServerDir, "ca.pem"),
		filepath.Join(b.ServerDir, "ca-key.pem"),
		filepath.Join(b.ServerDir, "server-cert.pem"),
		filepath.Join(b.ServerDir, "server-key.pem"),
	}
}

func (b Bundle) clientFiles() []string {
	return []string{
		filepath.Join(b.ClientDir, "ca.pem"),
		filepath.Join(b.ClientDir, "cert.pem"),
		filepath.Join(b.ClientDir, "key.pem"),
	}
}

func (b Bundle) complete() bool {
	for _, path := range append(b.serverFiles(), b.clientFiles()...) {
		if !CertificateExists(path) {
			return false
		}
	}
	return true
}

// GenerateDockerTLS creates a CA plus server and client certificates for a
// TLS-protected Docker daemon. The server bundle lands in <dir>/server and
// the client bundle in <dir>/client.
//
// Complete existing material is reused. A server certificate that does not
// cover every host and IP in opts is reissued from the existing CA, so the
// client bundle stays valid. Missing or unreadable material is regenerated.
func GenerateDockerTLS(dir string, opts Options) (Bundle, error) {
	b := Bundle{
		ServerDir: filepath.Join(dir, "server"),
		ClientDir: filepath.Join(dir, "client"),
	}
	if opts.Validity <= 0 {
		opts.Validity = DefaultValidity
	}
	if len(opts.Hosts) == 0 && len(opts.IPs) == 0 {
		return b, fmt.Errorf("server certificate needs at least one host or IP")
	}
	ips, err := parseIPs(opts.IPs)
	if err != nil {
		return b, err
	}

	if !opts.Force && b.complete() {
		caCert, caKey, err := loadCA(b.ServerDir)
		if err == nil {
			covered, cerr := serverCovers(filepath.Join(b.ServerDir, "server-cert.pem"), opts.Hosts, ips)
			switch {
			case cerr != nil:
				log.Warn("[Certs] server certificate is unreadable, reissuing", "dir", dir, "error", cerr)
			case covered:
				log.Info("[Certs] reusing existing docker TLS material", "dir", dir)
				return b, nil
			default:
				log.Info("[Certs] server certificate does not cover every host, reissuing", "dir", dir, "hosts", opts.Hosts, "ips", opts.IPs)
			}
			if err := issueServer(b.ServerDir, caCert, caKey, opts.Hosts, ips, opts.Validity); err != nil {
				return b, err
			}
			b.ServerReissued = true
			return b, nil
		}
		log.Warn("[Certs] existing CA is unusable, regenerating docker TLS material", "dir", dir, "error", err)
	} else if !opts.Force && CertificateExists(filepath.Join(b.ClientDir, "cert.pem")) {
		log.Warn("[Certs] docker TLS material is incomplete, regenerating", "dir", dir)
	}

	caKey, err := newKey()
	if err != nil {
		return b, err
	}
	caTemplate, err := template("lemur docker CA", opts.Validity)
	if err != nil {
		return b, err
	}
	caTemplate.IsCA = true
	caTemplate.BasicConstraintsValid = true
	caTemplate.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, caKey.Public(), caKey)
	if err != nil {
		return b, fmt.Errorf("failed to create CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return b, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	clientKey, err := newKey()
	if err != nil {
		return b, err
	}
	clientTemplate, err := template("client", opts.Validity)
	if err != nil {
		return b, err
	}
	clientTemplate.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	clientDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caCert, clientKey.Public(), caKey)
	if err != nil {
		return b, fmt.Errorf("failed to create client certificate: %w", err)
	}

	caKeyBlock, err := keyBlock(caKey)
	if err != nil {
		return b, err
	}
	clientKeyBlock, err := keyBlock(clientKey)
	if err != nil {
		return b, err
	}

	files := []struct {
		path  string
		block *pem.Block
		mode  os.FileMode
	}{
		{filepath.Join(b.ServerDir, "ca.pem"), certBlock(caDER), 0644},
		{filepath.Join(b.ServerDir, "ca-key.pem"), caKeyBlock, 0600},
		{filepath.Join(b.ClientDir, "ca.pem"), certBlock(caDER), 0644},
		{filepath.Join(b.ClientDir, "cert.pem"), certBlock(clientDER), 0644},
		{filepath.Join(b.ClientDir, "key.pem"), clientKeyBlock, 0600},
	}
	for _, f := range files {
		if err := writePEM(f.path, f.block, f.mode); err != nil {
			return b, err
		}
	}
	if err := issueServer(b.ServerDir, caCert, caKey, opts.Hosts, ips, opts.Validity); err != nil {
		return b, err
	}

	b.Generated = true
	log.Info("[Certs] generated docker TLS material", "dir", dir, "hosts", opts.Hosts, "ips", opts.IPs)
	return b, nil
}

// issueServer writes a server certificate and key for hosts and ips, signed
// by the CA.
func issueServer(dir string, caCert *x509.Certificate, caKey crypto.Signer, hosts []string, ips []net.IP, validity time.Duration) error {
	serverKey, err := newKey()
	if err != nil {
		return err
	}
	serverTemplate, err := template(firstOr(hosts, "docker"), validity)
	if err != nil {
		return err
	}
	serverTemplate.DNSNames = hosts
	serverTemplate.IPAddresses = ips
	serverTemplate.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	serverDER, err := x509.CreateCertificate(rand.Reader, serverTemplate, caCert, serverKey.Public(), caKey)
	if err != nil {
		return fmt.Errorf("failed to create server certificate: %w", err)
	}
	block, err := keyBlock(serverKey)
	if err != nil {
		return err
	}
	if err := writePEM(filepath.Join(dir, "server-cert.pem"), certBlock(serverDER), 0644); err != nil {
		return err
	}
	return writePEM(filepath.Join(dir, "server-key.pem"), block, 0600)
}

func parseIPs(values []string) ([]net.IP, error) {
	var ips []net.IP
	for _, ip := range values {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return nil, fmt.Errorf("invalid IP address %q", ip)
		}
		ips = append(ips, parsed)
	}
	return ips, nil
}

func readCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%s is not a PEM certificate", path)
	}
	return x509.ParseCertificate(block.Bytes)
}

func loadCA(serverDir string) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	caCert, err := readCertificate(filepath.Join(serverDir, "ca.pem"))
	if err != nil {
		return nil, nil, err
	}
	path := filepath.Join(serverDir, "ca-key.pem")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, nil, fmt.Errorf("%s is not a PEM key", path)
	}
	caKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CA key: %w", err)
	}
	return caCert, caKey, nil
}

// serverCovers reports whether the certificate at path is still valid for
// every host and IP.
func serverCovers(path string, hosts []string, ips []net.IP) (bool, error) {
	cert, err := readCertificate(path)
	if err != nil {
		return false, err
	}
	if time.Now().After(cert.NotAfter) {
		return false, nil
	}
	for _, h := range hosts {
		if cert.VerifyHostname(h) != nil {
			return false, nil
		}
	}
	for _, ip := range ips {
		if cert.VerifyHostname(ip.String()) != nil {
			return false, nil
		}
	}
	return true, nil
}

// LoadClientTLS loads a client bundle written by GenerateDockerTLS and checks
// that the client certificate chains to the bundled CA.
func LoadClientTLS(clientDir, host string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Join(clientDir, "cert.pem"), filepath.Join(clientDir, "key.pem"))
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate and private key: %w", err)
	}

	caCert, err := os.ReadFile(filepath.Join(clientDir, "ca.pem"))
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		return nil, fmt.Errorf("failed to append CA certificate to pool")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse client certificate: %w", err)
	}
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:     caCertPool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}); err != nil {
		return nil, fmt.Errorf("client certificate does not chain to CA: %w", err)
	}

	tlsConfig := &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	// IPs are not in the SANs of every bundle
	if parsedIP := net.ParseIP(host); parsedIP == nil && host != "" {
		tlsConfig.ServerName = host
	}
	return tlsConfig, nil
}

// CertificateExists checks if a certificate file exists
func CertificateExists(certPath string) bool {
	_, err := os.Stat(certPath)
	return err == nil
}

func newKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA private key: %w", err)
	}
	return key, nil
}

func template(commonName string, validity time.Duration) (*x509.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	now := time.Now()
	return &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}, nil
}

func certBlock(der []byte) *pem.Block {
	return &pem.Block{Type: "CERTIFICATE", Bytes: der}
}

func keyBlock(key crypto.Signer) (*pem.Block, error) {
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	keyBytes, err := x509.MarshalECPrivateKey(ecKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ECDSA private key: %w", err)
	}
	return &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}, nil
}

func writePEM(path string, block *pem.Block, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filepath.Base(path), err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := pem.Encode(f, block); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Printf("[DEBUG] Saved PEM at: %s", path)
	return nil
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}
