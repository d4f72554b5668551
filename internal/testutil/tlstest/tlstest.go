// Package tlstest issues throwaway certificates for wss tests.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const validity = 24 * time.Hour

// KeyPair is a PEM certificate and key written under a test directory.
type KeyPair struct {
	CertFile string
	KeyFile  string
}

// Load parses the pair for use in a tls.Config.
func (p KeyPair) Load(t testing.TB) tls.Certificate {
	t.Helper()
	cert, err := tls.LoadX509KeyPair(p.CertFile, p.KeyFile)
	if err != nil {
		t.Fatalf("load key pair %s: %v", p.CertFile, err)
	}
	return cert
}

// Authority is a self-signed CA living in dir.
type Authority struct {
	dir    string
	cert   *x509.Certificate
	key    *ecdsa.PrivateKey
	pool   *x509.CertPool
	serial atomic.Int64
	caFile string
}

func NewAuthority(t testing.TB, dir string, commonName string) *Authority {
	t.Helper()
	key := newKey(t)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create ca cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse ca cert: %v", err)
	}
	a := &Authority{
		dir:    dir,
		cert:   cert,
		key:    key,
		pool:   x509.NewCertPool(),
		caFile: filepath.Join(dir, "ca.crt"),
	}
	a.pool.AddCert(cert)
	a.serial.Store(1)
	writePEM(t, a.caFile, "CERTIFICATE", der, 0o644)
	return a
}

// CAFile is the PEM path of the CA certificate.
func (a *Authority) CAFile() string {
	return a.caFile
}

// Pool trusts only this authority.
func (a *Authority) Pool() *x509.CertPool {
	return a.pool
}

// Server issues a server certificate. Hosts that parse as IPs become IP SANs,
// the rest DNS SANs.
func (a *Authority) Server(t testing.TB, name string, hosts ...string) KeyPair {
	t.Helper()
	return a.issue(t, name, x509.ExtKeyUsageServerAuth, hosts)
}

// Client issues a certificate for mutual TLS.
func (a *Authority) Client(t testing.TB, name string) KeyPair {
	t.Helper()
	return a.issue(t, name, x509.ExtKeyUsageClientAuth, nil)
}

// LoopbackServerTLS is a server config for 127.0.0.1 and localhost.
func (a *Authority) LoopbackServerTLS(t testing.TB) *tls.Config {
	t.Helper()
	pair := a.Server(t, "gateway.local", "127.0.0.1", "localhost")
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{pair.Load(t)},
	}
}

func (a *Authority) issue(t testing.TB, name string, usage x509.ExtKeyUsage, hosts []string) KeyPair {
	t.Helper()
	key := newKey(t)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(a.serial.Add(1)),
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, a.cert, &key.PublicKey, a.key)
	if err != nil {
		t.Fatalf("sign %s: %v", name, err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key %s: %v", name, err)
	}

	base := fileBase(name)
	pair := KeyPair{
		CertFile: filepath.Join(a.dir, base+".crt"),
		KeyFile:  filepath.Join(a.dir, base+".key"),
	}
	writePEM(t, pair.CertFile, "CERTIFICATE", der, 0o644)
	writePEM(t, pair.KeyFile, "EC PRIVATE KEY", keyDER, 0o600)
	return pair
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func writePEM(t testing.TB, path, blockType string, der []byte, perm os.FileMode) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func fileBase(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "cert"
	}
	return strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(name)
}
