package plugins

import (
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
)

// certValidity is how long a generated development certificate lives.
const certValidity = 30 * 24 * time.Hour

// Certificate file names inside the certificate directory.
const (
	CertFileName = "cert.pem"
	KeyFileName  = "key.pem"
)

func newBasicSSL(env Env) Plugin {
	name := env.Config.SSL.Name
	dir := env.Config.SSL.CertDir
	logger := env.Logger.With("plugin", NameBasicSSL)

	return Plugin{
		Name: NameBasicSSL,
		ConfigureServer: func(opts *ServerOptions) error {
			certFile, keyFile, created, err := EnsureCertificate(dir, name, time.Now())
			if err != nil {
				return err
			}
			if created {
				logger.Info("generated development certificate", "name", name, "dir", dir)
			}
			opts.CertFile = certFile
			opts.KeyFile = keyFile
			return nil
		},
	}
}

// EnsureCertificate returns a self-signed certificate for name cached in
// dir, generating a new one when none exists or the cached one expires
// within a day of now.
func EnsureCertificate(dir, name string, now time.Time) (certFile, keyFile string, created bool, err error) {
	certFile = filepath.Join(dir, CertFileName)
	keyFile = filepath.Join(dir, KeyFileName)

	if certificateValid(certFile, keyFile, now) {
		return certFile, keyFile, false, nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", false, fmt.Errorf("failed to create certificate directory: %w", err)
	}
	certPEM, keyPEM, err := generateCertificate(name, now)
	if err != nil {
		return "", "", false, err
	}
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		return "", "", false, fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return "", "", false, fmt.Errorf("failed to write key: %w", err)
	}
	return certFile, keyFile, true, nil
}

// certificateValid reports whether a usable cached pair exists. Missing or
// corrupt files are regenerated.
func certificateValid(certFile, keyFile string, now time.Time) bool {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return false
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return false
	}
	return now.Add(24 * time.Hour).Before(leaf.NotAfter)
}

func generateCertificate(name string, now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: name, Organization: []string{"leapbuild development"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{name, "localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
	}
	if ip := net.ParseIP(name); ip != nil {
		tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
