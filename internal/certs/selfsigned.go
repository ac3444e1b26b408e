package certs

import (
	"crypto/rand"
	"crypto/rsa"
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

// SelfSignedProvisioner generates the credential bundle in process: an RSA
// key pair and a self-signed X.509 certificate for localhost, serialized as
// key PEM followed by certificate PEM in a single file.
type SelfSignedProvisioner struct {
	rsaBits  int
	validity time.Duration
}

// NewSelfSignedProvisioner creates a provisioner with an RSA-2048 key and
// a 365-day validity window
func NewSelfSignedProvisioner() *SelfSignedProvisioner {
	return &SelfSignedProvisioner{
		rsaBits:  2048,
		validity: 365 * 24 * time.Hour,
	}
}

// Name identifies the in-process provisioner
func (p *SelfSignedProvisioner) Name() string {
	return "self-signed"
}

// Provision generates and writes the credential bundle. The bundle is
// written to a temporary file and renamed into place only once complete.
func (p *SelfSignedProvisioner) Provision(path string) error {
	keyPEM, certPEM, err := p.generate()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(keyPEM, certPEM...)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict bundle permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	return os.Rename(tmpName, path)
}

// generate builds the RSA key pair and self-signed certificate in PEM form
func (p *SelfSignedProvisioner) generate() (keyPEM, certPEM []byte, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, p.rsaBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   "localhost",
			Country:      []string{"US"},
			Province:     []string{"California"},
			Locality:     []string{"San Francisco"},
			Organization: []string{"Development"},
		},
		NotBefore: notBefore,
		NotAfter:  notBefore.Add(p.validity),

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		SignatureAlgorithm:    x509.SHA256WithRSA,

		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1")},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	return keyPEM, certPEM, nil
}
