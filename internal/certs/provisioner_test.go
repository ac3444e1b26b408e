package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProvisioner struct {
	name  string
	fail  bool
	calls *[]string
}

func (f *fakeProvisioner) Name() string { return f.name }

func (f *fakeProvisioner) Provision(path string) error {
	*f.calls = append(*f.calls, f.name)
	if f.fail {
		return errors.New(f.name + " failed")
	}
	return os.WriteFile(path, []byte("fake bundle"), 0600)
}

func TestEnsureExistingBundleUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pem")
	original := []byte("pre-existing bundle content")
	if err := os.WriteFile(path, original, 0600); err != nil {
		t.Fatalf("Failed to write bundle: %v", err)
	}

	var calls []string
	err := Ensure(path, zap.NewNop(), &fakeProvisioner{name: "first", calls: &calls})
	if err != nil {
		t.Fatalf("Ensure returned error for existing bundle: %v", err)
	}

	if len(calls) != 0 {
		t.Errorf("Expected no provisioner calls for existing bundle, got %v", calls)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read bundle: %v", err)
	}
	if string(content) != string(original) {
		t.Error("Existing bundle was modified")
	}
}

func TestEnsureFallbackOrder(t *testing.T) {
	tests := []struct {
		name      string
		firstFail bool
		bothFail  bool
		wantCalls []string
		wantErr   bool
	}{
		{
			name:      "first succeeds, second never runs",
			wantCalls: []string{"first"},
		},
		{
			name:      "first fails, second succeeds",
			firstFail: true,
			wantCalls: []string{"first", "second"},
		},
		{
			name:      "all fail",
			firstFail: true,
			bothFail:  true,
			wantCalls: []string{"first", "second"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "server.pem")
			var calls []string

			err := Ensure(path, zap.NewNop(),
				&fakeProvisioner{name: "first", fail: tt.firstFail, calls: &calls},
				&fakeProvisioner{name: "second", fail: tt.bothFail, calls: &calls})

			if tt.wantErr && err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if len(calls) != len(tt.wantCalls) {
				t.Fatalf("Expected calls %v, got %v", tt.wantCalls, calls)
			}
			for i, want := range tt.wantCalls {
				if calls[i] != want {
					t.Errorf("Call %d: expected %s, got %s", i, want, calls[i])
				}
			}

			if tt.wantErr {
				if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
					t.Error("Failed provisioning left a file at the target path")
				}
			}
		})
	}
}

func TestSelfSignedBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pem")

	p := NewSelfSignedProvisioner()
	if err := p.Provision(path); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read bundle: %v", err)
	}

	t.Run("Private key", func(t *testing.T) {
		block, _ := pem.Decode(data)
		if block == nil {
			t.Fatal("Failed to decode key PEM block")
		}
		if block.Type != "RSA PRIVATE KEY" {
			t.Fatalf("Expected RSA PRIVATE KEY block first, got %s", block.Type)
		}

		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			t.Fatalf("Failed to parse private key: %v", err)
		}
		if key.N.BitLen() != 2048 {
			t.Errorf("Expected 2048-bit modulus, got %d", key.N.BitLen())
		}
		if key.E != 65537 {
			t.Errorf("Expected public exponent 65537, got %d", key.E)
		}
	})

	t.Run("Certificate", func(t *testing.T) {
		keyBlock, rest := pem.Decode(data)
		if keyBlock == nil {
			t.Fatal("Failed to decode key PEM block")
		}
		block, _ := pem.Decode(rest)
		if block == nil {
			t.Fatal("Failed to decode certificate PEM block")
		}
		if block.Type != "CERTIFICATE" {
			t.Fatalf("Expected CERTIFICATE block second, got %s", block.Type)
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			t.Fatalf("Failed to parse certificate: %v", err)
		}

		if cert.Subject.CommonName != "localhost" {
			t.Errorf("Expected CN 'localhost', got '%s'", cert.Subject.CommonName)
		}

		now := time.Now()
		if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
			t.Errorf("Validity window [%v, %v] does not cover now", cert.NotBefore, cert.NotAfter)
		}

		foundDNS := false
		for _, name := range cert.DNSNames {
			if name == "localhost" {
				foundDNS = true
			}
		}
		if !foundDNS {
			t.Errorf("SAN DNS names missing 'localhost': %v", cert.DNSNames)
		}

		foundIP := false
		for _, ip := range cert.IPAddresses {
			if ip.Equal(net.ParseIP("127.0.0.1")) {
				foundIP = true
			}
		}
		if !foundIP {
			t.Errorf("SAN IP addresses missing 127.0.0.1: %v", cert.IPAddresses)
		}
	})

	t.Run("Usable as TLS identity", func(t *testing.T) {
		if _, err := tls.LoadX509KeyPair(path, path); err != nil {
			t.Fatalf("Bundle not loadable as TLS key pair: %v", err)
		}
	})
}

func TestEnsureRejectsDirectoryPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pem")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	var calls []string
	err := Ensure(path, zap.NewNop(), &fakeProvisioner{name: "first", calls: &calls})
	if err == nil {
		t.Fatal("Expected error for directory at bundle path")
	}
	if len(calls) != 0 {
		t.Errorf("Expected no provisioner calls for directory path, got %v", calls)
	}
}

func TestEnsureEmitsTimingLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	path := filepath.Join(t.TempDir(), "server.pem")
	if err := os.WriteFile(path, []byte("bundle"), 0600); err != nil {
		t.Fatalf("Failed to write bundle: %v", err)
	}

	if err := Ensure(path, zap.New(core)); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if logs.FilterMessage("Ensure started").Len() == 0 {
		t.Error("Expected function entry log")
	}
	if logs.FilterMessage("function exited").Len() == 0 {
		t.Error("Expected function exit log")
	}
}

func TestOpenSSLProvisionerGeneratesBundle(t *testing.T) {
	if _, err := exec.LookPath("openssl"); err != nil {
		t.Skip("openssl not available")
	}

	path := filepath.Join(t.TempDir(), "server.pem")

	p := NewOpenSSLProvisioner()
	if err := p.Provision(path); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if _, err := tls.LoadX509KeyPair(path, path); err != nil {
		t.Fatalf("Bundle not loadable as TLS key pair: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read bundle: %v", err)
	}

	var cert *x509.Certificate
	for rest := data; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err = x509.ParseCertificate(block.Bytes)
			if err != nil {
				t.Fatalf("Failed to parse certificate: %v", err)
			}
		}
	}
	if cert == nil {
		t.Fatal("Bundle contains no certificate block")
	}
	if cert.Subject.CommonName != "localhost" {
		t.Errorf("Expected CN 'localhost', got '%s'", cert.Subject.CommonName)
	}
}

func TestOpenSSLProvisionerMissingTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pem")

	p := &OpenSSLProvisioner{binary: "definitely-not-a-real-tool"}
	err := p.Provision(path)
	if err == nil {
		t.Fatal("Expected error for missing tool")
	}
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Expected ErrToolNotFound, got %v", err)
	}

	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Missing tool left a file at the target path")
	}
}
