package certs

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrToolNotFound reports that the external certificate tool is not on PATH.
var ErrToolNotFound = errors.New("certificate tool not found in PATH")

// OpenSSLProvisioner shells out to the openssl binary to request a new
// self-signed certificate with an unencrypted key, CN=localhost, valid for
// 365 days, key and certificate combined in one output file.
type OpenSSLProvisioner struct {
	binary string
}

// NewOpenSSLProvisioner creates a provisioner using the openssl binary from PATH
func NewOpenSSLProvisioner() *OpenSSLProvisioner {
	return &OpenSSLProvisioner{binary: "openssl"}
}

// Name returns the name of the external binary
func (p *OpenSSLProvisioner) Name() string {
	return p.binary
}

// Provision generates the credential bundle by invoking the external tool.
// The tool writes into a temporary file which is renamed into place only on
// success, so a failed invocation never leaves a truncated bundle at path.
func (p *OpenSSLProvisioner) Provision(path string) error {
	bin, err := exec.LookPath(p.binary)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, p.binary)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	cmd := exec.Command(bin, "req", "-new", "-x509",
		"-keyout", tmpName, "-out", tmpName,
		"-days", "365", "-nodes", "-subj", "/CN=localhost")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s exited with error: %w: %s", p.binary, err, strings.TrimSpace(string(out)))
	}

	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to restrict bundle permissions: %w", err)
	}

	return os.Rename(tmpName, path)
}
