// Package certs provisions the TLS credential bundle used by the HTTPS server.
//
// A credential bundle is a single PEM file holding an unencrypted private key
// followed by a self-signed certificate. Provisioning is idempotent: an
// existing file is reused as-is and its contents are not validated.
package certs

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/arhuman/devserve/internal/logging"
)

// Provisioner creates a credential bundle at a given path.
type Provisioner interface {
	// Name identifies the provisioner in logs and error messages
	Name() string
	// Provision writes a combined key+certificate PEM file to path.
	// Implementations must not leave a partial file behind on failure.
	Provision(path string) error
}

// DefaultProvisioners returns the provisioning chain in preference order:
// the external openssl tool first, in-process generation as fallback.
func DefaultProvisioners() []Provisioner {
	return []Provisioner{
		NewOpenSSLProvisioner(),
		NewSelfSignedProvisioner(),
	}
}

// Ensure guarantees a credential bundle exists at path. An existing file is
// left untouched. Otherwise the provisioners run in order and the first
// success wins; an error is returned only when every provisioner has failed.
func Ensure(path string, logger *zap.Logger, provisioners ...Provisioner) error {
	logger, start := logging.FuncLogger(logger, "Ensure")
	defer logging.FuncExit(logger, start)

	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return fmt.Errorf("credential bundle path %s is a directory", path)
		}
		logger.Debug("Credential bundle already exists", zap.String("path", path))
		return nil
	}

	if len(provisioners) == 0 {
		provisioners = DefaultProvisioners()
	}

	var errs []error
	for _, p := range provisioners {
		err := p.Provision(path)
		if err == nil {
			logger.Info("Credential bundle generated",
				zap.String("path", path),
				zap.String("provisioner", p.Name()))
			return nil
		}

		// A missing tool is the expected reason to fall through, anything
		// else is worth surfacing even though the fallback may still succeed
		if errors.Is(err, ErrToolNotFound) {
			logger.Debug("Provisioner unavailable",
				zap.String("provisioner", p.Name()),
				zap.Error(err))
		} else {
			logger.Warn("Provisioner failed",
				zap.String("provisioner", p.Name()),
				zap.Error(err))
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return fmt.Errorf("unable to provision credential bundle at %s: %w", path, errors.Join(errs...))
}
