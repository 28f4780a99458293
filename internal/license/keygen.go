// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"
)

var (
	ErrMissingKey = errors.New("license key is required")
	ErrExpired    = errors.New("license has expired")
	ErrNotFound   = errors.New("license not found")
)

// KeygenValidator handles license validation using Keygen.sh
type KeygenValidator struct {
	logger *zap.Logger

	validate    func(ctx context.Context, fingerprints ...string) (*keygen.License, error)
	fingerprint func() (string, error)
}

// NewKeygenValidator configures the keygen client globals and returns a validator.
func NewKeygenValidator(accountID, productToken, productID string, logger *zap.Logger) *KeygenValidator {
	keygen.Account = accountID
	keygen.Product = productID
	keygen.Token = productToken
	keygen.PublicKey = ""

	return &KeygenValidator{
		logger:      logger.Named("license"),
		validate:    keygen.Validate,
		fingerprint: machineFingerprint,
	}
}

// ValidateLicense validates a license key with Keygen, activating this
// machine when the license is not yet activated.
func (kv *KeygenValidator) ValidateLicense(ctx context.Context, licenseKey string) error {
	if licenseKey == "" {
		return ErrMissingKey
	}
	kv.logger.Info("Validating license", zap.String("key", mask(licenseKey)))

	fingerprint, err := kv.fingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	keygen.LicenseKey = licenseKey
	lic, err := kv.validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		if lic == nil {
			return ErrNotFound
		}
		kv.logger.Info("License not activated, attempting activation")
		machine, activateErr := lic.Activate(ctx, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		kv.logger.Info("License activated",
			zap.String("machine_id", machine.ID),
			zap.String("fingerprint", fingerprint))
	case errors.Is(err, keygen.ErrLicenseExpired):
		return ErrExpired
	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}

	if lic == nil {
		return ErrNotFound
	}
	kv.logger.Info("License validation successful", zap.String("license_id", lic.ID))
	return nil
}

// machineFingerprint hashes hostname, first active MAC and OS.
func machineFingerprint() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var mac string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
			mac = iface.HardwareAddr.String()
			break
		}
	}
	if mac == "" {
		return "", fmt.Errorf("no network interfaces found")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, runtime.GOOS)))
	return fmt.Sprintf("%x", hash), nil
}

func mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "..."
}
