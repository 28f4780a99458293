package license

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Settings selects how the startup gate validates.
type Settings struct {
	Key          string
	AccountID    string
	ProductToken string
	ProductID    string
}

func (s Settings) keygenConfigured() bool {
	return s.AccountID != "" && s.ProductToken != "" && s.ProductID != ""
}

// Check runs the startup license gate. Without keygen credentials a present
// key only gets a basic sanity check; no key and no credentials means the
// gate is disabled.
func Check(ctx context.Context, s Settings, logger *zap.Logger) error {
	if s.keygenConfigured() {
		v := NewKeygenValidator(s.AccountID, s.ProductToken, s.ProductID, logger)
		return v.ValidateLicense(ctx, s.Key)
	}
	return checkBasic(s.Key, logger)
}

func checkBasic(key string, logger *zap.Logger) error {
	if key == "" {
		logger.Debug("License gate disabled")
		return nil
	}
	if len(key) < 8 {
		return fmt.Errorf("license key is too short")
	}
	logger.Info("License validated (basic mode)")
	return nil
}
