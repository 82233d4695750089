package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

// ValidLogLevels are the allowed log level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration and returns an error if invalid.
func Validate(cfg *Config) error {
	var errs []string

	if !slices.Contains(ValidLogLevels, cfg.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log level %q (must be one of: %s)",
			cfg.Log.Level, strings.Join(ValidLogLevels, ", ")))
	}
	if _, err := zkdeploy.ParseNetwork(cfg.Chain.Network); err != nil {
		errs = append(errs, fmt.Sprintf("invalid network %q", cfg.Chain.Network))
	}
	if _, err := zkdeploy.ParseConfirmationPolicy(cfg.Confirmation.Policy); err != nil {
		errs = append(errs, fmt.Sprintf("invalid confirmation policy %q (must be lenient or strict)", cfg.Confirmation.Policy))
	}
	if cfg.Confirmation.PollInterval <= 0 {
		errs = append(errs, "poll_interval must be positive")
	}
	if cfg.Spend.MaxAttempts < 1 {
		errs = append(errs, "max_attempts must be at least 1")
	}
	if cfg.Deploy.LockLovelace == 0 {
		errs = append(errs, "lock_lovelace must be positive")
	}
	if (cfg.Spend.BudgetMem == 0) != (cfg.Spend.BudgetSteps == 0) {
		errs = append(errs, "budget needs both mem and steps")
	}
	if cfg.Wallet.KeyFile == "" {
		errs = append(errs, "key_file is required")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
