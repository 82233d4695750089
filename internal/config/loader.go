package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the default config file name, looked up in the
// working directory.
const ConfigFileName = "zkdeploy.toml"

// Environment variable names.
const (
	EnvKeyFile          = "ZKDEPLOY_KEY_FILE"
	EnvNetwork          = "ZKDEPLOY_NETWORK"
	EnvDataDir          = "ZKDEPLOY_DATA_DIR"
	EnvLockLovelace     = "ZKDEPLOY_LOCK_LOVELACE"
	EnvRetryCollateral  = "ZKDEPLOY_RETRY_COLLATERAL"
	EnvMaxSpendAttempts = "ZKDEPLOY_MAX_SPEND_ATTEMPTS"
	EnvConfirmation     = "ZKDEPLOY_CONFIRMATION"
	EnvPollInterval     = "ZKDEPLOY_POLL_INTERVAL"
	EnvLogLevel         = "ZKDEPLOY_LOG_LEVEL"
)

// Loader loads configuration from file and environment over defaults.
type Loader struct {
	configPath string
	explicit   bool
}

// NewLoader creates a loader. An empty configPath means ConfigFileName,
// which may be absent; an explicit path must exist.
func NewLoader(configPath string) *Loader {
	if configPath == "" {
		return &Loader{configPath: ConfigFileName}
	}
	return &Loader{configPath: configPath, explicit: true}
}

// Load loads configuration with priority: defaults < file < env.
// Command-line flags are applied by the caller on top.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	fileCfg, err := l.loadFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := mergeFileConfig(cfg, fileCfg); err != nil {
			return nil, fmt.Errorf("%s: %w", l.configPath, err)
		}
	}

	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile returns nil if the default config file does not exist.
func (l *Loader) loadFile() (*FileConfig, error) {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) && !l.explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg FileConfig
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("invalid TOML in %s: %w", l.configPath, err)
	}
	return &fileCfg, nil
}

func mergeFileConfig(cfg *Config, file *FileConfig) error {
	if file.Wallet.KeyFile != nil {
		cfg.Wallet.KeyFile = *file.Wallet.KeyFile
	}

	if file.Chain.Network != nil {
		cfg.Chain.Network = *file.Chain.Network
	}
	if file.Chain.DataDir != nil {
		cfg.Chain.DataDir = *file.Chain.DataDir
	}

	if file.Deploy.LockLovelace != nil {
		cfg.Deploy.LockLovelace = *file.Deploy.LockLovelace
	}

	if file.Spend.RetryCollateral != nil {
		cfg.Spend.RetryCollateral = *file.Spend.RetryCollateral
	}
	if file.Spend.MaxAttempts != nil {
		cfg.Spend.MaxAttempts = *file.Spend.MaxAttempts
	}
	if file.Spend.Budget != nil {
		cfg.Spend.BudgetMem = file.Spend.Budget.Mem
		cfg.Spend.BudgetSteps = file.Spend.Budget.Steps
	}

	if file.Confirmation.Policy != nil {
		cfg.Confirmation.Policy = *file.Confirmation.Policy
	}
	if file.Confirmation.PollInterval != nil {
		d, err := time.ParseDuration(*file.Confirmation.PollInterval)
		if err != nil {
			return fmt.Errorf("confirmation.poll_interval: %w", err)
		}
		cfg.Confirmation.PollInterval = d
	}

	if file.Log.Level != nil {
		cfg.Log.Level = *file.Log.Level
	}
	return nil
}

// applyEnvVars applies environment variable overrides to config.
func applyEnvVars(cfg *Config) error {
	if v := os.Getenv(EnvKeyFile); v != "" {
		cfg.Wallet.KeyFile = v
	}
	if v := os.Getenv(EnvNetwork); v != "" {
		cfg.Chain.Network = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Chain.DataDir = v
	}
	if v := os.Getenv(EnvLockLovelace); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLockLovelace, err)
		}
		cfg.Deploy.LockLovelace = n
	}
	if v := os.Getenv(EnvRetryCollateral); v != "" {
		cfg.Spend.RetryCollateral = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvMaxSpendAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxSpendAttempts, err)
		}
		cfg.Spend.MaxAttempts = n
	}
	if v := os.Getenv(EnvConfirmation); v != "" {
		cfg.Confirmation.Policy = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		cfg.Confirmation.PollInterval = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	return nil
}
