// Package config holds the command-line tool's configuration.
package config

import (
	"time"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

// Config is the fully resolved configuration.
type Config struct {
	Wallet       WalletConfig
	Chain        ChainConfig
	Deploy       DeployConfig
	Spend        SpendConfig
	Confirmation ConfirmationConfig
	Log          LogConfig
}

// WalletConfig locates the signing key.
type WalletConfig struct {
	KeyFile string
}

// ChainConfig selects the network and the local ledger directory.
type ChainConfig struct {
	Network string
	DataDir string
}

// DeployConfig configures locking.
type DeployConfig struct {
	LockLovelace uint64
}

// SpendConfig configures unlocking. A zero budget leaves execution units
// to the estimator.
type SpendConfig struct {
	RetryCollateral bool
	MaxAttempts     int
	BudgetMem       uint64
	BudgetSteps     uint64
}

// ConfirmationConfig configures the confirmation watcher.
type ConfirmationConfig struct {
	Policy       string
	PollInterval time.Duration
}

// LogConfig configures logging.
type LogConfig struct {
	Level string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Wallet: WalletConfig{
			KeyFile: "me.sk",
		},
		Chain: ChainConfig{
			Network: "testnet",
			DataDir: ".zkdeploy",
		},
		Deploy: DeployConfig{
			LockLovelace: zkdeploy.DefaultLockAmount,
		},
		Spend: SpendConfig{
			RetryCollateral: true,
			MaxAttempts:     zkdeploy.DefaultMaxSpendAttempts,
		},
		Confirmation: ConfirmationConfig{
			Policy:       "lenient",
			PollInterval: zkdeploy.DefaultPollInterval,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Budget returns the configured execution budget, or nil when unset.
func (s SpendConfig) Budget() *zkdeploy.ExecutionBudget {
	if s.BudgetMem == 0 && s.BudgetSteps == 0 {
		return nil
	}
	return &zkdeploy.ExecutionBudget{Mem: s.BudgetMem, Steps: s.BudgetSteps}
}

// Options translates the configuration into orchestrator options.
func (c *Config) Options() ([]zkdeploy.Option, error) {
	network, err := zkdeploy.ParseNetwork(c.Chain.Network)
	if err != nil {
		return nil, err
	}
	policy, err := zkdeploy.ParseConfirmationPolicy(c.Confirmation.Policy)
	if err != nil {
		return nil, err
	}

	opts := []zkdeploy.Option{
		zkdeploy.WithNetwork(network),
		zkdeploy.WithConfirmationPolicy(policy),
		zkdeploy.WithPollInterval(c.Confirmation.PollInterval),
		zkdeploy.WithCollateralRetry(c.Spend.RetryCollateral),
		zkdeploy.WithMaxSpendAttempts(c.Spend.MaxAttempts),
		zkdeploy.WithLockAmount(c.Deploy.LockLovelace),
	}
	if b := c.Spend.Budget(); b != nil {
		opts = append(opts, zkdeploy.WithExecutionBudget(*b))
	}
	return opts, nil
}
