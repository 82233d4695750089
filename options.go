package zkdeploy

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ConfirmationPolicy decides when a polled transaction counts as confirmed.
type ConfirmationPolicy uint8

const (
	// Lenient treats any successful fetch as confirmed, even an empty one.
	Lenient ConfirmationPolicy = iota

	// Strict requires the fetch to return at least one output.
	Strict
)

func (p ConfirmationPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "lenient"
}

// ParseConfirmationPolicy maps "lenient" and "strict" to a policy.
func ParseConfirmationPolicy(s string) (ConfirmationPolicy, error) {
	switch s {
	case "lenient", "":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("zkdeploy: unknown confirmation policy %q", s)
	}
}

// Defaults.
const (
	// DefaultMaxSpendAttempts bounds the collateral retry loop.
	DefaultMaxSpendAttempts = 5

	// DefaultPollInterval is the pause between confirmation polls.
	DefaultPollInterval = time.Second

	// DefaultLockAmount is the lovelace locked by Deploy (1 ADA).
	DefaultLockAmount = 1_000_000
)

// Option configures an Orchestrator or a ConfirmationWatcher.
type Option func(*config)

// config holds configuration shared by the orchestrator and watcher.
type config struct {
	retryOnInsufficientCollateral bool
	maxSpendAttempts              int
	confirmationPolicy            ConfirmationPolicy
	pollInterval                  time.Duration
	awaitConfirmation             bool
	executionBudget               *ExecutionBudget
	lockAmount                    uint64
	network                       Network
	logger                        *zap.Logger
	registerer                    prometheus.Registerer
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		retryOnInsufficientCollateral: true,
		maxSpendAttempts:              DefaultMaxSpendAttempts,
		confirmationPolicy:            Lenient,
		pollInterval:                  DefaultPollInterval,
		awaitConfirmation:             true,
		lockAmount:                    DefaultLockAmount,
		network:                       Testnet,
		logger:                        zap.NewNop(),
	}
}

func newConfig(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithCollateralRetry enables or disables retrying spends that fail on
// insufficient collateral. Enabled by default.
func WithCollateralRetry(enabled bool) Option {
	return func(c *config) {
		c.retryOnInsufficientCollateral = enabled
	}
}

// WithMaxSpendAttempts sets the retry bound. Default is 5; values below 1 are raised to 1.
func WithMaxSpendAttempts(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.maxSpendAttempts = n
	}
}

// WithConfirmationPolicy selects lenient (default) or strict confirmation.
func WithConfirmationPolicy(p ConfirmationPolicy) Option {
	return func(c *config) {
		c.confirmationPolicy = p
	}
}

// WithPollInterval sets the pause between polls. Default is one second.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithoutConfirmation makes Deploy and Spend return right after submission.
func WithoutConfirmation() Option {
	return func(c *config) {
		c.awaitConfirmation = false
	}
}

// WithExecutionBudget declares execution units for every spend, skipping
// the gateway's estimation. SpendBudget overrides it per call.
func WithExecutionBudget(b ExecutionBudget) Option {
	return func(c *config) {
		c.executionBudget = &b
	}
}

// WithLockAmount sets the lovelace locked by Deploy.
func WithLockAmount(lovelace uint64) Option {
	return func(c *config) {
		c.lockAmount = lovelace
	}
}

// WithNetwork selects the network used to derive script addresses.
func WithNetwork(n Network) Option {
	return func(c *config) {
		c.network = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics registers collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// SpendOption configures a single Spend call.
type SpendOption func(*spendConfig)

type spendConfig struct {
	budget *ExecutionBudget
}

// SpendBudget declares execution units for this spend.
func SpendBudget(b ExecutionBudget) SpendOption {
	return func(c *spendConfig) {
		c.budget = &b
	}
}

// SpendEstimateBudget drops any configured budget so the gateway estimates it.
func SpendEstimateBudget() SpendOption {
	return func(c *spendConfig) {
		c.budget = nil
	}
}
