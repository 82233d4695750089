package zkdeploy

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.True(t, cfg.retryOnInsufficientCollateral)
	assert.Equal(t, DefaultMaxSpendAttempts, cfg.maxSpendAttempts)
	assert.Equal(t, 5, cfg.maxSpendAttempts)
	assert.Equal(t, Lenient, cfg.confirmationPolicy)
	assert.Equal(t, time.Second, cfg.pollInterval)
	assert.True(t, cfg.awaitConfirmation)
	assert.Nil(t, cfg.executionBudget)
	assert.Equal(t, uint64(DefaultLockAmount), cfg.lockAmount)
	assert.Equal(t, Testnet, cfg.network)
	assert.NotNil(t, cfg.logger)
	assert.Nil(t, cfg.registerer)
}

func TestOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger := zap.NewExample()

	cfg := newConfig([]Option{
		WithCollateralRetry(false),
		WithMaxSpendAttempts(3),
		WithConfirmationPolicy(Strict),
		WithPollInterval(5 * time.Second),
		WithoutConfirmation(),
		WithExecutionBudget(ExecutionBudget{Mem: 1301280, Steps: 5031522698}),
		WithLockAmount(2_000_000),
		WithNetwork(Mainnet),
		WithLogger(logger),
		WithMetrics(reg),
	})

	assert.False(t, cfg.retryOnInsufficientCollateral)
	assert.Equal(t, 3, cfg.maxSpendAttempts)
	assert.Equal(t, Strict, cfg.confirmationPolicy)
	assert.Equal(t, 5*time.Second, cfg.pollInterval)
	assert.False(t, cfg.awaitConfirmation)
	assert.Equal(t, &ExecutionBudget{Mem: 1301280, Steps: 5031522698}, cfg.executionBudget)
	assert.Equal(t, uint64(2_000_000), cfg.lockAmount)
	assert.Equal(t, Mainnet, cfg.network)
	assert.Same(t, logger, cfg.logger)
	assert.Equal(t, prometheus.Registerer(reg), cfg.registerer)
}

func TestOptionBounds(t *testing.T) {
	t.Run("attempts floor at one", func(t *testing.T) {
		cfg := newConfig([]Option{WithMaxSpendAttempts(0)})
		assert.Equal(t, 1, cfg.maxSpendAttempts)
	})

	t.Run("non-positive poll interval ignored", func(t *testing.T) {
		cfg := newConfig([]Option{WithPollInterval(-time.Second)})
		assert.Equal(t, DefaultPollInterval, cfg.pollInterval)
	})

	t.Run("nil logger ignored", func(t *testing.T) {
		cfg := newConfig([]Option{WithLogger(nil)})
		assert.NotNil(t, cfg.logger)
	})
}

func TestSpendOptions(t *testing.T) {
	base := &ExecutionBudget{Mem: 1, Steps: 2}

	sc := &spendConfig{budget: base}
	SpendBudget(ExecutionBudget{Mem: 10, Steps: 20})(sc)
	assert.Equal(t, &ExecutionBudget{Mem: 10, Steps: 20}, sc.budget)

	SpendEstimateBudget()(sc)
	assert.Nil(t, sc.budget)
}

func TestParseConfirmationPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want ConfirmationPolicy
		err  bool
	}{
		{"lenient", Lenient, false},
		{"strict", Strict, false},
		{"eventual", Lenient, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseConfirmationPolicy(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}
