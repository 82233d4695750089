package zkdeploy

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricsNamespace = "zkdeploy"

// Submission outcomes recorded in the submissions counter.
const (
	outcomeOK         = "ok"
	outcomeCollateral = "insufficient_collateral"
	outcomeRejected   = "rejected"
)

// metrics is nil-safe: a nil *metrics records nothing.
type metrics struct {
	submissions   *prometheus.CounterVec
	spendAttempts prometheus.Histogram
	polls         *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, logger *zap.Logger) *metrics {
	if reg == nil {
		return nil
	}
	return &metrics{
		submissions: register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_total",
			Help:      "Transaction submissions by operation and outcome.",
		}, []string{"operation", "outcome"})),
		spendAttempts: register(reg, logger, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "spend_attempts",
			Help:      "Submission attempts used per spend call.",
			Buckets:   prometheus.LinearBuckets(1, 1, DefaultMaxSpendAttempts),
		})),
		polls: register(reg, logger, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "confirmation_polls_total",
			Help:      "Confirmation polls by target and result.",
		}, []string{"target", "result"})),
	}
}

// register returns the already-registered collector when an identical one
// exists, so an orchestrator and a standalone watcher can share a registry.
// Any other registration failure is logged and leaves c unregistered.
func register[C prometheus.Collector](reg prometheus.Registerer, logger *zap.Logger, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	logger.Warn("metrics collector not registered", zap.Error(err))
	return c
}

func (m *metrics) submission(operation string, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	switch {
	case errors.Is(err, ErrInsufficientCollateral):
		outcome = outcomeCollateral
	case err != nil:
		outcome = outcomeRejected
	}
	m.submissions.WithLabelValues(operation, outcome).Inc()
}

func (m *metrics) attempts(n int) {
	if m == nil {
		return
	}
	m.spendAttempts.Observe(float64(n))
}

func (m *metrics) poll(target, result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(target, result).Inc()
}
