package zkdeploy

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poll targets and results recorded in metrics.
const (
	pollTargetTx         = "tx"
	pollTargetCollateral = "collateral"

	pollPending   = "pending"
	pollConfirmed = "confirmed"
	pollError     = "error"
)

// ConfirmationWatcher polls the gateway until a transaction is visible.
//
// The watcher has no deadline of its own: a wait ends when the transaction
// is observed or when ctx is done. Gateway errors while polling count as
// "not yet confirmed".
type ConfirmationWatcher struct {
	gw       ChainGateway
	policy   ConfirmationPolicy
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics
}

// NewConfirmationWatcher creates a watcher. Relevant options are
// WithConfirmationPolicy, WithPollInterval, WithLogger and WithMetrics.
func NewConfirmationWatcher(gw ChainGateway, opts ...Option) *ConfirmationWatcher {
	cfg := newConfig(opts)
	return newWatcher(gw, cfg, newMetrics(cfg.registerer, cfg.logger))
}

func newWatcher(gw ChainGateway, cfg *config, m *metrics) *ConfirmationWatcher {
	return &ConfirmationWatcher{
		gw:       gw,
		policy:   cfg.confirmationPolicy,
		interval: cfg.pollInterval,
		logger:   cfg.logger,
		metrics:  m,
	}
}

// Policy returns the watcher's confirmation policy.
func (w *ConfirmationWatcher) Policy() ConfirmationPolicy {
	return w.policy
}

// AwaitConfirmation blocks until txHash is confirmed under the watcher's
// policy and returns the number of polls made.
func (w *ConfirmationWatcher) AwaitConfirmation(ctx context.Context, txHash TxHash) (int, error) {
	w.logger.Debug("awaiting confirmation", zap.Stringer("tx", txHash), zap.Stringer("policy", w.policy))
	return w.poll(ctx, pollTargetTx, txHash, func(ctx context.Context) (bool, error) {
		utxos, err := w.gw.FetchUTxOs(ctx, txHash)
		if err != nil {
			return false, err
		}
		return w.policy == Lenient || len(utxos) > 0, nil
	})
}

// AwaitCollateral blocks until the wallet's collateral candidates include an
// output of txHash, so a following spend does not race the wallet view.
func (w *ConfirmationWatcher) AwaitCollateral(ctx context.Context, txHash TxHash) (int, error) {
	w.logger.Debug("awaiting collateral sync", zap.Stringer("tx", txHash))
	return w.poll(ctx, pollTargetCollateral, txHash, func(ctx context.Context) (bool, error) {
		collateral, err := w.gw.Collateral(ctx)
		if err != nil {
			return false, err
		}
		for _, c := range collateral {
			if c.Ref.TxHash == txHash {
				return true, nil
			}
		}
		return false, nil
	})
}

func (w *ConfirmationWatcher) poll(ctx context.Context, target string, txHash TxHash, check func(context.Context) (bool, error)) (int, error) {
	for polls := 1; ; polls++ {
		ok, err := check(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return polls, ctx.Err()
		case err != nil:
			w.metrics.poll(target, pollError)
			w.logger.Debug("poll failed", zap.String("target", target), zap.Stringer("tx", txHash),
				zap.Int("poll", polls), zap.Error(err))
		case ok:
			w.metrics.poll(target, pollConfirmed)
			w.logger.Debug("confirmed", zap.String("target", target), zap.Stringer("tx", txHash), zap.Int("polls", polls))
			return polls, nil
		default:
			w.metrics.poll(target, pollPending)
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return polls, ctx.Err()
		case <-timer.C:
		}
	}
}
