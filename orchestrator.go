package zkdeploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"
)

// Orchestrator locks value at validator addresses and later spends it.
//
// One Orchestrator may serve many calls, but calls against the same wallet
// must not run concurrently: each builds its transaction from the wallet
// view at that moment, and two builds from one view double-spend inputs.
type Orchestrator struct {
	contract *Contract
	gw       ChainGateway
	watcher  *ConfirmationWatcher
	cfg      *config
	metrics  *metrics
	feed     event.Feed
}

// NewOrchestrator creates an orchestrator for contract, talking to the chain
// through gw. The caller owns gw.
func NewOrchestrator(contract *Contract, gw ChainGateway, opts ...Option) *Orchestrator {
	cfg := newConfig(opts)
	m := newMetrics(cfg.registerer, cfg.logger)
	return &Orchestrator{
		contract: contract,
		gw:       gw,
		watcher:  newWatcher(gw, cfg, m),
		cfg:      cfg,
		metrics:  m,
	}
}

// Watcher returns the confirmation watcher used after submissions.
func (o *Orchestrator) Watcher() *ConfirmationWatcher {
	return o.watcher
}

// SubscribeTransitions delivers every state transition to ch. Delivery is
// synchronous: a subscriber that stops receiving stalls Deploy and Spend.
func (o *Orchestrator) SubscribeTransitions(ch chan<- Transition) event.Subscription {
	return o.feed.Subscribe(ch)
}

// ScriptAddress returns the address of the validator at index.
func (o *Orchestrator) ScriptAddress(validatorIndex int) (Address, error) {
	v, err := o.contract.Validator(validatorIndex)
	if err != nil {
		return "", err
	}
	return v.Address(o.cfg.network)
}

// Deploy locks the configured amount at the validator's address with datum
// as inline data, then waits for confirmation. Submission failures are not
// retried. A nil datum locks the unit value.
func (o *Orchestrator) Deploy(ctx context.Context, validatorIndex int, datum Data) (TxHash, error) {
	op := o.begin(Idle)
	log := o.cfg.logger.With(zap.String("op", op.id.String()), zap.Int("validator", validatorIndex))

	if datum == nil {
		datum = Void()
	}

	addr, err := o.ScriptAddress(validatorIndex)
	if err != nil {
		return TxHash{}, op.fail(0, err)
	}

	op.enter(BuildingLockTx, 0, TxHash{}, nil)
	walletAddr, err := o.gw.WalletAddress(ctx)
	if err != nil {
		return TxHash{}, op.fail(0, err)
	}
	utxos, err := o.gw.WalletUTxOs(ctx)
	if err != nil {
		return TxHash{}, op.fail(0, err)
	}
	draft, err := NewTxBuilder().
		PayTo(addr, LovelaceAmount(o.cfg.lockAmount)).
		InlineDatum(datum).
		ChangeAddress(walletAddr).
		SelectUtxosFrom(utxos).
		Build()
	if err != nil {
		return TxHash{}, op.fail(0, err)
	}

	op.enter(SubmittingLockTx, 0, TxHash{}, nil)
	txHash, err := o.submit(ctx, "deploy", draft)
	if err != nil {
		log.Warn("lock submission failed", zap.Error(err))
		return TxHash{}, op.fail(0, err)
	}

	if o.cfg.awaitConfirmation {
		op.enter(AwaitingLockConfirmation, 0, txHash, nil)
		if _, err := o.watcher.AwaitConfirmation(ctx, txHash); err != nil {
			return TxHash{}, op.fail(0, err)
		}
	}

	op.enter(Locked, 0, txHash, nil)
	log.Info("value locked", zap.Stringer("tx", txHash), zap.Stringer("address", addr),
		zap.Uint64("lovelace", o.cfg.lockAmount))
	return txHash, nil
}

// Spend consumes the output that lockingTx created at the validator's
// address under redeemer.
//
// Each attempt selects collateral afresh. An attempt that fails with
// ErrInsufficientCollateral is retried up to the configured bound; any
// other failure is returned unchanged.
func (o *Orchestrator) Spend(ctx context.Context, validatorIndex int, lockingTx TxHash, redeemer Redeemer, opts ...SpendOption) (TxHash, error) {
	sc := &spendConfig{budget: o.cfg.executionBudget}
	for _, opt := range opts {
		opt(sc)
	}

	op := o.begin(Locked)
	log := o.cfg.logger.With(zap.String("op", op.id.String()), zap.Int("validator", validatorIndex),
		zap.Stringer("deposit", lockingTx))

	v, err := o.contract.Validator(validatorIndex)
	if err != nil {
		return TxHash{}, op.fail(0, err)
	}
	addr, err := v.Address(o.cfg.network)
	if err != nil {
		return TxHash{}, op.fail(0, err)
	}

	deposit, err := o.resolveDeposit(ctx, lockingTx, addr)
	if err != nil {
		return TxHash{}, op.fail(0, err)
	}

	redeemerData := redeemer.Data()
	attempts := 1
	if o.cfg.retryOnInsufficientCollateral {
		attempts = o.cfg.maxSpendAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		op.enter(BuildingSpendTx, attempt, TxHash{}, nil)
		draft, err := o.buildSpend(ctx, deposit, v.Script, redeemerData, sc.budget)
		if err != nil {
			return TxHash{}, op.fail(attempt, err)
		}

		op.enter(SubmittingSpendTx, attempt, TxHash{}, nil)
		txHash, err := o.submit(ctx, "spend", draft)
		if err == nil {
			o.metrics.attempts(attempt)
			if o.cfg.awaitConfirmation {
				op.enter(AwaitingSpendConfirmation, attempt, txHash, nil)
				if _, err := o.watcher.AwaitConfirmation(ctx, txHash); err != nil {
					return TxHash{}, op.fail(attempt, err)
				}
			}
			op.enter(Spent, attempt, txHash, nil)
			log.Info("value unlocked", zap.Stringer("tx", txHash), zap.Int("attempt", attempt),
				zap.Bool("proofs", redeemer.HasProofs()))
			return txHash, nil
		}

		if !o.cfg.retryOnInsufficientCollateral || !errors.Is(err, ErrInsufficientCollateral) {
			log.Warn("spend submission failed", zap.Int("attempt", attempt), zap.Error(err))
			o.metrics.attempts(attempt)
			return TxHash{}, op.fail(attempt, err)
		}

		lastErr = err
		op.enter(RetryCollateral, attempt, TxHash{}, err)
		log.Info("collateral was stale, retrying", zap.Int("attempt", attempt), zap.Int("max", attempts))
	}

	o.metrics.attempts(attempts)
	return TxHash{}, op.fail(attempts, &SpendRetriesExhaustedError{Attempts: attempts, Last: lastErr})
}

// resolveDeposit finds the single output of lockingTx at addr.
func (o *Orchestrator) resolveDeposit(ctx context.Context, lockingTx TxHash, addr Address) (UTxO, error) {
	utxos, err := o.gw.FetchUTxOsAt(ctx, lockingTx, addr)
	if err != nil {
		return UTxO{}, fmt.Errorf("zkdeploy: fetch deposit %s: %w", lockingTx, err)
	}
	if len(utxos) != 1 {
		return UTxO{}, &UtxoResolutionError{TxHash: lockingTx, Address: addr, Found: len(utxos)}
	}
	return utxos[0], nil
}

// buildSpend reads the wallet view afresh and drafts one spend attempt.
func (o *Orchestrator) buildSpend(ctx context.Context, deposit UTxO, script []byte, redeemer Data, budget *ExecutionBudget) (*TxDraft, error) {
	collateral, err := o.gw.Collateral(ctx)
	if err != nil {
		return nil, err
	}
	if len(collateral) == 0 {
		return nil, ErrNoCollateral
	}
	walletAddr, err := o.gw.WalletAddress(ctx)
	if err != nil {
		return nil, err
	}
	signer, err := PaymentKeyHash(walletAddr)
	if err != nil {
		return nil, err
	}
	utxos, err := o.gw.WalletUTxOs(ctx)
	if err != nil {
		return nil, err
	}

	return NewTxBuilder().
		SpendScript(deposit, script, redeemer, budget).
		RequiredSigner(signer).
		ChangeAddress(walletAddr).
		Collateral(collateral[0]).
		SelectUtxosFrom(utxos).
		Build()
}

// submit balances, signs and submits draft. Only the final step counts as a
// submission in metrics.
func (o *Orchestrator) submit(ctx context.Context, operation string, draft *TxDraft) (TxHash, error) {
	unsigned, err := o.gw.Complete(ctx, draft)
	if err != nil {
		return TxHash{}, err
	}
	signed, err := o.gw.Sign(ctx, unsigned)
	if err != nil {
		return TxHash{}, err
	}
	txHash, err := o.gw.Submit(ctx, signed)
	o.metrics.submission(operation, err)
	return txHash, err
}
