package zkdeploy_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	zkdeploy "github.com/branched-services/go-zkdeploy"
	"github.com/branched-services/go-zkdeploy/chaintest"
	"github.com/branched-services/go-zkdeploy/internal/emulator"
)

var errStaleCollateral = errors.New("InsufficientCollateral: collateral input is not unspent")

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// failSubmits rejects the first n submissions made after it is installed
// with err.
func failSubmits(l *chaintest.Ledger, n int64, err error) {
	base := l.SubmitCalls.Load()
	l.SubmitFn = func(attempt int64, _ zkdeploy.SignedTx) error {
		if attempt-base <= n {
			return err
		}
		return nil
	}
}

func TestDeployLocksValueWithDatum(t *testing.T) {
	h := chaintest.NewHarness(t)
	l := h.Ledger()

	lockTx := h.Deploy(0, zkdeploy.NewInt(35))

	addr, err := h.Orchestrator().ScriptAddress(0)
	require.NoError(t, err)

	deposits := l.UTxOsAt(addr)
	require.Len(t, deposits, 1)
	deposit := deposits[0]
	assert.Equal(t, lockTx, deposit.Ref.TxHash)
	assert.Equal(t, int64(zkdeploy.DefaultLockAmount), zkdeploy.QuantityOf(deposit.Amount, zkdeploy.Lovelace).Int64())
	assert.True(t, zkdeploy.NewInt(35).Equal(deposit.InlineDatum))

	t.Run("nil datum locks void", func(t *testing.T) {
		h := chaintest.NewHarness(t)
		lockTx := h.Deploy(1, nil)
		addr, err := h.Orchestrator().ScriptAddress(1)
		require.NoError(t, err)

		deposits := h.Ledger().UTxOsAt(addr)
		require.Len(t, deposits, 1)
		assert.Equal(t, lockTx, deposits[0].Ref.TxHash)
		assert.True(t, zkdeploy.Void().Equal(deposits[0].InlineDatum))
	})
}

func TestDeploySubmissionFailureIsNotRetried(t *testing.T) {
	h := chaintest.NewHarness(t)
	l := h.Ledger()
	failSubmits(l, 1, errStaleCollateral)

	_, err := h.Orchestrator().Deploy(testContext(t), 0, zkdeploy.Void())
	require.ErrorIs(t, err, zkdeploy.ErrInsufficientCollateral)
	assert.Equal(t, int64(1), l.SubmitCalls.Load())
}

func TestDeployUnknownValidator(t *testing.T) {
	h := chaintest.NewHarness(t)

	_, err := h.Orchestrator().Deploy(testContext(t), 7, zkdeploy.Void())
	var vnf *zkdeploy.ValidatorNotFoundError
	require.ErrorAs(t, err, &vnf)
	assert.Equal(t, 7, vnf.Index)
	assert.Equal(t, int64(0), h.Ledger().SubmitCalls.Load())
}

func TestDeployThenSpendAwaitsVisibility(t *testing.T) {
	h := chaintest.NewHarness(t)
	l := h.Ledger()
	l.HiddenPolls = 2

	lockTx := h.Deploy(0, zkdeploy.NewInt(35))
	assert.Equal(t, int64(3), l.FetchCalls.Load(), "lock confirmed on the third poll")

	spendTx := h.Spend(0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	assert.Equal(t, int64(3+1+3), l.FetchCalls.Load(), "one deposit lookup, then three polls")

	addr, err := h.Orchestrator().ScriptAddress(0)
	require.NoError(t, err)
	assert.Empty(t, l.UTxOsAt(addr), "deposit consumed")

	change, err := l.FetchUTxOs(context.Background(), spendTx)
	require.NoError(t, err)
	require.Len(t, change, 1)
	assert.Equal(t, l.WalletAddress(), change[0].Address)
}

func TestSpendBeforeLockIsVisible(t *testing.T) {
	h := chaintest.NewHarness(t, zkdeploy.WithoutConfirmation())
	l := h.Ledger()
	l.HiddenPolls = 2

	lockTx := h.Deploy(0, zkdeploy.Void())
	submits := l.SubmitCalls.Load()

	_, err := h.Orchestrator().Spend(testContext(t), 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	require.ErrorIs(t, err, chaintest.ErrTxNotFound)
	assert.Equal(t, submits, l.SubmitCalls.Load(), "nothing submitted without a resolved deposit")
}

func TestSpendCollateralRetry(t *testing.T) {
	for failures := int64(0); failures < zkdeploy.DefaultMaxSpendAttempts; failures++ {
		t.Run(fmt.Sprintf("%d collateral failures", failures), func(t *testing.T) {
			h := chaintest.NewHarness(t)
			l := h.Ledger()
			lockTx := h.Deploy(0, zkdeploy.NewInt(35))

			before, collateralBefore := l.SubmitCalls.Load(), l.CollateralCalls.Load()
			failSubmits(l, failures, errStaleCollateral)

			_, err := h.Orchestrator().Spend(testContext(t), 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
			require.NoError(t, err)
			assert.Equal(t, failures+1, l.SubmitCalls.Load()-before)
			assert.Equal(t, failures+1, l.CollateralCalls.Load()-collateralBefore, "collateral re-read every attempt")
		})
	}
}

func TestSpendRetriesExhausted(t *testing.T) {
	h := chaintest.NewHarness(t)
	l := h.Ledger()
	lockTx := h.Deploy(0, zkdeploy.NewInt(35))

	before := l.SubmitCalls.Load()
	failSubmits(l, 100, errStaleCollateral)

	_, err := h.Orchestrator().Spend(testContext(t), 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	require.ErrorIs(t, err, zkdeploy.ErrSpendRetriesExhausted)
	assert.Equal(t, int64(zkdeploy.DefaultMaxSpendAttempts), l.SubmitCalls.Load()-before)

	var sre *zkdeploy.SpendRetriesExhaustedError
	require.ErrorAs(t, err, &sre)
	assert.Equal(t, 5, sre.Attempts)
	assert.Equal(t, "zkdeploy: spend failed after 5 attempts to find unspent collateral", err.Error())

	t.Run("custom bound", func(t *testing.T) {
		h := chaintest.NewHarness(t, zkdeploy.WithMaxSpendAttempts(2))
		l := h.Ledger()
		lockTx := h.Deploy(0, zkdeploy.Void())

		before := l.SubmitCalls.Load()
		failSubmits(l, 100, errStaleCollateral)

		_, err := h.Orchestrator().Spend(testContext(t), 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
		require.ErrorIs(t, err, zkdeploy.ErrSpendRetriesExhausted)
		assert.Equal(t, int64(2), l.SubmitCalls.Load()-before)
	})
}

func TestSpendOtherFailureIsReturnedVerbatim(t *testing.T) {
	h := chaintest.NewHarness(t)
	l := h.Ledger()
	lockTx := h.Deploy(0, zkdeploy.NewInt(35))

	raw := errors.New("ValidationTagMismatch (IsValid True) (FailedUnexpectedly (PlutusFailure \"the validator crashed\"))")
	before := l.SubmitCalls.Load()
	failSubmits(l, 1, raw)

	_, err := h.Orchestrator().Spend(testContext(t), 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	require.Error(t, err)
	assert.Equal(t, raw.Error(), err.Error())
	assert.ErrorIs(t, err, raw)
	assert.NotErrorIs(t, err, zkdeploy.ErrInsufficientCollateral)
	assert.Equal(t, int64(1), l.SubmitCalls.Load()-before)
}

func TestSpendWithoutRetry(t *testing.T) {
	h := chaintest.NewHarness(t, zkdeploy.WithCollateralRetry(false))
	l := h.Ledger()
	lockTx := h.Deploy(0, zkdeploy.Void())

	before := l.SubmitCalls.Load()
	failSubmits(l, 1, errStaleCollateral)

	_, err := h.Orchestrator().Spend(testContext(t), 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	require.ErrorIs(t, err, zkdeploy.ErrInsufficientCollateral)
	assert.NotErrorIs(t, err, zkdeploy.ErrSpendRetriesExhausted)
	assert.Equal(t, int64(1), l.SubmitCalls.Load()-before)
}

func TestSpendRecoversFromCollateralRace(t *testing.T) {
	h := chaintest.NewHarness(t)
	l := h.Ledger()
	lockTx := h.Deploy(0, zkdeploy.NewInt(35))
	ctx := testContext(t)

	candidates, err := l.Collateral(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	stolen := candidates[0].Ref

	// A concurrent transaction consumes the first candidate after the
	// spend was built but before it reached the ledger.
	base := l.SubmitCalls.Load()
	l.SubmitFn = func(attempt int64, _ zkdeploy.SignedTx) error {
		if attempt == base+1 {
			l.Spend(stolen)
		}
		return nil
	}

	_, err = h.Orchestrator().Spend(ctx, 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	require.NoError(t, err)
	assert.Equal(t, int64(2), l.SubmitCalls.Load()-base)
}

func TestSpendProofRedeemerReachesLedger(t *testing.T) {
	budget := zkdeploy.ExecutionBudget{Mem: 1301280, Steps: 5031522698}
	h := chaintest.NewHarness(t, zkdeploy.WithExecutionBudget(budget))
	l := h.Ledger()
	lockTx := h.Deploy(1, zkdeploy.NewInt(35))

	proof := zkdeploy.MustBuildProof(strings.Repeat("a1", 48), strings.Repeat("b2", 96), strings.Repeat("c3", 48))
	redeemer := zkdeploy.BuildProofRedeemer(
		zkdeploy.NewConstr(0, zkdeploy.NewInt(5), zkdeploy.NewInt(7)),
		[]zkdeploy.Proof{proof},
	)

	var submitted *zkdeploy.TxDraft
	l.SubmitFn = func(_ int64, tx zkdeploy.SignedTx) error {
		body, _, err := emulator.OpenSigned(tx)
		require.NoError(t, err)
		submitted, err = emulator.DecodeDraft(body)
		require.NoError(t, err)
		return nil
	}

	h.Spend(1, lockTx, redeemer)

	require.NotNil(t, submitted)
	require.Len(t, submitted.ScriptInputs, 1)
	in := submitted.ScriptInputs[0]
	assert.True(t, redeemer.Data().Equal(in.Redeemer))
	assert.Equal(t, &budget, in.Budget)
	assert.Equal(t, chaintest.ProofCheckScript, in.Script)
	assert.Equal(t, [][]byte{l.WalletKeyHash()}, submitted.RequiredSigners)
	require.NotNil(t, submitted.Collateral)

	parsed := zkdeploy.ParseRedeemer(in.Redeemer)
	require.True(t, parsed.HasProofs())
	assert.Equal(t, []zkdeploy.Proof{proof}, parsed.Proofs())

	// A per-call option overrides the configured budget.
	lockTx = h.Deploy(1, zkdeploy.Void())
	_, err := h.Orchestrator().Spend(testContext(t), 1, lockTx, redeemer, zkdeploy.SpendEstimateBudget())
	require.NoError(t, err)
	assert.Nil(t, submitted.ScriptInputs[0].Budget)
}

func TestSpendDepositResolution(t *testing.T) {
	t.Run("no output at script address", func(t *testing.T) {
		h := chaintest.NewHarness(t)
		other := h.Ledger().Fund(3_000_000)

		_, err := h.Orchestrator().Spend(testContext(t), 0, other.Ref.TxHash, zkdeploy.BuildRedeemer(zkdeploy.Void()))
		var ure *zkdeploy.UtxoResolutionError
		require.ErrorAs(t, err, &ure)
		assert.Equal(t, 0, ure.Found)
		assert.Equal(t, other.Ref.TxHash, ure.TxHash)
	})

	t.Run("several outputs at script address", func(t *testing.T) {
		h := chaintest.NewHarness(t)
		addr, err := h.Orchestrator().ScriptAddress(0)
		require.NoError(t, err)

		tx := zkdeploy.TxHash{0x42}
		h.Ledger().FetchFn = func(zkdeploy.TxHash) ([]zkdeploy.UTxO, error) {
			return []zkdeploy.UTxO{
				{Ref: zkdeploy.OutRef{TxHash: tx, Index: 0}, Address: addr, Amount: zkdeploy.LovelaceAmount(1)},
				{Ref: zkdeploy.OutRef{TxHash: tx, Index: 1}, Address: addr, Amount: zkdeploy.LovelaceAmount(1)},
			}, nil
		}

		_, err = h.Orchestrator().Spend(testContext(t), 0, tx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
		var ure *zkdeploy.UtxoResolutionError
		require.ErrorAs(t, err, &ure)
		assert.Equal(t, 2, ure.Found)
		assert.Equal(t, int64(0), h.Ledger().SubmitCalls.Load())
	})

	t.Run("wrong validator", func(t *testing.T) {
		h := chaintest.NewHarness(t)
		lockTx := h.Deploy(0, zkdeploy.Void())

		_, err := h.Orchestrator().Spend(testContext(t), 1, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
		var ure *zkdeploy.UtxoResolutionError
		require.ErrorAs(t, err, &ure)
		assert.Equal(t, 0, ure.Found)
	})
}

func TestSpendWithoutCollateral(t *testing.T) {
	l := chaintest.NewLedger(t)
	l.Fund(4_000_000)
	orch := zkdeploy.NewOrchestrator(chaintest.DefaultContract(), zkdeploy.NewGateway(l),
		zkdeploy.WithPollInterval(time.Millisecond))

	lockTx, err := orch.Deploy(testContext(t), 0, zkdeploy.Void())
	require.NoError(t, err)

	_, err = orch.Spend(testContext(t), 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	assert.ErrorIs(t, err, zkdeploy.ErrNoCollateral)
}

func TestTransitions(t *testing.T) {
	h := chaintest.NewHarness(t)
	l := h.Ledger()

	ch := make(chan zkdeploy.Transition, 64)
	sub := h.Orchestrator().SubscribeTransitions(ch)
	defer sub.Unsubscribe()

	lockTx := h.Deploy(0, zkdeploy.NewInt(35))
	failSubmits(l, 1, errStaleCollateral)
	spendTx := h.Spend(0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))

	var got []zkdeploy.Transition
	for len(ch) > 0 {
		got = append(got, <-ch)
	}

	want := []zkdeploy.State{
		zkdeploy.BuildingLockTx, zkdeploy.SubmittingLockTx, zkdeploy.AwaitingLockConfirmation, zkdeploy.Locked,
		zkdeploy.BuildingSpendTx, zkdeploy.SubmittingSpendTx, zkdeploy.RetryCollateral,
		zkdeploy.BuildingSpendTx, zkdeploy.SubmittingSpendTx, zkdeploy.AwaitingSpendConfirmation, zkdeploy.Spent,
	}
	states := make([]zkdeploy.State, len(got))
	for i, tr := range got {
		states[i] = tr.To
	}
	require.Equal(t, want, states)

	deployOp, spendOp := got[0].Op, got[4].Op
	assert.NotEqual(t, deployOp, spendOp)
	for _, tr := range got[:4] {
		assert.Equal(t, deployOp, tr.Op)
	}
	for _, tr := range got[4:] {
		assert.Equal(t, spendOp, tr.Op)
	}

	assert.Equal(t, zkdeploy.Idle, got[0].From)
	assert.Equal(t, zkdeploy.Locked, got[4].From)
	assert.Equal(t, lockTx, got[3].TxHash)
	assert.ErrorIs(t, got[6].Err, zkdeploy.ErrInsufficientCollateral)
	assert.Equal(t, 2, got[7].Attempt)
	assert.Equal(t, spendTx, got[10].TxHash)
}

func TestTransitionsOnFailure(t *testing.T) {
	h := chaintest.NewHarness(t)
	ch := make(chan zkdeploy.Transition, 8)
	sub := h.Orchestrator().SubscribeTransitions(ch)
	defer sub.Unsubscribe()

	_, err := h.Orchestrator().Spend(testContext(t), 5, zkdeploy.TxHash{0x01}, zkdeploy.BuildRedeemer(nil))
	require.Error(t, err)

	require.Len(t, ch, 1)
	tr := <-ch
	assert.Equal(t, zkdeploy.Locked, tr.From)
	assert.Equal(t, zkdeploy.Failed, tr.To)
	assert.Equal(t, err, tr.Err)
}

func TestOrchestratorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := chaintest.NewHarness(t, zkdeploy.WithMetrics(reg))
	l := h.Ledger()

	lockTx := h.Deploy(0, zkdeploy.Void())
	failSubmits(l, 2, errStaleCollateral)
	h.Spend(0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))

	assert.Equal(t, map[string]float64{"ok": 2, "insufficient_collateral": 2},
		counterValues(t, reg, "zkdeploy_submissions_total", "outcome"))
	assert.Equal(t, map[string]float64{"deploy": 1, "spend": 3},
		counterValues(t, reg, "zkdeploy_submissions_total", "operation"))

	t.Run("registries are shared", func(t *testing.T) {
		assert.NotPanics(t, func() {
			zkdeploy.NewOrchestrator(h.Contract(), zkdeploy.NewGateway(l), zkdeploy.WithMetrics(reg))
			zkdeploy.NewConfirmationWatcher(zkdeploy.NewGateway(l), zkdeploy.WithMetrics(reg))
		})
	})
}

func TestSubmissionMetricsCountOnlySubmits(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := chaintest.NewHarness(t, zkdeploy.WithMetrics(reg))
	l := h.Ledger()

	lockTx := h.Deploy(0, zkdeploy.Void())

	// The first spend attempt fails while balancing, before any submission.
	base := l.CompleteCalls.Load()
	l.CompleteFn = func(call int64, _ *zkdeploy.TxDraft) error {
		if call == base+1 {
			return errStaleCollateral
		}
		return nil
	}
	submits := l.SubmitCalls.Load()
	h.Spend(0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))

	assert.Equal(t, int64(1), l.SubmitCalls.Load()-submits)
	assert.Equal(t, map[string]float64{"ok": 2},
		counterValues(t, reg, "zkdeploy_submissions_total", "outcome"))
	assert.Equal(t, map[string]float64{"deploy": 1, "spend": 1},
		counterValues(t, reg, "zkdeploy_submissions_total", "operation"))
}

func TestMetricsRegistrationConflictIsLogged(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkdeploy_submissions_total",
		Help: "Registered elsewhere with other labels.",
	}, []string{"kind"}))

	core, logs := observer.New(zap.WarnLevel)
	h := chaintest.NewHarness(t, zkdeploy.WithMetrics(reg), zkdeploy.WithLogger(zap.New(core)))

	assert.Equal(t, 1, logs.FilterMessage("metrics collector not registered").Len())

	lockTx := h.Deploy(0, zkdeploy.Void())
	h.Spend(0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	assert.Equal(t, map[string]float64{"confirmed": 2},
		counterValues(t, reg, "zkdeploy_confirmation_polls_total", "result"),
		"other collectors still record")
}
