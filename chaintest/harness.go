package chaintest

import (
	"context"
	"testing"
	"time"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

// Scripts of the default contract's validators. The emulator does not
// evaluate scripts, so any bytes serve; distinct bytes give distinct
// addresses.
var (
	AlwaysSucceedsScript = []byte{0x46, 0x01, 0x00, 0x00, 0x22, 0x49, 0x01}
	ProofCheckScript     = []byte{0x58, 0x20, 0x01, 0x00, 0x00, 0x32, 0x22, 0x25, 0x33, 0x49, 0x01, 0x10}
)

// DefaultContract returns a contract with two validators: an always-succeeds
// script at index 0 and a proof-checking script at index 1.
func DefaultContract() *zkdeploy.Contract {
	return zkdeploy.NewContract(
		&zkdeploy.Validator{Title: "always_succeeds.spend", Script: AlwaysSucceedsScript},
		&zkdeploy.Validator{Title: "proof_check.spend", Script: ProofCheckScript},
	)
}

// Harness wires an Orchestrator to a funded Ledger for tests.
type Harness struct {
	t        testing.TB
	ledger   *Ledger
	contract *zkdeploy.Contract
	orch     *zkdeploy.Orchestrator
}

// NewHarness creates a ledger holding one funding output of 100 ADA and one
// collateral output of 10 ADA, and an orchestrator over DefaultContract
// that polls every millisecond. opts are applied after those defaults.
func NewHarness(t testing.TB, opts ...zkdeploy.Option) *Harness {
	t.Helper()

	l := NewLedger(t)
	l.Fund(100_000_000)
	l.Fund(10_000_000)

	contract := DefaultContract()
	opts = append([]zkdeploy.Option{zkdeploy.WithPollInterval(time.Millisecond)}, opts...)
	return &Harness{
		t:        t,
		ledger:   l,
		contract: contract,
		orch:     zkdeploy.NewOrchestrator(contract, zkdeploy.NewGateway(l), opts...),
	}
}

// Ledger returns the underlying ledger for fault injection.
func (h *Harness) Ledger() *Ledger {
	return h.ledger
}

// Contract returns the harness contract.
func (h *Harness) Contract() *zkdeploy.Contract {
	return h.contract
}

// Orchestrator returns the orchestrator under test.
func (h *Harness) Orchestrator() *zkdeploy.Orchestrator {
	return h.orch
}

// Deploy locks value at validator index and fails the test on error.
func (h *Harness) Deploy(validatorIndex int, datum zkdeploy.Data) zkdeploy.TxHash {
	h.t.Helper()
	tx, err := h.orch.Deploy(h.context(), validatorIndex, datum)
	if err != nil {
		h.t.Fatalf("Deploy (validator=%d) failed: %v", validatorIndex, err)
	}
	return tx
}

// Spend unlocks the deposit of lockingTx and fails the test on error.
func (h *Harness) Spend(validatorIndex int, lockingTx zkdeploy.TxHash, redeemer zkdeploy.Redeemer) zkdeploy.TxHash {
	h.t.Helper()
	tx, err := h.orch.Spend(h.context(), validatorIndex, lockingTx, redeemer)
	if err != nil {
		h.t.Fatalf("Spend (validator=%d, deposit=%s) failed: %v", validatorIndex, lockingTx, err)
	}
	return tx
}

func (h *Harness) context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}
