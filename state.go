package zkdeploy

import (
	"github.com/google/uuid"
)

// State is a step of the deploy/spend protocol.
type State uint8

const (
	// Idle is the state before a deploy begins.
	Idle State = iota
	// BuildingLockTx drafts the transaction paying to the script address.
	BuildingLockTx
	// SubmittingLockTx balances, signs and submits the lock transaction.
	SubmittingLockTx
	// AwaitingLockConfirmation polls until the lock transaction is visible.
	AwaitingLockConfirmation
	// Locked means the deposit is at the script address. Spends start here.
	Locked
	// BuildingSpendTx drafts a spend attempt with fresh collateral.
	BuildingSpendTx
	// SubmittingSpendTx balances, signs and submits a spend attempt.
	SubmittingSpendTx
	// RetryCollateral follows an attempt rejected for stale collateral.
	RetryCollateral
	// AwaitingSpendConfirmation polls until the spend transaction is visible.
	AwaitingSpendConfirmation
	// Spent means the deposit was consumed.
	Spent
	// Failed ends a call that returned an error.
	Failed
)

var stateNames = [...]string{
	Idle:                      "idle",
	BuildingLockTx:            "building-lock-tx",
	SubmittingLockTx:          "submitting-lock-tx",
	AwaitingLockConfirmation:  "awaiting-lock-confirmation",
	Locked:                    "locked",
	BuildingSpendTx:           "building-spend-tx",
	SubmittingSpendTx:         "submitting-spend-tx",
	RetryCollateral:           "retry-collateral",
	AwaitingSpendConfirmation: "awaiting-spend-confirmation",
	Spent:                     "spent",
	Failed:                    "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s within one call.
func (s State) Terminal() bool {
	return s == Locked || s == Spent || s == Failed
}

// Transition is published on every state change of a Deploy or Spend call.
type Transition struct {
	Op      uuid.UUID
	From    State
	To      State
	Attempt int
	TxHash  TxHash
	Err     error
}

// operation tracks the state of one Deploy or Spend call.
type operation struct {
	o     *Orchestrator
	id    uuid.UUID
	state State
}

func (o *Orchestrator) begin(start State) *operation {
	return &operation{o: o, id: uuid.New(), state: start}
}

func (op *operation) enter(s State, attempt int, tx TxHash, err error) {
	t := Transition{Op: op.id, From: op.state, To: s, Attempt: attempt, TxHash: tx, Err: err}
	op.state = s
	op.o.feed.Send(t)
}

func (op *operation) fail(attempt int, err error) error {
	op.enter(Failed, attempt, TxHash{}, err)
	return err
}
