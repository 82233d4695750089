package zkdeploy

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrMalformedProof indicates a proof element has the wrong length or encoding.
	ErrMalformedProof = errors.New("zkdeploy: malformed proof")

	// ErrInsufficientCollateral indicates the ledger rejected a spend because the
	// pledged collateral was already consumed or too small.
	ErrInsufficientCollateral = errors.New("zkdeploy: insufficient collateral")

	// ErrSpendRetriesExhausted indicates every spend attempt hit insufficient collateral.
	ErrSpendRetriesExhausted = errors.New("zkdeploy: spend retries exhausted")

	// ErrNoWalletAddress indicates the wallet reported no used address.
	ErrNoWalletAddress = errors.New("zkdeploy: wallet has no used address")

	// ErrNoCollateral indicates the wallet reported no collateral candidate.
	ErrNoCollateral = errors.New("zkdeploy: wallet has no collateral candidate")

	// ErrMissingCollateral indicates a script input was added without collateral.
	ErrMissingCollateral = errors.New("zkdeploy: script input requires collateral")

	// ErrMissingChangeAddress indicates a transaction has no change address.
	ErrMissingChangeAddress = errors.New("zkdeploy: change address not set")

	// ErrEmptyTransaction indicates a transaction has neither script inputs nor outputs.
	ErrEmptyTransaction = errors.New("zkdeploy: transaction has no inputs or outputs")

	// ErrInvalidAddress indicates an address could not be decoded.
	ErrInvalidAddress = errors.New("zkdeploy: invalid address")

	// ErrInvalidTxHash indicates a transaction id is not 32 hex-encoded bytes.
	ErrInvalidTxHash = errors.New("zkdeploy: invalid transaction hash")
)

// ValidatorNotFoundError indicates a validator index outside the contract's list.
type ValidatorNotFoundError struct {
	Index int
	Count int
}

func (e *ValidatorNotFoundError) Error() string {
	return fmt.Sprintf("zkdeploy: validator index %d out of range (contract has %d)", e.Index, e.Count)
}

// UtxoResolutionError indicates a deposit lookup matched zero or several outputs.
type UtxoResolutionError struct {
	TxHash  TxHash
	Address Address
	Found   int
}

func (e *UtxoResolutionError) Error() string {
	if e.Found == 0 {
		return fmt.Sprintf("zkdeploy: no output of tx %s found at %s", e.TxHash, e.Address)
	}
	return fmt.Sprintf("zkdeploy: %d outputs of tx %s found at %s, expected exactly one", e.Found, e.TxHash, e.Address)
}

// MalformedProofError describes which proof element violated its length.
type MalformedProofError struct {
	Element string
	Want    int
	Got     int
	Err     error
}

func (e *MalformedProofError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zkdeploy: malformed proof: element %s: %v", e.Element, e.Err)
	}
	return fmt.Sprintf("zkdeploy: malformed proof: element %s has %d hex characters, want %d", e.Element, e.Got, e.Want)
}

func (e *MalformedProofError) Unwrap() error {
	return ErrMalformedProof
}

// SubmitErrorKind classifies a failed submission.
type SubmitErrorKind uint8

const (
	// SubmitRejected covers every failure other than stale collateral.
	SubmitRejected SubmitErrorKind = iota

	// SubmitInsufficientCollateral is the transient collateral race.
	SubmitInsufficientCollateral
)

// SubmitError is the gateway's typed translation of a raw submission failure.
// Error returns the raw message unchanged so validator rejection reasons survive.
type SubmitError struct {
	Kind SubmitErrorKind
	Err  error
}

func (e *SubmitError) Error() string {
	return e.Err.Error()
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Is reports collateral failures as ErrInsufficientCollateral.
func (e *SubmitError) Is(target error) bool {
	return target == ErrInsufficientCollateral && e.Kind == SubmitInsufficientCollateral
}

// SpendRetriesExhaustedError is returned after the last collateral retry fails.
type SpendRetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *SpendRetriesExhaustedError) Error() string {
	return fmt.Sprintf("zkdeploy: spend failed after %d attempts to find unspent collateral", e.Attempts)
}

func (e *SpendRetriesExhaustedError) Unwrap() []error {
	return []error{ErrSpendRetriesExhausted, e.Last}
}

// DataError indicates a failure while encoding or decoding structured data.
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("zkdeploy: %s data: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}
