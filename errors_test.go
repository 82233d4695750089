package zkdeploy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrMalformedProof", ErrMalformedProof, "zkdeploy: malformed proof"},
		{"ErrInsufficientCollateral", ErrInsufficientCollateral, "zkdeploy: insufficient collateral"},
		{"ErrSpendRetriesExhausted", ErrSpendRetriesExhausted, "zkdeploy: spend retries exhausted"},
		{"ErrNoWalletAddress", ErrNoWalletAddress, "zkdeploy: wallet has no used address"},
		{"ErrNoCollateral", ErrNoCollateral, "zkdeploy: wallet has no collateral candidate"},
		{"ErrMissingCollateral", ErrMissingCollateral, "zkdeploy: script input requires collateral"},
		{"ErrMissingChangeAddress", ErrMissingChangeAddress, "zkdeploy: change address not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.msg)
		})
	}
}

func TestUtxoResolutionError(t *testing.T) {
	tx := MustParseTxHash("9c8e4f2a000000000000000000000000000000000000000000000000000000ff")

	t.Run("none found", func(t *testing.T) {
		err := &UtxoResolutionError{TxHash: tx, Address: "addr_test1xyz", Found: 0}
		assert.Equal(t, "zkdeploy: no output of tx "+tx.String()+" found at addr_test1xyz", err.Error())
	})

	t.Run("several found", func(t *testing.T) {
		err := &UtxoResolutionError{TxHash: tx, Address: "addr_test1xyz", Found: 2}
		assert.Contains(t, err.Error(), "2 outputs")
		assert.Contains(t, err.Error(), "expected exactly one")
	})
}

func TestMalformedProofError(t *testing.T) {
	err := &MalformedProofError{Element: "B", Want: 192, Got: 190}

	assert.Equal(t, "zkdeploy: malformed proof: element B has 190 hex characters, want 192", err.Error())
	assert.ErrorIs(t, err, ErrMalformedProof)

	var target *MalformedProofError
	require.ErrorAs(t, error(err), &target)
	assert.Equal(t, "B", target.Element)
}

func TestSubmitError(t *testing.T) {
	raw := errors.New("ValidationTagMismatch: the validator crashed / exited prematurely")

	t.Run("rejected keeps raw message", func(t *testing.T) {
		err := &SubmitError{Kind: SubmitRejected, Err: raw}
		assert.Equal(t, raw.Error(), err.Error())
		assert.ErrorIs(t, err, raw)
		assert.NotErrorIs(t, err, ErrInsufficientCollateral)
	})

	t.Run("collateral matches sentinel", func(t *testing.T) {
		err := &SubmitError{Kind: SubmitInsufficientCollateral, Err: errors.New("InsufficientCollateral")}
		assert.ErrorIs(t, err, ErrInsufficientCollateral)
	})
}

func TestSpendRetriesExhaustedError(t *testing.T) {
	last := &SubmitError{Kind: SubmitInsufficientCollateral, Err: errors.New("InsufficientCollateral")}
	err := &SpendRetriesExhaustedError{Attempts: 5, Last: last}

	assert.Equal(t, "zkdeploy: spend failed after 5 attempts to find unspent collateral", err.Error())
	assert.ErrorIs(t, err, ErrSpendRetriesExhausted)
	assert.ErrorIs(t, err, last)
}

func TestDataError(t *testing.T) {
	inner := errors.New("unexpected EOF")
	err := &DataError{Op: "decode", Err: inner}

	assert.Equal(t, "zkdeploy: decode data: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, inner)
}
