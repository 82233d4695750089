package zkdeploy

import (
	"errors"
	"fmt"
)

// TxOutput is an output the transaction creates.
type TxOutput struct {
	Address     Address
	Amount      []Asset
	InlineDatum Data
}

// ScriptInput is a script-locked output the transaction consumes.
type ScriptInput struct {
	UTxO     UTxO
	Script   []byte
	Redeemer Data
	Budget   *ExecutionBudget
}

// TxDraft is the declarative description of a transaction, handed to the
// gateway for balancing, fee calculation and serialisation.
type TxDraft struct {
	ScriptInputs    []ScriptInput
	Outputs         []TxOutput
	Collateral      *UTxO
	RequiredSigners [][]byte
	ChangeAddress   Address
	SelectFrom      []UTxO
}

// HasScriptInputs reports whether the draft consumes any script-locked output.
func (d *TxDraft) HasScriptInputs() bool {
	return len(d.ScriptInputs) > 0
}

// TxBuilder assembles a TxDraft. Methods record the first error and
// Build reports it, so calls can be chained.
type TxBuilder struct {
	draft TxDraft
	err   error
}

// NewTxBuilder creates an empty builder.
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{}
}

// PayTo adds an output of amount at addr.
func (b *TxBuilder) PayTo(addr Address, amount []Asset) *TxBuilder {
	if addr == "" {
		b.fail(fmt.Errorf("%w: empty output address", ErrInvalidAddress))
		return b
	}
	b.draft.Outputs = append(b.draft.Outputs, TxOutput{Address: addr, Amount: amount})
	return b
}

// InlineDatum attaches d to the most recently added output.
func (b *TxBuilder) InlineDatum(d Data) *TxBuilder {
	if len(b.draft.Outputs) == 0 {
		b.fail(errors.New("zkdeploy: inline datum without an output"))
		return b
	}
	b.draft.Outputs[len(b.draft.Outputs)-1].InlineDatum = d
	return b
}

// SpendScript consumes a script-locked output whose datum is inline.
// A nil budget leaves execution units to the gateway's estimator.
func (b *TxBuilder) SpendScript(utxo UTxO, script []byte, redeemer Data, budget *ExecutionBudget) *TxBuilder {
	switch {
	case len(script) == 0:
		b.fail(fmt.Errorf("zkdeploy: script input %s has no script", utxo.Ref))
		return b
	case redeemer == nil:
		b.fail(fmt.Errorf("zkdeploy: script input %s has no redeemer", utxo.Ref))
		return b
	}
	in := ScriptInput{UTxO: utxo, Script: script, Redeemer: redeemer}
	if budget != nil {
		cp := *budget
		in.Budget = &cp
	}
	b.draft.ScriptInputs = append(b.draft.ScriptInputs, in)
	return b
}

// RequiredSigner adds a key hash that must sign the transaction.
func (b *TxBuilder) RequiredSigner(keyHash []byte) *TxBuilder {
	if len(keyHash) != CredentialSize {
		b.fail(fmt.Errorf("zkdeploy: required signer is %d bytes, want %d", len(keyHash), CredentialSize))
		return b
	}
	b.draft.RequiredSigners = append(b.draft.RequiredSigners, keyHash)
	return b
}

// Collateral pledges utxo against script execution failure.
func (b *TxBuilder) Collateral(utxo UTxO) *TxBuilder {
	cp := utxo
	b.draft.Collateral = &cp
	return b
}

// ChangeAddress sets where leftover value returns.
func (b *TxBuilder) ChangeAddress(addr Address) *TxBuilder {
	b.draft.ChangeAddress = addr
	return b
}

// SelectUtxosFrom sets the outputs the gateway may use to fund the transaction.
func (b *TxBuilder) SelectUtxosFrom(utxos []UTxO) *TxBuilder {
	b.draft.SelectFrom = append([]UTxO(nil), utxos...)
	return b
}

// Build validates the draft and returns it.
func (b *TxBuilder) Build() (*TxDraft, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.draft.ChangeAddress == "" {
		return nil, ErrMissingChangeAddress
	}
	if len(b.draft.Outputs) == 0 && len(b.draft.ScriptInputs) == 0 {
		return nil, ErrEmptyTransaction
	}
	if b.draft.HasScriptInputs() && b.draft.Collateral == nil {
		return nil, ErrMissingCollateral
	}

	draft := b.draft
	draft.Outputs = append([]TxOutput(nil), b.draft.Outputs...)
	draft.ScriptInputs = append([]ScriptInput(nil), b.draft.ScriptInputs...)
	draft.RequiredSigners = append([][]byte(nil), b.draft.RequiredSigners...)
	return &draft, nil
}

func (b *TxBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
