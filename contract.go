package zkdeploy

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Validator is one compiled on-chain program from a contract blueprint.
type Validator struct {
	Title  string
	Script []byte
}

// Hash returns the script hash of the validator.
func (v *Validator) Hash() []byte {
	return ScriptHash(v.Script)
}

// Address returns the ledger address locked by the validator.
func (v *Validator) Address(network Network) (Address, error) {
	return ScriptAddress(v.Hash(), network)
}

// Contract is the ordered list of validators produced by the contract build.
// Validators are selected by index; the bytecode itself is opaque here.
type Contract struct {
	validators []*Validator
}

// blueprint is the subset of the build manifest this package reads.
type blueprint struct {
	Validators []struct {
		Title        string `json:"title"`
		CompiledCode string `json:"compiledCode"`
	} `json:"validators"`
}

// ParseContract reads a build manifest with a "validators" array whose
// entries carry hex "compiledCode".
func ParseContract(r io.Reader) (*Contract, error) {
	var bp blueprint
	if err := json.NewDecoder(r).Decode(&bp); err != nil {
		return nil, fmt.Errorf("zkdeploy: parse contract: %w", err)
	}

	c := &Contract{validators: make([]*Validator, 0, len(bp.Validators))}
	for i, v := range bp.Validators {
		script, err := hex.DecodeString(strings.TrimSpace(v.CompiledCode))
		if err != nil {
			return nil, fmt.Errorf("zkdeploy: parse contract: validator %d compiledCode: %w", i, err)
		}
		if len(script) == 0 {
			return nil, fmt.Errorf("zkdeploy: parse contract: validator %d has empty compiledCode", i)
		}
		c.validators = append(c.validators, &Validator{Title: v.Title, Script: script})
	}
	return c, nil
}

// LoadContract opens and parses a build manifest file.
func LoadContract(path string) (*Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zkdeploy: open contract: %w", err)
	}
	defer f.Close()
	return ParseContract(f)
}

// NewContract creates a Contract from already-decoded validators.
func NewContract(validators ...*Validator) *Contract {
	return &Contract{validators: validators}
}

// Validator returns the validator at index.
func (c *Contract) Validator(index int) (*Validator, error) {
	if index < 0 || index >= len(c.validators) {
		return nil, &ValidatorNotFoundError{Index: index, Count: len(c.validators)}
	}
	return c.validators[index], nil
}

// Len returns the number of validators.
func (c *Contract) Len() int {
	return len(c.validators)
}

// Titles returns validator titles in index order.
func (c *Contract) Titles() []string {
	titles := make([]string, len(c.validators))
	for i, v := range c.validators {
		titles[i] = v.Title
	}
	return titles
}
