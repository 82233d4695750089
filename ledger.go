package zkdeploy

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Lovelace is the unit name of the ledger's native coin.
const Lovelace = "lovelace"

// TxHash identifies a transaction on the ledger.
type TxHash common.Hash

// ParseTxHash parses 64 hex characters, with or without a 0x prefix.
func ParseTxHash(s string) (TxHash, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*common.HashLength {
		return TxHash{}, fmt.Errorf("%w: %q has %d characters", ErrInvalidTxHash, s, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return TxHash{}, fmt.Errorf("%w: %v", ErrInvalidTxHash, err)
	}
	return TxHash(common.BytesToHash(b)), nil
}

// MustParseTxHash is like ParseTxHash but panics on error.
func MustParseTxHash(s string) TxHash {
	h, err := ParseTxHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the bare lower-case hex form used by ledger explorers.
func (h TxHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is unset.
func (h TxHash) IsZero() bool {
	return common.Hash(h) == common.Hash{}
}

// MarshalText implements encoding.TextMarshaler.
func (h TxHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *TxHash) UnmarshalText(text []byte) error {
	parsed, err := ParseTxHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// OutRef points at one output of a transaction.
type OutRef struct {
	TxHash TxHash `json:"txHash"`
	Index  uint32 `json:"outputIndex"`
}

func (r OutRef) String() string {
	return fmt.Sprintf("%s#%d", r.TxHash, r.Index)
}

// Asset is a quantity of one unit (lovelace or policy id + asset name).
type Asset struct {
	Unit     string   `json:"unit"`
	Quantity *big.Int `json:"quantity"`
}

// LovelaceAmount returns a single-asset bundle of the native coin.
func LovelaceAmount(quantity uint64) []Asset {
	return []Asset{{Unit: Lovelace, Quantity: new(big.Int).SetUint64(quantity)}}
}

// QuantityOf sums the quantity of unit in an asset bundle.
func QuantityOf(assets []Asset, unit string) *big.Int {
	total := new(big.Int)
	for _, a := range assets {
		if a.Unit == unit && a.Quantity != nil {
			total.Add(total, a.Quantity)
		}
	}
	return total
}

// UTxO is an unspent transaction output.
type UTxO struct {
	Ref         OutRef
	Address     Address
	Amount      []Asset
	InlineDatum Data
}

// ExecutionBudget declares the memory and step units a script may consume.
type ExecutionBudget struct {
	Mem   uint64 `json:"mem" toml:"mem"`
	Steps uint64 `json:"steps" toml:"steps"`
}

func (b ExecutionBudget) String() string {
	return fmt.Sprintf("mem=%d steps=%d", b.Mem, b.Steps)
}
