// Package emulator implements the ledger rules shared by the in-memory and
// on-disk chain emulators: transaction serialisation, a simulated wallet,
// and the UTxO state transition.
package emulator

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

type wireAsset struct {
	_        struct{} `cbor:",toarray"`
	Unit     string
	Quantity *big.Int
}

type wireUTxO struct {
	_       struct{} `cbor:",toarray"`
	TxHash  []byte
	Index   uint32
	Address string
	Amount  []wireAsset
	Datum   []byte
}

type wireScriptInput struct {
	_        struct{} `cbor:",toarray"`
	UTxO     wireUTxO
	Script   []byte
	Redeemer []byte
	Budget   []uint64
}

type wireOutput struct {
	_       struct{} `cbor:",toarray"`
	Address string
	Amount  []wireAsset
	Datum   []byte
}

type wireTx struct {
	ScriptInputs    []wireScriptInput `cbor:"0,keyasint,omitempty"`
	Outputs         []wireOutput      `cbor:"1,keyasint,omitempty"`
	Collateral      *wireUTxO         `cbor:"2,keyasint,omitempty"`
	RequiredSigners [][]byte          `cbor:"3,keyasint,omitempty"`
	ChangeAddress   string            `cbor:"4,keyasint"`
	SelectFrom      []wireUTxO        `cbor:"5,keyasint,omitempty"`
}

type wireSigned struct {
	_         struct{} `cbor:",toarray"`
	Body      []byte
	Signer    []byte
	Signature []byte
}

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// EncodeDraft serialises a draft into an unsigned transaction body.
func EncodeDraft(d *zkdeploy.TxDraft) (zkdeploy.UnsignedTx, error) {
	w := wireTx{
		ChangeAddress:   string(d.ChangeAddress),
		RequiredSigners: d.RequiredSigners,
	}
	for _, in := range d.ScriptInputs {
		u, err := toWireUTxO(in.UTxO)
		if err != nil {
			return nil, err
		}
		redeemer, err := zkdeploy.EncodeData(in.Redeemer)
		if err != nil {
			return nil, err
		}
		wi := wireScriptInput{UTxO: u, Script: in.Script, Redeemer: redeemer}
		if in.Budget != nil {
			wi.Budget = []uint64{in.Budget.Mem, in.Budget.Steps}
		}
		w.ScriptInputs = append(w.ScriptInputs, wi)
	}
	for _, out := range d.Outputs {
		wo := wireOutput{Address: string(out.Address), Amount: toWireAssets(out.Amount)}
		if out.InlineDatum != nil {
			datum, err := zkdeploy.EncodeData(out.InlineDatum)
			if err != nil {
				return nil, err
			}
			wo.Datum = datum
		}
		w.Outputs = append(w.Outputs, wo)
	}
	if d.Collateral != nil {
		c, err := toWireUTxO(*d.Collateral)
		if err != nil {
			return nil, err
		}
		w.Collateral = &c
	}
	for _, u := range d.SelectFrom {
		wu, err := toWireUTxO(u)
		if err != nil {
			return nil, err
		}
		w.SelectFrom = append(w.SelectFrom, wu)
	}
	return encMode.Marshal(w)
}

// DecodeDraft parses an unsigned transaction body.
func DecodeDraft(b zkdeploy.UnsignedTx) (*zkdeploy.TxDraft, error) {
	var w wireTx
	if err := cbor.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode tx body: %w", err)
	}
	d := &zkdeploy.TxDraft{
		ChangeAddress:   zkdeploy.Address(w.ChangeAddress),
		RequiredSigners: w.RequiredSigners,
	}
	for _, wi := range w.ScriptInputs {
		u, err := fromWireUTxO(wi.UTxO)
		if err != nil {
			return nil, err
		}
		redeemer, err := zkdeploy.DecodeData(wi.Redeemer)
		if err != nil {
			return nil, err
		}
		in := zkdeploy.ScriptInput{UTxO: u, Script: wi.Script, Redeemer: redeemer}
		if len(wi.Budget) == 2 {
			in.Budget = &zkdeploy.ExecutionBudget{Mem: wi.Budget[0], Steps: wi.Budget[1]}
		}
		d.ScriptInputs = append(d.ScriptInputs, in)
	}
	for _, wo := range w.Outputs {
		out := zkdeploy.TxOutput{Address: zkdeploy.Address(wo.Address), Amount: fromWireAssets(wo.Amount)}
		if len(wo.Datum) > 0 {
			datum, err := zkdeploy.DecodeData(wo.Datum)
			if err != nil {
				return nil, err
			}
			out.InlineDatum = datum
		}
		d.Outputs = append(d.Outputs, out)
	}
	if w.Collateral != nil {
		c, err := fromWireUTxO(*w.Collateral)
		if err != nil {
			return nil, err
		}
		d.Collateral = &c
	}
	for _, wu := range w.SelectFrom {
		u, err := fromWireUTxO(wu)
		if err != nil {
			return nil, err
		}
		d.SelectFrom = append(d.SelectFrom, u)
	}
	return d, nil
}

// EncodeUTxO serialises one output for storage.
func EncodeUTxO(u zkdeploy.UTxO) ([]byte, error) {
	w, err := toWireUTxO(u)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// DecodeUTxO parses an output written by EncodeUTxO.
func DecodeUTxO(b []byte) (zkdeploy.UTxO, error) {
	var w wireUTxO
	if err := cbor.Unmarshal(b, &w); err != nil {
		return zkdeploy.UTxO{}, fmt.Errorf("decode utxo: %w", err)
	}
	return fromWireUTxO(w)
}

// TxHashOf returns the id of a transaction body: blake2b-256 of its bytes.
func TxHashOf(body []byte) zkdeploy.TxHash {
	return zkdeploy.TxHash(blake2b.Sum256(body))
}

func toWireUTxO(u zkdeploy.UTxO) (wireUTxO, error) {
	w := wireUTxO{
		TxHash:  u.Ref.TxHash[:],
		Index:   u.Ref.Index,
		Address: string(u.Address),
		Amount:  toWireAssets(u.Amount),
	}
	if u.InlineDatum != nil {
		datum, err := zkdeploy.EncodeData(u.InlineDatum)
		if err != nil {
			return w, err
		}
		w.Datum = datum
	}
	return w, nil
}

func fromWireUTxO(w wireUTxO) (zkdeploy.UTxO, error) {
	var h zkdeploy.TxHash
	if len(w.TxHash) != len(h) {
		return zkdeploy.UTxO{}, fmt.Errorf("utxo tx hash is %d bytes", len(w.TxHash))
	}
	copy(h[:], w.TxHash)
	u := zkdeploy.UTxO{
		Ref:     zkdeploy.OutRef{TxHash: h, Index: w.Index},
		Address: zkdeploy.Address(w.Address),
		Amount:  fromWireAssets(w.Amount),
	}
	if len(w.Datum) > 0 {
		datum, err := zkdeploy.DecodeData(w.Datum)
		if err != nil {
			return zkdeploy.UTxO{}, err
		}
		u.InlineDatum = datum
	}
	return u, nil
}

func toWireAssets(assets []zkdeploy.Asset) []wireAsset {
	out := make([]wireAsset, 0, len(assets))
	for _, a := range assets {
		q := a.Quantity
		if q == nil {
			q = new(big.Int)
		}
		out = append(out, wireAsset{Unit: a.Unit, Quantity: q})
	}
	return out
}

func fromWireAssets(ws []wireAsset) []zkdeploy.Asset {
	out := make([]zkdeploy.Asset, 0, len(ws))
	for _, w := range ws {
		out = append(out, zkdeploy.Asset{Unit: w.Unit, Quantity: w.Quantity})
	}
	return out
}
