package emulator

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

const (
	// Fee is the flat fee charged to every transaction.
	Fee = 200_000

	// MinCollateral is the smallest lovelace-only output accepted as collateral.
	MinCollateral = 5_000_000
)

// Lookup returns the unspent output at ref, if any.
type Lookup func(ref zkdeploy.OutRef) (zkdeploy.UTxO, bool)

// Effect is the state change one accepted transaction makes.
type Effect struct {
	TxHash  zkdeploy.TxHash
	Spent   []zkdeploy.OutRef
	Created []zkdeploy.UTxO
}

// Complete checks that draft can be balanced against the current state and
// serialises it. Ledger rules are enforced again by Apply.
func Complete(lookup Lookup, draft *zkdeploy.TxDraft) (zkdeploy.UnsignedTx, error) {
	if draft == nil {
		return nil, errors.New("nil transaction draft")
	}
	body, err := EncodeDraft(draft)
	if err != nil {
		return nil, err
	}
	if _, err := balance(lookup, draft, TxHashOf(body)); err != nil {
		return nil, err
	}
	return body, nil
}

// Apply validates a signed transaction body against the state seen through
// lookup and returns its effect. Failure messages carry the ledger rule
// name as their prefix.
func Apply(lookup Lookup, body []byte, signer []byte) (*Effect, error) {
	draft, err := DecodeDraft(body)
	if err != nil {
		return nil, err
	}
	txHash := TxHashOf(body)

	for _, in := range draft.ScriptInputs {
		u, ok := lookup(in.UTxO.Ref)
		if !ok {
			return nil, fmt.Errorf("BadInputsUTxO: script input %s is not unspent", in.UTxO.Ref)
		}
		if err := checkScriptOwner(u, in.Script); err != nil {
			return nil, err
		}
	}

	if draft.HasScriptInputs() {
		if draft.Collateral == nil {
			return nil, errors.New("NoCollateralInputs: script transaction without collateral")
		}
		c, ok := lookup(draft.Collateral.Ref)
		if !ok {
			return nil, fmt.Errorf("InsufficientCollateral: collateral input %s is not unspent", draft.Collateral.Ref)
		}
		if !IsCollateral(c) {
			return nil, fmt.Errorf("InsufficientCollateral: collateral input %s holds %s lovelace", c.Ref,
				zkdeploy.QuantityOf(c.Amount, zkdeploy.Lovelace))
		}
	}

	for _, rs := range draft.RequiredSigners {
		if !bytes.Equal(rs, signer) {
			return nil, fmt.Errorf("MissingRequiredSigners: %x has not signed", rs)
		}
	}

	return balance(lookup, draft, txHash)
}

// IsCollateral reports whether u may back script execution.
func IsCollateral(u zkdeploy.UTxO) bool {
	for _, a := range u.Amount {
		if a.Unit != zkdeploy.Lovelace && a.Quantity != nil && a.Quantity.Sign() > 0 {
			return false
		}
	}
	return zkdeploy.QuantityOf(u.Amount, zkdeploy.Lovelace).Cmp(big.NewInt(MinCollateral)) >= 0
}

// CollateralCandidates filters utxos to collateral-eligible outputs,
// largest first, ties broken by output reference.
func CollateralCandidates(utxos []zkdeploy.UTxO) []zkdeploy.UTxO {
	var out []zkdeploy.UTxO
	for _, u := range utxos {
		if IsCollateral(u) {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		qi := zkdeploy.QuantityOf(out[i].Amount, zkdeploy.Lovelace)
		qj := zkdeploy.QuantityOf(out[j].Amount, zkdeploy.Lovelace)
		if c := qi.Cmp(qj); c != 0 {
			return c > 0
		}
		return out[i].Ref.String() < out[j].Ref.String()
	})
	return out
}

func checkScriptOwner(u zkdeploy.UTxO, script []byte) error {
	network, err := u.Address.Network()
	if err != nil {
		return err
	}
	want, err := zkdeploy.ScriptAddress(zkdeploy.ScriptHash(script), network)
	if err != nil {
		return err
	}
	if u.Address != want {
		return fmt.Errorf("ScriptHashMismatch: %s is not locked by the supplied script", u.Ref)
	}
	return nil
}

// balance selects funding inputs, computes change and returns the effect.
func balance(lookup Lookup, draft *zkdeploy.TxDraft, txHash zkdeploy.TxHash) (*Effect, error) {
	effect := &Effect{TxHash: txHash}
	held := map[string]*big.Int{}
	need := map[string]*big.Int{zkdeploy.Lovelace: big.NewInt(Fee)}
	spent := map[zkdeploy.OutRef]bool{}

	consume := func(u zkdeploy.UTxO) {
		spent[u.Ref] = true
		effect.Spent = append(effect.Spent, u.Ref)
		addAssets(held, u.Amount)
	}
	for _, in := range draft.ScriptInputs {
		u, ok := lookup(in.UTxO.Ref)
		if !ok {
			return nil, fmt.Errorf("BadInputsUTxO: script input %s is not unspent", in.UTxO.Ref)
		}
		consume(u)
	}
	for _, out := range draft.Outputs {
		addAssets(need, out.Amount)
	}

	for _, candidate := range draft.SelectFrom {
		if covered(held, need) {
			break
		}
		if spent[candidate.Ref] || (draft.Collateral != nil && candidate.Ref == draft.Collateral.Ref) {
			continue
		}
		u, ok := lookup(candidate.Ref)
		if !ok {
			continue
		}
		consume(u)
	}
	if !covered(held, need) {
		unit, short := shortfall(held, need)
		return nil, fmt.Errorf("UTxOBalanceInsufficient: %s more %s needed", short, unit)
	}

	for i, out := range draft.Outputs {
		effect.Created = append(effect.Created, zkdeploy.UTxO{
			Ref:         zkdeploy.OutRef{TxHash: txHash, Index: uint32(i)},
			Address:     out.Address,
			Amount:      out.Amount,
			InlineDatum: out.InlineDatum,
		})
	}
	if change := subtract(held, need); len(change) > 0 {
		effect.Created = append(effect.Created, zkdeploy.UTxO{
			Ref:     zkdeploy.OutRef{TxHash: txHash, Index: uint32(len(draft.Outputs))},
			Address: draft.ChangeAddress,
			Amount:  change,
		})
	}
	return effect, nil
}

func addAssets(into map[string]*big.Int, assets []zkdeploy.Asset) {
	for _, a := range assets {
		if a.Quantity == nil {
			continue
		}
		if into[a.Unit] == nil {
			into[a.Unit] = new(big.Int)
		}
		into[a.Unit].Add(into[a.Unit], a.Quantity)
	}
}

func covered(held, need map[string]*big.Int) bool {
	_, short := shortfall(held, need)
	return short == nil
}

func shortfall(held, need map[string]*big.Int) (string, *big.Int) {
	for _, unit := range sortedUnits(need) {
		have := held[unit]
		if have == nil {
			have = new(big.Int)
		}
		if have.Cmp(need[unit]) < 0 {
			return unit, new(big.Int).Sub(need[unit], have)
		}
	}
	return "", nil
}

func subtract(held, need map[string]*big.Int) []zkdeploy.Asset {
	var out []zkdeploy.Asset
	for _, unit := range sortedUnits(held) {
		rest := new(big.Int).Set(held[unit])
		if n := need[unit]; n != nil {
			rest.Sub(rest, n)
		}
		if rest.Sign() > 0 {
			out = append(out, zkdeploy.Asset{Unit: unit, Quantity: rest})
		}
	}
	return out
}

// sortedUnits puts lovelace first, then the rest in lexical order.
func sortedUnits(m map[string]*big.Int) []string {
	units := make([]string, 0, len(m))
	for u := range m {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i] == zkdeploy.Lovelace || units[j] == zkdeploy.Lovelace {
			return units[i] == zkdeploy.Lovelace && units[j] != zkdeploy.Lovelace
		}
		return units[i] < units[j]
	})
	return units
}
