// Package chaintest provides an in-memory ledger and wallet implementing
// zkdeploy.Backend, for tests that drive the orchestrator end to end.
//
// Example usage:
//
//	l := chaintest.NewLedger(t)
//	l.Fund(100_000_000)
//	l.Fund(10_000_000) // collateral
//
//	orch := zkdeploy.NewOrchestrator(contract, zkdeploy.NewGateway(l),
//	    zkdeploy.WithPollInterval(time.Millisecond))
//
// Hooks on Ledger inject faults:
//
//	l.SubmitFn = func(attempt int64, tx zkdeploy.SignedTx) error {
//	    if attempt <= 2 {
//	        return errors.New("InsufficientCollateral")
//	    }
//	    return nil
//	}
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	zkdeploy "github.com/branched-services/go-zkdeploy"
	"github.com/branched-services/go-zkdeploy/internal/emulator"
)

var _ zkdeploy.Backend = (*Ledger)(nil)

// ErrTxNotFound is returned by FetchUTxOs for a transaction the ledger has
// not yet made visible.
var ErrTxNotFound = errors.New("chaintest: transaction not found")

// Ledger is an in-memory chain with a single wallet.
//
// A submitted transaction is applied immediately but becomes visible to
// FetchUTxOs only after HiddenPolls lookups, and its outputs join the
// wallet's collateral candidates only after CollateralLag lookups.
type Ledger struct {
	// HiddenPolls is how many FetchUTxOs calls for a new transaction
	// report it as not found.
	HiddenPolls int

	// CollateralLag is how many Collateral calls omit outputs of a new
	// transaction.
	CollateralLag int

	// SubmitFn runs before each submission with the 1-based call number.
	// A non-nil error rejects the transaction without applying it.
	SubmitFn func(attempt int64, tx zkdeploy.SignedTx) error

	// CompleteFn runs before each balancing with the 1-based call number.
	// A non-nil error is returned in place of the balanced transaction.
	CompleteFn func(call int64, draft *zkdeploy.TxDraft) error

	// FetchFn replaces FetchUTxOs when set.
	FetchFn func(txHash zkdeploy.TxHash) ([]zkdeploy.UTxO, error)

	// Call counters.
	FetchCalls      atomic.Int64
	CompleteCalls   atomic.Int64
	SignCalls       atomic.Int64
	SubmitCalls     atomic.Int64
	CollateralCalls atomic.Int64

	mu       sync.Mutex
	wallet   *emulator.Wallet
	network  zkdeploy.Network
	utxos    map[zkdeploy.OutRef]zkdeploy.UTxO
	txs      map[zkdeploy.TxHash]*txRecord
	order    []zkdeploy.TxHash
	fundings int
}

type txRecord struct {
	created        []zkdeploy.OutRef
	fetches        int
	collateralSeen int
}

// NewLedger creates an empty testnet ledger with a freshly generated wallet.
func NewLedger(tb testing.TB) *Ledger {
	tb.Helper()

	seed, err := emulator.GenerateSeed()
	if err != nil {
		tb.Fatalf("generate wallet key: %v", err)
	}
	l, err := NewLedgerWithSeed(seed, zkdeploy.Testnet)
	if err != nil {
		tb.Fatalf("create ledger: %v", err)
	}
	return l
}

// NewLedgerWithSeed creates an empty ledger whose wallet key is derived
// from seed.
func NewLedgerWithSeed(seed []byte, network zkdeploy.Network) (*Ledger, error) {
	w, err := emulator.NewWallet(seed, network)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		wallet:  w,
		network: network,
		utxos:   make(map[zkdeploy.OutRef]zkdeploy.UTxO),
		txs:     make(map[zkdeploy.TxHash]*txRecord),
	}, nil
}

// WalletAddress returns the wallet's address.
func (l *Ledger) WalletAddress() zkdeploy.Address {
	return l.wallet.Address()
}

// WalletKeyHash returns the wallet's payment key hash.
func (l *Ledger) WalletKeyHash() []byte {
	return l.wallet.KeyHash()
}

// Fund creates a visible wallet output of lovelace and returns it.
func (l *Ledger) Fund(lovelace uint64) zkdeploy.UTxO {
	return l.FundAddress(l.wallet.Address(), lovelace, nil)
}

// FundAddress creates a visible output at addr, as if by a faucet
// transaction already confirmed.
func (l *Ledger) FundAddress(addr zkdeploy.Address, lovelace uint64, datum zkdeploy.Data) zkdeploy.UTxO {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fundings++
	var h zkdeploy.TxHash
	copy(h[:], fmt.Sprintf("chaintest-funding-%015d", l.fundings))
	h = emulator.TxHashOf(h[:])

	u := zkdeploy.UTxO{
		Ref:         zkdeploy.OutRef{TxHash: h, Index: 0},
		Address:     addr,
		Amount:      zkdeploy.LovelaceAmount(lovelace),
		InlineDatum: datum,
	}
	l.utxos[u.Ref] = u
	l.txs[h] = &txRecord{
		created:        []zkdeploy.OutRef{u.Ref},
		fetches:        l.HiddenPolls,
		collateralSeen: l.CollateralLag,
	}
	l.order = append(l.order, h)
	return u
}

// Spend removes an output as if a transaction outside the wallet's view had
// consumed it.
func (l *Ledger) Spend(ref zkdeploy.OutRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.utxos, ref)
}

// UTxO returns the unspent output at ref.
func (l *Ledger) UTxO(ref zkdeploy.OutRef) (zkdeploy.UTxO, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.utxos[ref]
	return u, ok
}

// UTxOsAt returns the unspent outputs at addr.
func (l *Ledger) UTxOsAt(addr zkdeploy.Address) []zkdeploy.UTxO {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.utxosAt(addr)
}

// FetchUTxOs returns the unspent outputs created by txHash.
func (l *Ledger) FetchUTxOs(ctx context.Context, txHash zkdeploy.TxHash) ([]zkdeploy.UTxO, error) {
	l.FetchCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.FetchFn != nil {
		return l.FetchFn(txHash)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.txs[txHash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txHash)
	}
	if rec.fetches < l.HiddenPolls {
		rec.fetches++
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txHash)
	}
	var out []zkdeploy.UTxO
	for _, ref := range rec.created {
		if u, ok := l.utxos[ref]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// CompleteTx balances and serialises draft.
func (l *Ledger) CompleteTx(ctx context.Context, draft *zkdeploy.TxDraft) (zkdeploy.UnsignedTx, error) {
	call := l.CompleteCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.CompleteFn != nil {
		if err := l.CompleteFn(call, draft); err != nil {
			return nil, err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return emulator.Complete(l.lookup, draft)
}

// SignTx witnesses tx with the wallet key.
func (l *Ledger) SignTx(ctx context.Context, tx zkdeploy.UnsignedTx) (zkdeploy.SignedTx, error) {
	l.SignCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.wallet.Sign(tx)
}

// SubmitTx validates and applies tx.
func (l *Ledger) SubmitTx(ctx context.Context, tx zkdeploy.SignedTx) (zkdeploy.TxHash, error) {
	attempt := l.SubmitCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return zkdeploy.TxHash{}, err
	}
	if l.SubmitFn != nil {
		if err := l.SubmitFn(attempt, tx); err != nil {
			return zkdeploy.TxHash{}, err
		}
	}

	body, signer, err := emulator.OpenSigned(tx)
	if err != nil {
		return zkdeploy.TxHash{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	effect, err := emulator.Apply(l.lookup, body, signer)
	if err != nil {
		return zkdeploy.TxHash{}, err
	}
	if _, dup := l.txs[effect.TxHash]; dup {
		return zkdeploy.TxHash{}, fmt.Errorf("BadInputsUTxO: transaction %s already applied", effect.TxHash)
	}

	rec := &txRecord{}
	for _, ref := range effect.Spent {
		delete(l.utxos, ref)
	}
	for _, u := range effect.Created {
		l.utxos[u.Ref] = u
		rec.created = append(rec.created, u.Ref)
	}
	l.txs[effect.TxHash] = rec
	l.order = append(l.order, effect.TxHash)
	return effect.TxHash, nil
}

// WalletUTxOs lists the wallet's unspent outputs.
func (l *Ledger) WalletUTxOs(ctx context.Context) ([]zkdeploy.UTxO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.utxosAt(l.wallet.Address()), nil
}

// UsedAddresses returns the wallet's single address.
func (l *Ledger) UsedAddresses(ctx context.Context) ([]zkdeploy.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []zkdeploy.Address{l.wallet.Address()}, nil
}

// Collateral lists collateral-eligible wallet outputs whose transactions
// have passed CollateralLag.
func (l *Ledger) Collateral(ctx context.Context) ([]zkdeploy.UTxO, error) {
	l.CollateralCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var synced []zkdeploy.UTxO
	for _, u := range emulator.CollateralCandidates(l.utxosAt(l.wallet.Address())) {
		rec := l.txs[u.Ref.TxHash]
		if rec != nil && rec.collateralSeen < l.CollateralLag {
			rec.collateralSeen++
			continue
		}
		synced = append(synced, u)
	}
	return synced, nil
}

func (l *Ledger) lookup(ref zkdeploy.OutRef) (zkdeploy.UTxO, bool) {
	u, ok := l.utxos[ref]
	return u, ok
}

// utxosAt returns outputs at addr in creation order. Callers hold l.mu.
func (l *Ledger) utxosAt(addr zkdeploy.Address) []zkdeploy.UTxO {
	pos := make(map[zkdeploy.TxHash]int, len(l.order))
	for i, h := range l.order {
		pos[h] = i
	}
	var out []zkdeploy.UTxO
	for _, u := range l.utxos {
		if u.Address == addr {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := pos[out[i].Ref.TxHash], pos[out[j].Ref.TxHash]
		if pi != pj {
			return pi < pj
		}
		return out[i].Ref.Index < out[j].Ref.Index
	})
	return out
}
