// Package localnet is a single-node development ledger persisted in badger.
//
// A Node implements zkdeploy.Backend for one wallet: it balances, signs,
// validates and applies transactions locally, so the deploy and spend flow
// can run without a hosted chain provider. Transactions are visible as soon
// as they are accepted. Scripts are not evaluated.
package localnet

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	zkdeploy "github.com/branched-services/go-zkdeploy"
	"github.com/branched-services/go-zkdeploy/internal/emulator"
)

var _ zkdeploy.Backend = (*Node)(nil)

// ErrTxNotFound is returned by FetchUTxOs for a transaction the node has
// never accepted.
var ErrTxNotFound = errors.New("localnet: transaction not found")

// Key prefixes.
var (
	prefixUTxO = []byte("u/")
	prefixTx   = []byte("t/")
	keyNonce   = []byte("m/faucet-nonce")
)

// Option configures a Node.
type Option func(*options)

type options struct {
	network  zkdeploy.Network
	logger   *zap.Logger
	inMemory bool
}

// WithNetwork selects the address network. Default is testnet.
func WithNetwork(n zkdeploy.Network) Option {
	return func(o *options) {
		o.network = n
	}
}

// WithLogger sets the logger; badger's own logs are routed into it.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// InMemory keeps the ledger in memory only; the directory is ignored.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// Node is a local ledger with one wallet.
type Node struct {
	db     *badgerdb.DB
	wallet *emulator.Wallet
	logger *zap.Logger

	// submitMu serialises Apply so concurrent submissions of conflicting
	// transactions see each other's effects.
	submitMu sync.Mutex
}

// Open opens or creates the ledger in dir, with the wallet derived from the
// hex signing key in keyText.
func Open(dir string, keyText []byte, opts ...Option) (*Node, error) {
	o := &options{network: zkdeploy.Testnet, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	seed, err := emulator.ParseSeed(keyText)
	if err != nil {
		return nil, fmt.Errorf("localnet: %w", err)
	}
	wallet, err := emulator.NewWallet(seed, o.network)
	if err != nil {
		return nil, fmt.Errorf("localnet: %w", err)
	}

	var bopts badgerdb.Options
	if o.inMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("localnet: create data dir: %w", err)
		}
		bopts = badgerdb.DefaultOptions(dir)
	}
	bopts.Logger = newBadgerLogger(o.logger)

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("localnet: open %s: %w", dir, err)
	}

	o.logger.Info("localnet opened", zap.String("dir", dir), zap.Bool("in_memory", o.inMemory),
		zap.Stringer("wallet", wallet.Address()), zap.Stringer("network", o.network))
	return &Node{db: db, wallet: wallet, logger: o.logger}, nil
}

// Close flushes and closes the ledger.
func (n *Node) Close() error {
	return n.db.Close()
}

// WalletAddress returns the node wallet's address.
func (n *Node) WalletAddress() zkdeploy.Address {
	return n.wallet.Address()
}

// Faucet mints a wallet output of lovelace.
func (n *Node) Faucet(ctx context.Context, lovelace uint64) (zkdeploy.UTxO, error) {
	if err := ctx.Err(); err != nil {
		return zkdeploy.UTxO{}, err
	}
	if lovelace == 0 {
		return zkdeploy.UTxO{}, errors.New("localnet: faucet amount must be positive")
	}

	n.submitMu.Lock()
	defer n.submitMu.Unlock()

	var minted zkdeploy.UTxO
	err := n.db.Update(func(txn *badgerdb.Txn) error {
		nonce, err := readNonce(txn)
		if err != nil {
			return err
		}
		nonce++
		var seed [16]byte
		copy(seed[:], "faucet")
		binary.BigEndian.PutUint64(seed[8:], nonce)
		h := emulator.TxHashOf(append(n.wallet.KeyHash(), seed[:]...))

		minted = zkdeploy.UTxO{
			Ref:     zkdeploy.OutRef{TxHash: h, Index: 0},
			Address: n.wallet.Address(),
			Amount:  zkdeploy.LovelaceAmount(lovelace),
		}
		if err := writeEffect(txn, &emulator.Effect{TxHash: h, Created: []zkdeploy.UTxO{minted}}); err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], nonce)
		return txn.Set(keyNonce, buf[:])
	})
	if err != nil {
		return zkdeploy.UTxO{}, fmt.Errorf("localnet: faucet: %w", err)
	}
	n.logger.Info("faucet minted", zap.Stringer("utxo", minted.Ref), zap.Uint64("lovelace", lovelace))
	return minted, nil
}

// Balance returns the wallet's total lovelace.
func (n *Node) Balance(ctx context.Context) (*big.Int, error) {
	utxos, err := n.WalletUTxOs(ctx)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, u := range utxos {
		total.Add(total, zkdeploy.QuantityOf(u.Amount, zkdeploy.Lovelace))
	}
	return total, nil
}

// FetchUTxOs returns the still-unspent outputs created by txHash.
func (n *Node) FetchUTxOs(ctx context.Context, txHash zkdeploy.TxHash) ([]zkdeploy.UTxO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []zkdeploy.UTxO
	err := n.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(txKey(txHash))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrTxNotFound, txHash)
		}
		if err != nil {
			return err
		}
		var indexes []uint32
		if err := item.Value(func(v []byte) error { return cbor.Unmarshal(v, &indexes) }); err != nil {
			return err
		}
		for _, idx := range indexes {
			u, ok, err := getUTxO(txn, zkdeploy.OutRef{TxHash: txHash, Index: idx})
			if err != nil {
				return err
			}
			if ok {
				out = append(out, u)
			}
		}
		return nil
	})
	return out, err
}

// CompleteTx balances and serialises draft.
func (n *Node) CompleteTx(ctx context.Context, draft *zkdeploy.TxDraft) (zkdeploy.UnsignedTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body zkdeploy.UnsignedTx
	err := n.db.View(func(txn *badgerdb.Txn) error {
		var err error
		body, err = emulator.Complete(lookupIn(txn), draft)
		return err
	})
	return body, err
}

// SignTx witnesses tx with the wallet key.
func (n *Node) SignTx(ctx context.Context, tx zkdeploy.UnsignedTx) (zkdeploy.SignedTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return n.wallet.Sign(tx)
}

// SubmitTx validates tx against the ledger and applies it.
func (n *Node) SubmitTx(ctx context.Context, tx zkdeploy.SignedTx) (zkdeploy.TxHash, error) {
	if err := ctx.Err(); err != nil {
		return zkdeploy.TxHash{}, err
	}
	body, signer, err := emulator.OpenSigned(tx)
	if err != nil {
		return zkdeploy.TxHash{}, err
	}

	n.submitMu.Lock()
	defer n.submitMu.Unlock()

	var effect *emulator.Effect
	err = n.db.Update(func(txn *badgerdb.Txn) error {
		var err error
		effect, err = emulator.Apply(lookupIn(txn), body, signer)
		if err != nil {
			return err
		}
		if _, err := txn.Get(txKey(effect.TxHash)); err == nil {
			return fmt.Errorf("BadInputsUTxO: transaction %s already applied", effect.TxHash)
		}
		return writeEffect(txn, effect)
	})
	if err != nil {
		n.logger.Debug("transaction rejected", zap.Error(err))
		return zkdeploy.TxHash{}, err
	}
	n.logger.Info("transaction accepted", zap.Stringer("tx", effect.TxHash),
		zap.Int("spent", len(effect.Spent)), zap.Int("created", len(effect.Created)))
	return effect.TxHash, nil
}

// WalletUTxOs lists the wallet's unspent outputs.
func (n *Node) WalletUTxOs(ctx context.Context) ([]zkdeploy.UTxO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return n.utxosAt(n.wallet.Address())
}

// UsedAddresses returns the wallet's single address.
func (n *Node) UsedAddresses(ctx context.Context) ([]zkdeploy.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []zkdeploy.Address{n.wallet.Address()}, nil
}

// Collateral lists collateral-eligible wallet outputs, largest first.
func (n *Node) Collateral(ctx context.Context) ([]zkdeploy.UTxO, error) {
	utxos, err := n.WalletUTxOs(ctx)
	if err != nil {
		return nil, err
	}
	return emulator.CollateralCandidates(utxos), nil
}

// UTxOsAt returns the unspent outputs at addr.
func (n *Node) UTxOsAt(ctx context.Context, addr zkdeploy.Address) ([]zkdeploy.UTxO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return n.utxosAt(addr)
}

func (n *Node) utxosAt(addr zkdeploy.Address) ([]zkdeploy.UTxO, error) {
	var out []zkdeploy.UTxO
	err := n.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefixUTxO
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixUTxO); it.ValidForPrefix(prefixUTxO); it.Next() {
			var u zkdeploy.UTxO
			err := it.Item().Value(func(v []byte) error {
				var err error
				u, err = emulator.DecodeUTxO(v)
				return err
			})
			if err != nil {
				return err
			}
			if u.Address == addr {
				out = append(out, u)
			}
		}
		return nil
	})
	return out, err
}

func utxoKey(ref zkdeploy.OutRef) []byte {
	key := make([]byte, 0, len(prefixUTxO)+len(ref.TxHash)+4)
	key = append(key, prefixUTxO...)
	key = append(key, ref.TxHash[:]...)
	return binary.BigEndian.AppendUint32(key, ref.Index)
}

func txKey(h zkdeploy.TxHash) []byte {
	return append(bytes.Clone(prefixTx), h[:]...)
}

func getUTxO(txn *badgerdb.Txn, ref zkdeploy.OutRef) (zkdeploy.UTxO, bool, error) {
	item, err := txn.Get(utxoKey(ref))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return zkdeploy.UTxO{}, false, nil
	}
	if err != nil {
		return zkdeploy.UTxO{}, false, err
	}
	var u zkdeploy.UTxO
	err = item.Value(func(v []byte) error {
		var err error
		u, err = emulator.DecodeUTxO(v)
		return err
	})
	return u, err == nil, err
}

// lookupIn adapts a badger transaction to the emulator's lookup. Storage
// errors read as "not unspent"; the surrounding transaction surfaces them.
func lookupIn(txn *badgerdb.Txn) emulator.Lookup {
	return func(ref zkdeploy.OutRef) (zkdeploy.UTxO, bool) {
		u, ok, err := getUTxO(txn, ref)
		return u, ok && err == nil
	}
}

func writeEffect(txn *badgerdb.Txn, effect *emulator.Effect) error {
	for _, ref := range effect.Spent {
		if err := txn.Delete(utxoKey(ref)); err != nil {
			return err
		}
	}
	indexes := make([]uint32, 0, len(effect.Created))
	for _, u := range effect.Created {
		v, err := emulator.EncodeUTxO(u)
		if err != nil {
			return err
		}
		if err := txn.Set(utxoKey(u.Ref), v); err != nil {
			return err
		}
		indexes = append(indexes, u.Ref.Index)
	}
	v, err := cbor.Marshal(indexes)
	if err != nil {
		return err
	}
	return txn.Set(txKey(effect.TxHash), v)
}

func readNonce(txn *badgerdb.Txn) (uint64, error) {
	item, err := txn.Get(keyNonce)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var nonce uint64
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("corrupt faucet nonce (%d bytes)", len(v))
		}
		nonce = binary.BigEndian.Uint64(v)
		return nil
	})
	return nonce, err
}
