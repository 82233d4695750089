package zkdeploy

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// UnsignedTx is a balanced, serialised transaction awaiting signatures.
type UnsignedTx []byte

// SignedTx is a serialised transaction carrying the wallet's witnesses.
type SignedTx []byte

// Backend is the raw chain-interaction collaborator: a ledger provider and
// a wallet holding the signing key. Its errors are untyped.
type Backend interface {
	// FetchUTxOs returns the unspent outputs created by txHash.
	FetchUTxOs(ctx context.Context, txHash TxHash) ([]UTxO, error)

	// CompleteTx selects funding inputs, computes fees and serialises the draft.
	CompleteTx(ctx context.Context, draft *TxDraft) (UnsignedTx, error)

	// SignTx adds the wallet's witnesses.
	SignTx(ctx context.Context, tx UnsignedTx) (SignedTx, error)

	// SubmitTx sends a signed transaction to the network.
	SubmitTx(ctx context.Context, tx SignedTx) (TxHash, error)

	// WalletUTxOs lists outputs spendable by the wallet.
	WalletUTxOs(ctx context.Context) ([]UTxO, error)

	// UsedAddresses lists the wallet's addresses, the first being its primary.
	UsedAddresses(ctx context.Context) ([]Address, error)

	// Collateral lists wallet outputs usable as collateral.
	Collateral(ctx context.Context) ([]UTxO, error)
}

// ChainGateway is the typed view of the chain collaborator used by the
// orchestrator and the confirmation watcher. Submission failures are
// reported as *SubmitError.
type ChainGateway interface {
	FetchUTxOs(ctx context.Context, txHash TxHash) ([]UTxO, error)
	FetchUTxOsAt(ctx context.Context, txHash TxHash, addr Address) ([]UTxO, error)
	Complete(ctx context.Context, draft *TxDraft) (UnsignedTx, error)
	Sign(ctx context.Context, tx UnsignedTx) (SignedTx, error)
	Submit(ctx context.Context, tx SignedTx) (TxHash, error)
	WalletUTxOs(ctx context.Context) ([]UTxO, error)
	WalletAddress(ctx context.Context) (Address, error)
	Collateral(ctx context.Context) ([]UTxO, error)
}

// DefaultCollateralMarkers are the ledger failure names that identify a
// stale or insufficient collateral input.
var DefaultCollateralMarkers = []string{"InsufficientCollateral"}

var _ ChainGateway = (*Gateway)(nil)

// Gateway adapts a Backend into a ChainGateway. Raw submission errors are
// translated into the typed taxonomy here, once.
type Gateway struct {
	backend Backend
	markers []string
	logger  *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the gateway's logger.
func WithGatewayLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithCollateralMarkers replaces the substrings that mark a collateral failure.
func WithCollateralMarkers(markers ...string) GatewayOption {
	return func(g *Gateway) {
		g.markers = append([]string(nil), markers...)
	}
}

// NewGateway wraps backend. The caller owns the backend's lifecycle.
func NewGateway(backend Backend, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend: backend,
		markers: DefaultCollateralMarkers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchUTxOs returns the unspent outputs created by txHash.
func (g *Gateway) FetchUTxOs(ctx context.Context, txHash TxHash) ([]UTxO, error) {
	return g.backend.FetchUTxOs(ctx, txHash)
}

// FetchUTxOsAt returns the unspent outputs created by txHash at addr.
func (g *Gateway) FetchUTxOsAt(ctx context.Context, txHash TxHash, addr Address) ([]UTxO, error) {
	utxos, err := g.backend.FetchUTxOs(ctx, txHash)
	if err != nil {
		return nil, err
	}
	matching := make([]UTxO, 0, 1)
	for _, u := range utxos {
		if u.Address == addr {
			matching = append(matching, u)
		}
	}
	return matching, nil
}

// Complete balances and serialises a draft. Collateral failures reported by
// the backend's script evaluation are classified like submission failures.
func (g *Gateway) Complete(ctx context.Context, draft *TxDraft) (UnsignedTx, error) {
	tx, err := g.backend.CompleteTx(ctx, draft)
	if err != nil {
		return nil, g.classify(err)
	}
	return tx, nil
}

// Sign adds the wallet's witnesses.
func (g *Gateway) Sign(ctx context.Context, tx UnsignedTx) (SignedTx, error) {
	return g.backend.SignTx(ctx, tx)
}

// Submit sends tx and translates failures into *SubmitError.
func (g *Gateway) Submit(ctx context.Context, tx SignedTx) (TxHash, error) {
	h, err := g.backend.SubmitTx(ctx, tx)
	if err != nil {
		return TxHash{}, g.classify(err)
	}
	return h, nil
}

// WalletUTxOs lists outputs spendable by the wallet.
func (g *Gateway) WalletUTxOs(ctx context.Context) ([]UTxO, error) {
	return g.backend.WalletUTxOs(ctx)
}

// WalletAddress returns the wallet's primary address.
func (g *Gateway) WalletAddress(ctx context.Context) (Address, error) {
	addrs, err := g.backend.UsedAddresses(ctx)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", ErrNoWalletAddress
	}
	return addrs[0], nil
}

// Collateral lists wallet outputs usable as collateral.
func (g *Gateway) Collateral(ctx context.Context) ([]UTxO, error) {
	return g.backend.Collateral(ctx)
}

func (g *Gateway) classify(err error) error {
	var se *SubmitError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	for _, m := range g.markers {
		if strings.Contains(msg, m) {
			g.logger.Debug("classified collateral failure", zap.String("marker", m), zap.Error(err))
			return &SubmitError{Kind: SubmitInsufficientCollateral, Err: err}
		}
	}
	return &SubmitError{Kind: SubmitRejected, Err: err}
}
