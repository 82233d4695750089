package localnet

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

var testKey = []byte(strings.Repeat("5e", 32) + "\n")

func openTestNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	opts = append([]Option{InMemory(), WithLogger(zaptest.NewLogger(t))}, opts...)
	n, err := Open("", testKey, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

var testScript = []byte{0x46, 0x01, 0x00, 0x00, 0x22, 0x49, 0x01}

func testContract() *zkdeploy.Contract {
	return zkdeploy.NewContract(&zkdeploy.Validator{Title: "always_succeeds.spend", Script: testScript})
}

func TestOpenRejectsBadKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", "zz"},
		{"short", strings.Repeat("00", 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open("", []byte(tt.key), InMemory())
			assert.Error(t, err)
		})
	}
}

func TestFaucet(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()

	first, err := n.Faucet(ctx, 50_000_000)
	require.NoError(t, err)
	second, err := n.Faucet(ctx, 7_000_000)
	require.NoError(t, err)
	assert.NotEqual(t, first.Ref.TxHash, second.Ref.TxHash)
	assert.Equal(t, n.WalletAddress(), first.Address)

	balance, err := n.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(57_000_000), balance.Int64())

	got, err := n.FetchUTxOs(ctx, first.Ref.TxHash)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.Ref, got[0].Ref)

	collateral, err := n.Collateral(ctx)
	require.NoError(t, err)
	require.Len(t, collateral, 2)
	assert.Equal(t, first.Ref, collateral[0].Ref, "largest first")

	_, err = n.Faucet(ctx, 0)
	assert.Error(t, err)
}

func TestFetchUnknownTx(t *testing.T) {
	n := openTestNode(t)
	_, err := n.FetchUTxOs(context.Background(), zkdeploy.TxHash{0x01})
	assert.ErrorIs(t, err, ErrTxNotFound)
}

func TestDeployAndSpend(t *testing.T) {
	n := openTestNode(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := n.Faucet(ctx, 100_000_000)
	require.NoError(t, err)
	_, err = n.Faucet(ctx, 10_000_000)
	require.NoError(t, err)

	orch := zkdeploy.NewOrchestrator(testContract(), zkdeploy.NewGateway(n),
		zkdeploy.WithPollInterval(time.Millisecond),
		zkdeploy.WithConfirmationPolicy(zkdeploy.Strict),
	)

	lockTx, err := orch.Deploy(ctx, 0, zkdeploy.NewInt(35))
	require.NoError(t, err)

	addr, err := orch.ScriptAddress(0)
	require.NoError(t, err)
	deposits, err := n.UTxOsAt(ctx, addr)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.True(t, zkdeploy.NewInt(35).Equal(deposits[0].InlineDatum))

	spendTx, err := orch.Spend(ctx, 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
	require.NoError(t, err)
	assert.NotEqual(t, lockTx, spendTx)

	deposits, err = n.UTxOsAt(ctx, addr)
	require.NoError(t, err)
	assert.Empty(t, deposits)

	balance, err := n.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(110_000_000-2*200_000), balance.Int64(), "two flat fees paid")

	t.Run("double spend is rejected", func(t *testing.T) {
		_, err := orch.Spend(ctx, 0, lockTx, zkdeploy.BuildRedeemer(zkdeploy.Void()))
		var ure *zkdeploy.UtxoResolutionError
		require.ErrorAs(t, err, &ure)
		assert.Equal(t, 0, ure.Found)
	})
}

func TestStaleCollateralIsReportedByName(t *testing.T) {
	n := openTestNode(t)
	ctx := context.Background()

	_, err := n.Faucet(ctx, 100_000_000)
	require.NoError(t, err)
	collateral, err := n.Faucet(ctx, 10_000_000)
	require.NoError(t, err)

	orch := zkdeploy.NewOrchestrator(testContract(), zkdeploy.NewGateway(n), zkdeploy.WithPollInterval(time.Millisecond))
	lockTx, err := orch.Deploy(ctx, 0, zkdeploy.Void())
	require.NoError(t, err)
	deposits, err := n.FetchUTxOs(ctx, lockTx)
	require.NoError(t, err)

	// Build a spend that pledges the 10 ADA output, then consume that
	// output before submitting.
	draft, err := zkdeploy.NewTxBuilder().
		SpendScript(deposits[0], testScript, zkdeploy.Void(), nil).
		ChangeAddress(n.WalletAddress()).
		Collateral(collateral).
		Build()
	require.NoError(t, err)

	unsigned, err := n.CompleteTx(ctx, draft)
	require.NoError(t, err)
	signed, err := n.SignTx(ctx, unsigned)
	require.NoError(t, err)

	steal, err := zkdeploy.NewTxBuilder().
		PayTo(n.WalletAddress(), zkdeploy.LovelaceAmount(9_000_000)).
		ChangeAddress(n.WalletAddress()).
		SelectUtxosFrom([]zkdeploy.UTxO{collateral}).
		Build()
	require.NoError(t, err)
	stealBody, err := n.CompleteTx(ctx, steal)
	require.NoError(t, err)
	stealSigned, err := n.SignTx(ctx, stealBody)
	require.NoError(t, err)
	_, err = n.SubmitTx(ctx, stealSigned)
	require.NoError(t, err)

	_, err = zkdeploy.NewGateway(n).Submit(ctx, signed)
	require.ErrorIs(t, err, zkdeploy.ErrInsufficientCollateral)
	assert.Contains(t, err.Error(), "InsufficientCollateral")
}

func TestReopenKeepsState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	ctx := context.Background()

	n, err := Open(dir, testKey, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	minted, err := n.Faucet(ctx, 12_000_000)
	require.NoError(t, err)
	require.NoError(t, n.Close())

	_, err = os.Stat(dir)
	require.NoError(t, err)

	n, err = Open(dir, testKey)
	require.NoError(t, err)
	defer n.Close()

	utxos, err := n.WalletUTxOs(ctx)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	assert.Equal(t, minted.Ref, utxos[0].Ref)

	again, err := n.Faucet(ctx, 1_000_000)
	require.NoError(t, err)
	assert.NotEqual(t, minted.Ref.TxHash, again.Ref.TxHash, "faucet nonce survives reopen")
}
