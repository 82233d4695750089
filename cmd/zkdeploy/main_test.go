package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/branched-services/go-zkdeploy/internal/config"
)

func TestApplyFlagsOnlyOverridesChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&network, "network", "", "")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	cmd.Flags().BoolVar(&strictConfirmation, "strict-confirmation", false, "")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "")
	require.NoError(t, cmd.ParseFlags([]string{"--network", "mainnet", "--strict-confirmation", "--poll-interval", "3s"}))

	c := config.DefaultConfig()
	c.Log.Level = "warn"
	applyFlags(cmd, c)

	assert.Equal(t, "mainnet", c.Chain.Network)
	assert.Equal(t, "strict", c.Confirmation.Policy)
	assert.Equal(t, 3*time.Second, c.Confirmation.PollInterval)
	assert.Equal(t, "warn", c.Log.Level, "unset flag keeps loaded value")
}

func TestParseValidatorIndex(t *testing.T) {
	idx, err := parseValidatorIndex("2")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	for _, bad := range []string{"", "-1", "one"} {
		_, err := parseValidatorIndex(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenNodeRejectsUnknownNetwork(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "me.sk")
	require.NoError(t, os.WriteFile(keyFile, []byte(strings.Repeat("5e", 32)+"\n"), 0o600))

	cfg = config.DefaultConfig()
	cfg.Wallet.KeyFile = keyFile
	cfg.Chain.DataDir = filepath.Join(dir, "ledger")
	cfg.Chain.Network = "devnet"
	logger = zaptest.NewLogger(t)
	t.Cleanup(func() { cfg, logger = nil, nil })

	_, err := openNode()
	assert.ErrorContains(t, err, "devnet")

	_, err = os.Stat(cfg.Chain.DataDir)
	assert.True(t, os.IsNotExist(err), "ledger is not created for a bad network")
}
