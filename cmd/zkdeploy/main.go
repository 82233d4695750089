// Command zkdeploy locks funds at Plutus validator addresses and unlocks them
// with proof-carrying redeemers against a local ledger.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/branched-services/go-zkdeploy/internal/config"
	"github.com/branched-services/go-zkdeploy/internal/logging"
)

var (
	configPath         string
	keyFile            string
	dataDir            string
	logLevel           string
	network            string
	strictConfirmation bool
	pollInterval       time.Duration

	cfg    *config.Config
	logger *zap.Logger

	dimColor = color.New(color.Faint)
	errColor = color.New(color.FgRed)
	okColor  = color.New(color.FgGreen)
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "zkdeploy",
		Short:         "Deploy and spend Plutus validators with Groth16 redeemers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.NewLoader(configPath).Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, loaded)
			if err := config.Validate(loaded); err != nil {
				return err
			}
			cfg = loaded

			logger, err = logging.New(cfg.Log.Level)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ./"+config.ConfigFileName+" if present)")
	flags.StringVar(&keyFile, "key-file", "", "Wallet signing key file (default me.sk)")
	flags.StringVar(&dataDir, "data-dir", "", "Local ledger directory")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&network, "network", "", "Network: testnet or mainnet")
	flags.BoolVar(&strictConfirmation, "strict-confirmation", false, "Wait until the transaction's outputs are visible")
	flags.DurationVar(&pollInterval, "poll-interval", 0, "Delay between confirmation polls")

	rootCmd.AddCommand(
		newKeygenCmd(),
		newFaucetCmd(),
		newAddressCmd(),
		newDeployCmd(),
		newSpendCmd(),
		newProofCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides loaded configuration with flags the user set.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("key-file") {
		c.Wallet.KeyFile = keyFile
	}
	if flags.Changed("data-dir") {
		c.Chain.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("network") {
		c.Chain.Network = network
	}
	if flags.Changed("strict-confirmation") && strictConfirmation {
		c.Confirmation.Policy = "strict"
	}
	if flags.Changed("poll-interval") {
		c.Confirmation.PollInterval = pollInterval
	}
}

func printTx(label string, v fmt.Stringer) {
	dimColor.Fprintf(os.Stderr, "%s: ", label)
	fmt.Println(v.String())
}
