package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	zkdeploy "github.com/branched-services/go-zkdeploy"
	"github.com/branched-services/go-zkdeploy/internal/emulator"
)

func newKeygenCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a wallet signing key",
		Long: `Create a new wallet signing key at the configured key file.

The key file is refused if it already exists unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfg.Wallet.KeyFile); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfg.Wallet.KeyFile)
			}

			seed, err := emulator.GenerateSeed()
			if err != nil {
				return err
			}
			network, err := zkdeploy.ParseNetwork(cfg.Chain.Network)
			if err != nil {
				return err
			}
			wallet, err := emulator.NewWallet(seed, network)
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfg.Wallet.KeyFile, emulator.FormatSeed(seed), 0o600); err != nil {
				return fmt.Errorf("failed to write key file: %w", err)
			}

			okColor.Fprintf(os.Stderr, "Wrote %s\n", cfg.Wallet.KeyFile)
			printTx("address", wallet.Address())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing key file")
	return cmd
}
