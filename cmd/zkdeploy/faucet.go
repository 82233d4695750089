package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newFaucetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "faucet <lovelace>",
		Short: "Fund the wallet on the local ledger",
		Long: `Mint a new lovelace-only output to the wallet on the local ledger.

Examples:
  # Fund 100 ADA
  zkdeploy faucet 100000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lovelace, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lovelace amount %q", args[0])
			}

			node, err := openNode()
			if err != nil {
				return err
			}
			defer node.Close()

			ctx := context.Background()
			out, err := node.Faucet(ctx, lovelace)
			if err != nil {
				return err
			}
			balance, err := node.Balance(ctx)
			if err != nil {
				return err
			}

			printTx("tx", out.Ref.TxHash)
			dimColor.Printf("balance: %s lovelace\n", balance)
			return nil
		},
	}
}
