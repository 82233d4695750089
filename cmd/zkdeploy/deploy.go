package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

func newDeployCmd() *cobra.Command {
	var datumJSON string

	cmd := &cobra.Command{
		Use:   "deploy <contractPath> <validatorIndex>",
		Short: "Lock funds at a validator address",
		Long: `Lock the configured amount at the script address of a validator, with
an inline datum, and wait for the transaction to be confirmed.

The datum is Plutus data in detailed JSON form. Without --datum the unit
value (constructor 0, no fields) is attached.

Examples:
  zkdeploy deploy plutus.json 0
  zkdeploy deploy plutus.json 1 --datum '{"int": 35}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseValidatorIndex(args[1])
			if err != nil {
				return err
			}
			var datum zkdeploy.Data
			if datumJSON != "" {
				if datum, err = zkdeploy.ParseDataJSON([]byte(datumJSON)); err != nil {
					return fmt.Errorf("--datum: %w", err)
				}
			}

			return withOrchestrator(args[0], func(ctx context.Context, o *zkdeploy.Orchestrator) error {
				tx, err := o.Deploy(ctx, idx, datum)
				if err != nil {
					return err
				}
				printTx("lock tx", tx)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&datumJSON, "datum", "", "Inline datum as detailed-schema JSON")
	return cmd
}
