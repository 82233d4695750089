package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

func newSpendCmd() *cobra.Command {
	var (
		redeemerJSON string
		proofFiles   []string
		budgetMem    uint64
		budgetSteps  uint64
		noRetry      bool
	)

	cmd := &cobra.Command{
		Use:   "spend <contractPath> <validatorIndex> <lockingTxId>",
		Short: "Unlock a deposit from a validator address",
		Long: `Spend the single deposit a locking transaction left at a validator's
script address, retrying on stale collateral.

The redeemer value is Plutus data in detailed JSON form (default: unit).
Each --proof names a snarkjs proof JSON file; when any are given the
redeemer carries the compressed proofs, in order, after the value.

Examples:
  zkdeploy spend plutus.json 0 3f1c...e9
  zkdeploy spend plutus.json 1 3f1c...e9 --redeemer '{"int": 35}' --proof proof.json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseValidatorIndex(args[1])
			if err != nil {
				return err
			}
			lockTx, err := zkdeploy.ParseTxHash(args[2])
			if err != nil {
				return err
			}

			var value zkdeploy.Data = zkdeploy.Void()
			if redeemerJSON != "" {
				if value, err = zkdeploy.ParseDataJSON([]byte(redeemerJSON)); err != nil {
					return fmt.Errorf("--redeemer: %w", err)
				}
			}

			redeemer := zkdeploy.BuildRedeemer(value)
			if len(proofFiles) > 0 {
				proofs, err := loadProofs(proofFiles)
				if err != nil {
					return err
				}
				redeemer = zkdeploy.BuildProofRedeemer(value, proofs)
			}

			var spendOpts []zkdeploy.SpendOption
			if budgetMem != 0 || budgetSteps != 0 {
				spendOpts = append(spendOpts, zkdeploy.SpendBudget(zkdeploy.ExecutionBudget{Mem: budgetMem, Steps: budgetSteps}))
			}
			if noRetry {
				cfg.Spend.RetryCollateral = false
			}

			return withOrchestrator(args[0], func(ctx context.Context, o *zkdeploy.Orchestrator) error {
				tx, err := o.Spend(ctx, idx, lockTx, redeemer, spendOpts...)
				if err != nil {
					return err
				}
				printTx("spend tx", tx)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&redeemerJSON, "redeemer", "", "Redeemer value as detailed-schema JSON")
	flags.StringArrayVar(&proofFiles, "proof", nil, "snarkjs proof JSON file (repeatable)")
	flags.Uint64Var(&budgetMem, "budget-mem", 0, "Execution memory units")
	flags.Uint64Var(&budgetSteps, "budget-steps", 0, "Execution CPU steps")
	flags.BoolVar(&noRetry, "no-retry", false, "Do not retry on stale collateral")
	cmd.MarkFlagsRequiredTogether("budget-mem", "budget-steps")
	return cmd
}

func loadProofs(paths []string) ([]zkdeploy.Proof, error) {
	proofs := make([]zkdeploy.Proof, 0, len(paths))
	for _, path := range paths {
		p, err := loadProof(path)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, nil
}

func loadProof(path string) (zkdeploy.Proof, error) {
	f, err := os.Open(path)
	if err != nil {
		return zkdeploy.Proof{}, err
	}
	defer f.Close()

	p, err := zkdeploy.ProofFromSnarkJS(f)
	if err != nil {
		return zkdeploy.Proof{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
