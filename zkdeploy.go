// Package zkdeploy locks value at ledger validator addresses and later
// spends it, optionally attaching Groth16 proofs to the unlocking redeemer.
//
// The package builds transactions, hands them to a chain collaborator for
// balancing, signing and submission, retries spends that lose their
// collateral to a concurrent transaction, and polls until transactions are
// visible on the ledger.
//
// # Basic Usage
//
// Wrap the chain collaborator, load the contract, and deploy:
//
//	gw := zkdeploy.NewGateway(backend)
//	contract, err := zkdeploy.LoadContract("plutus.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	orch := zkdeploy.NewOrchestrator(contract, gw,
//	    zkdeploy.WithConfirmationPolicy(zkdeploy.Strict),
//	    zkdeploy.WithExecutionBudget(zkdeploy.ExecutionBudget{Mem: 1301280, Steps: 5031522698}),
//	)
//
//	lockTx, err := orch.Deploy(ctx, 0, zkdeploy.NewInt(35))
//
// Then spend with a proof-carrying redeemer:
//
//	proof, err := zkdeploy.BuildProof(piA, piB, piC)
//	redeemer := zkdeploy.BuildProofRedeemer(
//	    zkdeploy.NewConstr(0, zkdeploy.NewInt(5), zkdeploy.NewInt(7)),
//	    []zkdeploy.Proof{proof},
//	)
//	spendTx, err := orch.Spend(ctx, 0, lockTx, redeemer)
//
// # Redeemers
//
// A plain redeemer is the application value itself. A proof-carrying
// redeemer is constructor 0 over (value, [proof...]); each proof is
// constructor 0 over the compressed points A (48 bytes), B (96 bytes) and
// C (48 bytes). Proof order is significant.
//
// # Errors
//
// Deposit lookups that match zero or several outputs return
// *UtxoResolutionError. Malformed proofs fail at construction with
// ErrMalformedProof. Spends that exhaust their collateral retries return
// *SpendRetriesExhaustedError. Any other submission failure is returned
// as a *SubmitError whose message is the collaborator's, unchanged.
//
// # Confirmation
//
// Confirmation waits have no deadline of their own; bound them with the
// context passed to Deploy, Spend or the ConfirmationWatcher.
package zkdeploy
