package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	zkdeploy "github.com/branched-services/go-zkdeploy"
	"github.com/branched-services/go-zkdeploy/localnet"
)

// openNode opens the local ledger with the configured wallet key.
func openNode() (*localnet.Node, error) {
	key, err := os.ReadFile(cfg.Wallet.KeyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key file %s not found - create one with: zkdeploy keygen", cfg.Wallet.KeyFile)
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	network, err := zkdeploy.ParseNetwork(cfg.Chain.Network)
	if err != nil {
		return nil, err
	}
	return localnet.Open(cfg.Chain.DataDir, key,
		localnet.WithNetwork(network),
		localnet.WithLogger(logger),
	)
}

// withOrchestrator loads the contract, opens the ledger and runs fn.
func withOrchestrator(contractPath string, fn func(ctx context.Context, o *zkdeploy.Orchestrator) error) error {
	contract, err := zkdeploy.LoadContract(contractPath)
	if err != nil {
		return err
	}

	node, err := openNode()
	if err != nil {
		return err
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts = append(opts, zkdeploy.WithLogger(logger))
	gw := zkdeploy.NewGateway(node, zkdeploy.WithGatewayLogger(logger))
	return fn(ctx, zkdeploy.NewOrchestrator(contract, gw, opts...))
}

func parseValidatorIndex(s string) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("invalid validator index %q", s)
	}
	return idx, nil
}
