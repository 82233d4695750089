package main

import (
	"github.com/spf13/cobra"

	zkdeploy "github.com/branched-services/go-zkdeploy"
)

func newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <contractPath> <validatorIndex>",
		Short: "Print a validator's script address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contract, err := zkdeploy.LoadContract(args[0])
			if err != nil {
				return err
			}
			idx, err := parseValidatorIndex(args[1])
			if err != nil {
				return err
			}
			v, err := contract.Validator(idx)
			if err != nil {
				return err
			}
			network, err := zkdeploy.ParseNetwork(cfg.Chain.Network)
			if err != nil {
				return err
			}
			addr, err := v.Address(network)
			if err != nil {
				return err
			}

			if v.Title != "" {
				dimColor.Printf("%s\n", v.Title)
			}
			printTx("address", addr)
			return nil
		},
	}
}
