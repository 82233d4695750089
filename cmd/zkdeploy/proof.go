package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProofCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Groth16 proof utilities",
	}
	cmd.AddCommand(newProofCompressCmd())
	return cmd
}

func newProofCompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compress <proof.json>",
		Short: "Print the compressed A, B and C of a snarkjs proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProof(args[0])
			if err != nil {
				return err
			}
			a, b, c := p.Hex()
			fmt.Println(a)
			fmt.Println(b)
			fmt.Println(c)
			return nil
		},
	}
}
