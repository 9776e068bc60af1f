package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"enclave/internal/crypto"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a P-256 key pair and print the public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			jwk, err := json.Marshal(kp.Public)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fingerprint: %s\n", kp.Fingerprint())
			fmt.Fprintf(out, "Public key:  %s\n", jwk)
			return nil
		},
	}
}
