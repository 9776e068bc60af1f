package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"enclave/internal/crypto"
	"enclave/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <jwk>",
		Short: "Print the fingerprint of a public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var blob domain.PublicKeyBlob
			if err := json.Unmarshal([]byte(args[0]), &blob); err != nil {
				return fmt.Errorf("parse jwk: %w", err)
			}
			if _, err := crypto.DecodePublicKey(blob); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", crypto.Fingerprint(blob))
			return nil
		},
	}
}
