package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-testgen-gateway/internal/envelope"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new DATA_ENCRYPTION_KEY",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := envelope.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}
