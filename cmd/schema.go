package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the warehouse schema",
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create staging, dw and etl tables if they do not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("schema"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s)\n", cfg.Store.Driver)
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaInitCmd)
	rootCmd.AddCommand(schemaCmd)
}
