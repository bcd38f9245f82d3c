package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cda-etl",
	Short: "CDA tax-debt warehouse ETL",
	Long:  "Loads the seven CDA source files into staging and warehouse schemas, reports cumulative balance percentiles and serves read-only warehouse queries.",
	// main prints the single error line itself.
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		os.Exit(1)
	}
}

// errorLine renders err as the one-line message printed on failure, e.g.
// "etl: stage canonicalize: ...".
func errorLine(err error) string {
	return "etl: " + err.Error()
}
