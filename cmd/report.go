package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Warehouse reports",
}

var reportPercentilesCmd = &cobra.Command{
	Use:   "percentiles",
	Short: "Cumulative balance share per natureza bucket at percentiles 1, 5, .., 100",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		saldos, err := st.SaldosPorNatureza(ctx)
		if err != nil {
			return eris.Wrap(err, "report percentiles")
		}
		table := report.Cumulative(saldos, cfg.Report.EffectiveBuckets())

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := report.SaveXLSX(path, table); err != nil {
				return err
			}
			zap.L().Info("percentile report written",
				zap.String("path", path),
				zap.Int("points", len(table.Points)),
			)
		}

		out := cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "report: create %s", path)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return report.WriteJSON(out, table)
	},
}

func init() {
	reportPercentilesCmd.Flags().String("xlsx", "", "also write the table to this XLSX file")
	reportPercentilesCmd.Flags().String("out", "", "write JSON to this file instead of stdout")
	reportCmd.AddCommand(reportPercentilesCmd)
	rootCmd.AddCommand(reportCmd)
}
