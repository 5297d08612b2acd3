package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"breachbench/internal/record"
	"breachbench/internal/report"
	"breachbench/internal/sink"
)

var histogramCmd = &cobra.Command{
	Use:   "histogram",
	Short: "Print the distribution of a column of a written CSV file",
	Example: `  breachbench histogram --file breachData.csv --column Cost --iteration 1
  breachbench histogram --file penaltyData.csv --column LatencySeconds --iteration 0 --bins 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := viper.GetString("file")
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "open data file")
		}
		defer f.Close()

		column := viper.GetString("column")
		values, err := report.LoadColumn(f, column, viper.GetInt("iteration"))
		if err != nil {
			return errors.Wrap(err, path)
		}
		h, err := report.NewHistogram(column, values, viper.GetInt("bins"))
		if err != nil {
			return err
		}
		return h.Render(cmd.OutOrStdout(), viper.GetInt("width"))
	},
}

func init() {
	f := histogramCmd.Flags()
	f.String("file", sink.DefaultFileNames[record.WriteEvent], "CSV file written by 'breachbench run'")
	f.String("column", "Cost", "numeric column to bin")
	f.Int("iteration", 1, "only rows of this iteration (0 uses all)")
	f.Int("bins", 10, "number of equal-width bins")
	f.Int("width", 40, "bar width in characters")
}
