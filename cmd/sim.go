package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"breachbench/internal/dummy"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "List the latency profiles of the simulated backend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Profiles for 'run --backend sim --profile <name>':")
		for _, p := range dummy.Profiles() {
			fmt.Fprintf(out, "  %-8s %s\n", p, p.Describe())
		}
	},
}
