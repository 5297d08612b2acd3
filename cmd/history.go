package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"breachbench/internal/report"
	"breachbench/internal/storage"
	"breachbench/internal/tui/history"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List stored runs or show one",
	Long: `Without arguments, lists the most recent runs. With a run ID (or a unique
prefix of one), prints that run's results.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := historyPath()
		if err != nil {
			return err
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			rec, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("delete") {
				if err := store.Delete(rec.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "🗑  deleted run %s\n", rec.ID)
				return nil
			}
			report.PrintSummary(out, *rec)
			return nil
		}

		if viper.GetBool("interactive") {
			_, err := tea.NewProgram(history.NewModel(store), tea.WithAltScreen()).Run()
			return err
		}

		items, err := store.List(viper.GetInt("limit"))
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "no runs recorded yet")
			return nil
		}
		format := "%-20s  %-8s  %-24s  %-10s  %-7s  %9s  %s\n"
		fmt.Fprintf(out, format, "TIME", "RUN", "BACKEND", "OUTCOME", "ITER", "WRITES", "DURATION")
		for _, item := range items {
			row := history.Row(item)
			fmt.Fprintf(out, format, toAny(row)...)
		}
		fmt.Fprintf(out, "%d run(s) in %s\n", len(items), path)
		return nil
	},
}

func init() {
	f := historyCmd.Flags()
	f.Int("limit", 20, "number of runs to list (0 lists all)")
	f.BoolP("interactive", "I", false, "browse the history in a table")
	f.Bool("delete", false, "delete the given run instead of showing it")
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
