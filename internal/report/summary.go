package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"breachbench/internal/record"
	"breachbench/internal/storage"
)

// WriteJSON stores the run record as an indented JSON document.
func WriteJSON(path string, rec storage.RunRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// PrintSummary writes the human readable result table of a run.
func PrintSummary(w io.Writer, rec storage.RunRecord) {
	sum := rec.Summary
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(w, "\n📊 BENCHMARK RESULTS\n%s\n", rule)
	fmt.Fprintf(w, "Run            : %s\n", sum.RunID)
	fmt.Fprintf(w, "Outcome        : %s\n", sum.State)
	fmt.Fprintf(w, "Duration       : %s\n", sum.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Iterations     : %d / %d\n", sum.Iterations, rec.Config.Iterations)
	fmt.Fprintf(w, "Deployments    : %d\n", sum.Deployments)
	for _, k := range record.Kinds() {
		if n, ok := sum.Rows[k]; ok && n > 0 {
			fmt.Fprintf(w, "%-15s: %s rows\n", capitalize(k.String()), humanize.Comma(int64(n)))
		}
	}

	for _, ks := range rec.Kinds {
		fmt.Fprintf(w, "\n⏱️  %s LATENCY (ms)\n", strings.ToUpper(ks.Kind))
		fmt.Fprintf(w, "   P50 : %.2f\n", ks.P50LatencyMs)
		fmt.Fprintf(w, "   P90 : %.2f\n", ks.P90LatencyMs)
		fmt.Fprintf(w, "   P99 : %.2f\n", ks.P99LatencyMs)
		fmt.Fprintf(w, "   Max : %.2f\n", ks.MaxLatencyMs)
		if ks.MeanGas > 0 {
			fmt.Fprintf(w, "   Gas : mean %s, min %s, max %s\n",
				humanize.Comma(int64(ks.MeanGas)), humanize.Comma(ks.MinGas), humanize.Comma(ks.MaxGas))
		}
		if ks.Fail > 0 {
			fmt.Fprintf(w, "   Failed: %d\n", ks.Fail)
		}
	}

	if sum.Error != "" {
		fmt.Fprintf(w, "\n❌ FAILURE\n   %s\n", sum.Error)
	}
	fmt.Fprintf(w, "%s\n", rule)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
