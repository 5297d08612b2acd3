// Package cli is the headless front-end: a single progress line while the
// run is going, then the result table.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"breachbench/internal/benchmark"
	"breachbench/internal/report"
	"breachbench/internal/storage"
)

const tickInterval = 200 * time.Millisecond

// Start runs o, redrawing a progress line on w until the run ends.
func Start(ctx context.Context, w io.Writer, o *benchmark.Orchestrator, target string) (benchmark.Summary, error) {
	printHeader(w, o, target)

	type result struct {
		sum benchmark.Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := o.Run(ctx)
		done <- result{sum, err}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.Updates:
			// drained, the line is redrawn from Snapshot on each tick
		case <-ticker.C:
			fmt.Fprintf(w, "\r%s", progressLine(o.Snapshot()))
		case res := <-done:
			fmt.Fprintf(w, "\r%s\n", progressLine(o.Snapshot()))
			return res.sum, res.err
		}
	}
}

func printHeader(w io.Writer, o *benchmark.Orchestrator, target string) {
	cfg := o.Cfg
	fmt.Fprintf(w, "\n🚀 STARTING BREACHBENCH RUN\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Run         : %s\n", o.ID)
	fmt.Fprintf(w, "Target      : %s\n", target)
	fmt.Fprintf(w, "Iterations  : %d (redeploy each: %t)\n", cfg.Iterations, cfg.Redeploy)
	fmt.Fprintf(w, "Pool        : %d participants x %d writes\n", cfg.PoolSize, cfg.WritesPerParticipant)
	if cfg.ReadBatchSize > 0 {
		fmt.Fprintf(w, "Final read  : %d participants\n", cfg.ReadBatch())
	}
	if cfg.CallTimeout > 0 {
		fmt.Fprintf(w, "Call timeout: %s\n", cfg.CallTimeout)
	}
	if cfg.MaxSubmissionsPerSec > 0 {
		fmt.Fprintf(w, "Max rate    : %.1f tx/s\n", cfg.MaxSubmissionsPerSec)
	}
	fmt.Fprintf(w, "======================================================================\n\n")
}

func progressLine(s benchmark.StatsSnapshot) string {
	pct := s.Progress()
	return fmt.Sprintf("%s %3.0f%% | it %d/%d %-10s | %s | W: %s P: %s R: %s | Err: %d   ",
		progressBar(pct, 20), pct*100,
		s.Iteration, s.Iterations, s.State,
		s.Elapsed.Round(time.Second),
		humanize.Comma(int64(s.Writes)),
		humanize.Comma(int64(s.Penalties)),
		humanize.Comma(int64(s.Reads)),
		s.Failures,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// Finish prints the result table and, when summaryPath is set, writes the
// JSON summary there.
func Finish(w io.Writer, rec storage.RunRecord, summaryPath string) error {
	report.PrintSummary(w, rec)

	if len(rec.Outputs) > 0 {
		fmt.Fprintf(w, "\n💾 Data written to:\n")
		for _, p := range rec.Outputs {
			fmt.Fprintf(w, "   %s\n", p)
		}
	}
	if summaryPath == "" {
		return nil
	}
	if err := report.WriteJSON(summaryPath, rec); err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ Summary saved to %s\n", filepath.Clean(summaryPath))
	return nil
}
