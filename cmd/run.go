package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"breachbench/internal/benchmark"
	"breachbench/internal/cli"
	"breachbench/internal/dummy"
	"breachbench/internal/ledger"
	"breachbench/internal/ledger/eth"
	"breachbench/internal/record"
	"breachbench/internal/sink"
	"breachbench/internal/stats"
	"breachbench/internal/storage"
	"breachbench/internal/telemetry"
	"breachbench/internal/tui"
)

const summaryFile = "summary.json"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a benchmark",
	Example: `  breachbench run --backend sim --profile fast --iterations 3
  breachbench run --backend eth --rpc http://127.0.0.1:8545 --keys-file keys.txt --pool 10 --tui`,
	Args: cobra.NoArgs,
	RunE: runBenchmark,
}

func init() {
	def := benchmark.DefaultConfig()
	methods := eth.DefaultMethods()
	f := runCmd.Flags()

	f.IntP("iterations", "i", def.Iterations, "number of iterations")
	f.IntP("pool", "n", def.PoolSize, "number of participants")
	f.IntP("writes", "k", def.WritesPerParticipant, "events each participant registers per iteration")
	f.Int("read-batch", def.ReadBatchSize, "participants read back after the last iteration (0 disables)")
	f.Bool("redeploy", def.Redeploy, "deploy a fresh contract instance every iteration")
	f.Int64("magnitude", def.Magnitude, "magnitude argument of every registered event")
	f.Duration("call-timeout", def.CallTimeout, "bound on each remote call including confirmation (0 disables)")
	f.Float64("max-rate", def.MaxSubmissionsPerSec, "max transactions submitted per second (0 is unlimited)")

	f.StringP("out-dir", "o", ".", "directory the CSV files are written to")
	f.String("write-file", sink.DefaultFileNames[record.WriteEvent], "write rows file name")
	f.String("penalty-file", sink.DefaultFileNames[record.ComputePenalty], "penalty rows file name")
	f.String("read-file", sink.DefaultFileNames[record.ReadState], "read rows file name")
	f.Bool("summary", false, "also write "+summaryFile+" next to the CSV files")

	f.String("backend", "sim", "ledger backend: sim or eth")
	f.String("profile", string(dummy.ProfileFast), "sim latency profile (see 'breachbench sim')")
	f.Int64("seed", 0, "sim random seed (0 picks one)")
	f.String("rpc", "http://127.0.0.1:8545", "eth JSON-RPC endpoint")
	f.String("artifact", eth.DefaultArtifactPath, "eth compiled contract artifact (Hardhat, Foundry or solc JSON)")
	f.StringSlice("keys", nil, "eth participant private keys in hex, participant i signs with key i")
	f.String("keys-file", "", "eth file with one private key per line")
	f.String("deployer-key", "", "eth key deploying the contract (default is the first participant key)")
	f.Uint64("gas-limit", 0, "eth gas limit per transaction (0 estimates)")
	f.String("method-write", methods.WriteEvent, "eth contract function registering an event")
	f.String("method-penalty", methods.ComputePenalty, "eth contract function computing a penalty")
	f.String("method-read-penalty", methods.ReadPenalty, "eth view returning the stored penalty")
	f.String("method-read-events", methods.ReadEventCount, "eth view returning the event count")

	f.Bool("tui", false, "show the live dashboard")
	f.String("metrics-listen", "", "serve Prometheus metrics on this address, e.g. :9100")
	f.Bool("no-history", false, "do not store the run in the history database")
}

func configFromFlags() benchmark.Config {
	return benchmark.Config{
		Iterations:           viper.GetInt("iterations"),
		PoolSize:             viper.GetInt("pool"),
		WritesPerParticipant: viper.GetInt("writes"),
		ReadBatchSize:        viper.GetInt("read-batch"),
		Redeploy:             viper.GetBool("redeploy"),
		Magnitude:            viper.GetInt64("magnitude"),
		CallTimeout:          viper.GetDuration("call-timeout"),
		MaxSubmissionsPerSec: viper.GetFloat64("max-rate"),
	}
}

// openBackend returns the selected ledger and a short description of what
// it targets.
func openBackend(ctx context.Context, log logrus.FieldLogger) (ledger.Backend, string, error) {
	switch name := viper.GetString("backend"); name {
	case "sim":
		profile, err := dummy.ParseProfile(viper.GetString("profile"))
		if err != nil {
			return nil, "", err
		}
		return dummy.New(dummy.Options{Profile: profile, Seed: viper.GetInt64("seed")}), string(profile), nil

	case "eth":
		b, err := eth.Dial(ctx, eth.Options{
			RPCURL:       viper.GetString("rpc"),
			ArtifactPath: viper.GetString("artifact"),
			Keys:         viper.GetStringSlice("keys"),
			KeysFile:     viper.GetString("keys-file"),
			DeployerKey:  viper.GetString("deployer-key"),
			GasLimit:     viper.GetUint64("gas-limit"),
			Methods: eth.Methods{
				WriteEvent:     viper.GetString("method-write"),
				ComputePenalty: viper.GetString("method-penalty"),
				ReadPenalty:    viper.GetString("method-read-penalty"),
				ReadEventCount: viper.GetString("method-read-events"),
			},
		}, log)
		if err != nil {
			return nil, "", err
		}
		return b, viper.GetString("rpc"), nil

	default:
		return nil, "", errors.Errorf("unknown backend %q, want sim or eth", name)
	}
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	cfg := configFromFlags()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logrus.StandardLogger()

	backend, target, err := openBackend(ctx, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	parts, err := backend.Participants(ctx, cfg.PoolSize)
	if err != nil {
		return err
	}

	outDir := viper.GetString("out-dir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	csv := sink.NewCSVSink(outDir, map[record.Kind]string{
		record.WriteEvent:     viper.GetString("write-file"),
		record.ComputePenalty: viper.GetString("penalty-file"),
		record.ReadState:      viper.GetString("read-file"),
	})
	defer csv.Close()

	st := stats.NewStats()
	metrics := telemetry.NewMetrics()
	if addr := viper.GetString("metrics-listen"); addr != "" {
		if _, err := metrics.Serve(ctx, addr, log); err != nil {
			return err
		}
	}

	o, err := benchmark.New(cfg, backend, parts, csv,
		benchmark.WithLogger(log),
		benchmark.WithStats(st),
		benchmark.WithObserver(metrics),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var (
		sum    benchmark.Summary
		runErr error
	)
	if viper.GetBool("tui") {
		sum, runErr = tui.Run(ctx, o, viper.GetString("backend")+"/"+target)
	} else {
		sum, runErr = cli.Start(ctx, out, o, viper.GetString("backend")+"/"+target)
	}
	if err := csv.Close(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "close output files")
	}

	var outputs []string
	for _, s := range record.Schemas(cfg.ReadBatch() > 0) {
		outputs = append(outputs, csv.Path(s.Kind))
	}
	rec := storage.NewRunRecord(viper.GetString("backend"), target, cfg, sum, st, outputs)

	summaryPath := ""
	if viper.GetBool("summary") {
		summaryPath = filepath.Join(outDir, summaryFile)
	}
	if err := cli.Finish(out, rec, summaryPath); err != nil {
		log.WithError(err).Error("failed to write summary")
	}
	if !viper.GetBool("no-history") {
		saveHistory(rec, log)
	}

	return runErr
}

func saveHistory(rec storage.RunRecord, log logrus.FieldLogger) {
	path, err := historyPath()
	if err != nil {
		log.WithError(err).Warn("no history location")
		return
	}
	store, err := storage.Open(path)
	if err != nil {
		log.WithError(err).Warn("history not saved")
		return
	}
	defer store.Close()
	if err := store.Save(rec); err != nil {
		log.WithError(err).Warn("history not saved")
		return
	}
	log.WithFields(logrus.Fields{"run": rec.ID, "db": path}).Info("run saved to history")
}
