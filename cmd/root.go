package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"breachbench/internal/banner"
	"breachbench/internal/storage"
)

var (
	cfgFile string
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "breachbench",
	Short: "breachbench - ledger contract benchmark",
	Long: `
breachbench measures the cost and confirmation latency of a penalty ledger
contract under a concurrent pool of participants.

Each iteration deploys (or reuses) a contract instance, lets every participant
register its events in order, then computes each participant's penalty.
Every call is appended to CSV files for later analysis.

Backends:
1. sim: in-process simulated ledger with latency profiles (dry runs)
2. eth: an Ethereum JSON-RPC node and a compiled contract artifact`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		return setupLogging(cmd)
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	// finalizers also run when the command fails, unlike PersistentPostRun
	cobra.OnFinalize(closeLogFile)

	rootCmd.SetGlobalNormalizationFunc(wordSepNormalizeFunc)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.breachbench.yaml)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("log-file", "", "write logs to this file instead of stderr")
	pf.String("history-db", "", "run history database (default is $HOME/.breachbench/history.db)")

	rootCmd.AddCommand(runCmd, historyCmd, histogramCmd, simCmd)
}

// wordSepNormalizeFunc accepts --read_batch as well as --read-batch.
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".breachbench")
		}
	}
	viper.SetEnvPrefix("BREACHBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			logrus.WithError(err).Warn("config file not loaded")
		}
	}
}

// setupLogging configures the standard logger. Full-screen commands must not
// write to the terminal, so without --log-file their logs are discarded.
func setupLogging(cmd *cobra.Command) error {
	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(cmd.ErrOrStderr())

	if path := viper.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		logrus.SetOutput(f)
		logFile = f
		return nil
	}
	if fullScreen(cmd) {
		logrus.SetOutput(io.Discard)
	}
	return nil
}

func closeLogFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logrus.SetOutput(os.Stderr)
}

func fullScreen(cmd *cobra.Command) bool {
	for _, name := range []string{"tui", "interactive"} {
		if f := cmd.Flags().Lookup(name); f != nil && viper.GetBool(name) {
			return true
		}
	}
	return false
}

func historyPath() (string, error) {
	if p := viper.GetString("history-db"); p != "" {
		return filepath.Clean(p), nil
	}
	return storage.DefaultPath()
}
