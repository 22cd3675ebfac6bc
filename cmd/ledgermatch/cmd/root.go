package cmd

import (
	"fmt"
	"os"

	"ledgermatch/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledgermatch",
	Short: "Record reconciliation tool",
	Long: `Ledgermatch reconciles source records (receipts, payments, ledger rows)
against target records (bank transactions) using fuzzy matching over
amounts, dates, and descriptions. It detects split payments, surfaces
ambiguous matches for manual review, and produces audit-friendly reports.

Examples:
  ledgermatch reconcile --source-file receipts.csv --target-file statement.csv
  ledgermatch reconcile -s receipts.csv -t statement.csv --output-format json
  ledgermatch version`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("LEDGERMATCH")
	viper.AutomaticEnv()

	configureLogging()
}

// configureLogging installs the global logger per the CLI flags
func configureLogging() {
	cfg := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		cfg.Level = logger.DebugLevel
	} else {
		cfg.Level = logger.WarnLevel
	}
	if viper.GetString("log-format") == "json" {
		cfg.Format = logger.JSONFormat
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %s\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogger(log)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
