package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voltlab/internal/config"
	"voltlab/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "voltlab",
	Short: "voltlab - circuit code pipeline (repair, validate, simulate, extract)",
	Long: `voltlab takes circuit DSL code, either written by hand or produced by a
language model, and drives it through a fixed pipeline: sanitize, repair
known model mistakes, validate structure, execute in a sandboxed
interpreter against the embedded simulator, and extract normalized
records from the results.

Failures are classified and logged to a local issue database so the
triage command can tell prompt problems apart from host bugs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Config file path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
