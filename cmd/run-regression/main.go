package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hochfrequenz/regression-orchestrator/internal/regression"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
	logger     = zap.NewNop()
	rootCmd    = &cobra.Command{
		Use:   "run-regression",
		Short: "Regression Orchestrator - build, run and report hardware regressions",
		Long: `Regression Orchestrator builds a project tree, runs a test plan selected by
regression kind, monitors and publishes the report, diagnoses failures and
generates metrics. Each step is an external tool; the orchestrator echoes
every command and prints one status token per outcome.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
		RunE:              runRegression,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &regression.ExitError{Code: 2, Err: err}
	})
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	args, err := normalizeLegacyArgs(rootCmd, os.Args[1:])
	if err == nil {
		rootCmd.SetArgs(args)
		err = rootCmd.ExecuteContext(ctx)
	}
	stop()
	logger.Sync()

	if err != nil {
		var exitErr *regression.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(regression.ExitCode(err))
}
