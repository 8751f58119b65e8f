package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/tracejit/backend/cpu"
	"github.com/born-ml/tracejit/jit"
)

// options are shared by every subcommand. cfg is loaded before any of them runs.
type options struct {
	configPath string
	trace      bool
	cfg        jit.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "tracejit",
		Short: "Tracing JIT arrays with automatic differentiation and vectorized calls",
		Long: `tracejit records array operations into a reference-counted trace graph,
differentiates them and dispatches methods over arrays of object references.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := jit.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVar(&opts.trace, "trace", false, "print OpenTelemetry spans to stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "tracejit %s\n", version)
			},
		},
		&cobra.Command{
			Use:   "info",
			Short: "Show the backend, CPU features and effective configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runInfo(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "demo",
			Short: "Run a masked vectorized call over two shape classes and differentiate it",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runDemo(cmd, opts)
			},
		},
	)
	return root
}

func runInfo(cmd *cobra.Command, opts *options) error {
	if err := jit.Init(opts.cfg, opts.cfg.NewLogger(cmd.ErrOrStderr())); err != nil {
		return err
	}
	defer jit.Shutdown()

	cfg := opts.cfg
	par := cfg.ParallelConfig()
	features := cpu.Features()
	if len(features) == 0 {
		features = []string{"none"}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backend:   %s\n", cfg.BackendType())
	fmt.Fprintf(out, "kernels:   %s\n", cpu.Current().Name())
	fmt.Fprintf(out, "features:  %s\n", strings.Join(features, " "))
	fmt.Fprintf(out, "parallel:  enabled=%t workers=%d min_chunk=%d\n", par.Enabled, par.NumWorkers, par.MinChunkSize)
	fmt.Fprintf(out, "deferred:  %t\n", cfg.Calls.AllowDeferred)
	fmt.Fprintf(out, "log:       %s/%s\n", cfg.Log.Level, cfg.Log.Format)
	return nil
}
