package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arkaiv/arkaiv/pkg/config"
	"github.com/arkaiv/arkaiv/pkg/logger"
	"github.com/arkaiv/arkaiv/pkg/metrics"
	"github.com/arkaiv/arkaiv/pkg/runtime"
)

// app carries state shared by every subcommand once the root pre-run has loaded config.
type app struct {
	cfgFile string
	debug   bool
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Metrics

	// opts lets tests inject a store or providers.
	opts []runtime.Option
}

func newRootCmd(opts ...runtime.Option) *cobra.Command {
	a := &app{opts: opts}
	root := &cobra.Command{
		Use:           "arkaiv",
		Short:         "AI tools catalog and daily digest service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is ./arkaiv.yaml or ./config/arkaiv.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newDigestCmd(a),
		newToolsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Log.Level = "debug"
		cfg.HTTP.Debug = true
	}
	// Keep stdout for command output.
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stderr"}
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg, a.log, a.metrics = cfg, log, metrics.New()
	return nil
}

func (a *app) runtime(ctx context.Context) (*runtime.Runtime, error) {
	opts := append([]runtime.Option{
		runtime.WithLogger(a.log),
		runtime.WithMetrics(a.metrics),
	}, a.opts...)
	return runtime.New(ctx, a.cfg, opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		// No config is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "arkaiv version %s\n", version)
		},
	}
}
