// Package commands implements the freelaudit CLI sub-commands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/version"
)

// Options are the persistent flags shared by every sub-command.
type Options struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	NoColor    bool
}

// env is everything a job needs at start: configuration, telemetry and
// the command's output streams.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.PipelineMetrics
	out      io.Writer
	shutdown func(ctx context.Context) error
}

func (e *env) close(ctx context.Context) {
	if e.shutdown == nil {
		return
	}

	err := e.shutdown(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "telemetry shutdown failed", "error", err)
	}
}

// NewRootCommand assembles the CLI.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "freelaudit",
		Short: "Freelancer code quality research pipeline",
		Long: `freelaudit collects freelancer profiles from a marketplace, clones their
public GitHub repositories, scans them with SonarQube and aggregates the
results into per-profile workbooks.

Jobs:
  collect    Scrape marketplace profiles into the profile table
  fetch      Clone qualifying repositories of every profile
  scan       Analyse the clone tree with SonarQube
  aggregate  Build aggregated and condensed workbooks per profile`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default .freelaudit.yaml)")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress output")
	root.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	root.AddCommand(
		NewCollectCommand(opts),
		NewFetchCommand(opts),
		NewScanCommand(opts),
		NewAggregateCommand(opts),
		NewAnonymizeCommand(opts),
		NewLinksCommand(opts),
		NewConfigCommand(opts),
		NewVersionCommand(),
	)

	return root
}

// setup loads the configuration and starts telemetry for one job.
func (o *Options) setup(cmd *cobra.Command, job observability.Job) (*env, error) {
	if o.NoColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch {
	case o.Verbose:
		level = slog.LevelDebug
	case o.Quiet:
		level = slog.LevelWarn
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Job = job
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure

	providers, err := observability.InitWithWriter(obsCfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(cmd.Context())

		return nil, err
	}

	return &env{
		cfg:      cfg,
		logger:   providers.Logger,
		tracer:   providers.Tracer,
		metrics:  metrics,
		out:      cmd.OutOrStdout(),
		shutdown: providers.Shutdown,
	}, nil
}

// NewVersionCommand prints the build identity.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "freelaudit %s\n", version.String())
		},
	}
}
