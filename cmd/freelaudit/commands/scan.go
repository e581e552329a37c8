package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/scanner"
	"github.com/Sumatoshi-tech/freelaudit/pkg/sonar"
)

type scanRunner func(ctx context.Context, e *env) (scanner.Result, error)

// NewScanCommand creates the scan sub-command.
func NewScanCommand(opts *Options) *cobra.Command {
	return newScanCommandWithDeps(opts, runScan)
}

func newScanCommandWithDeps(opts *Options, run scanRunner) *cobra.Command {
	var (
		workers        int
		skipRegistered bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Analyse every cloned repository with SonarQube",
		Long: `Register each repository of the clone tree as a SonarQube project, run
sonar-scanner on it and write <key>_issues.csv and <key>_consolidated.csv
next to the source. Repositories are processed on a bounded worker pool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, jobSpec[scanner.Result]{
				job: observability.JobScan,
				override: func(cfg *config.Config) {
					if workers > 0 {
						cfg.Sonar.Workers = workers
					}

					if skipRegistered {
						cfg.Sonar.SkipRegistered = true
					}
				},
				run:    run,
				render: renderScan,
			})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent repository jobs (0 = configured value)")
	cmd.Flags().BoolVar(&skipRegistered, "skip-registered", false, "skip repositories already registered on the server")

	return cmd
}

func runScan(ctx context.Context, e *env) (scanner.Result, error) {
	sc := e.cfg.Sonar

	client := sonar.New(sonar.Options{
		BaseURL:  sc.BaseURL,
		Token:    sc.Token,
		Timeout:  sc.Timeout,
		PageSize: sc.PageSize,
		Tracer:   e.tracer,
		Metrics:  e.metrics,
		Logger:   e.logger,
	})

	runner := &sonar.Scanner{
		Executable: sc.Scanner,
		BaseURL:    sc.BaseURL,
		Token:      sc.Token,
		Inclusions: sc.Inclusions,
		Exclusions: sc.Exclusions,
	}

	// Scanner chatter is only useful when debugging.
	if e.logger.Enabled(ctx, slog.LevelDebug) {
		runner.Output = os.Stderr
	}

	s := scanner.New(scanner.Config{
		ClonesRoot:     e.cfg.Paths.Clones,
		Languages:      e.cfg.Languages,
		Workers:        sc.Workers,
		SettleDelay:    sc.SettleDelay,
		RetryBackoff:   sc.RetryBackoff,
		RetryAttempts:  sc.RetryAttempts,
		SkipRegistered: sc.SkipRegistered,
	}, client, runner, scanner.WithLogger(e.logger), scanner.WithMetrics(e.metrics))

	return s.Run(ctx)
}

func renderScan(out io.Writer, res scanner.Result) {
	tw := newTable(out, "Quality scan")
	tw.AppendHeader(table.Row{"Project", "Outcome", "Source files", "Issues"})

	for _, r := range res.Repos {
		tw.AppendRow(table.Row{r.Key, string(r.Outcome), r.SourceFiles, r.Issues})
	}

	tw.AppendFooter(table.Row{"Analyzed", res.Count(scanner.Analyzed), "", ""})
	tw.Render()

	for _, r := range res.Repos {
		switch r.Outcome {
		case scanner.Unanalyzable:
			warning(out, "Repository %s couldn't be analyzed", r.Key)
		case scanner.Failed:
			failure(out, "Repository %s failed: %v", r.Key, r.Err)
		}
	}

	success(out, "Scanned %d of %d repositories", res.Count(scanner.Analyzed), len(res.Repos))
}
