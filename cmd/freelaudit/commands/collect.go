package commands

import (
	"context"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/freelaudit/pkg/collector"
	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/marketplace"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

type collectRunner func(ctx context.Context, e *env) (collector.Result, error)

// NewCollectCommand creates the collect sub-command.
func NewCollectCommand(opts *Options) *cobra.Command {
	return newCollectCommandWithDeps(opts, runCollect)
}

func newCollectCommandWithDeps(opts *Options, run collectRunner) *cobra.Command {
	var (
		pages     int
		tablePath string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Scrape marketplace profiles into the profile table",
		Long: `Walk the marketplace listing pages for every configured interface language
and technology filter, scrape each profile not yet in the table, and append
the new rows once the crawl is complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, jobSpec[collector.Result]{
				job: observability.JobCollect,
				override: func(cfg *config.Config) {
					if pages > 0 {
						cfg.Marketplace.Pages = pages
					}

					if tablePath != "" {
						cfg.Paths.Profiles = tablePath
					}
				},
				run:    run,
				render: renderCollect,
			})
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 0, "listing pages per filter (0 = configured value)")
	cmd.Flags().StringVar(&tablePath, "table", "", "profile table path (default from config)")

	return cmd
}

func runCollect(ctx context.Context, e *env) (collector.Result, error) {
	mc := e.cfg.Marketplace

	client, err := marketplace.New(marketplace.Options{
		BaseURL:      mc.BaseURL,
		UserAgent:    mc.UserAgent,
		Timeout:      mc.Timeout,
		DetailsDelay: mc.DetailsDelay,
		Tracer:       e.tracer,
		Metrics:      e.metrics,
		Logger:       e.logger,
	})
	if err != nil {
		return collector.Result{}, err
	}

	c := collector.New(collector.Config{
		TablePath:    e.cfg.Paths.Profiles,
		Languages:    mc.Languages,
		Technologies: mc.Technologies,
		Pages:        mc.Pages,
		PageDelay:    mc.PageDelay,
	}, client, collector.WithLogger(e.logger), collector.WithMetrics(e.metrics))

	return c.Run(ctx)
}

func renderCollect(out io.Writer, res collector.Result) {
	tw := newTable(out, "Profile collection")
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Existing profiles", humanize.Comma(int64(res.Existing))},
		{"Listing pages", humanize.Comma(int64(res.ListingPages))},
		{"Profile links seen", humanize.Comma(int64(res.LinksSeen))},
		{"Already known", humanize.Comma(int64(res.Duplicates))},
		{"New profiles", humanize.Comma(int64(len(res.NewProfiles)))},
		{"New with GitHub link", humanize.Comma(int64(res.WithGitHub))},
	})
	tw.AppendFooter(table.Row{"Total profiles", humanize.Comma(int64(res.TotalAfterRun))})
	tw.Render()

	if len(res.NewProfiles) == 0 {
		warning(out, "No new profiles found")

		return
	}

	success(out, "Added %d new profiles", len(res.NewProfiles))
}
