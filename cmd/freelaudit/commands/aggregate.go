package commands

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/freelaudit/pkg/aggregator"
	"github.com/Sumatoshi-tech/freelaudit/pkg/artifact"
	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

type aggregateRunner func(ctx context.Context, e *env) (aggregator.Result, error)

// NewAggregateCommand creates the aggregate sub-command.
func NewAggregateCommand(opts *Options) *cobra.Command {
	return newAggregateCommandWithDeps(opts, runAggregate)
}

func newAggregateCommandWithDeps(opts *Options, run aggregateRunner) *cobra.Command {
	var (
		clones  string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Build aggregated and condensed workbooks per profile",
		Long: `Union every repository's issue and consolidated tables into
<handle>_aggregated_report.xlsx, then pivot them by severity, impact and
extension into <handle>_condensed_report.xlsx. With storage enabled the
workbooks are also uploaded to the configured bucket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, jobSpec[aggregator.Result]{
				job: observability.JobAggregate,
				override: func(cfg *config.Config) {
					if clones != "" {
						cfg.Paths.Clones = clones
					}

					if publish {
						cfg.Storage.Enabled = true
					}
				},
				run:    run,
				render: renderAggregate,
			})
		},
	}

	cmd.Flags().StringVar(&clones, "clones", "", "clone root directory (default from config)")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload workbooks to the configured bucket")

	return cmd
}

func runAggregate(ctx context.Context, e *env) (aggregator.Result, error) {
	opts := []aggregator.Option{
		aggregator.WithLogger(e.logger),
		aggregator.WithMetrics(e.metrics),
	}

	if st := e.cfg.Storage; st.Enabled {
		store, err := artifact.NewS3(artifact.S3Config{
			Endpoint:  st.Endpoint,
			Region:    st.Region,
			AccessKey: st.AccessKey,
			SecretKey: st.SecretKey,
			Bucket:    st.Bucket,
			Prefix:    st.Prefix,
			UseSSL:    st.UseSSL,
		})
		if err != nil {
			return aggregator.Result{}, err
		}

		e.logger.InfoContext(ctx, "publishing workbooks", "endpoint", st.Endpoint, "bucket", st.Bucket)

		opts = append(opts, aggregator.WithPublisher(store))
	}

	return aggregator.New(aggregator.Config{ClonesRoot: e.cfg.Paths.Clones}, opts...).Run(ctx)
}

func renderAggregate(out io.Writer, res aggregator.Result) {
	tw := newTable(out, "Aggregation")
	tw.AppendHeader(table.Row{"Profile", "Repositories", "Issues", "Extensions", "Workbooks"})

	for _, p := range res.Profiles {
		tw.AppendRow(table.Row{p.Handle, p.Repositories, p.Issues, p.Consolidated, workbooks(p)})
	}

	tw.AppendFooter(table.Row{"Profiles", len(res.Profiles), "", "", ""})
	tw.Render()

	for _, p := range res.Profiles {
		if p.Err != nil {
			failure(out, "Profile %s failed: %v", p.Handle, p.Err)
		}
	}

	if failed := res.Failed(); failed > 0 {
		warning(out, "%d of %d profiles failed", failed, len(res.Profiles))

		return
	}

	success(out, "Aggregated %d profiles", len(res.Profiles))
}

func workbooks(p aggregator.ProfileResult) string {
	var names []string

	for _, path := range []string{p.AggregatedPath, p.CondensedPath} {
		if path != "" {
			names = append(names, filepath.Base(path))
		}
	}

	if len(p.Published) > 0 {
		names = append(names, "(published)")
	}

	return strings.Join(names, " ")
}
