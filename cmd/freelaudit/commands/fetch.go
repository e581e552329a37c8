package commands

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/fetcher"
	"github.com/Sumatoshi-tech/freelaudit/pkg/github"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

type fetchRunner func(ctx context.Context, e *env) (fetcher.Result, error)

// NewFetchCommand creates the fetch sub-command.
func NewFetchCommand(opts *Options) *cobra.Command {
	return newFetchCommandWithDeps(opts, runFetch)
}

func newFetchCommandWithDeps(opts *Options, run fetchRunner) *cobra.Command {
	var (
		quota  int
		clones string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Clone qualifying repositories of every collected profile",
		Long: `For every profile with a GitHub link and a tracked skill, clone up to the
quota of its largest repositories that were pushed recently, are not forks,
use a tracked language and have a single contributor. Every decision is
appended to the fetch log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, jobSpec[fetcher.Result]{
				job: observability.JobFetch,
				override: func(cfg *config.Config) {
					if quota > 0 {
						cfg.Fetch.Quota = quota
					}

					if clones != "" {
						cfg.Paths.Clones = clones
					}
				},
				run:    run,
				render: renderFetch,
			})
		},
	}

	cmd.Flags().IntVar(&quota, "quota", 0, "repositories per profile (0 = configured value)")
	cmd.Flags().StringVar(&clones, "clones", "", "clone root directory (default from config)")

	return cmd
}

func runFetch(ctx context.Context, e *env) (res fetcher.Result, err error) {
	gc := e.cfg.GitHub

	gh, err := github.New(github.Options{
		BaseURL:           gc.BaseURL,
		Token:             gc.Token,
		Timeout:           gc.Timeout,
		LanguageCacheSize: gc.LanguageCacheSize,
		Tracer:            e.tracer,
		Metrics:           e.metrics,
		Logger:            e.logger,
	})
	if err != nil {
		return fetcher.Result{}, err
	}

	if gc.Token == "" {
		e.logger.WarnContext(ctx, "no GitHub token configured, requests are unauthenticated and heavily rate limited")
	}

	decisions, err := fetcher.OpenDecisionLog(e.cfg.Fetch.LogFile, e.logger)
	if err != nil {
		return fetcher.Result{}, err
	}

	defer func() { err = errors.Join(err, decisions.Close()) }()

	f := fetcher.New(fetcher.Config{
		ProfilesPath: e.cfg.Paths.Profiles,
		ClonesRoot:   e.cfg.Paths.Clones,
		SummaryPath:  e.cfg.Fetch.SummaryFile,
		Languages:    e.cfg.Languages,
		Quota:        e.cfg.Fetch.Quota,
		MaxAge:       e.cfg.Fetch.MaxAge,
	}, gh, fetcher.GitCloner{}, decisions, fetcher.WithLogger(e.logger), fetcher.WithMetrics(e.metrics))

	return f.Run(ctx)
}

func renderFetch(out io.Writer, res fetcher.Result) {
	if len(res.Selections) > 0 {
		tw := newTable(out, "Cloned repositories")
		tw.AppendHeader(table.Row{"Profile", "Repository", "Languages"})

		for _, s := range res.Selections {
			tw.AppendRow(table.Row{s.Handle, s.Repository, strings.Join(trackedLanguages(s.Languages), ", ")})
		}

		tw.Render()
	}

	tw := newTable(out, "Fetch summary")
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Profiles", res.Profiles},
		{"Skipped (no tracked skill)", res.ProfilesSkipped},
		{"Failed", res.ProfilesFailed},
		{"Already present", res.AlreadyPresent},
		{"Clone failures", res.CloneFailures},
	})
	tw.AppendFooter(table.Row{"Cloned", res.Cloned})
	tw.Render()

	if res.ProfilesFailed > 0 {
		warning(out, "%d profiles failed, see the fetch log", res.ProfilesFailed)
	}

	if res.SummaryWritten {
		success(out, "Cloned %d repositories", res.Cloned)
	}
}

func trackedLanguages(flags map[string]bool) []string {
	var langs []string

	for lang, ok := range flags {
		if ok {
			langs = append(langs, lang)
		}
	}

	sort.Strings(langs)

	return langs
}
