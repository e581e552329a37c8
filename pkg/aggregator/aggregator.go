// Package aggregator runs the report aggregation job: per profile it unions
// the scanned repositories' CSV tables into an aggregated workbook and
// derives the condensed pivots.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/freelaudit/pkg/artifact"
	"github.com/Sumatoshi-tech/freelaudit/pkg/layout"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/report"
)

const (
	stageAggregate    = "aggregate"
	sheetIssues       = "Issues"
	sheetConsolidated = "Consolidated"
	repositoryColumn  = "Repository"
)

// Config drives an aggregation run.
type Config struct {
	ClonesRoot string
}

// Union holds one profile's rows, each tagged with its repository.
type Union struct {
	Issues       []Tagged[report.Issue]
	Consolidated []Tagged[report.Consolidated]

	// IssueTables and ConsolidatedTables count the tables read, including
	// header-only ones.
	IssueTables        int
	ConsolidatedTables int
}

// Tagged is a table row with the repository it came from.
type Tagged[T any] struct {
	Repository string
	Row        T
}

// ProfileResult summarises one profile.
type ProfileResult struct {
	Handle       string
	Repositories int
	Issues       int
	Consolidated int

	AggregatedPath string
	// CondensedPath is empty when there was nothing to condense.
	CondensedPath string
	Published     []string
	Err           error
}

// Result lists the processed profiles in name order.
type Result struct {
	Profiles []ProfileResult
}

// Failed counts profiles that ended with an error.
func (r Result) Failed() int {
	n := 0

	for _, p := range r.Profiles {
		if p.Err != nil {
			n++
		}
	}

	return n
}

// Aggregator runs the aggregation job.
type Aggregator struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.PipelineMetrics
	publisher artifact.Publisher
}

// Option customises an [Aggregator].
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(a *Aggregator) { a.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithPublisher uploads every written workbook.
func WithPublisher(p artifact.Publisher) Option {
	return func(a *Aggregator) { a.publisher = p }
}

// New creates an aggregator.
func New(cfg Config, opts ...Option) *Aggregator {
	a := &Aggregator{cfg: cfg, logger: observability.Discard()}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Run aggregates every profile directory. A failing profile is logged and
// recorded; the others still run.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	handles, err := layout.Handles(a.cfg.ClonesRoot)
	if err != nil {
		return Result{}, fmt.Errorf("discover profiles: %w", err)
	}

	var res Result

	for _, handle := range handles {
		if ctx.Err() != nil {
			return res, fmt.Errorf("aggregate cancelled: %w", ctx.Err())
		}

		start := time.Now()
		pr := a.Aggregate(ctx, handle)

		outcome := observability.OutcomeOK
		if pr.Err != nil {
			outcome = observability.OutcomeFailed

			a.logger.ErrorContext(ctx, "profile aggregation failed", "handle", handle, "error", pr.Err)
		}

		a.metrics.RecordItem(ctx, stageAggregate, outcome, time.Since(start))

		res.Profiles = append(res.Profiles, pr)
	}

	a.logger.InfoContext(ctx, "all user reports have been generated", "profiles", len(res.Profiles))

	return res, nil
}

// Aggregate builds both workbooks of one profile.
func (a *Aggregator) Aggregate(ctx context.Context, handle string) ProfileResult {
	pr := ProfileResult{Handle: handle}
	ctx = observability.WithItem(ctx, handle)

	union, repos, err := a.Collect(ctx, handle)
	if err != nil {
		pr.Err = err

		return pr
	}

	pr.Repositories = repos
	pr.Issues = len(union.Issues)
	pr.Consolidated = len(union.Consolidated)

	pr.AggregatedPath = layout.AggregatedPath(a.cfg.ClonesRoot, handle)

	err = report.WriteWorkbook(pr.AggregatedPath, AggregatedSheets(union))
	if err != nil {
		pr.Err = fmt.Errorf("write aggregated report: %w", err)

		return pr
	}

	a.logger.InfoContext(ctx, "aggregated report saved", "handle", handle, "path", pr.AggregatedPath)
	a.publish(ctx, &pr, pr.AggregatedPath)

	condensed := CondensedSheets(union)
	if len(condensed) == 0 {
		a.logger.InfoContext(ctx, "nothing to condense, skipping condensed report", "handle", handle)

		return pr
	}

	path := layout.CondensedPath(a.cfg.ClonesRoot, handle)

	err = report.WriteWorkbook(path, condensed)
	if err != nil {
		pr.Err = fmt.Errorf("write condensed report: %w", err)

		return pr
	}

	pr.CondensedPath = path
	a.logger.InfoContext(ctx, "condensed report saved", "handle", handle, "path", path)
	a.publish(ctx, &pr, path)

	return pr
}

// Collect reads every issues and consolidated table under a profile
// directory and reports how many repository directories it visited.
func (a *Aggregator) Collect(ctx context.Context, handle string) (Union, int, error) {
	var union Union

	repos, err := layout.Repositories(a.cfg.ClonesRoot, handle)
	if err != nil {
		return union, 0, err
	}

	for _, repo := range repos {
		issueFiles, listErr := layout.FilesWithSuffix(repo.Dir, layout.IssuesSuffix)
		if listErr != nil {
			return union, 0, listErr
		}

		for _, file := range issueFiles {
			a.logger.DebugContext(ctx, "processing file", "path", file)

			rows, readErr := report.ReadIssues(file)
			if readErr != nil {
				return union, 0, readErr
			}

			union.IssueTables++

			for _, r := range rows {
				union.Issues = append(union.Issues, Tagged[report.Issue]{Repository: repo.Repository, Row: r})
			}
		}

		consolidatedFiles, listErr := layout.FilesWithSuffix(repo.Dir, layout.ConsolidatedSuffix)
		if listErr != nil {
			return union, 0, listErr
		}

		for _, file := range consolidatedFiles {
			a.logger.DebugContext(ctx, "processing file", "path", file)

			rows, readErr := report.ReadConsolidated(file)
			if readErr != nil {
				return union, 0, readErr
			}

			union.ConsolidatedTables++

			for _, r := range rows {
				union.Consolidated = append(union.Consolidated,
					Tagged[report.Consolidated]{Repository: repo.Repository, Row: r})
			}
		}
	}

	return union, len(repos), nil
}

func (a *Aggregator) publish(ctx context.Context, pr *ProfileResult, path string) {
	if a.publisher == nil {
		return
	}

	key, err := a.publisher.Publish(ctx, pr.Handle, path)
	if err != nil {
		a.logger.WarnContext(ctx, "publish failed", "handle", pr.Handle, "path", path, "error", err)

		return
	}

	pr.Published = append(pr.Published, key)
	a.logger.InfoContext(ctx, "report published", "handle", pr.Handle, "key", key)
}
