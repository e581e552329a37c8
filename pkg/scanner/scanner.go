// Package scanner runs the quality scan job: every repository in the clone
// tree is registered with SonarQube, analysed by sonar-scanner, and its
// issues and line counts are written next to the source as CSV tables.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/freelaudit/pkg/layout"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/report"
	"github.com/Sumatoshi-tech/freelaudit/pkg/retry"
	"github.com/Sumatoshi-tech/freelaudit/pkg/sonar"
)

const stageScan = "scan"

// Sonar is the part of the SonarQube API the scanner uses.
type Sonar interface {
	ProjectExists(ctx context.Context, key string) (bool, error)
	EnsureProject(ctx context.Context, key, name string) (bool, error)
	Issues(ctx context.Context, key string) ([]sonar.Issue, error)
	FileMeasures(ctx context.Context, key string) ([]sonar.Component, error)
}

// Runner executes one analysis.
type Runner interface {
	Run(ctx context.Context, a sonar.Analysis) error
}

// Config drives a scan run.
type Config struct {
	ClonesRoot     string
	Languages      []string
	Workers        int
	SettleDelay    time.Duration
	RetryBackoff   time.Duration
	RetryAttempts  int
	SkipRegistered bool
}

// Outcome is how a repository's scan ended.
type Outcome string

// Outcomes.
const (
	Analyzed     Outcome = "analyzed"
	Registered   Outcome = "registered"
	Unanalyzable Outcome = "unanalyzable"
	Failed       Outcome = "failed"
)

// RepoResult is the result of one repository job.
type RepoResult struct {
	layout.Entry

	Key          string
	Outcome      Outcome
	SourceFiles  int
	Issues       int
	Consolidated []report.Consolidated
	Err          error
}

// Result lists the repository results in discovery order.
type Result struct {
	Repos []RepoResult
}

// Count returns how many repositories ended with outcome.
func (r Result) Count(outcome Outcome) int {
	n := 0

	for _, repo := range r.Repos {
		if repo.Outcome == outcome {
			n++
		}
	}

	return n
}

// ProjectKey derives the server project key of a repository.
func ProjectKey(handle, repo string) string {
	key := strings.ToLower(handle + "_" + repo)

	return strings.NewReplacer(" ", "_", "-", "_").Replace(key)
}

// ProjectName is the display name of a repository's project.
func ProjectName(handle, repo string) string {
	return handle + "/" + repo
}

// Scanner runs the scan job.
type Scanner struct {
	cfg     Config
	sonar   Sonar
	runner  Runner
	logger  *slog.Logger
	metrics *observability.PipelineMetrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customises a [Scanner].
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Scanner) { s.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithSleep replaces the settle and backoff pauses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scanner) { s.sleep = fn }
}

// New creates a scanner.
func New(cfg Config, client Sonar, runner Runner, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:    cfg,
		sonar:  client,
		runner: runner,
		logger: observability.Discard(),
		sleep:  retry.Sleep,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run scans every repository of the clone tree on a bounded pool of
// workers. A failing repository is logged and recorded; it does not stop
// the others.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	entries, err := layout.Walk(s.cfg.ClonesRoot)
	if err != nil {
		return Result{}, fmt.Errorf("discover repositories: %w", err)
	}

	s.logger.InfoContext(ctx, "discovered repositories", "count", len(entries), "workers", s.cfg.Workers)

	results := make([]RepoResult, len(entries))
	jobs := make(chan int)

	workers := min(max(s.cfg.Workers, 1), max(len(entries), 1))

	wg := sync.WaitGroup{}
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()

			for i := range jobs {
				done := s.metrics.TrackWorker(ctx, stageScan)
				results[i] = s.Analyze(ctx, entries[i])

				done()
			}
		}()
	}

	sent := 0

	for i := range entries {
		if ctx.Err() != nil {
			break
		}

		jobs <- i
		sent++
	}

	close(jobs)
	wg.Wait()

	res := Result{Repos: results[:sent]}

	if ctx.Err() != nil {
		return res, fmt.Errorf("scan cancelled: %w", ctx.Err())
	}

	return res, nil
}

// Analyze runs the whole pipeline for one repository.
func (s *Scanner) Analyze(ctx context.Context, entry layout.Entry) RepoResult {
	start := time.Now()
	res := RepoResult{Entry: entry, Key: ProjectKey(entry.Handle, entry.Repository)}
	ctx = observability.WithItem(ctx, res.Key)

	err := s.analyze(ctx, &res)

	outcome := observability.OutcomeOK

	switch {
	case err != nil:
		res.Outcome = Failed
		res.Err = err
		outcome = observability.OutcomeFailed

		s.logger.ErrorContext(ctx, "repository scan failed", "project", res.Key, "error", err)
	case res.Outcome != Analyzed:
		outcome = observability.OutcomeSkipped
	}

	s.metrics.RecordItem(ctx, stageScan, outcome, time.Since(start))

	return res
}

func (s *Scanner) analyze(ctx context.Context, res *RepoResult) error {
	key := res.Key
	name := ProjectName(res.Handle, res.Repository)

	census, err := TakeCensus(res.Dir, s.cfg.Languages)
	if err != nil {
		s.logger.WarnContext(ctx, "source census failed", "project", key, "error", err)
	}

	res.SourceFiles = census.Total
	s.logger.InfoContext(ctx, "source census", "project", key, "files", census.Total, "by_extension", census.ByExtension)

	if s.cfg.SkipRegistered {
		exists, existsErr := s.sonar.ProjectExists(ctx, key)
		if existsErr != nil {
			return existsErr
		}

		if exists {
			s.logger.InfoContext(ctx, "skipping already registered project", "project", name)

			res.Outcome = Registered

			return nil
		}
	}

	existed, err := s.sonar.EnsureProject(ctx, key, name)
	if err != nil {
		return err
	}

	if existed {
		s.logger.InfoContext(ctx, "project already exists", "project", name, "key", key)
	} else {
		s.logger.InfoContext(ctx, "project created", "project", name, "key", key)
	}

	s.logger.InfoContext(ctx, "start scanning repository", "project", key)

	err = s.runner.Run(ctx, sonar.Analysis{ProjectKey: key, SourceDir: res.Dir})
	if err != nil {
		// Results of an earlier analysis may still be on the server.
		s.logger.WarnContext(ctx, "scanner run failed", "project", key, "error", err)
	}

	err = s.sleep(ctx, s.cfg.SettleDelay)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "start generating reports", "project", key)

	fetched, err := s.fetchResults(ctx, key)
	if errors.Is(err, retry.ErrExhausted) && errors.Is(err, sonar.ErrNoMeasures) {
		s.logger.WarnContext(ctx, fmt.Sprintf("Repository %s couldn't be analyzed", key))

		res.Outcome = Unanalyzable

		return nil
	}

	if err != nil {
		return err
	}

	return s.writeReports(ctx, res, fetched)
}

type serverResults struct {
	issues []sonar.Issue
	files  []sonar.Component
}

func (s *Scanner) fetchResults(ctx context.Context, key string) (serverResults, error) {
	policy := retry.Policy{
		MaxAttempts: s.cfg.RetryAttempts + 1,
		Backoff:     retry.Constant(s.cfg.RetryBackoff),
		Retryable:   func(err error) bool { return errors.Is(err, sonar.ErrNoMeasures) },
		OnRetry: func(attempt int, _ error, wait time.Duration) {
			s.logger.InfoContext(ctx, "no measures yet, retrying", "project", key, "attempt", attempt, "wait", wait)
		},
		Sleep: s.sleep,
	}

	return retry.Do(ctx, policy, func(ctx context.Context) (serverResults, error) {
		issues, err := s.sonar.Issues(ctx, key)
		if err != nil {
			return serverResults{}, err
		}

		files, err := s.sonar.FileMeasures(ctx, key)
		if err != nil {
			return serverResults{}, err
		}

		return serverResults{issues: issues, files: files}, nil
	})
}

func (s *Scanner) writeReports(ctx context.Context, res *RepoResult, fetched serverResults) error {
	consolidated, err := report.Consolidate(fetched.issues, fetched.files)
	if err != nil {
		return err
	}

	issuesPath := layout.IssuesPath(res.Dir, res.Key)

	err = report.WriteIssues(issuesPath, report.BuildIssueRows(fetched.issues))
	if err != nil {
		return err
	}

	consolidatedPath := layout.ConsolidatedPath(res.Dir, res.Key)

	err = report.WriteConsolidated(consolidatedPath, consolidated)
	if err != nil {
		return err
	}

	res.Outcome = Analyzed
	res.Issues = len(fetched.issues)
	res.Consolidated = consolidated

	s.logger.InfoContext(ctx, "reports generated", "issues", issuesPath, "consolidated", consolidatedPath)

	return nil
}
