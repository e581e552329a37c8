// Package fetcher runs the repository fetch job: for every collected profile
// it picks up to a quota of recent, original, single-author repositories in a
// tracked language and clones them into the clone tree.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/freelaudit/pkg/github"
	"github.com/Sumatoshi-tech/freelaudit/pkg/gitlib"
	"github.com/Sumatoshi-tech/freelaudit/pkg/layout"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
	"github.com/Sumatoshi-tech/freelaudit/pkg/profile"
	"github.com/Sumatoshi-tech/freelaudit/pkg/report"
)

const (
	stageFetch   = "fetch"
	summarySheet = "Repositories"
	bytesPerKB   = 1024
)

// ErrNoGitHubLink marks a profile without a GitHub URL.
var ErrNoGitHubLink = errors.New("profile has no github link")

// GitHub is the subset of the GitHub API the fetcher uses.
type GitHub interface {
	User(ctx context.Context, login string) (github.User, error)
	Repositories(ctx context.Context, login string) ([]github.Repository, error)
	Languages(ctx context.Context, owner, repo string) (map[string]int64, error)
	ContributorCount(ctx context.Context, owner, repo string) (int, error)
}

// Cloner materialises a repository on disk.
type Cloner interface {
	Clone(ctx context.Context, url, dest string) error
}

// GitCloner clones through libgit2.
type GitCloner struct{}

// Clone implements [Cloner].
func (GitCloner) Clone(ctx context.Context, url, dest string) error {
	repo, err := gitlib.Clone(ctx, url, dest)
	if err != nil {
		return err
	}

	repo.Free()

	return nil
}

// Config drives a fetch run.
type Config struct {
	ProfilesPath string
	ClonesRoot   string
	SummaryPath  string
	Languages    []string
	Quota        int
	MaxAge       time.Duration
}

// Selection is one newly cloned repository.
type Selection struct {
	Handle     string
	Repository string
	Languages  map[string]bool
}

// Result summarises a fetch run.
type Result struct {
	Profiles        int
	ProfilesSkipped int
	ProfilesFailed  int
	Cloned          int
	AlreadyPresent  int
	CloneFailures   int
	Selections      []Selection
	SummaryWritten  bool
}

// Fetcher runs the fetch job.
type Fetcher struct {
	cfg     Config
	gh      GitHub
	cloner  Cloner
	log     *DecisionLog
	logger  *slog.Logger
	metrics *observability.PipelineMetrics
	now     func() time.Time
}

// Option customises a [Fetcher].
type Option func(*Fetcher)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.PipelineMetrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithClock replaces time.Now for the activity filter.
func WithClock(now func() time.Time) Option { return func(f *Fetcher) { f.now = now } }

// New creates a fetcher writing its decisions to log.
func New(cfg Config, gh GitHub, cloner Cloner, log *DecisionLog, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:    cfg,
		gh:     gh,
		cloner: cloner,
		log:    log,
		logger: observability.Discard(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Run processes every profile in the table. Per-profile failures are logged
// and counted; only an unreadable profile table or summary write aborts.
func (f *Fetcher) Run(ctx context.Context) (Result, error) {
	profiles, err := profile.ReadTable(f.cfg.ProfilesPath)
	if err != nil {
		return Result{}, fmt.Errorf("read profiles: %w", err)
	}

	err = os.MkdirAll(f.cfg.ClonesRoot, 0o755)
	if err != nil {
		return Result{}, fmt.Errorf("create clone root: %w", err)
	}

	var res Result

	for _, p := range profiles {
		if ctx.Err() != nil {
			return res, fmt.Errorf("fetch cancelled: %w", ctx.Err())
		}

		res.Profiles++
		start := time.Now()

		skipped, procErr := f.processProfile(ctx, p, &res)

		switch {
		case procErr != nil:
			res.ProfilesFailed++
			f.log.Printf(ctx, "Error processing user %s: %v", p.Name, procErr)
			f.metrics.RecordItem(ctx, stageFetch, observability.OutcomeFailed, time.Since(start))
		case skipped:
			res.ProfilesSkipped++
			f.metrics.RecordItem(ctx, stageFetch, observability.OutcomeSkipped, time.Since(start))
		default:
			f.metrics.RecordItem(ctx, stageFetch, observability.OutcomeOK, time.Since(start))
		}
	}

	if len(res.Selections) > 0 {
		err = report.WriteWorkbook(f.cfg.SummaryPath, []report.Sheet{f.summarySheet(res.Selections)})
		if err != nil {
			return res, fmt.Errorf("write summary: %w", err)
		}

		res.SummaryWritten = true
		f.log.Printf(ctx, "Report saved to %s", f.cfg.SummaryPath)
	}

	return res, nil
}

func (f *Fetcher) processProfile(ctx context.Context, p profile.Profile, res *Result) (bool, error) {
	if !p.HasGitHub() {
		return false, ErrNoGitHubLink
	}

	handle := p.Handle()
	ctx = observability.WithItem(ctx, handle)
	skills := profile.SkillNames(profile.FormatSkills(p.Skills))

	if !f.tracksAny(skills) {
		f.log.Printf(ctx, "User %s does not have any of the tracked languages. Skipping. Skills: %v", handle, skills)

		return true, nil
	}

	user, err := f.gh.User(ctx, handle)
	if err != nil {
		return false, err
	}

	if user.Login == "" {
		user.Login = handle
	}

	repos, err := f.gh.Repositories(ctx, user.Login)
	if err != nil {
		return false, err
	}

	sort.SliceStable(repos, func(i, j int) bool { return repos[i].Size > repos[j].Size })

	f.log.Printf(ctx, "User: %s", user.Login)
	f.log.Printf(ctx, "Skills: %v", skills)

	collected := 0

	for _, repo := range repos {
		if collected >= f.cfg.Quota {
			break
		}

		counted, repoErr := f.processRepository(ctx, handle, repo, res)
		if repoErr != nil {
			return false, repoErr
		}

		if counted {
			collected++
		}
	}

	f.log.Printf(ctx, "Collected %d repositories from user %s", collected, user.Login)

	return false, nil
}

// processRepository applies the filters to one repository and clones it when
// it qualifies. It reports whether the repository counts toward the quota.
func (f *Fetcher) processRepository(ctx context.Context, handle string, repo github.Repository, res *Result) (bool, error) {
	f.log.Printf(ctx, "Repo: %s. Size: %s", repo.Name, humanize.IBytes(uint64(max(repo.Size, 0))*bytesPerKB))

	if repo.PushedAt.Before(f.now().Add(-f.cfg.MaxAge)) {
		f.log.Printf(ctx, "Skipping repository with no recent activity: %s (last push %s)",
			repo.Name, humanize.Time(repo.PushedAt))

		return false, nil
	}

	if repo.Fork {
		f.log.Printf(ctx, "Skipping forked repository: %s", repo.Name)

		return false, nil
	}

	owner := repo.Owner.Login
	if owner == "" {
		owner = handle
	}

	rawLangs, err := f.gh.Languages(ctx, owner, repo.Name)
	if err != nil {
		return false, err
	}

	langs := lowerKeys(rawLangs)
	f.log.Printf(ctx, "Languages in repo: %v", langs)

	if !f.tracksAny(langs) {
		f.log.Printf(ctx, "Repository skipped. No tracked languages found: %v", langs)

		return false, nil
	}

	contributors, err := f.gh.ContributorCount(ctx, owner, repo.Name)
	if err != nil {
		return false, err
	}

	if contributors != 1 {
		f.log.Printf(ctx, "Repository skipped. There is no single author: %d contributors", contributors)

		return false, nil
	}

	dest := layout.RepositoryDir(f.cfg.ClonesRoot, handle, repo.Name)

	_, statErr := os.Stat(dest)
	if statErr == nil {
		f.log.Printf(ctx, "Repository already downloaded: %s", repo.Name)

		res.AlreadyPresent++

		return true, nil
	}

	if !errors.Is(statErr, fs.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", dest, statErr)
	}

	f.log.Printf(ctx, "Downloading repository: %s", repo.Name)

	err = f.cloner.Clone(ctx, repo.CloneURL, dest)
	if err != nil {
		res.CloneFailures++
		f.log.Printf(ctx, "Clone failed for %s: %v", repo.Name, err)
		f.logger.WarnContext(ctx, "clone failed", "repo", repo.FullName, "error", err)

		// A partial clone would be mistaken for a finished one next run.
		_ = os.RemoveAll(dest)

		return false, nil
	}

	res.Cloned++
	res.Selections = append(res.Selections, Selection{
		Handle:     handle,
		Repository: repo.Name,
		Languages:  f.flags(langs),
	})

	return true, nil
}

func (f *Fetcher) tracksAny(names []string) bool {
	for _, lang := range f.cfg.Languages {
		if slices.Contains(names, lang) {
			return true
		}
	}

	return false
}

func (f *Fetcher) flags(langs []string) map[string]bool {
	out := make(map[string]bool, len(f.cfg.Languages))

	for _, lang := range f.cfg.Languages {
		out[lang] = slices.Contains(langs, lang)
	}

	return out
}

func (f *Fetcher) summarySheet(selections []Selection) report.Sheet {
	header := append([]string{"username", "repository"}, f.cfg.Languages...)
	rows := make([][]any, 0, len(selections))

	for _, s := range selections {
		row := []any{s.Handle, s.Repository}

		for _, lang := range f.cfg.Languages {
			flag := 0
			if s.Languages[lang] {
				flag = 1
			}

			row = append(row, flag)
		}

		rows = append(rows, row)
	}

	return report.Sheet{Name: summarySheet, Header: header, Rows: rows}
}

func lowerKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))

	for k := range m {
		out = append(out, strings.ToLower(k))
	}

	sort.Strings(out)

	return out
}
