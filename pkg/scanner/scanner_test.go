package scanner_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/freelaudit/pkg/layout"
	"github.com/Sumatoshi-tech/freelaudit/pkg/report"
	"github.com/Sumatoshi-tech/freelaudit/pkg/scanner"
	"github.com/Sumatoshi-tech/freelaudit/pkg/sonar"
)

type fakeSonar struct {
	mu          sync.Mutex
	registered  map[string]bool
	created     []string
	measureCall map[string]int
	// emptyFor lists project keys whose component tree never fills.
	emptyFor map[string]bool
	failFor  map[string]error
}

func newFakeSonar() *fakeSonar {
	return &fakeSonar{
		registered:  map[string]bool{},
		measureCall: map[string]int{},
		emptyFor:    map[string]bool{},
		failFor:     map[string]error{},
	}
}

func (f *fakeSonar) ProjectExists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.registered[key], nil
}

func (f *fakeSonar) EnsureProject(_ context.Context, key, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failFor[key]; err != nil {
		return false, err
	}

	if f.registered[key] {
		return true, nil
	}

	f.registered[key] = true
	f.created = append(f.created, key)

	return false, nil
}

func (f *fakeSonar) Issues(_ context.Context, key string) ([]sonar.Issue, error) {
	return []sonar.Issue{
		{Key: key + "-1", Component: key + ":src/a.py", Type: "CODE_SMELL", Severity: "MINOR",
			Impacts: []sonar.Impact{{SoftwareQuality: "MAINTAINABILITY"}}},
		{Key: key + "-2", Component: key + ":src/b.js", Type: "BUG", Severity: "MAJOR"},
	}, nil
}

func (f *fakeSonar) FileMeasures(_ context.Context, key string) ([]sonar.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.measureCall[key]++

	if f.emptyFor[key] {
		return nil, sonar.ErrNoMeasures
	}

	return []sonar.Component{
		{Path: "src/a.py", Qualifier: sonar.QualifierFile, Measures: []sonar.Measure{{Value: "30"}}},
	}, nil
}

type fakeRunner struct {
	mu       sync.Mutex
	analyses []sonar.Analysis
	err      error
}

func (f *fakeRunner) Run(_ context.Context, a sonar.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.analyses = append(f.analyses, a)

	return f.err
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waits = append(s.waits, d)

	return nil
}

func cloneTree(t *testing.T, repos ...string) string {
	t.Helper()

	root := t.TempDir()

	for _, r := range repos {
		dir := filepath.Join(root, r)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.py"), []byte("print(1)\n"), 0o600))
	}

	return root
}

func testConfig(root string) scanner.Config {
	return scanner.Config{
		ClonesRoot:    root,
		Languages:     []string{"python", "javascript", "php"},
		Workers:       4,
		SettleDelay:   10 * time.Second,
		RetryBackoff:  20 * time.Second,
		RetryAttempts: 3,
	}
}

func TestProjectKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mona_my_site", scanner.ProjectKey("Mona", "my-site"))
	assert.Equal(t, "a_b_c_d", scanner.ProjectKey("a b", "c-d"))
	assert.Equal(t, "Mona/my-site", scanner.ProjectName("Mona", "my-site"))
}

func TestRun_WritesReports(t *testing.T) {
	t.Parallel()

	root := cloneTree(t, "mona/site", "mona/api", "zed/tool")
	fs := newFakeSonar()
	runner := &fakeRunner{}
	sleeps := &sleepRecorder{}

	s := scanner.New(testConfig(root), fs, runner, scanner.WithSleep(sleeps.sleep))

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Repos, 3)
	assert.Equal(t, 3, res.Count(scanner.Analyzed))
	assert.Equal(t, "mona_api", res.Repos[0].Key)
	assert.Equal(t, "zed_tool", res.Repos[2].Key)
	assert.Len(t, runner.analyses, 3)
	assert.ElementsMatch(t, []string{"mona_api", "mona_site", "zed_tool"}, fs.created)

	dir := layout.RepositoryDir(root, "mona", "site")

	issues, err := report.ReadIssues(layout.IssuesPath(dir, "mona_site"))
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "py", issues[0].Extension)

	consolidated, err := report.ReadConsolidated(layout.ConsolidatedPath(dir, "mona_site"))
	require.NoError(t, err)
	assert.Equal(t, []report.Consolidated{
		{Extension: "py", Minor: 1, LOC: 30},
		{Extension: "js", Major: 1},
	}, consolidated)

	assert.Equal(t, 1, res.Repos[1].SourceFiles)

	for _, w := range sleeps.waits {
		assert.Equal(t, 10*time.Second, w)
	}
}

func TestRun_EmptyMeasuresGivesUp(t *testing.T) {
	t.Parallel()

	root := cloneTree(t, "mona/site")
	fs := newFakeSonar()
	fs.emptyFor["mona_site"] = true
	sleeps := &sleepRecorder{}

	var logs bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&logs, nil))

	res, err := scanner.New(testConfig(root), fs, &fakeRunner{},
		scanner.WithSleep(sleeps.sleep), scanner.WithLogger(logger)).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Repos, 1)
	assert.Equal(t, scanner.Unanalyzable, res.Repos[0].Outcome)
	assert.Contains(t, logs.String(), "Repository mona_site couldn't be analyzed")
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Equal(t, 4, fs.measureCall["mona_site"])
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 20 * time.Second, 20 * time.Second}, sleeps.waits)

	dir := layout.RepositoryDir(root, "mona", "site")
	assert.NoFileExists(t, layout.IssuesPath(dir, "mona_site"))
	assert.NoFileExists(t, layout.ConsolidatedPath(dir, "mona_site"))
}

func TestRun_FailureDoesNotStopSiblings(t *testing.T) {
	t.Parallel()

	root := cloneTree(t, "mona/site", "zed/tool")
	fs := newFakeSonar()
	fs.failFor["mona_site"] = errors.New("server down")

	res, err := scanner.New(testConfig(root), fs, &fakeRunner{}, scanner.WithSleep((&sleepRecorder{}).sleep)).
		Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Repos, 2)
	assert.Equal(t, scanner.Failed, res.Repos[0].Outcome)
	require.Error(t, res.Repos[0].Err)
	assert.Equal(t, scanner.Analyzed, res.Repos[1].Outcome)
}

func TestRun_ScannerErrorStillFetches(t *testing.T) {
	t.Parallel()

	root := cloneTree(t, "mona/site")

	res, err := scanner.New(testConfig(root), newFakeSonar(), &fakeRunner{err: errors.New("exit status 1")},
		scanner.WithSleep((&sleepRecorder{}).sleep)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scanner.Analyzed, res.Repos[0].Outcome)
}

func TestRun_SkipRegistered(t *testing.T) {
	t.Parallel()

	root := cloneTree(t, "mona/site", "zed/tool")
	fs := newFakeSonar()
	fs.registered["mona_site"] = true
	runner := &fakeRunner{}

	cfg := testConfig(root)
	cfg.SkipRegistered = true

	res, err := scanner.New(cfg, fs, runner, scanner.WithSleep((&sleepRecorder{}).sleep)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scanner.Registered, res.Repos[0].Outcome)
	assert.Equal(t, scanner.Analyzed, res.Repos[1].Outcome)
	require.Len(t, runner.analyses, 1)
	assert.Equal(t, "zed_tool", runner.analyses[0].ProjectKey)
}

func TestRun_ReusesRegisteredProject(t *testing.T) {
	t.Parallel()

	root := cloneTree(t, "mona/site")
	fs := newFakeSonar()
	fs.registered["mona_site"] = true

	res, err := scanner.New(testConfig(root), fs, &fakeRunner{}, scanner.WithSleep((&sleepRecorder{}).sleep)).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scanner.Analyzed, res.Repos[0].Outcome)
	assert.Empty(t, fs.created)
}

func TestRun_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := scanner.New(testConfig(filepath.Join(t.TempDir(), "none")), newFakeSonar(), &fakeRunner{}).
		Run(context.Background())
	require.ErrorIs(t, err, layout.ErrNoRoot)
}
