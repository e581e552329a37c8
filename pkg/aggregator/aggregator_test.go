package aggregator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/freelaudit/pkg/aggregator"
	"github.com/Sumatoshi-tech/freelaudit/pkg/artifact/artifacttest"
	"github.com/Sumatoshi-tech/freelaudit/pkg/layout"
	"github.com/Sumatoshi-tech/freelaudit/pkg/report"
)

func scannedRepo(t *testing.T, root, handle, repo string, issues []report.Issue, consolidated []report.Consolidated) {
	t.Helper()

	dir := layout.RepositoryDir(root, handle, repo)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	key := handle + "_" + repo
	require.NoError(t, report.WriteIssues(layout.IssuesPath(dir, key), issues))
	require.NoError(t, report.WriteConsolidated(layout.ConsolidatedPath(dir, key), consolidated))
}

func TestRun_AggregatesProfile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	scannedRepo(t, root, "mona", "api",
		[]report.Issue{
			{Key: "1", Component: "api:a.py", Extension: "py", Type: "BUG", Severity: "MAJOR",
				Impact: `[{"softwareQuality":"SECURITY"},{"softwareQuality":"RELIABILITY"}]`},
		},
		[]report.Consolidated{{Extension: "py", Minor: 2, LOC: 100}},
	)
	scannedRepo(t, root, "mona", "site",
		[]report.Issue{
			{Key: "2", Component: "site:b.js", Extension: "js", Type: "CODE_SMELL", Severity: "MINOR",
				Impact: `[{'softwareQuality': 'MAINTAINABILITY'}]`},
			{Key: "3", Component: "site:c.js", Extension: "js", Type: "CODE_SMELL", Severity: "MINOR", Impact: "oops"},
		},
		[]report.Consolidated{{Extension: "js", Major: 1, LOC: 50}},
	)
	require.NoError(t, os.MkdirAll(layout.RepositoryDir(root, "mona", "unscanned"), 0o755))

	store := artifacttest.NewPublisher("out")

	res, err := aggregator.New(aggregator.Config{ClonesRoot: root}, aggregator.WithPublisher(store)).
		Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Profiles, 1)
	pr := res.Profiles[0]
	require.NoError(t, pr.Err)
	assert.Equal(t, 3, pr.Repositories)
	assert.Equal(t, 3, pr.Issues)
	assert.Equal(t, 2, pr.Consolidated)
	assert.Equal(t, []string{
		"out/mona/mona_aggregated_report.xlsx",
		"out/mona/mona_condensed_report.xlsx",
	}, store.Keys())

	agg, err := report.ReadWorkbook(layout.AggregatedPath(root, "mona"))
	require.NoError(t, err)

	require.Len(t, agg["Issues"], 4)
	assert.Equal(t, append([]string{"Repository"}, report.IssuesHeader...), agg["Issues"][0])
	assert.Equal(t, "api", agg["Issues"][1][0])
	assert.Equal(t, "site", agg["Issues"][3][0])
	assert.Equal(t, [][]string{
		{"Repository", "File Extension", "Minor Issues", "Major Issues", "Critical Issues", "Total LOC"},
		{"api", "py", "2", "0", "0", "100"},
		{"site", "js", "0", "1", "0", "50"},
	}, agg["Consolidated"])

	cond, err := report.ReadWorkbook(pr.CondensedPath)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"File Extension", "Total LOC"},
		{"js", "50"},
		{"py", "100"},
	}, cond["Condensed Consolidated"])

	assert.Equal(t, [][]string{
		{"File Extension", "Type", "BLOCKER", "CRITICAL", "INFO", "MAJOR", "MINOR", "Total Issues"},
		{"js", "CODE_SMELL", "0", "0", "0", "0", "2", "2"},
		{"py", "BUG", "0", "0", "0", "1", "0", "1"},
	}, cond["Condensed Issues"])

	assert.Equal(t, [][]string{
		{"File Extension", "Type", "RELIABILITY", "MAINTAINABILITY", "SECURITY", "Total Issues"},
		{"js", "CODE_SMELL", "0", "1", "0", "1"},
		{"py", "BUG", "1", "0", "1", "2"},
	}, cond["Condensed Issues by Impact"])
}

func TestRun_ProfileWithoutReports(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(layout.RepositoryDir(root, "zed", "tool"), 0o755))

	res, err := aggregator.New(aggregator.Config{ClonesRoot: root}).Run(context.Background())
	require.NoError(t, err)

	pr := res.Profiles[0]
	require.NoError(t, pr.Err)
	assert.Empty(t, pr.CondensedPath)
	assert.NoFileExists(t, layout.CondensedPath(root, "zed"))

	agg, err := report.ReadWorkbook(pr.AggregatedPath)
	require.NoError(t, err)
	assert.Contains(t, agg, "Issues")
	assert.Contains(t, agg, "Consolidated")
	assert.Empty(t, agg["Issues"])
}

func TestRun_HeaderOnlyIssuesTableKeepsHeader(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	scannedRepo(t, root, "ivy", "clean", nil, []report.Consolidated{{Extension: "py", LOC: 12}})

	res, err := aggregator.New(aggregator.Config{ClonesRoot: root}).Run(context.Background())
	require.NoError(t, err)

	pr := res.Profiles[0]
	require.NoError(t, pr.Err)
	assert.Equal(t, 0, pr.Issues)

	agg, err := report.ReadWorkbook(pr.AggregatedPath)
	require.NoError(t, err)
	assert.Equal(t, [][]string{append([]string{"Repository"}, report.IssuesHeader...)}, agg["Issues"])
	assert.Equal(t, [][]string{
		{"Repository", "File Extension", "Minor Issues", "Major Issues", "Critical Issues", "Total LOC"},
		{"clean", "py", "0", "0", "0", "12"},
	}, agg["Consolidated"])
}

func TestAggregatedSheets_HeaderFollowsTablesRead(t *testing.T) {
	t.Parallel()

	sheets := aggregator.AggregatedSheets(aggregator.Union{IssueTables: 1})
	require.Len(t, sheets, 2)
	assert.Equal(t, append([]string{"Repository"}, report.IssuesHeader...), sheets[0].Header)
	assert.Empty(t, sheets[0].Rows)
	assert.Empty(t, sheets[1].Header)
}

func TestRun_BadTableFailsOnlyThatProfile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	scannedRepo(t, root, "mona", "api", nil, []report.Consolidated{{Extension: "py", LOC: 1}})

	badDir := layout.RepositoryDir(root, "amy", "x")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "amy_x_consolidated.csv"), []byte("nope\n1\n"), 0o600))

	res, err := aggregator.New(aggregator.Config{ClonesRoot: root}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Profiles, 2)
	assert.Equal(t, 1, res.Failed())
	require.ErrorIs(t, res.Profiles[0].Err, report.ErrMissingColumn)
	require.NoError(t, res.Profiles[1].Err)
	assert.FileExists(t, layout.CondensedPath(root, "mona"))
}

func TestCondensedLOCEqualsSumOfTables(t *testing.T) {
	t.Parallel()

	u := aggregator.Union{Consolidated: []aggregator.Tagged[report.Consolidated]{
		{Repository: "a", Row: report.Consolidated{Extension: "py", LOC: 7}},
		{Repository: "b", Row: report.Consolidated{Extension: "py", LOC: 3}},
		{Repository: "b", Row: report.Consolidated{Extension: "php", LOC: 4}},
	}}

	sheets := aggregator.CondensedSheets(u)
	require.Len(t, sheets, 1)
	assert.Equal(t, [][]any{{"php", 4}, {"py", 10}}, sheets[0].Rows)
}
