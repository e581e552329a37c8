package report_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/freelaudit/pkg/report"
)

func TestWriteWorkbook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.xlsx")

	err := report.WriteWorkbook(path, []report.Sheet{
		{Name: "Issues", Header: []string{"Repository", "Key"}, Rows: [][]any{{"site", "A"}, {"api", "B"}}},
		report.LOCSheet([]report.LOCTotal{{Extension: "js", LOC: 50}, {Extension: "py", LOC: 100}}),
	})
	require.NoError(t, err)

	book, err := report.ReadWorkbook(path)
	require.NoError(t, err)

	assert.Len(t, book, 2)
	assert.NotContains(t, book, "Sheet1")
	assert.Equal(t, [][]string{{"Repository", "Key"}, {"site", "A"}, {"api", "B"}}, book["Issues"])
	assert.Equal(t, [][]string{{"File Extension", "Total LOC"}, {"js", "50"}, {"py", "100"}}, book["Condensed Consolidated"])
}

func TestWriteWorkbook_NoSheets(t *testing.T) {
	t.Parallel()

	err := report.WriteWorkbook(filepath.Join(t.TempDir(), "out.xlsx"), nil)
	require.ErrorIs(t, err, report.ErrNoSheets)
}

func TestPivotSheets(t *testing.T) {
	t.Parallel()

	sev := report.SeveritySheet([]report.Pivot{
		{Extension: "py", Type: "BUG", Counts: []int{1, 0, 0, 2, 0}, Total: 3},
	})
	assert.Equal(t, "Condensed Issues", sev.Name)
	assert.Equal(t, []string{"File Extension", "Type", "BLOCKER", "CRITICAL", "INFO", "MAJOR", "MINOR", "Total Issues"}, sev.Header)
	assert.Equal(t, [][]any{{"py", "BUG", 1, 0, 0, 2, 0, 3}}, sev.Rows)

	imp := report.ImpactSheet(nil)
	assert.Equal(t, "Condensed Issues by Impact", imp.Name)
	assert.Equal(t, []string{"File Extension", "Type", "RELIABILITY", "MAINTAINABILITY", "SECURITY", "Total Issues"}, imp.Header)
	assert.Empty(t, imp.Rows)
}
