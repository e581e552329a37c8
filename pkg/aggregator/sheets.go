package aggregator

import (
	"github.com/Sumatoshi-tech/freelaudit/pkg/report"
)

// AggregatedSheets renders the union as the Issues and Consolidated sheets.
// A sheet's header is written once as soon as any table of its kind was
// read, even a header-only one.
func AggregatedSheets(u Union) []report.Sheet {
	issues := report.Sheet{Name: sheetIssues}
	if u.IssueTables > 0 {
		issues.Header = append([]string{repositoryColumn}, report.IssuesHeader...)
	}

	for _, t := range u.Issues {
		issues.Rows = append(issues.Rows, taggedRecord(t.Repository, t.Row.Record()))
	}

	consolidated := report.Sheet{Name: sheetConsolidated}
	if u.ConsolidatedTables > 0 {
		consolidated.Header = append([]string{repositoryColumn}, report.ConsolidatedHeader...)
	}

	for _, t := range u.Consolidated {
		r := t.Row
		consolidated.Rows = append(consolidated.Rows,
			[]any{t.Repository, r.Extension, r.Minor, r.Major, r.Critical, r.LOC})
	}

	return []report.Sheet{issues, consolidated}
}

// CondensedSheets derives the pivots from the union. The issue pivots exist
// only when there are issues and the LOC sheet only when there are
// consolidated rows.
func CondensedSheets(u Union) []report.Sheet {
	var sheets []report.Sheet

	if len(u.Issues) > 0 {
		issues := make([]report.Issue, 0, len(u.Issues))
		for _, t := range u.Issues {
			issues = append(issues, t.Row)
		}

		sheets = append(sheets,
			report.SeveritySheet(report.PivotSeverity(issues)),
			report.ImpactSheet(report.PivotImpact(issues)),
		)
	}

	if len(u.Consolidated) > 0 {
		rows := make([]report.Consolidated, 0, len(u.Consolidated))
		for _, t := range u.Consolidated {
			rows = append(rows, t.Row)
		}

		sheets = append(sheets, report.LOCSheet(report.SumLOC(rows)))
	}

	return sheets
}

func taggedRecord(first string, rest []string) []any {
	out := make([]any, 0, len(rest)+1)
	out = append(out, first)

	for _, s := range rest {
		out = append(out, s)
	}

	return out
}
