package report

import (
	"slices"
	"sort"
)

// Severities are the severity tiers of the condensed issues sheet, in column order.
var Severities = []string{"BLOCKER", "CRITICAL", "INFO", "MAJOR", "MINOR"}

// Qualities are the impact dimensions of the condensed impact sheet, in column order.
var Qualities = []string{"RELIABILITY", "MAINTAINABILITY", "SECURITY"}

// Pivot is one (extension, type) row of a count pivot. Counts follows the
// column order of [Severities] or [Qualities].
type Pivot struct {
	Extension string
	Type      string
	Counts    []int
	Total     int
}

// LOCTotal is the summed LOC of one extension.
type LOCTotal struct {
	Extension string
	LOC       int
}

type pivotKey struct {
	ext, typ string
}

// PivotSeverity counts issues by (extension, type) and severity. Every tier
// is present and zero-filled; severities outside the tiers are not counted.
// Rows are ordered by extension, then type.
func PivotSeverity(issues []Issue) []Pivot {
	acc := newPivotAccumulator(Severities)

	for _, is := range issues {
		acc.add(is, []string{is.Severity})
	}

	return acc.rows()
}

// PivotImpact counts issues by (extension, type) and impact dimension. An
// issue with several dimensions counts once in each; an issue whose impact
// text is empty or malformed is not counted.
func PivotImpact(issues []Issue) []Pivot {
	acc := newPivotAccumulator(Qualities)

	for _, is := range issues {
		dims := ParseImpacts(is.Impact)
		if len(dims) == 0 {
			continue
		}

		acc.add(is, dims)
	}

	return acc.rows()
}

// SumLOC totals LOC by extension, ordered by extension.
func SumLOC(rows []Consolidated) []LOCTotal {
	totals := make(map[string]int)

	for _, r := range rows {
		totals[r.Extension] += r.LOC
	}

	out := make([]LOCTotal, 0, len(totals))
	for ext, loc := range totals {
		out = append(out, LOCTotal{Extension: ext, LOC: loc})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Extension < out[j].Extension })

	return out
}

type pivotAccumulator struct {
	columns []string
	counts  map[pivotKey][]int
}

func newPivotAccumulator(columns []string) *pivotAccumulator {
	return &pivotAccumulator{columns: columns, counts: make(map[pivotKey][]int)}
}

func (a *pivotAccumulator) add(is Issue, values []string) {
	key := pivotKey{ext: is.Extension, typ: is.Type}

	counts, ok := a.counts[key]
	if !ok {
		counts = make([]int, len(a.columns))
		a.counts[key] = counts
	}

	for _, v := range values {
		if i := slices.Index(a.columns, v); i >= 0 {
			counts[i]++
		}
	}
}

func (a *pivotAccumulator) rows() []Pivot {
	out := make([]Pivot, 0, len(a.counts))

	for key, counts := range a.counts {
		total := 0
		for _, n := range counts {
			total += n
		}

		out = append(out, Pivot{Extension: key.ext, Type: key.typ, Counts: counts, Total: total})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Extension != out[j].Extension {
			return out[i].Extension < out[j].Extension
		}

		return out[i].Type < out[j].Type
	})

	return out
}
