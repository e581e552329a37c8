// Package report turns SonarQube results into the per-repository CSV tables
// and the per-profile pivots and workbooks built from them.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/freelaudit/pkg/sonar"
)

// UnknownExtension is used for components without a dot in their path.
const UnknownExtension = "unknown"

// Issue is one row of an issues table.
type Issue struct {
	Key       string
	Component string
	Extension string
	Rule      string
	Type      string
	// Impact is the JSON encoding of the issue's impacts.
	Impact   string
	Severity string
	Status   string
	Message  string
}

// Consolidated is one row of a consolidated table.
type Consolidated struct {
	Extension string
	Minor     int
	Major     int
	Critical  int
	LOC       int
}

// Extension returns the text after the last dot of path, or [UnknownExtension].
func Extension(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return UnknownExtension
	}

	return path[idx+1:]
}

// BuildIssueRows converts server issues into table rows, preserving order.
func BuildIssueRows(issues []sonar.Issue) []Issue {
	rows := make([]Issue, 0, len(issues))

	for _, is := range issues {
		rows = append(rows, Issue{
			Key:       is.Key,
			Component: is.Component,
			Extension: Extension(is.Component),
			Rule:      is.Rule,
			Type:      is.Type,
			Impact:    encodeImpacts(is.Impacts),
			Severity:  is.Severity,
			Status:    is.Status,
			Message:   is.Message,
		})
	}

	return rows
}

// Consolidate rolls issues and file measures up per extension. Rows appear in
// first-seen order, issues before measures. Only minor, major and critical
// severities are counted; blocker and info issues still create a row.
func Consolidate(issues []sonar.Issue, files []sonar.Component) ([]Consolidated, error) {
	var order []string

	byExt := make(map[string]*Consolidated)

	entry := func(ext string) *Consolidated {
		c, ok := byExt[ext]
		if !ok {
			c = &Consolidated{Extension: ext}
			byExt[ext] = c
			order = append(order, ext)
		}

		return c
	}

	for _, is := range issues {
		c := entry(Extension(is.Component))

		switch strings.ToLower(is.Severity) {
		case "minor":
			c.Minor++
		case "major":
			c.Major++
		case "critical":
			c.Critical++
		}
	}

	for _, comp := range files {
		if comp.Qualifier != sonar.QualifierFile || len(comp.Measures) == 0 {
			continue
		}

		ext := Extension(comp.Path)
		if ext == UnknownExtension {
			continue
		}

		loc, err := strconv.Atoi(comp.Measures[0].Value)
		if err != nil {
			return nil, fmt.Errorf("measure of %s: %w", comp.Path, err)
		}

		entry(ext).LOC += loc
	}

	out := make([]Consolidated, 0, len(order))
	for _, ext := range order {
		out = append(out, *byExt[ext])
	}

	return out, nil
}

// ParseImpacts returns the software-quality dimensions in an impact cell.
// Single-quoted text is accepted. Malformed text, or any entry without a
// softwareQuality key, yields no dimensions.
func ParseImpacts(text string) []string {
	var impacts []struct {
		SoftwareQuality *string `json:"softwareQuality"`
	}

	err := json.Unmarshal([]byte(strings.ReplaceAll(text, "'", `"`)), &impacts)
	if err != nil {
		return nil
	}

	out := make([]string, 0, len(impacts))
	for _, im := range impacts {
		if im.SoftwareQuality == nil {
			return nil
		}

		out = append(out, *im.SoftwareQuality)
	}

	return out
}

func encodeImpacts(impacts []sonar.Impact) string {
	if impacts == nil {
		impacts = []sonar.Impact{}
	}

	data, err := json.Marshal(impacts)
	if err != nil {
		return "[]"
	}

	return string(data)
}
