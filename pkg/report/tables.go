package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Column headers of the per-repository tables.
var (
	IssuesHeader = []string{
		"Key", "Component", "File Extension", "Rule", "Type", "Impact", "Severity", "Status", "Message",
	}
	ConsolidatedHeader = []string{
		"File Extension", "Minor Issues", "Major Issues", "Critical Issues", "Total LOC",
	}
)

// ErrMissingColumn is returned when a table lacks an expected column.
var ErrMissingColumn = errors.New("missing column")

// Record returns the issue as a CSV record in [IssuesHeader] order.
func (i Issue) Record() []string {
	return []string{i.Key, i.Component, i.Extension, i.Rule, i.Type, i.Impact, i.Severity, i.Status, i.Message}
}

// Record returns the row as a CSV record in [ConsolidatedHeader] order.
func (c Consolidated) Record() []string {
	return []string{
		c.Extension,
		strconv.Itoa(c.Minor),
		strconv.Itoa(c.Major),
		strconv.Itoa(c.Critical),
		strconv.Itoa(c.LOC),
	}
}

// WriteIssues writes an issues table, replacing path.
func WriteIssues(path string, rows []Issue) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Record())
	}

	return writeCSV(path, IssuesHeader, records)
}

// WriteConsolidated writes a consolidated table, replacing path.
func WriteConsolidated(path string, rows []Consolidated) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Record())
	}

	return writeCSV(path, ConsolidatedHeader, records)
}

// ReadIssues reads an issues table. Columns are matched by header name.
func ReadIssues(path string) ([]Issue, error) {
	col, records, err := readCSV(path, IssuesHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]Issue, 0, len(records))

	for _, rec := range records {
		rows = append(rows, Issue{
			Key:       col(rec, "Key"),
			Component: col(rec, "Component"),
			Extension: col(rec, "File Extension"),
			Rule:      col(rec, "Rule"),
			Type:      col(rec, "Type"),
			Impact:    col(rec, "Impact"),
			Severity:  col(rec, "Severity"),
			Status:    col(rec, "Status"),
			Message:   col(rec, "Message"),
		})
	}

	return rows, nil
}

// ReadConsolidated reads a consolidated table. Empty counts read as zero.
func ReadConsolidated(path string) ([]Consolidated, error) {
	col, records, err := readCSV(path, ConsolidatedHeader)
	if err != nil {
		return nil, err
	}

	rows := make([]Consolidated, 0, len(records))

	for line, rec := range records {
		var c Consolidated

		c.Extension = col(rec, "File Extension")

		for name, dst := range map[string]*int{
			"Minor Issues":    &c.Minor,
			"Major Issues":    &c.Major,
			"Critical Issues": &c.Critical,
			"Total LOC":       &c.LOC,
		} {
			*dst, err = atoiOrZero(col(rec, name))
			if err != nil {
				return nil, fmt.Errorf("%s line %d %s: %w", path, line+2, name, err)
			}
		}

		rows = append(rows, c)
	}

	return rows, nil
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	return strconv.Atoi(s)
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	err = w.Write(header)
	if err == nil {
		err = w.WriteAll(records)
	}

	closeErr := f.Close()

	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}

	return nil
}

type columnFunc func(rec []string, name string) string

func readCSV(path string, want []string) (columnFunc, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%s: %w: empty table", path, ErrMissingColumn)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	for _, name := range want {
		if _, ok := index[name]; !ok {
			return nil, nil, fmt.Errorf("%s: %w %q", path, ErrMissingColumn, name)
		}
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	col := func(rec []string, name string) string {
		i := index[name]
		if i >= len(rec) {
			return ""
		}

		return rec[i]
	}

	return col, records, nil
}
