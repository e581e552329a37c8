package report

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned when a workbook would have no sheets.
var ErrNoSheets = errors.New("workbook has no sheets")

const defaultSheet = "Sheet1"

// Sheet is one worksheet: a header row followed by data rows. A sheet
// without a header is written as data rows only.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// WriteWorkbook writes sheets, in order, to a new xlsx file at path.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		var err error

		if i == 0 {
			err = f.SetSheetName(defaultSheet, sheet.Name)
		} else {
			_, err = f.NewSheet(sheet.Name)
		}

		if err != nil {
			return fmt.Errorf("add sheet %s: %w", sheet.Name, err)
		}

		err = streamSheet(f, sheet)
		if err != nil {
			return err
		}
	}

	err := f.SaveAs(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}

func streamSheet(f *excelize.File, sheet Sheet) error {
	sw, err := f.NewStreamWriter(sheet.Name)
	if err != nil {
		return fmt.Errorf("stream sheet %s: %w", sheet.Name, err)
	}

	rows := sheet.Rows

	if len(sheet.Header) > 0 {
		header := make([]any, len(sheet.Header))
		for i, h := range sheet.Header {
			header[i] = h
		}

		rows = append([][]any{header}, rows...)
	}

	for i, row := range rows {
		cell, cellErr := excelize.CoordinatesToCellName(1, i+1)
		if cellErr != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet.Name, i+1, cellErr)
		}

		err = sw.SetRow(cell, row)
		if err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet.Name, i+1, err)
		}
	}

	err = sw.Flush()
	if err != nil {
		return fmt.Errorf("flush sheet %s: %w", sheet.Name, err)
	}

	return nil
}

// ReadWorkbook returns every sheet of an xlsx file as text cells, keyed by sheet name.
func ReadWorkbook(path string) (map[string][][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string][][]string)

	for _, name := range f.GetSheetList() {
		rows, rowsErr := f.GetRows(name)
		if rowsErr != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, rowsErr)
		}

		out[name] = rows
	}

	return out, nil
}

// SeveritySheet renders the severity pivot.
func SeveritySheet(rows []Pivot) Sheet {
	return pivotSheet("Condensed Issues", Severities, rows)
}

// ImpactSheet renders the impact pivot.
func ImpactSheet(rows []Pivot) Sheet {
	return pivotSheet("Condensed Issues by Impact", Qualities, rows)
}

// LOCSheet renders LOC totals per extension.
func LOCSheet(rows []LOCTotal) Sheet {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Extension, r.LOC})
	}

	return Sheet{Name: "Condensed Consolidated", Header: []string{"File Extension", "Total LOC"}, Rows: out}
}

func pivotSheet(name string, columns []string, rows []Pivot) Sheet {
	header := append([]string{"File Extension", "Type"}, columns...)
	header = append(header, "Total Issues")

	out := make([][]any, 0, len(rows))

	for _, r := range rows {
		row := []any{r.Extension, r.Type}
		for _, n := range r.Counts {
			row = append(row, n)
		}

		out = append(out, append(row, r.Total))
	}

	return Sheet{Name: name, Header: header, Rows: out}
}
