package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Header is the fixed column order of the profile table.
var Header = []string{"url", "github", "name", "title", "location", "hourly_rate", "skills", "description"}

const (
	separator   = ';'
	descWrapper = `"""`
	nameColumn  = 2
)

// ErrShortRow is returned for a table row with fewer columns than [Header].
var ErrShortRow = errors.New("profile row has too few columns")

// Record returns the row written to the table for p.
func (p Profile) Record() []string {
	return []string{
		p.URL,
		p.GitHub,
		p.Name,
		p.Title,
		p.Location,
		p.HourlyRate,
		FormatSkills(p.Skills),
		descWrapper + p.Description + descWrapper,
	}
}

// FromRecord parses a table row.
func FromRecord(rec []string) (Profile, error) {
	if len(rec) < len(Header) {
		return Profile{}, fmt.Errorf("%w: got %d, want %d", ErrShortRow, len(rec), len(Header))
	}

	desc := strings.TrimSuffix(strings.TrimPrefix(rec[7], descWrapper), descWrapper)

	return Profile{
		URL:         rec[0],
		GitHub:      rec[1],
		Name:        rec[2],
		Title:       rec[3],
		Location:    rec[4],
		HourlyRate:  rec[5],
		Skills:      ParseSkills(rec[6]),
		Description: desc,
	}, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = separator
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	return reader
}

func newWriter(w io.Writer) *csv.Writer {
	writer := csv.NewWriter(w)
	writer.Comma = separator

	return writer
}

// readRows returns the header and data rows of the table at path.
// A missing file yields no rows and no error.
func readRows(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("open profile table: %w", err)
	}
	defer f.Close()

	all, err := newReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read profile table: %w", err)
	}

	if len(all) == 0 {
		return nil, nil, nil
	}

	return all[0], all[1:], nil
}

// ReadTable loads every profile from the table at path.
func ReadTable(path string) ([]Profile, error) {
	_, rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(rows))

	for i, rec := range rows {
		p, parseErr := FromRecord(rec)
		if parseErr != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, parseErr)
		}

		profiles = append(profiles, p)
	}

	return profiles, nil
}

// LoadURLs returns the set of profile URLs already in the table.
func LoadURLs(path string) (map[string]struct{}, error) {
	_, rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	urls := make(map[string]struct{}, len(rows))

	for _, rec := range rows {
		if len(rec) > 0 && rec[0] != "" {
			urls[rec[0]] = struct{}{}
		}
	}

	return urls, nil
}

// AppendTable appends profiles to the table at path, creating the file with
// the header row when it does not exist yet.
func AppendTable(path string, profiles []Profile) error {
	_, statErr := os.Stat(path)
	create := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open profile table: %w", err)
	}
	defer f.Close()

	writer := newWriter(f)

	if create {
		err = writer.Write(Header)
		if err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for _, p := range profiles {
		err = writer.Write(p.Record())
		if err != nil {
			return fmt.Errorf("write profile %s: %w", p.URL, err)
		}
	}

	writer.Flush()

	err = writer.Error()
	if err != nil {
		return fmt.Errorf("flush profile table: %w", err)
	}

	return nil
}

// Anonymize rewrites the table at path in place, replacing each row's
// display name with "Dev <n>" where n is the 1-based row index.
// It returns the number of rows rewritten.
func Anonymize(path string) (int, error) {
	header, rows, err := readRows(path)
	if err != nil {
		return 0, err
	}

	if header == nil {
		return 0, fmt.Errorf("anonymize %s: %w", path, fs.ErrNotExist)
	}

	for i, rec := range rows {
		if len(rec) > nameColumn {
			rec[nameColumn] = fmt.Sprintf("Dev %d", i+1)
		}
	}

	tmp := path + ".tmp"

	err = writeAll(tmp, header, rows)
	if err != nil {
		return 0, err
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return 0, fmt.Errorf("replace profile table: %w", err)
	}

	return len(rows), nil
}

func writeAll(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	writer := newWriter(f)

	err = writer.Write(header)
	if err == nil {
		err = writer.WriteAll(rows)
	}

	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
