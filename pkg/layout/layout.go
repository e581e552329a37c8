// Package layout names the directories and files of the clone tree shared by
// the fetch, scan and aggregate jobs:
//
//	<root>/<handle>/<repo>/
//	<root>/<handle>/<repo>/<key>_issues.csv
//	<root>/<handle>/<repo>/<key>_consolidated.csv
//	<root>/<handle>/<handle>_aggregated_report.xlsx
//	<root>/<handle>/<handle>_condensed_report.xlsx
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Report file suffixes.
const (
	IssuesSuffix       = "_issues.csv"
	ConsolidatedSuffix = "_consolidated.csv"
	AggregatedSuffix   = "_aggregated_report.xlsx"
	CondensedSuffix    = "_condensed_report.xlsx"
)

// ErrNoRoot is returned when the clone root does not exist.
var ErrNoRoot = errors.New("clone root does not exist")

// Entry is one repository directory in the clone tree.
type Entry struct {
	Handle     string
	Repository string
	Dir        string
}

// RepositoryDir is where a repository of handle is cloned.
func RepositoryDir(root, handle, repo string) string {
	return filepath.Join(root, handle, repo)
}

// HandleDir is the per-profile directory.
func HandleDir(root, handle string) string {
	return filepath.Join(root, handle)
}

// IssuesPath is the per-repository issues table.
func IssuesPath(repoDir, key string) string {
	return filepath.Join(repoDir, key+IssuesSuffix)
}

// ConsolidatedPath is the per-repository consolidated table.
func ConsolidatedPath(repoDir, key string) string {
	return filepath.Join(repoDir, key+ConsolidatedSuffix)
}

// AggregatedPath is the per-profile aggregated workbook.
func AggregatedPath(root, handle string) string {
	return filepath.Join(root, handle, handle+AggregatedSuffix)
}

// CondensedPath is the per-profile condensed workbook.
func CondensedPath(root, handle string) string {
	return filepath.Join(root, handle, handle+CondensedSuffix)
}

// Handles lists the profile directories under root in name order.
func Handles(root string) ([]string, error) {
	return subdirs(root)
}

// Repositories lists the repository directories of one handle in name order.
func Repositories(root, handle string) ([]Entry, error) {
	names, err := subdirs(HandleDir(root, handle))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))

	for _, name := range names {
		entries = append(entries, Entry{
			Handle:     handle,
			Repository: name,
			Dir:        RepositoryDir(root, handle, name),
		})
	}

	return entries, nil
}

// Walk lists every <root>/<handle>/<repo> directory, ordered by handle then repository.
func Walk(root string) ([]Entry, error) {
	handles, err := Handles(root)
	if err != nil {
		return nil, err
	}

	var all []Entry

	for _, handle := range handles {
		entries, repoErr := Repositories(root, handle)
		if repoErr != nil {
			return nil, repoErr
		}

		all = append(all, entries...)
	}

	return all, nil
}

// FilesWithSuffix returns the regular files directly in dir whose names end
// with suffix, in name order.
func FilesWithSuffix(dir, suffix string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []string

	for _, item := range items {
		if item.Type().IsRegular() && strings.HasSuffix(item.Name(), suffix) {
			files = append(files, filepath.Join(dir, item.Name()))
		}
	}

	return files, nil
}

func subdirs(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoRoot, dir)
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var names []string

	for _, item := range items {
		if item.IsDir() && !strings.HasPrefix(item.Name(), ".") {
			names = append(names, item.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
