package scanner

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/src-d/enry/v2"
)

// Census counts source files of the tracked languages in a working copy.
type Census struct {
	// ByExtension maps a file extension (without the dot) to its file count.
	ByExtension map[string]int
	Total       int
}

// TakeCensus walks dir, skipping vendored and dot directories, and counts
// the files whose detected language is one of languages (lowercase names).
func TakeCensus(dir string, languages []string) (Census, error) {
	c := Census{ByExtension: map[string]int{}}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil || rel == "." {
			return relErr
		}

		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if enry.IsDotFile(rel) || enry.IsVendor(rel+"/") {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		lang := strings.ToLower(enry.GetLanguage(d.Name(), nil))
		if lang == "" || !slices.Contains(languages, lang) {
			return nil
		}

		c.ByExtension[strings.TrimPrefix(filepath.Ext(d.Name()), ".")]++
		c.Total++

		return nil
	})

	return c, err
}
