package commands

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/freelaudit/pkg/config"
	"github.com/Sumatoshi-tech/freelaudit/pkg/gitlib"
	"github.com/Sumatoshi-tech/freelaudit/pkg/layout"
	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

const defaultLinksFile = "repository_links.csv"

var linksHeader = []string{"Username", "Repo Name", "Remote URL"}

// repoLink is one row of the links table.
type repoLink struct {
	Handle     string
	Repository string
	RemoteURL  string
}

type linksResult struct {
	Path    string
	Links   []repoLink
	Skipped int
}

// remoteLookup returns the remote URL of the working copy in dir.
type remoteLookup func(dir string) (string, error)

// NewLinksCommand creates the links sub-command.
func NewLinksCommand(opts *Options) *cobra.Command {
	return newLinksCommandWithDeps(opts, gitRemote)
}

func newLinksCommandWithDeps(opts *Options, remote remoteLookup) *cobra.Command {
	var (
		clones string
		output string
	)

	cmd := &cobra.Command{
		Use:   "links",
		Short: "List the remote URL of every cloned repository",
		Long: `Walk the clone tree and write a Username,Repo Name,Remote URL table for
every directory that is a git working copy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts, jobSpec[linksResult]{
				job: observability.JobTool,
				override: func(cfg *config.Config) {
					if clones != "" {
						cfg.Paths.Clones = clones
					}
				},
				run: func(ctx context.Context, e *env) (linksResult, error) {
					return runLinks(ctx, e, remote, output)
				},
				render: func(out io.Writer, res linksResult) {
					if res.Skipped > 0 {
						warning(out, "%d directories are not git working copies", res.Skipped)
					}

					success(out, "Wrote %d repository links to %s", len(res.Links), res.Path)
				},
			})
		},
	}

	cmd.Flags().StringVar(&clones, "clones", "", "clone root directory (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", defaultLinksFile, "output CSV path")

	return cmd
}

func runLinks(ctx context.Context, e *env, remote remoteLookup, output string) (linksResult, error) {
	entries, err := layout.Walk(e.cfg.Paths.Clones)
	if err != nil {
		return linksResult{}, fmt.Errorf("discover repositories: %w", err)
	}

	res := linksResult{Path: output}

	for _, entry := range entries {
		if !gitlib.IsWorkingCopy(entry.Dir) {
			res.Skipped++

			continue
		}

		url, lookupErr := remote(entry.Dir)
		if lookupErr != nil {
			e.logger.WarnContext(ctx, "remote lookup failed", "dir", entry.Dir, "error", lookupErr)

			res.Skipped++

			continue
		}

		res.Links = append(res.Links, repoLink{Handle: entry.Handle, Repository: entry.Repository, RemoteURL: url})
	}

	err = writeLinks(output, res.Links)
	if err != nil {
		return linksResult{}, err
	}

	return res, nil
}

func writeLinks(path string, links []repoLink) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	err = w.Write(linksHeader)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	for _, l := range links {
		err = w.Write([]string{l.Handle, l.Repository, l.RemoteURL})
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	w.Flush()

	err = w.Error()
	if err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	return nil
}

func gitRemote(dir string) (string, error) {
	repo, err := gitlib.OpenRepository(dir)
	if err != nil {
		return "", err
	}
	defer repo.Free()

	return repo.RemoteURL()
}
