// Package gitlib wraps the libgit2 operations the pipeline needs: cloning a
// repository and reading the remote of an existing working copy.
package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git2go "github.com/libgit2/git2go/v34"
)

const defaultRemote = "origin"

// ErrNoRemote is returned when a working copy has no remote configured.
var ErrNoRemote = errors.New("repository has no remote")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Clone clones url into dest, creating missing parent directories.
// Cancelling ctx aborts the transfer.
func Clone(ctx context.Context, url, dest string) (*Repository, error) {
	err := os.MkdirAll(filepath.Dir(dest), 0o755)
	if err != nil {
		return nil, fmt.Errorf("create clone parent: %w", err)
	}

	opts := &git2go.CloneOptions{
		FetchOptions: git2go.FetchOptions{
			RemoteCallbacks: git2go.RemoteCallbacks{
				TransferProgressCallback: func(git2go.TransferProgress) error {
					return ctx.Err()
				},
			},
		},
	}

	repo, err := git2go.Clone(url, dest, opts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return &Repository{repo: repo, path: dest}, nil
}

// IsWorkingCopy reports whether dir contains a .git entry.
func IsWorkingCopy(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))

	return err == nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// RemoteURL returns the URL of the origin remote, or of the first remote
// when there is no origin.
func (r *Repository) RemoteURL() (string, error) {
	name := defaultRemote

	remote, err := r.repo.Remotes.Lookup(name)
	if err != nil {
		names, listErr := r.repo.Remotes.List()
		if listErr != nil {
			return "", fmt.Errorf("list remotes: %w", listErr)
		}

		if len(names) == 0 {
			return "", ErrNoRemote
		}

		name = names[0]

		remote, err = r.repo.Remotes.Lookup(name)
		if err != nil {
			return "", fmt.Errorf("lookup remote %s: %w", name, err)
		}
	}
	defer remote.Free()

	return remote.Url(), nil
}
