package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/freelaudit/pkg/gitlib"
)

// newTestRepo initialises a repository with one committed file.
func newTestRepo(t *testing.T) (string, *git2go.Repository) {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0o644))

	index, err := repo.Index()
	require.NoError(t, err)

	defer index.Free()

	require.NoError(t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(t, err)

	tree, err := repo.LookupTree(treeID)
	require.NoError(t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	_, err = repo.CreateCommit("HEAD", sig, sig, "initial", tree)
	require.NoError(t, err)

	return dir, repo
}

func TestClone_LocalSource(t *testing.T) {
	t.Parallel()

	src, _ := newTestRepo(t)
	dest := filepath.Join(t.TempDir(), "octocat", "hello")

	repo, err := gitlib.Clone(context.Background(), src, dest)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, dest, repo.Path())
	assert.FileExists(t, filepath.Join(dest, "main.py"))
	assert.True(t, gitlib.IsWorkingCopy(dest))

	url, err := repo.RemoteURL()
	require.NoError(t, err)
	assert.Equal(t, src, url)
}

func TestRemoteURL_FallsBackToFirstRemote(t *testing.T) {
	t.Parallel()

	dir, native := newTestRepo(t)

	remote, err := native.Remotes.Create("upstream", "https://github.com/octocat/hello.git")
	require.NoError(t, err)
	remote.Free()

	repo, err := gitlib.OpenRepository(dir)
	require.NoError(t, err)

	defer repo.Free()

	url, err := repo.RemoteURL()
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/octocat/hello.git", url)
}

func TestRemoteURL_NoRemote(t *testing.T) {
	t.Parallel()

	dir, _ := newTestRepo(t)

	repo, err := gitlib.OpenRepository(dir)
	require.NoError(t, err)

	defer repo.Free()

	_, err = repo.RemoteURL()
	require.ErrorIs(t, err, gitlib.ErrNoRemote)
}

func TestIsWorkingCopy(t *testing.T) {
	t.Parallel()

	assert.False(t, gitlib.IsWorkingCopy(t.TempDir()))
}

func TestOpenRepository_NotARepo(t *testing.T) {
	t.Parallel()

	_, err := gitlib.OpenRepository(t.TempDir())
	require.Error(t, err)
}
