package walker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcribe/reposcribe/internal/filterpolicy"
)

func newWorkingTree(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	write := func(rel, content string) {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	write("README.md", "hello\n")
	write("src/main.go", "package main\n")
	write("src/binary.dat", "abc\x00def")
	write(".gitignore", "*.log\n")
	write("debug.log", "ignored content\n")

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Add("src/main.go")
	require.NoError(t, err)
	_, err = wt.Add("src/binary.dat")
	require.NoError(t, err)
	_, err = wt.Add(".gitignore")
	require.NoError(t, err)

	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)

	// Untracked file, not ignored.
	write("NOTES.txt", "scratch notes\n")

	return dir, repo
}

func paths(recs []FileRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Path
	}
	return out
}

func TestWalk_SortedDedupedTrackedFiles(t *testing.T) {
	dir, repo := newWorkingTree(t)
	policy := filterpolicy.New(filterpolicy.PresetRaw, nil, nil, 0, false, "")

	recs, err := Walk(dir, repo, *policy)
	require.NoError(t, err)

	got := paths(recs)
	assert.Equal(t, []string{".gitignore", "README.md", "src/binary.dat", "src/main.go"}, got)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i], "must be lexicographically sorted")
	}
}

func TestWalk_DetectsBinaryViaNulSniff(t *testing.T) {
	dir, repo := newWorkingTree(t)
	policy := filterpolicy.New(filterpolicy.PresetRaw, nil, nil, 0, false, "")

	recs, err := Walk(dir, repo, *policy)
	require.NoError(t, err)

	for _, r := range recs {
		if r.Path == "src/binary.dat" {
			assert.True(t, r.Binary)
		}
		if r.Path == "README.md" {
			assert.False(t, r.Binary)
		}
	}
}

func TestWalk_IgnoredFilesExcludedByDefault(t *testing.T) {
	dir, repo := newWorkingTree(t)
	policy := filterpolicy.New(filterpolicy.PresetRaw, nil, nil, 0, false, "")

	recs, err := Walk(dir, repo, *policy)
	require.NoError(t, err)
	assert.NotContains(t, paths(recs), "debug.log")
}

func TestWalk_UntrackedMergedWhenRequested(t *testing.T) {
	dir, repo := newWorkingTree(t)
	policy := filterpolicy.New(filterpolicy.PresetRaw, nil, nil, 0, true, "")

	recs, err := Walk(dir, repo, *policy)
	require.NoError(t, err)
	assert.Contains(t, paths(recs), "NOTES.txt")
	assert.NotContains(t, paths(recs), "debug.log", "ignored files stay excluded even with untracked requested")
}

func TestWalk_PathPrefixResolvesSubtreeAndRejoinsPaths(t *testing.T) {
	dir, repo := newWorkingTree(t)
	policy := filterpolicy.New(filterpolicy.PresetRaw, nil, nil, 0, false, "src")

	recs, err := Walk(dir, repo, *policy)
	require.NoError(t, err)
	got := paths(recs)
	assert.Equal(t, []string{"src/binary.dat", "src/main.go"}, got)
}

func TestWalk_UnknownPathPrefixErrors(t *testing.T) {
	dir, repo := newWorkingTree(t)
	policy := filterpolicy.New(filterpolicy.PresetRaw, nil, nil, 0, false, "does-not-exist")

	_, err := Walk(dir, repo, *policy)
	assert.Error(t, err)
}
