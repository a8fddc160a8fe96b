package diffengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcribe/reposcribe/internal/cache/diffcache"
	"github.com/reposcribe/reposcribe/internal/clone"
)

// newTwoCommitRepo builds a local repo with a "v1" tag on the first
// commit and a "v2" tag on a second commit that changes a file.
func newTwoCommitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	write := func(content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(content), 0o644))
	}

	write("package main\n\nfunc main() {}\n")
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	h1, err := wt.Commit("v1", &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	_, err = repo.CreateTag("v1", h1, nil)
	require.NoError(t, err)

	write("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	h2, err := wt.Commit("v2", &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	_, err = repo.CreateTag("v2", h2, nil)
	require.NoError(t, err)

	return dir
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cloneDriver := clone.New(t.TempDir(), clone.NewCredentialSelector())
	cache, err := diffcache.New(8)
	require.NoError(t, err)
	return New(cloneDriver, cache, nil, nil)
}

func TestCompare_RendersPreambleAndUnifiedDiff(t *testing.T) {
	src := newTwoCommitRepo(t)
	eng := newTestEngine(t)

	result, err := eng.Compare(context.Background(), "file://"+src, "oct", "proj", "v1", "v2", 3)
	require.NoError(t, err)

	assert.Equal(t, "# Comparing v1 to v2", result.Preamble)
	assert.Contains(t, result.UnifiedDiff, "main.go")
	assert.Equal(t, 1, result.FilesChanged)
	assert.Greater(t, result.Insertions, 0)

	rendered := result.Render()
	assert.Contains(t, rendered, "Files changed: 1")
}

func TestCompare_SecondCallServesFromDiffCache(t *testing.T) {
	src := newTwoCommitRepo(t)
	eng := newTestEngine(t)

	first, err := eng.Compare(context.Background(), "file://"+src, "oct", "proj", "v1", "v2", 3)
	require.NoError(t, err)

	second, err := eng.Compare(context.Background(), "file://"+src, "oct", "proj", "v1", "v2", 3)
	require.NoError(t, err)

	assert.Equal(t, first.UnifiedDiff, second.UnifiedDiff)
}

func TestPullRequest_WithoutGitHubClientErrors(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.PullRequest(context.Background(), "github.com", "file:///nonexistent", "oct", "proj", 1, 3)
	assert.Error(t, err)
}

func TestPullRequest_WithoutGitLabClientErrors(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.PullRequest(context.Background(), "gitlab.com", "file:///nonexistent", "oct", "proj", 1, 3)
	assert.Error(t, err)
}
