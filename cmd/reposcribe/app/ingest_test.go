package app

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newFixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)
	return dir
}

// resetFlags restores every flag this package binds to viper back to
// its registered default, so tests don't leak state into each other
// through the shared global viper instance.
func resetFlags(t *testing.T) {
	t.Helper()
	v := viper.GetViper()
	for name, val := range map[string]any{
		"include": []string{}, "exclude": []string{}, "max-size": int64(0),
		"branch": "", "path": "", "preset": "standard", "raw": false,
		"stats-only": false, "output": "", "quiet": false, "no-cache": false,
		"force-refresh": false, "clear-cache": false, "cache-stats": false,
	} {
		v.Set(name, val)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestRunIngest_CacheStatsPrintsDirAndCounts(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	resetFlags(t)
	viper.Set("cache-stats", true)

	out := captureStdout(t, func() {
		require.NoError(t, runIngest(RootCmd, nil))
	})
	require.Contains(t, out, "entries:")
	require.Contains(t, out, "total bytes:")
}

func TestRunIngest_ClearCacheReportsSuccess(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	resetFlags(t)
	viper.Set("clear-cache", true)

	out := captureStdout(t, func() {
		require.NoError(t, runIngest(RootCmd, nil))
	})
	require.Contains(t, out, "cache cleared")
}

func TestRunIngest_MissingSourceErrors(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	resetFlags(t)

	err := runIngest(RootCmd, nil)
	require.Error(t, err)
}

func TestRunIngest_WritesArtifactToStdout(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	resetFlags(t)
	src := newFixtureRepo(t)

	out := captureStdout(t, func() {
		require.NoError(t, runIngest(RootCmd, []string{"file://" + src}))
	})
	require.Contains(t, out, "main.go")
}

func TestRunIngest_StatsOnlySkipsBody(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	resetFlags(t)
	viper.Set("stats-only", true)
	src := newFixtureRepo(t)

	out := captureStdout(t, func() {
		require.NoError(t, runIngest(RootCmd, []string{"file://" + src}))
	})
	require.Contains(t, out, "files:")
	require.NotContains(t, out, "=== main.go ===")
}
