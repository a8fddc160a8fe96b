package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcribe/reposcribe/internal/cache/artifact"
	"github.com/reposcribe/reposcribe/internal/cache/diffcache"
	"github.com/reposcribe/reposcribe/internal/cache/index"
	"github.com/reposcribe/reposcribe/internal/clone"
	"github.com/reposcribe/reposcribe/internal/diffengine"
	"github.com/reposcribe/reposcribe/internal/ingest"
)

func newFixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)
	return dir
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cloneDriver := clone.New(t.TempDir(), clone.NewCredentialSelector())
	artifactCache := artifact.New(10 * 1024 * 1024)
	indexCache, err := index.Open(t.TempDir(), 0, 0)
	require.NoError(t, err)
	ing := ingest.New(cloneDriver, artifactCache, indexCache)

	diffCache, err := diffcache.New(8)
	require.NoError(t, err)
	eng := diffengine.New(cloneDriver, diffCache, nil, nil)

	return New(ing, eng)
}

func TestHandleIngestAPI_ReturnsArtifactJSON(t *testing.T) {
	src := newFixtureRepo(t)
	h := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"source": "file://" + src, "preset": "standard"})
	resp, err := http.Post(srv.URL+"/api/ingest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Content   string `json:"content"`
		FileCount int    `json:"file_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Content, "README.md")
	assert.Equal(t, 1, out.FileCount)
}

func TestHandleIngestAPI_MissingSourceIsBadRequest(t *testing.T) {
	h := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/ingest", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRepo_UnparseableOwnerRepoIsBadRequest(t *testing.T) {
	h := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/-bad-/repo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
