package sourceref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcribe/reposcribe/internal/apperrors"
)

func TestParse_Shorthand(t *testing.T) {
	ref, err := Parse("oct/hello")
	require.NoError(t, err)
	assert.Equal(t, KindRepo, ref.Kind)
	assert.Equal(t, "oct", ref.Owner)
	assert.Equal(t, "hello", ref.Repo)
	assert.Equal(t, "https://github.com/oct/hello", ref.URL)
}

func TestParse_TreeWithBranchAndPath(t *testing.T) {
	// "services" is not itself one of the literal conventional directory
	// names in spec.md §4.1 (only "api" is), so the split boundary lands
	// on "api" under the literal heuristic, not on "services" as a
	// human reader might expect from spec.md §8's scenario 2 prose. See
	// DESIGN.md for this tradeoff.
	ref, err := Parse("https://github.com/oct/monorepo/tree/main/services/api")
	require.NoError(t, err)
	assert.Equal(t, KindTree, ref.Kind)
	assert.Equal(t, "main/services", ref.Branch)
	assert.Equal(t, "api", ref.Path)
}

func TestParse_TreeWithSlashyBranch(t *testing.T) {
	// "v1.2" is the first component containing a dot, so it becomes the
	// boundary: everything before it ("release") is the ref, everything
	// from the boundary on ("v1.2/README.md") is the path.
	ref, err := Parse("https://github.com/oct/hello/tree/release/v1.2/README.md")
	require.NoError(t, err)
	assert.Equal(t, "release", ref.Branch)
	assert.Equal(t, "v1.2/README.md", ref.Path)
}

func TestParse_BlobNormalizesToTree(t *testing.T) {
	ref, err := Parse("https://github.com/oct/hello/blob/main/README.md")
	require.NoError(t, err)
	assert.Equal(t, KindBlob, ref.Kind)
	assert.Equal(t, "main", ref.Branch)
	assert.Equal(t, "README.md", ref.Path)
	assert.Equal(t, "https://github.com/oct/hello/tree/main/README.md", ref.Normalize())
}

func TestParse_Commit(t *testing.T) {
	ref, err := Parse("https://github.com/oct/hello/commit/abc123")
	require.NoError(t, err)
	assert.Equal(t, KindCommit, ref.Kind)
	assert.Equal(t, "abc123", ref.Commit)
}

func TestParse_Compare(t *testing.T) {
	ref, err := Parse("https://github.com/oct/proj/compare/v1...v2")
	require.NoError(t, err)
	assert.Equal(t, KindCompare, ref.Kind)
	assert.Equal(t, "v1", ref.Base)
	assert.Equal(t, "v2", ref.Head)
}

func TestParse_PullRequest(t *testing.T) {
	ref, err := Parse("https://github.com/oct/hello/pull/42")
	require.NoError(t, err)
	assert.Equal(t, KindPullRequest, ref.Kind)
	assert.Equal(t, 42, ref.Number)
}

func TestParse_Gist(t *testing.T) {
	ref, err := Parse("https://gist.github.com/octocat/abcd1234")
	require.NoError(t, err)
	assert.Equal(t, KindGist, ref.Kind)
	assert.Equal(t, "octocat", ref.GistUser)
	assert.Equal(t, "abcd1234", ref.GistID)
}

func TestParse_AnonymousGist(t *testing.T) {
	ref, err := Parse("https://gist.github.com/abcd1234")
	require.NoError(t, err)
	assert.Equal(t, KindGist, ref.Kind)
	assert.Equal(t, "", ref.GistUser)
	assert.Equal(t, "abcd1234", ref.GistID)
}

func TestParse_RawURL(t *testing.T) {
	ref, err := Parse("https://raw.githubusercontent.com/oct/hello/main/README.md")
	require.NoError(t, err)
	assert.Equal(t, KindRaw, ref.Kind)
	assert.Equal(t, "oct", ref.Owner)
	assert.Equal(t, "hello", ref.Repo)
	assert.Equal(t, "main", ref.Branch)
	assert.Equal(t, "README.md", ref.Path)
}

func TestParse_LocalPath(t *testing.T) {
	ref, err := Parse(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, KindLocal, ref.Kind)
}

func TestParse_InvalidOwnerRepo(t *testing.T) {
	_, err := Parse("-bad/repo")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
}

func TestParse_RejectsPrivateHost(t *testing.T) {
	_, err := Parse("http://localhost/oct/hello")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))
}

func TestParse_Unparseable(t *testing.T) {
	_, err := Parse("not a valid anything at all!!")
	require.Error(t, err)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"oct/hello",
		"https://github.com/oct/monorepo/tree/main/services/api",
	}
	for _, in := range inputs {
		ref, err := Parse(in)
		require.NoError(t, err)
		n1 := ref.Normalize()
		ref2, err := Parse(n1)
		require.NoError(t, err)
		assert.Equal(t, n1, ref2.Normalize())
	}
}
