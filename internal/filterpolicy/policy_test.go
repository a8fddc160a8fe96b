package filterpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccept_RawAcceptsEverythingNonVCS(t *testing.T) {
	p := New(PresetRaw, nil, nil, 0, false, "")
	paths := []string{"README.md", "img.png", "src/main.go", "node_modules/x.js"}
	for _, pth := range paths {
		assert.True(t, p.Accept(Candidate{Path: pth}), pth)
	}
	assert.False(t, p.Accept(Candidate{Path: ".git/HEAD"}))
}

func TestAccept_StandardExcludesMedia(t *testing.T) {
	p := New(PresetStandard, nil, nil, 0, false, "")
	assert.True(t, p.Accept(Candidate{Path: "README.md"}))
	assert.False(t, p.Accept(Candidate{Path: "img.png"}))
	assert.False(t, p.Accept(Candidate{Path: "node_modules/left-pad/index.js"}))
}

func TestAccept_CodeOnlyExcludesReadme(t *testing.T) {
	p := New(PresetCodeOnly, nil, nil, 0, false, "")
	assert.False(t, p.Accept(Candidate{Path: "services/api/README.md"}))
	assert.True(t, p.Accept(Candidate{Path: "services/api/main.go"}))
}

func TestAccept_MinimalExcludesMediaBinariesDocsFontsVCSSecrets(t *testing.T) {
	p := New(PresetMinimal, nil, nil, 0, false, "")
	assert.False(t, p.Accept(Candidate{Path: "img.png"}))
	assert.False(t, p.Accept(Candidate{Path: "a.pdf"}))
	assert.False(t, p.Accept(Candidate{Path: ".env"}))
	assert.True(t, p.Accept(Candidate{Path: "README.md"}))
	assert.True(t, p.Accept(Candidate{Path: "package-lock.json"}))
}

func TestAccept_UserExcludeOverlaysPreset(t *testing.T) {
	p := New(PresetRaw, nil, []string{"*.go"}, 0, false, "")
	assert.False(t, p.Accept(Candidate{Path: "main.go"}))
	assert.True(t, p.Accept(Candidate{Path: "main.py"}))
}

func TestAccept_IncludeSetRestricts(t *testing.T) {
	p := New(PresetRaw, []string{"*.go"}, nil, 0, false, "")
	assert.True(t, p.Accept(Candidate{Path: "main.go"}))
	assert.False(t, p.Accept(Candidate{Path: "main.py"}))
}

func TestAccept_IncludeTrailingSlashIsDirectoryPrefix(t *testing.T) {
	p := New(PresetRaw, []string{"services/api/"}, nil, 0, false, "")
	assert.True(t, p.Accept(Candidate{Path: "services/api/main.go"}))
	assert.False(t, p.Accept(Candidate{Path: "services/web/main.go"}))
}

func TestAccept_IncludeWithSlashAppliesToFullPath(t *testing.T) {
	p := New(PresetRaw, []string{"services/api/*.go"}, nil, 0, false, "")
	assert.True(t, p.Accept(Candidate{Path: "services/api/main.go"}))
	assert.False(t, p.Accept(Candidate{Path: "other/main.go"}))
}

func TestAccept_IgnoredRejectedUnlessUntrackedRequested(t *testing.T) {
	p := New(PresetRaw, nil, nil, 0, false, "")
	assert.False(t, p.Accept(Candidate{Path: "scratch.tmp", Ignored: true}))

	p2 := New(PresetRaw, nil, nil, 0, true, "")
	assert.True(t, p2.Accept(Candidate{Path: "scratch.tmp", Ignored: true}))
}

func TestMatchPattern_SingleStarPrefixSuffix(t *testing.T) {
	assert.True(t, matchPattern("LICENSE*", "LICENSE.txt"))
	assert.True(t, matchPattern("LICENSE*", "LICENSE"))
	assert.False(t, matchPattern("LICENSE*", "NOTLICENSE"))
}

func TestMatchPattern_DirectoryPrefixConsumesAtLeastOneChar(t *testing.T) {
	assert.True(t, matchPattern("node_modules/*", "node_modules/pkg/index.js"))
	assert.False(t, matchPattern("node_modules/*", "node_modules"))
}

func TestMatchPattern_LiteralExactOrDirectoryPrefix(t *testing.T) {
	assert.True(t, matchPattern(".DS_Store", ".DS_Store"))
	assert.True(t, matchPattern(".git", ".git/objects/abc"))
	assert.False(t, matchPattern(".DS_Store", "not.DS_Store"))
}

func TestMaxFileSize_DefaultsWhenUnset(t *testing.T) {
	p := New(PresetRaw, nil, nil, 0, false, "")
	assert.Equal(t, int64(defaultMaxFileSize), p.MaxFileSize)
}

func TestNew_PathPrefixTrimsSlashes(t *testing.T) {
	p := New(PresetRaw, nil, nil, 0, false, "/services/api/")
	assert.Equal(t, "services/api", p.PathPrefix)
}
