package filterpolicy

import (
	"path"
	"strings"
)

// defaultMaxFileSize is applied when a request does not specify one.
const defaultMaxFileSize = 10 * 1024 * 1024 // 10 MiB

// Policy answers "should this repo-relative path participate in
// emission?" given a preset, user include/exclude patterns and a max
// file size (spec.md §4.2).
type Policy struct {
	Preset      Preset
	Excludes    []string
	Includes    []string
	MaxFileSize int64
	Untracked   bool   // whether untracked (but not ignored) files are requested
	PathPrefix  string // subtree the walker should resolve and rejoin paths under (spec.md §4.4)
}

// New builds a Policy from a preset plus user-supplied patterns. The
// preset's excludes and the user's excludes are unioned; includes
// remain entirely user-controlled (spec.md §4.2).
func New(preset Preset, userIncludes, userExcludes []string, maxFileSize int64, untracked bool, pathPrefix string) *Policy {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	excludes := append([]string{}, presetExcludes(preset)...)
	excludes = append(excludes, userExcludes...)
	return &Policy{
		Preset:      preset,
		Excludes:    excludes,
		Includes:    append([]string{}, userIncludes...),
		MaxFileSize: maxFileSize,
		Untracked:   untracked,
		PathPrefix:  strings.Trim(pathPrefix, "/"),
	}
}

// Candidate describes a path being evaluated against the policy.
type Candidate struct {
	Path      string // repo-relative, '/'-separated
	Ignored   bool   // repo status marks the path ignored
	Untracked bool   // repo status marks the path untracked (not yet added)
}

// Accept implements the decision order of spec.md §4.2.
func (p *Policy) Accept(c Candidate) bool {
	if isVCSMetadataPath(c.Path) {
		return false
	}
	if c.Ignored && !p.Untracked {
		return false
	}
	for _, pat := range p.Excludes {
		if matchPattern(pat, c.Path) {
			return false
		}
	}
	if len(p.Includes) > 0 {
		matched := false
		for _, pat := range p.Includes {
			if matchInclude(pat, c.Path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func isVCSMetadataPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case ".git", ".hg", ".svn", ".bzr":
			return true
		}
	}
	return false
}

// matchPattern implements the four exclude pattern shapes of spec.md
// §4.2: "*.<ext>" suffix match, "<prefix>/*" prefix match (consuming at
// least one path character beyond the separator), single-star
// "<a>*<b>" prefix+suffix match, and literal exact/directory-prefix
// match. Matching is case-sensitive.
func matchPattern(pattern, candidate string) bool {
	base := path.Base(candidate)

	if strings.HasPrefix(pattern, "*.") && strings.Count(pattern, "*") == 1 {
		ext := pattern[1:] // ".<ext>"
		return strings.HasSuffix(base, ext) && len(base) > len(ext)
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		rest := strings.TrimPrefix(candidate, prefix+"/")
		return rest != candidate && rest != ""
	}

	if idx := strings.IndexByte(pattern, '*'); idx >= 0 && strings.Count(pattern, "*") == 1 {
		a, b := pattern[:idx], pattern[idx+1:]
		target := base
		if strings.Contains(pattern, "/") {
			target = candidate
		}
		return strings.HasPrefix(target, a) && strings.HasSuffix(target, b) && len(target) >= len(a)+len(b)
	}

	// Literal: exact match or directory-prefix match.
	if candidate == pattern {
		return true
	}
	return strings.HasPrefix(candidate, pattern+"/")
}

// matchInclude honors the three include shapes of spec.md §4.2: bare
// filename globs apply to the basename only, trailing "/" patterns
// apply as directory prefixes, and patterns containing "/" apply to
// the full path.
func matchInclude(pattern, candidate string) bool {
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(candidate, pattern) || candidate == strings.TrimSuffix(pattern, "/")
	}
	if strings.Contains(pattern, "/") {
		return matchPattern(pattern, candidate)
	}
	return matchPattern(pattern, path.Base(candidate))
}
