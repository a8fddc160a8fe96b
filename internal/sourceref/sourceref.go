// Package sourceref normalizes free-form source strings — forge URLs,
// shorthands, and local paths — into a canonical SourceRef, per spec.md
// §4.1.
package sourceref

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/reposcribe/reposcribe/internal/apperrors"
)

// Kind tags the shape of the request a SourceRef describes.
type Kind string

// The source-kind variants named in spec.md §3.
const (
	KindRepo        Kind = "repo"
	KindTree        Kind = "tree"
	KindBlob        Kind = "blob"
	KindCommit      Kind = "commit"
	KindCompare     Kind = "compare"
	KindPullRequest Kind = "pull_request"
	KindRaw         Kind = "raw"
	KindGist        Kind = "gist"
	KindLocal       Kind = "local"
)

// SourceRef is the canonical, immutable result of parsing an input
// string (spec.md §3).
type SourceRef struct {
	Kind Kind

	// Repo-shaped fields.
	Host   string // forge host, e.g. "github.com"; empty for local/gist
	Owner  string
	Repo   string
	URL    string // canonical clone URL (for Local: the file:// input, or "" for a bare path)
	Branch string // optional ref
	Path   string // optional sub-path

	// Commit/Compare/PullRequest-shaped fields.
	Commit string
	Base   string
	Head   string
	Number int

	// Gist-shaped fields.
	GistID   string
	GistUser string

	// Local-shaped fields.
	LocalPath string
}

var directoryNames = map[string]bool{
	"src": true, "lib": true, "test": true, "tests": true, "docs": true,
	"bin": true, "pkg": true, "cmd": true, "internal": true, "api": true,
	"web": true, "client": true, "server": true, "assets": true, "public": true,
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]{0,37}[A-Za-z0-9])?$`)

// validName enforces spec.md §4.1's owner/repo naming rule.
func validName(s string) bool {
	if s == "" || len(s) > 39 {
		return false
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, ".") ||
		strings.HasSuffix(s, "-") || strings.HasSuffix(s, ".") {
		return false
	}
	return nameRE.MatchString(s)
}

// statDir reports whether path exists and is a directory. Overridable
// in tests.
var statDir = func(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Parse normalizes a free-form input string into a SourceRef, trying
// each recognized shape in the priority order given by spec.md §4.1.
func Parse(input string) (*SourceRef, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "empty source")
	}

	if ref, err, handled := parseForgeURL(s); handled {
		return ref, err
	}
	if ref, err, handled := parseGistURL(s); handled {
		return ref, err
	}
	if ref, err, handled := parseRawURL(s); handled {
		return ref, err
	}
	if ref, err, handled := parseShorthand(s); handled {
		return ref, err
	}
	if strings.HasPrefix(s, "file://") {
		p := strings.TrimPrefix(s, "file://")
		if !statDir(p) {
			return nil, apperrors.New(apperrors.KindInvalidRequest, "local path %q is not a directory", p)
		}
		return &SourceRef{Kind: KindLocal, LocalPath: p, URL: s}, nil
	}
	if statDir(s) {
		return &SourceRef{Kind: KindLocal, LocalPath: s}, nil
	}

	return nil, apperrors.New(apperrors.KindInvalidRequest, "unparseable source: %q", input)
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "git@")
}

func isPrivateHost(host string) bool {
	h := host
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// parseForgeURL handles https://<host>/<owner>/<repo>[/tree|blob|commit|compare|pull/...] forms.
func parseForgeURL(s string) (*SourceRef, error, bool) {
	if !looksLikeURL(s) || !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return nil, nil, false
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInvalidRequest, err, "invalid url"), true
	}
	if isPrivateHost(u.Host) {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "refusing private-network host %q", u.Host), true
	}
	if strings.HasPrefix(u.Host, "gist.") {
		return nil, nil, false // handled by parseGistURL
	}
	if strings.HasPrefix(u.Host, "raw.") {
		return nil, nil, false // handled by parseRawURL
	}

	segs := splitNonEmpty(u.Path)
	if len(segs) < 2 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "forge url missing owner/repo: %q", s), true
	}
	owner, repo := segs[0], strings.TrimSuffix(segs[1], ".git")
	if !validName(owner) || !validName(repo) {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "invalid owner/repo in %q", s), true
	}

	base := &SourceRef{
		Host:  u.Host,
		Owner: owner,
		Repo:  repo,
		URL:   fmt.Sprintf("https://%s/%s/%s", u.Host, owner, repo),
	}

	rest := segs[2:]
	if len(rest) == 0 {
		base.Kind = KindRepo
		return base, nil, true
	}

	switch rest[0] {
	case "tree", "blob":
		kind := KindTree
		if rest[0] == "blob" {
			kind = KindBlob
		}
		ref, path := splitRefAndPath(rest[1:])
		base.Kind = kind
		base.Branch = ref
		base.Path = path
		return base, nil, true
	case "commit":
		if len(rest) < 2 {
			return nil, apperrors.New(apperrors.KindInvalidRequest, "commit url missing sha: %q", s), true
		}
		base.Kind = KindCommit
		base.Commit = rest[1]
		return base, nil, true
	case "compare":
		if len(rest) < 2 {
			return nil, apperrors.New(apperrors.KindInvalidRequest, "compare url missing spec: %q", s), true
		}
		b, h, err := parseCompareSpec(strings.Join(rest[1:], "/"))
		if err != nil {
			return nil, err, true
		}
		base.Kind = KindCompare
		base.Base, base.Head = b, h
		return base, nil, true
	case "pull":
		if len(rest) < 2 {
			return nil, apperrors.New(apperrors.KindInvalidRequest, "pull url missing number: %q", s), true
		}
		n := 0
		if _, err := fmt.Sscanf(rest[1], "%d", &n); err != nil || n <= 0 {
			return nil, apperrors.New(apperrors.KindInvalidRequest, "invalid pull request number in %q", s), true
		}
		base.Kind = KindPullRequest
		base.Number = n
		return base, nil, true
	default:
		base.Kind = KindRepo
		return base, nil, true
	}
}

// parseCompareSpec splits a "<base>...<head>" compare tail, allowing
// "..." (two/three-dot) separators used by forges interchangeably.
func parseCompareSpec(tail string) (string, string, error) {
	for _, sep := range []string{"...", ".."} {
		if idx := strings.Index(tail, sep); idx >= 0 {
			base := tail[:idx]
			head := tail[idx+len(sep):]
			if base == "" || head == "" {
				return "", "", apperrors.New(apperrors.KindInvalidRequest, "malformed compare spec %q", tail)
			}
			return base, head, nil
		}
	}
	return "", "", apperrors.New(apperrors.KindInvalidRequest, "malformed compare spec %q", tail)
}

// splitRefAndPath implements the ref/path disambiguation heuristic of
// spec.md §4.1: walk components until one contains a dot (and isn't a
// ".git" suffix) or matches a conventional directory name; everything
// before that joins as the ref, everything after is the path.
func splitRefAndPath(tail []string) (ref string, path string) {
	for i, c := range tail {
		hasDot := strings.Contains(c, ".") && !strings.HasSuffix(c, ".git")
		if hasDot || directoryNames[c] {
			ref = strings.Join(tail[:i], "/")
			path = strings.Join(tail[i:], "/")
			return ref, path
		}
	}
	return strings.Join(tail, "/"), ""
}

func parseGistURL(s string) (*SourceRef, error, bool) {
	if !looksLikeURL(s) {
		return nil, nil, false
	}
	u, err := url.Parse(s)
	if err != nil || !strings.HasPrefix(u.Host, "gist.") {
		return nil, nil, false
	}
	segs := splitNonEmpty(u.Path)
	if len(segs) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "gist url missing id: %q", s), true
	}
	ref := &SourceRef{Kind: KindGist, Host: u.Host, URL: s}
	if len(segs) == 1 {
		ref.GistID = segs[0]
	} else {
		ref.GistUser = segs[0]
		ref.GistID = segs[1]
	}
	return ref, nil, true
}

func parseRawURL(s string) (*SourceRef, error, bool) {
	if !looksLikeURL(s) {
		return nil, nil, false
	}
	u, err := url.Parse(s)
	if err != nil || !strings.HasPrefix(u.Host, "raw.") {
		return nil, nil, false
	}
	segs := splitNonEmpty(u.Path)
	if len(segs) < 3 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "raw url missing owner/repo/ref: %q", s), true
	}
	owner, repo, ref := segs[0], segs[1], segs[2]
	if !validName(owner) || !validName(repo) {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "invalid owner/repo in %q", s), true
	}
	return &SourceRef{
		Kind:   KindRaw,
		Host:   u.Host,
		Owner:  owner,
		Repo:   repo,
		URL:    fmt.Sprintf("https://%s/%s/%s", u.Host, owner, repo),
		Branch: ref,
		Path:   strings.Join(segs[3:], "/"),
	}, nil, true
}

// parseShorthand handles bare "owner/repo" strings with no scheme.
func parseShorthand(s string) (*SourceRef, error, bool) {
	if looksLikeURL(s) || strings.Contains(s, " ") {
		return nil, nil, false
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, nil, false
	}
	owner, repo := parts[0], parts[1]
	if !validName(owner) || !validName(repo) {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "invalid owner/repo shorthand %q", s), true
	}
	return &SourceRef{
		Kind:  KindRepo,
		Host:  "github.com",
		Owner: owner,
		Repo:  repo,
		URL:   fmt.Sprintf("https://github.com/%s/%s", owner, repo),
	}, nil, true
}

func splitNonEmpty(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize returns the canonical string form of r. It is idempotent:
// parsing its output and normalizing again yields the same string
// (spec.md §8). Commit, compare, and pull-request refs normalize to
// their repository URL, so reparsing them yields a KindRepo ref.
func (r *SourceRef) Normalize() string {
	switch r.Kind {
	case KindLocal:
		return r.LocalPath
	case KindRaw:
		s := fmt.Sprintf("https://%s/%s/%s/%s", r.Host, r.Owner, r.Repo, r.Branch)
		if r.Path != "" {
			s += "/" + r.Path
		}
		return s
	case KindGist:
		if r.GistUser != "" {
			return fmt.Sprintf("https://%s/%s/%s", r.Host, r.GistUser, r.GistID)
		}
		return fmt.Sprintf("https://%s/%s", r.Host, r.GistID)
	default:
		s := r.URL
		if r.Branch != "" {
			s += "/tree/" + r.Branch
		}
		if r.Path != "" {
			s += "/" + r.Path
		}
		return s
	}
}
