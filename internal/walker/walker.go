// Package walker implements the Walker of spec.md §4.4: it turns a
// working copy and a FilterPolicy into an ordered, deduplicated
// sequence of FileRecords without ever reading full file contents.
package walker

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/reposcribe/reposcribe/internal/apperrors"
	"github.com/reposcribe/reposcribe/internal/filterpolicy"
)

// sniffSize is the number of leading bytes read per candidate to
// detect binary content (spec.md §4.4).
const sniffSize = 8 * 1024

// FileRecord describes one file surfaced by the walk: its
// repo-relative path, size, and whether it is binary.
type FileRecord struct {
	Path   string
	Size   int64
	Binary bool
}

// Walk resolves policy.PathPrefix (if any) to a subtree of repoRoot,
// walks the tracked tree plus any requested untracked files, applies
// policy, and returns a lexicographically sorted, deduplicated
// []FileRecord.
func Walk(repoRoot string, repo *git.Repository, policy filterpolicy.Policy) ([]FileRecord, error) {
	root := repoRoot
	if policy.PathPrefix != "" {
		sub := filepath.Join(repoRoot, filepath.FromSlash(policy.PathPrefix))
		fi, err := os.Stat(sub)
		if err != nil || !fi.IsDir() {
			return nil, apperrors.New(apperrors.KindNotFound, "path prefix %q not found", policy.PathPrefix)
		}
		root = sub
	}

	ignored, err := ignoredSet(repo)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "read repository status")
	}
	tracked, err := trackedSet(repo)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "read tracked tree")
	}

	seen := make(map[string]FileRecord)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		relToRoot, err := filepath.Rel(repoRoot, p)
		if err != nil {
			return err
		}
		repoPath := filepath.ToSlash(relToRoot)

		// The base walk only ever surfaces tracked paths (spec.md §4.4):
		// new-in-working-tree entries are merged in separately below,
		// and only when policy.Untracked requests it.
		if !tracked[repoPath] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		cand := filterpolicy.Candidate{
			Path:      repoPath,
			Ignored:   ignored[repoPath],
			Untracked: false,
		}
		if !policy.Accept(cand) {
			return nil
		}

		rec, err := buildRecord(p, repoPath, fi.Size())
		if err != nil {
			return err
		}
		seen[repoPath] = rec
		return nil
	})
	if walkErr != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, walkErr, "walk working copy")
	}

	if policy.Untracked {
		untracked, err := untrackedPaths(repo)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, err, "list untracked files")
		}
		for _, repoPath := range untracked {
			if policy.PathPrefix != "" && !withinPrefix(repoPath, policy.PathPrefix) {
				continue
			}
			if _, exists := seen[repoPath]; exists {
				continue
			}
			cand := filterpolicy.Candidate{Path: repoPath, Ignored: ignored[repoPath], Untracked: true}
			if !policy.Accept(cand) {
				continue
			}
			abs := filepath.Join(repoRoot, filepath.FromSlash(repoPath))
			fi, err := os.Stat(abs)
			if err != nil {
				continue
			}
			rec, err := buildRecord(abs, repoPath, fi.Size())
			if err != nil {
				return nil, err
			}
			seen[repoPath] = rec
		}
	}

	out := make([]FileRecord, 0, len(seen))
	for _, rec := range seen {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func withinPrefix(repoPath, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return repoPath == prefix || strings.HasPrefix(repoPath, prefix+"/")
}

// buildRecord stats p and sniffs up to sniffSize bytes for a NUL byte
// to decide the binary flag (spec.md §4.4).
func buildRecord(absPath, repoPath string, size int64) (FileRecord, error) {
	binary, err := sniffBinary(absPath)
	if err != nil {
		return FileRecord{}, apperrors.Wrap(apperrors.KindInternal, err, "sniff %s", repoPath)
	}
	return FileRecord{Path: repoPath, Size: size, Binary: binary}, nil
}

func sniffBinary(absPath string) (bool, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		if err.Error() == "EOF" {
			return false, nil
		}
		return false, err
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true, nil
		}
	}
	return false, nil
}

// trackedSet returns the repo-relative paths recorded in HEAD's tree,
// the tracked-file set the base walk is scoped to (spec.md §4.4). A
// bare repo or one with no commits yet yields an empty set: everything
// in its working tree is then untracked, surfaced only when
// policy.Untracked merges new-in-working-tree entries in.
func trackedSet(repo *git.Repository) (map[string]bool, error) {
	out := map[string]bool{}
	if repo == nil {
		return out, nil
	}
	head, err := repo.Head()
	if err != nil {
		return out, nil
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return out, nil
	}
	tree, err := commit.Tree()
	if err != nil {
		return out, nil
	}
	files := tree.Files()
	defer files.Close()
	if err := files.ForEach(func(f *object.File) error {
		out[path.Clean(f.Name)] = true
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// ignoredSet returns the set of repo-relative paths the worktree's
// status marks ignored. A bare repo (no worktree) yields an empty set.
func ignoredSet(repo *git.Repository) (map[string]bool, error) {
	out := map[string]bool{}
	if repo == nil {
		return out, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return out, nil
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	for p, s := range status {
		if s.Worktree == git.Ignored || s.Staging == git.Ignored {
			out[path.Clean(p)] = true
		}
	}
	return out, nil
}

// untrackedPaths returns repo-relative paths for new-in-working-tree
// entries (spec.md §4.4's untracked-file merge), excluding anything
// git itself already considers ignored.
func untrackedPaths(repo *git.Repository) ([]string, error) {
	if repo == nil {
		return nil, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	var out []string
	for p, s := range status {
		if s.Worktree == git.Untracked && s.Staging != git.Ignored {
			out = append(out, path.Clean(p))
		}
	}
	return out, nil
}
