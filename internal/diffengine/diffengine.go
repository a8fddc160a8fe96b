// Package diffengine implements the compare/commit/pull-request diff
// subsystem named in spec.md §4.3 and exercised by scenario 5 of §8: a
// bare compare clone of exactly the refs needed, a unified diff built
// from go-git's commit-to-commit patch machinery, and the
// `# Comparing <base> to <head>` preamble format.
package diffengine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-github/v63/github"
	"github.com/xanzy/go-gitlab"

	"github.com/reposcribe/reposcribe/internal/apperrors"
	"github.com/reposcribe/reposcribe/internal/cache/diffcache"
	"github.com/reposcribe/reposcribe/internal/clone"
)

// Result is a rendered diff artifact: the preamble plus the unified
// diff body, and the aggregate stats used in the preamble itself.
type Result struct {
	Preamble     string
	UnifiedDiff  string
	FilesChanged int
	Insertions   int
	Deletions    int
}

// Engine produces diffs between two refs of the same repository,
// reusing a single bare compare clone per request (spec.md §4.3).
type Engine struct {
	Clone *clone.Driver
	Cache *diffcache.Cache
	// GitHub resolves a GitHub pull request's base/head refs. Nil
	// disables pull-request diffing against github.com hosts
	// (commit/compare still work).
	GitHub *github.Client
	// GitLab resolves a GitLab merge request's source/target branches.
	// Nil disables pull-request diffing against gitlab hosts.
	GitLab *gitlab.Client
}

// New builds an Engine from its collaborators.
func New(cloneDriver *clone.Driver, cache *diffcache.Cache, gh *github.Client, gl *gitlab.Client) *Engine {
	return &Engine{Clone: cloneDriver, Cache: cache, GitHub: gh, GitLab: gl}
}

// isGitLabHost reports whether host names a GitLab forge, covering
// both gitlab.com and self-hosted instances that carry "gitlab" in
// their hostname.
func isGitLabHost(host string) bool {
	return strings.Contains(strings.ToLower(host), "gitlab")
}

// Compare renders the diff between base and head (spec.md §8
// scenario 5's `compare/v1...v2` form), checking the diff cache first.
func (e *Engine) Compare(ctx context.Context, url, owner, repo, base, head string, contextLines int) (Result, error) {
	key := diffcache.Key{Kind: "compare", Owner: owner, Repo: repo, Identifier: base + "..." + head, ContextLines: contextLines}
	if entry, ok := e.Cache.Get(key); ok {
		return resultFromEntry(fmt.Sprintf("# Comparing %s to %s", base, head), entry), nil
	}

	wc, err := e.Clone.CloneBare(ctx, url, base, head)
	if err != nil {
		return Result{}, err
	}
	defer wc.Close()

	result, err := diffBetween(wc.Repo, base, head)
	if err != nil {
		return Result{}, err
	}
	result.Preamble = fmt.Sprintf("# Comparing %s to %s", base, head)

	e.Cache.Put(key, diffcache.Entry{
		UnifiedDiff: result.UnifiedDiff, FilesChanged: result.FilesChanged,
		Insertions: result.Insertions, Deletions: result.Deletions,
	})
	return result, nil
}

// Commit renders the diff a single commit introduces against its
// first parent.
func (e *Engine) Commit(ctx context.Context, url, owner, repo, sha string, contextLines int) (Result, error) {
	key := diffcache.Key{Kind: "commit", Owner: owner, Repo: repo, Identifier: sha, ContextLines: contextLines}
	if entry, ok := e.Cache.Get(key); ok {
		return resultFromEntry(fmt.Sprintf("# Commit %s", sha), entry), nil
	}

	wc, err := e.Clone.CloneBare(ctx, url, sha)
	if err != nil {
		return Result{}, err
	}
	defer wc.Close()

	commit, err := resolveCommit(wc.Repo, sha)
	if err != nil {
		return Result{}, err
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindNotFound, err, "commit %s has no parent", sha)
	}

	result, err := patchResult(parent, commit)
	if err != nil {
		return Result{}, err
	}
	result.Preamble = fmt.Sprintf("# Commit %s", sha)

	e.Cache.Put(key, diffcache.Entry{
		UnifiedDiff: result.UnifiedDiff, FilesChanged: result.FilesChanged,
		Insertions: result.Insertions, Deletions: result.Deletions,
	})
	return result, nil
}

// PullRequest renders the diff for a pull request or merge request,
// resolving its base/head refs via the forge named by host (GitHub
// pull requests or GitLab merge requests) and reusing the same
// compare machinery as Compare.
func (e *Engine) PullRequest(ctx context.Context, host, url, owner, repo string, number int, contextLines int) (Result, error) {
	key := diffcache.Key{Kind: "pull_request", Owner: owner, Repo: repo, Identifier: fmt.Sprintf("%d", number), ContextLines: contextLines}
	if entry, ok := e.Cache.Get(key); ok {
		return resultFromEntry(fmt.Sprintf("# Pull Request #%d", number), entry), nil
	}

	var base, head, label string
	if isGitLabHost(host) {
		b, h, err := e.resolveMergeRequest(ctx, owner, repo, number)
		if err != nil {
			return Result{}, err
		}
		base, head, label = b, h, "Merge Request"
	} else {
		b, h, err := e.resolvePullRequest(ctx, owner, repo, number)
		if err != nil {
			return Result{}, err
		}
		base, head, label = b, h, "Pull Request"
	}

	result, err := e.Compare(ctx, url, owner, repo, base, head, contextLines)
	if err != nil {
		return Result{}, err
	}
	result.Preamble = fmt.Sprintf("# %s #%d (%s into %s)", label, number, head, base)

	e.Cache.Put(key, diffcache.Entry{
		UnifiedDiff: result.UnifiedDiff, FilesChanged: result.FilesChanged,
		Insertions: result.Insertions, Deletions: result.Deletions,
	})
	return result, nil
}

func (e *Engine) resolvePullRequest(ctx context.Context, owner, repo string, number int) (base, head string, err error) {
	if e.GitHub == nil {
		return "", "", apperrors.New(apperrors.KindInvalidRequest, "pull request diffing requires a configured GitHub client")
	}
	pr, _, err := e.GitHub.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindUpstreamFailure, err, "fetch pull request #%d", number)
	}
	return pr.GetBase().GetRef(), pr.GetHead().GetRef(), nil
}

func (e *Engine) resolveMergeRequest(ctx context.Context, owner, repo string, number int) (base, head string, err error) {
	if e.GitLab == nil {
		return "", "", apperrors.New(apperrors.KindInvalidRequest, "merge request diffing requires a configured GitLab client")
	}
	mr, _, err := e.GitLab.MergeRequests.GetMergeRequest(owner+"/"+repo, number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindUpstreamFailure, err, "fetch merge request #%d", number)
	}
	return mr.TargetBranch, mr.SourceBranch, nil
}

// Render renders the final string body spec.md §8 scenario 5
// describes: the preamble, the aggregate stats lines, then the raw
// unified diff.
func (r Result) Render() string {
	return fmt.Sprintf("%s\n\nFiles changed: %d\nInsertions: %d\nDeletions: %d\n\n%s",
		r.Preamble, r.FilesChanged, r.Insertions, r.Deletions, r.UnifiedDiff)
}

func resultFromEntry(preamble string, e diffcache.Entry) Result {
	return Result{
		Preamble: preamble, UnifiedDiff: e.UnifiedDiff,
		FilesChanged: e.FilesChanged, Insertions: e.Insertions, Deletions: e.Deletions,
	}
}

// repoResolver is the subset of *git.Repository diffBetween/Commit
// need, narrowed so this package only depends on what it uses.
type repoResolver interface {
	ResolveRevision(plumbing.Revision) (*plumbing.Hash, error)
	CommitObject(plumbing.Hash) (*object.Commit, error)
}

func resolveCommit(repo repoResolver, ref string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNotFound, err, "resolve ref %q", ref)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNotFound, err, "load commit for ref %q", ref)
	}
	return commit, nil
}

func diffBetween(repo repoResolver, base, head string) (Result, error) {
	baseCommit, err := resolveCommit(repo, "refs/remotes/origin/"+base)
	if err != nil {
		baseCommit, err = resolveCommit(repo, base)
		if err != nil {
			return Result{}, err
		}
	}
	headCommit, err := resolveCommit(repo, "refs/remotes/origin/"+head)
	if err != nil {
		headCommit, err = resolveCommit(repo, head)
		if err != nil {
			return Result{}, err
		}
	}
	return patchResult(baseCommit, headCommit)
}

func patchResult(from, to *object.Commit) (Result, error) {
	patch, err := from.Patch(to)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindInternal, err, "compute patch")
	}

	var buf bytes.Buffer
	if err := patch.Encode(&buf); err != nil {
		return Result{}, apperrors.Wrap(apperrors.KindInternal, err, "encode patch")
	}

	stats := patch.Stats()
	var insertions, deletions int
	for _, s := range stats {
		insertions += s.Addition
		deletions += s.Deletion
	}

	return Result{
		UnifiedDiff:  buf.String(),
		FilesChanged: len(stats),
		Insertions:   insertions,
		Deletions:    deletions,
	}, nil
}
