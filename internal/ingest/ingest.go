// Package ingest implements the Ingester orchestration entity named in
// spec.md §3/§9: it owns a WorkingCopy end-to-end, coordinating the
// Clone Driver, Walker, Emitter, and both caches, and it applies the
// freshness-tier check sequence of spec.md §5 (explicitly non-atomic:
// check_status → maybe get_remote_head → mark_validated/invalidate →
// get).
package ingest

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/google/go-github/v63/github"
	"github.com/rs/zerolog"

	"github.com/reposcribe/reposcribe/internal/cache/artifact"
	"github.com/reposcribe/reposcribe/internal/cache/index"
	"github.com/reposcribe/reposcribe/internal/clone"
	"github.com/reposcribe/reposcribe/internal/emitter"
	"github.com/reposcribe/reposcribe/internal/filterpolicy"
	"github.com/reposcribe/reposcribe/internal/walker"
)

// Request describes one ingestion: what to clone, how to filter it,
// and which caches to consult.
type Request struct {
	URL          string
	Branch       string
	Preset       filterpolicy.Preset
	Includes     []string
	Excludes     []string
	MaxFileSize  int64
	Untracked    bool
	PathPrefix   string
	NoCache      bool
	ForceRefresh bool
}

// Ingester coordinates the Clone Driver, Walker, Emitter, and the
// artifact/index caches for a single logical repository source.
type Ingester struct {
	Clone    *clone.Driver
	Artifact *artifact.Cache
	Index    *index.Cache
	// GitHub resolves gist content directly, without a clone
	// (SPEC_FULL.md §12). Nil disables gist ingestion.
	GitHub *github.Client
}

// New builds an Ingester from its three core collaborators. Use
// WithGitHub to enable gist ingestion.
func New(cloneDriver *clone.Driver, artifactCache *artifact.Cache, indexCache *index.Cache) *Ingester {
	return &Ingester{Clone: cloneDriver, Artifact: artifactCache, Index: indexCache}
}

// WithGitHub attaches a GitHub client for gist ingestion and returns
// the same Ingester, for chaining after New.
func (ing *Ingester) WithGitHub(gh *github.Client) *Ingester {
	ing.GitHub = gh
	return ing
}

// NewGistOnly builds an Ingester capable only of IngestGist, for
// callers (the CLI) that need gist rendering without a clone driver
// or caches.
func NewGistOnly(gh *github.Client) *Ingester {
	return &Ingester{GitHub: gh}
}

// Ingest produces the emitted Artifact for req, consulting the
// artifact cache first, then the index cache's commit-match fast
// path, and finally acquiring a fresh working copy when neither
// applies.
func (ing *Ingester) Ingest(ctx context.Context, req Request) (emitter.Artifact, error) {
	return ing.IngestWithSink(ctx, req, emitter.NewByteSink())
}

// IngestWithSink is Ingest with an explicit Sink, letting callers
// observe the Emitter's start/per-file/complete/error events
// (spec.md §9's callback-based streaming design note). A cache hit
// bypasses the Emitter entirely, so it replays only the start and
// complete events against the cached Artifact; per-file events are
// only ever emitted by a live walk.
func (ing *Ingester) IngestWithSink(ctx context.Context, req Request, sink emitter.Sink) (emitter.Artifact, error) {
	policy := filterpolicy.New(req.Preset, req.Includes, req.Excludes, req.MaxFileSize, req.Untracked, req.PathPrefix)

	artifactKey := artifact.Key(req.URL, req.Branch, string(req.Preset), req.PathPrefix)

	if !req.NoCache && !req.ForceRefresh {
		remoteHead := func(url, branch string) (string, error) {
			return ing.Clone.GetRemoteHead(ctx, url, branch)
		}
		if art, ok := ing.Artifact.Get(artifactKey, remoteHead); ok {
			sink.OnStart(art.FileCount)
			if _, err := sink.Write(art.Content); err != nil {
				sink.OnError(err)
				return emitter.Artifact{}, err
			}
			sink.OnComplete(art)
			return art, nil
		}
	}

	currentCommit, err := ing.Clone.GetRemoteHead(ctx, req.URL, req.Branch)
	if err != nil {
		sink.OnError(err)
		return emitter.Artifact{}, err
	}

	workingDir, repo, err := ing.acquireWorkingCopy(ctx, req, currentCommit)
	if err != nil {
		sink.OnError(err)
		return emitter.Artifact{}, err
	}

	records, err := walker.Walk(workingDir, repo, *policy)
	if err != nil {
		sink.OnError(err)
		return emitter.Artifact{}, err
	}

	art, err := emitter.Emit(workingDir, records, policy.MaxFileSize, sink)
	if err != nil {
		sink.OnError(err)
		return emitter.Artifact{}, err
	}

	if !req.NoCache {
		ing.Artifact.Put(artifactKey, req.URL, req.Branch, currentCommit, art)
	}

	return art, nil
}

// acquireWorkingCopy implements the index cache's commit-check fast
// path (spec.md §4.6.2): Match reuses the on-disk working copy without
// re-cloning, Outdated evicts the stale entry first, and NotCached (or
// ForceRefresh) always clones fresh. A freshly-cloned working copy's
// ownership transfers to the index cache on Put (spec.md §9).
func (ing *Ingester) acquireWorkingCopy(ctx context.Context, req Request, currentCommit string) (string, *git.Repository, error) {
	indexKey := index.Key(req.URL, req.Branch)

	if !req.ForceRefresh {
		switch ing.Index.CheckCommit(indexKey, currentCommit) {
		case index.Match:
			if entry, ok := ing.Index.Get(indexKey); ok {
				if repo, err := git.PlainOpen(entry.WorkingCopy); err == nil {
					return entry.WorkingCopy, repo, nil
				}
				// The on-disk copy vanished out from under the index;
				// fall through and re-acquire.
			}
		case index.Outdated:
			if err := ing.Index.Remove(indexKey); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to evict outdated index entry")
			}
		}
	}

	wc, err := ing.Clone.Clone(ctx, req.URL, req.Branch)
	if err != nil {
		return "", nil, err
	}

	// The index stores the commit-determined, unfiltered FileRecord
	// list (spec.md §3's invariant: the commit hash alone determines
	// what an unfiltered walk would produce); per-request filtering
	// happens separately over the same working copy in Ingest.
	unfiltered := filterpolicy.New(filterpolicy.PresetRaw, nil, nil, 0, false, "")
	records, err := walker.Walk(wc.Path, wc.Repo, *unfiltered)
	if err != nil {
		_ = wc.Close()
		return "", nil, err
	}

	if err := ing.Index.Put(indexKey, index.Entry{
		URL: req.URL, Branch: req.Branch, CommitHash: currentCommit,
		WorkingCopy: wc.Path, Records: records, TotalSize: sumSizes(records),
	}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to persist index cache entry")
	}
	wc.Release()

	return wc.Path, wc.Repo, nil
}

func sumSizes(records []walker.FileRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.Size
	}
	return total
}
