// Package clone implements the Clone Driver of spec.md §4.3: acquiring
// shallow working copies for ingestion and bare compare clones for
// diffing, with URL-scoped credential selection.
package clone

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/rs/zerolog"

	"github.com/reposcribe/reposcribe/internal/apperrors"
)

// DefaultTimeout is the clone timeout named in spec.md §5.
const DefaultTimeout = 300 * time.Second

// Driver acquires working copies under a root temporary directory.
type Driver struct {
	Root        string // parent directory for per-invocation clone paths
	Credentials *CredentialSelector
	Timeout     time.Duration
}

// New builds a Driver rooted at dir. If dir is empty, os.TempDir() is
// used.
func New(dir string, creds *CredentialSelector) *Driver {
	if dir == "" {
		dir = os.TempDir()
	}
	if creds == nil {
		creds = NewCredentialSelector()
	}
	return &Driver{Root: dir, Credentials: creds, Timeout: DefaultTimeout}
}

// WorkingCopy is an on-disk shallow clone exclusively owned by one
// Ingester until it is either released (Close) or handed to the index
// cache (spec.md §3's ownership note).
type WorkingCopy struct {
	Path   string
	Repo   *git.Repository
	owned  bool
	driver *Driver
}

// Close removes the on-disk directory if the WorkingCopy has not been
// handed off to the index cache (spec.md §9 ownership-transfer note).
func (w *WorkingCopy) Close() error {
	if !w.owned {
		return nil
	}
	w.owned = false
	return os.RemoveAll(w.Path)
}

// Release marks the WorkingCopy as transferred to the index cache: its
// directory will no longer be removed by Close.
func (w *WorkingCopy) Release() {
	w.owned = false
}

// Clone acquires a full shallow (depth=1) working copy of url at
// branch, checking out HEAD (spec.md §4.3's "full shallow clone").
func (d *Driver) Clone(ctx context.Context, url, branch string) (*WorkingCopy, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	dir, err := os.MkdirTemp(d.Root, "reposcribe-clone-*")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "create clone dir")
	}

	auth, err := d.Credentials.SelectAuth(ctx, url)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	opts := &git.CloneOptions{
		URL:          url,
		Auth:         auth,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	zerolog.Ctx(ctx).Debug().Str("url", url).Str("branch", branch).Msg("cloning repository")

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, classifyCloneErr(err, url, branch)
	}

	return &WorkingCopy{Path: dir, Repo: repo, owned: true, driver: d}, nil
}

// CloneBare acquires a bare repository with exactly the refs needed
// for a comparison (spec.md §4.3's "bare compare clone"): the given
// head/base branch refspecs, fetched individually and ignoring
// per-ref fetch failures.
func (d *Driver) CloneBare(ctx context.Context, url string, refs ...string) (*WorkingCopy, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	dir, err := os.MkdirTemp(d.Root, "reposcribe-bare-*")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "create clone dir")
	}

	auth, err := d.Credentials.SelectAuth(ctx, url)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	repo, err := git.PlainInit(dir, true)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "init bare repo")
	}

	remote, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "create remote")
	}

	for _, ref := range refs {
		if ref == "" {
			continue
		}
		refspecs := []config.RefSpec{
			config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/remotes/origin/%s", ref, ref)),
			config.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", ref, ref)),
		}
		for _, rs := range refspecs {
			err := remote.FetchContext(ctx, &git.FetchOptions{
				RemoteName: "origin",
				RefSpecs:   []config.RefSpec{rs},
				Auth:       auth,
				Depth:      1,
				Tags:       git.NoTags,
			})
			// Per spec.md §4.3: ignore per-ref fetch failures (a ref
			// may legitimately be a branch OR a tag, never both).
			if err != nil && err != git.NoErrAlreadyUpToDate {
				zerolog.Ctx(ctx).Debug().Err(err).Str("refspec", string(rs)).Msg("ignoring per-ref fetch failure")
			}
		}
	}

	return &WorkingCopy{Path: dir, Repo: repo, owned: true, driver: d}, nil
}

func (d *Driver) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// GetRemoteHead returns the current upstream commit hash for branch
// without fetching objects (spec.md §4.3's lightweight check, used by
// the artifact cache's Valid tier).
func (d *Driver) GetRemoteHead(ctx context.Context, url, branch string) (string, error) {
	auth, err := d.Credentials.SelectAuth(ctx, url)
	if err != nil {
		return "", err
	}

	remote := git.NewRemote(nil, &config.RemoteConfig{Name: "origin", URLs: []string{url}})
	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return "", classifyCloneErr(err, url, branch)
	}

	var wantRef plumbing.ReferenceName
	if branch != "" {
		wantRef = plumbing.NewBranchReferenceName(branch)
	} else {
		wantRef = plumbing.HEAD
	}

	for _, ref := range refs {
		if ref.Name() == wantRef {
			return ref.Hash().String(), nil
		}
	}
	if wantRef == plumbing.HEAD {
		for _, ref := range refs {
			if ref.Name() == plumbing.HEAD {
				return ref.Hash().String(), nil
			}
		}
	}
	return "", apperrors.New(apperrors.KindNotFound, "branch %q not found at %s", branch, url)
}

func classifyCloneErr(err error, url, branch string) error {
	switch {
	case err == transport.ErrRepositoryNotFound:
		return apperrors.Wrap(apperrors.KindNotFound, err, "repository not found: %s", url)
	case err == transport.ErrAuthenticationRequired || err == transport.ErrAuthorizationFailed:
		return apperrors.Wrap(apperrors.KindAuthRequired, err, "authentication required for %s", url)
	case err == plumbing.ErrReferenceNotFound:
		return apperrors.Wrap(apperrors.KindNotFound, err, "branch %q not found at %s", branch, url)
	case err == context.DeadlineExceeded:
		return apperrors.Wrap(apperrors.KindTimeout, err, "clone of %s timed out", url)
	default:
		return apperrors.Wrap(apperrors.KindUpstreamFailure, err, "clone of %s failed", url)
	}
}
