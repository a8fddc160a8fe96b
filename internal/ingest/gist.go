package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-github/v63/github"

	"github.com/reposcribe/reposcribe/internal/apperrors"
	"github.com/reposcribe/reposcribe/internal/emitter"
)

// IngestGist renders a GitHub gist as a synthetic single-level
// artifact: no clone, content fetched directly via the GitHub API
// (SPEC_FULL.md §12, matching `core/src/parser.rs`'s gist branch in
// the implementation this project started from).
func (ing *Ingester) IngestGist(ctx context.Context, gistID string, sink emitter.Sink) (emitter.Artifact, error) {
	if ing.GitHub == nil {
		err := apperrors.New(apperrors.KindInvalidRequest, "gist ingestion requires a configured GitHub client")
		sink.OnError(err)
		return emitter.Artifact{}, err
	}

	gist, _, err := ing.GitHub.Gists.Get(ctx, gistID)
	if err != nil {
		wrapped := apperrors.Wrap(apperrors.KindUpstreamFailure, err, "fetch gist %s", gistID)
		sink.OnError(wrapped)
		return emitter.Artifact{}, wrapped
	}

	names := make([]string, 0, len(gist.Files))
	for name := range gist.Files {
		names = append(names, string(name))
	}
	sort.Strings(names)

	sink.OnStart(len(names))

	// Gist files all sit at the root, so the emitter's tree preamble
	// reduces to one unindented line per file.
	preamble := fmt.Sprintf("# File Structure\n\nTotal files: %d\n\n", len(names))
	for _, name := range names {
		preamble += name + "\n"
	}
	preamble += "\n"
	if _, err := sink.Write([]byte(preamble)); err != nil {
		sink.OnError(err)
		return emitter.Artifact{}, err
	}

	var body string
	var totalSize int64
	for _, name := range names {
		file := gist.Files[github.GistFilename(name)]
		content := file.GetContent()
		size := int64(len(content))

		block := fmt.Sprintf("=== %s ===\n%s\n\n", name, content)
		body += block
		totalSize += size

		if _, err := sink.Write([]byte(block)); err != nil {
			sink.OnError(err)
			return emitter.Artifact{}, err
		}
		sink.OnFile(name, size, false)
	}

	full := preamble + body
	words := float64(len(strings.Fields(full)))
	lines := float64(strings.Count(full, "\n"))
	art := emitter.Artifact{
		Content:       []byte(full),
		FileCount:     len(names),
		TotalSize:     totalSize,
		TokenEstimate: int((float64(len(full))/4.0 + words*1.3 + lines*0.75) / 3.0),
	}
	sink.OnComplete(art)
	return art, nil
}
