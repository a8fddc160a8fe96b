// Package emitter implements spec.md §4.5: it consumes a FileRecord
// sequence and a working copy, and writes the linearized text artifact
// to a caller-supplied Sink.
package emitter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/reposcribe/reposcribe/internal/apperrors"
	"github.com/reposcribe/reposcribe/internal/walker"
)

// Artifact is the Emitter's output summary (spec.md §3's Artifact
// entity): the emitted bytes plus the aggregate stats stored alongside
// them in the artifact cache.
type Artifact struct {
	Content       []byte
	FileCount     int
	TotalSize     int64
	TokenEstimate int
}

// tokensPerLine approximates the per-line header/delimiter overhead in
// the blended line-based token heuristic (SPEC_FULL.md §12).
const tokensPerLine = 0.75

// Emit walks records in order, reading file bodies from repoRoot,
// applies the per-file rules of spec.md §4.5, and writes the resulting
// artifact to sink. It returns the Artifact summary built from what
// was actually written (post-skip, post-compression).
func Emit(repoRoot string, records []walker.FileRecord, maxFileSize int64, sink Sink) (Artifact, error) {
	sink.OnStart(len(records))

	included := make([]walker.FileRecord, 0, len(records))
	for _, rec := range records {
		if rec.Size <= maxFileSize {
			included = append(included, rec)
		}
	}

	var body strings.Builder
	var fileCount int
	var totalSize int64

	// The preamble's file count must equal the number of "=== path ==="
	// headers written below (spec.md §8), so it is built from the same
	// size-filtered set the body loop writes, not the raw records.
	treePreamble := buildTree(included)
	if _, err := sink.Write([]byte(treePreamble)); err != nil {
		sink.OnError(err)
		return Artifact{}, apperrors.Wrap(apperrors.KindInternal, err, "write tree preamble")
	}
	body.WriteString(treePreamble)

	for _, rec := range included {
		content, err := fileBody(repoRoot, rec)
		if err != nil {
			sink.OnError(err)
			return Artifact{}, apperrors.Wrap(apperrors.KindInternal, err, "read %s", rec.Path)
		}

		block := fmt.Sprintf("=== %s ===\n%s\n\n", rec.Path, content)
		if _, err := sink.Write([]byte(block)); err != nil {
			sink.OnError(err)
			return Artifact{}, apperrors.Wrap(apperrors.KindInternal, err, "write %s", rec.Path)
		}
		body.WriteString(block)

		fileCount++
		totalSize += rec.Size
		sink.OnFile(rec.Path, rec.Size, rec.Binary)
	}

	artifact := Artifact{
		Content:       []byte(body.String()),
		FileCount:     fileCount,
		TotalSize:     totalSize,
		TokenEstimate: estimateTokens(body.String()),
	}
	sink.OnComplete(artifact)
	return artifact, nil
}

// fileBody produces the content block for one record: the binary
// placeholder, license-compressed text, or the lossily-decoded file
// content, in that precedence (spec.md §4.5 steps 2-4).
func fileBody(repoRoot string, rec walker.FileRecord) (string, error) {
	if rec.Binary {
		return "[binary file]", nil
	}

	raw, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(rec.Path)))
	if err != nil {
		return "[error reading file]", nil
	}

	text := decodeLossyUTF8(raw)

	if isLicensePath(rec.Path) {
		if id, ok := compressLicense(text); ok {
			return id, nil
		}
	}

	return text, nil
}

// decodeLossyUTF8 returns s decoded as UTF-8, substituting the
// standard replacement character for any invalid byte sequence (spec.md
// §4.5 step 3).
func decodeLossyUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// buildTree renders the "# File Structure" preamble: total file count
// followed by an indented directory tree (spec.md §4.5).
func buildTree(records []walker.FileRecord) string {
	var sb strings.Builder
	sb.WriteString("# File Structure\n\n")
	fmt.Fprintf(&sb, "Total files: %d\n\n", len(records))

	type node struct {
		dirs  map[string]*node
		files []string
	}
	root := &node{dirs: map[string]*node{}}

	for _, rec := range records {
		parts := strings.Split(rec.Path, "/")
		cur := root
		for _, d := range parts[:len(parts)-1] {
			next, ok := cur.dirs[d]
			if !ok {
				next = &node{dirs: map[string]*node{}}
				cur.dirs[d] = next
			}
			cur = next
		}
		cur.files = append(cur.files, parts[len(parts)-1])
	}

	var render func(n *node, depth int)
	render = func(n *node, depth int) {
		dirNames := make([]string, 0, len(n.dirs))
		for d := range n.dirs {
			dirNames = append(dirNames, d)
		}
		sort.Strings(dirNames)
		for _, d := range dirNames {
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(d)
			sb.WriteString("/\n")
			render(n.dirs[d], depth+1)
		}

		files := append([]string{}, n.files...)
		sort.Strings(files)
		for _, f := range files {
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(f)
			sb.WriteString("\n")
		}
	}
	render(root, 0)
	sb.WriteString("\n")
	return sb.String()
}

// estimateTokens blends character-, word-, and line-based heuristics,
// averaged together (spec.md §9 open question, reproduced literally
// per SPEC_FULL.md §12).
func estimateTokens(content string) int {
	charEstimate := float64(len(content)) / 4.0
	wordEstimate := float64(len(strings.Fields(content))) * 1.3
	lineEstimate := float64(strings.Count(content, "\n")) * tokensPerLine
	return int((charEstimate + wordEstimate + lineEstimate) / 3.0)
}
