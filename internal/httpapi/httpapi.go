// Package httpapi is the thin HTTP driver named in SPEC_FULL.md §13:
// it translates the route table of spec.md §6 into calls against the
// Ingester and diff Engine, and maps core errors to HTTP statuses via
// apperrors.Kind.HTTPStatus. It contains no business logic of its own.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reposcribe/reposcribe/internal/apperrors"
	"github.com/reposcribe/reposcribe/internal/diffengine"
	"github.com/reposcribe/reposcribe/internal/emitter"
	"github.com/reposcribe/reposcribe/internal/filterpolicy"
	"github.com/reposcribe/reposcribe/internal/ingest"
	"github.com/reposcribe/reposcribe/internal/sourceref"
)

// Handler wires the Ingester and diff Engine into a route table.
type Handler struct {
	Ingest *ingest.Ingester
	Diff   *diffengine.Engine
}

// New builds the HTTP route table of spec.md §6.
func New(ingester *ingest.Ingester, diff *diffengine.Engine) http.Handler {
	h := &Handler{Ingest: ingester, Diff: diff}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{owner}/{repo}", h.handleRepo)
	mux.HandleFunc("GET /{owner}/{repo}/tree/{ref...}", h.handleTreeOrBlob)
	mux.HandleFunc("GET /{owner}/{repo}/blob/{ref...}", h.handleTreeOrBlob)
	mux.HandleFunc("GET /{owner}/{repo}/commit/{sha}", h.handleCommit)
	mux.HandleFunc("GET /{owner}/{repo}/compare/{spec...}", h.handleCompare)
	mux.HandleFunc("GET /{owner}/{repo}/pull/{number}", h.handlePull)
	mux.HandleFunc("POST /api/ingest", h.handleIngestAPI)

	return mux
}

func (h *Handler) handleRepo(w http.ResponseWriter, r *http.Request) {
	url := forgeURL(r, r.PathValue("owner"), r.PathValue("repo"), "")
	ref, err := sourceref.Parse(url)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.ingestRef(w, r, ref)
}

func (h *Handler) handleTreeOrBlob(w http.ResponseWriter, r *http.Request) {
	shape := strings.TrimPrefix(r.URL.Path, "/")
	// Recover whether this was a /tree/ or /blob/ route: both normalize
	// to the same tree ingestion (spec.md §6).
	kind := "tree"
	if strings.Contains(shape, "/blob/") {
		kind = "blob"
	}
	url := forgeURL(r, r.PathValue("owner"), r.PathValue("repo"), kind+"/"+r.PathValue("ref"))
	ref, err := sourceref.Parse(url)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	h.ingestRef(w, r, ref)
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	owner, repo, sha := r.PathValue("owner"), r.PathValue("repo"), r.PathValue("sha")
	url := forgeURL(r, owner, repo, "")
	ref, err := sourceref.Parse(url)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ctxLines := intQuery(r, "ctx", 3)
	result, err := h.Diff.Commit(r.Context(), ref.URL, owner, repo, sha, ctxLines)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writePlainText(w, result.Render())
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	url := forgeURL(r, owner, repo, "")
	ref, err := sourceref.Parse(url)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	base, head, err := splitCompareSpec(r.PathValue("spec"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ctxLines := intQuery(r, "ctx", 3)
	result, err := h.Diff.Compare(r.Context(), ref.URL, owner, repo, base, head, ctxLines)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writePlainText(w, result.Render())
}

func (h *Handler) handlePull(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	url := forgeURL(r, owner, repo, "")
	ref, err := sourceref.Parse(url)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		writeError(r.Context(), w, apperrors.New(apperrors.KindInvalidRequest, "invalid pull request number %q", r.PathValue("number")))
		return
	}
	ctxLines := intQuery(r, "ctx", 3)
	result, err := h.Diff.PullRequest(r.Context(), ref.Host, ref.URL, owner, repo, number, ctxLines)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writePlainText(w, result.Render())
}

// ingestAPIRequest is the JSON body accepted by POST /api/ingest
// (spec.md §6's "full parameter set").
type ingestAPIRequest struct {
	Source       string   `json:"source"`
	Branch       string   `json:"branch"`
	Preset       string   `json:"preset"`
	Include      []string `json:"include"`
	Exclude      []string `json:"exclude"`
	MaxSize      int64    `json:"max_size"`
	Path         string   `json:"path"`
	Untracked    bool     `json:"untracked"`
	Raw          bool     `json:"raw"`
	NoCache      bool     `json:"no_cache"`
	ForceRefresh bool     `json:"force_refresh"`
}

type ingestAPIResponse struct {
	Content       string `json:"content"`
	FileCount     int    `json:"file_count"`
	TotalSize     int64  `json:"total_size"`
	TokenEstimate int    `json:"token_estimate"`
}

func (h *Handler) handleIngestAPI(w http.ResponseWriter, r *http.Request) {
	var body ingestAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(r.Context(), w, apperrors.Wrap(apperrors.KindInvalidRequest, err, "invalid JSON body"))
		return
	}
	if body.Source == "" {
		writeError(r.Context(), w, apperrors.New(apperrors.KindInvalidRequest, "source is required"))
		return
	}
	ref, err := sourceref.Parse(body.Source)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if ref.Kind == sourceref.KindGist {
		art, err := h.Ingest.IngestGist(r.Context(), ref.GistID, emitter.NewByteSink())
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, ingestAPIResponse{
			Content: string(art.Content), FileCount: art.FileCount,
			TotalSize: art.TotalSize, TokenEstimate: art.TokenEstimate,
		})
		return
	}

	preset, ok := filterpolicy.ParsePreset(body.Preset)
	if body.Raw {
		preset = filterpolicy.PresetRaw
	} else if !ok {
		writeError(r.Context(), w, apperrors.New(apperrors.KindInvalidRequest, "unknown preset %q", body.Preset))
		return
	}

	branch := body.Branch
	if branch == "" {
		branch = ref.Branch
	}
	path := body.Path
	if path == "" {
		path = ref.Path
	}

	art, err := h.Ingest.Ingest(r.Context(), ingest.Request{
		URL: ref.URL, Branch: branch, Preset: preset,
		Includes: body.Include, Excludes: body.Exclude, MaxFileSize: body.MaxSize,
		Untracked: body.Untracked, PathPrefix: path,
		NoCache: body.NoCache, ForceRefresh: body.ForceRefresh,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestAPIResponse{
		Content: string(art.Content), FileCount: art.FileCount,
		TotalSize: art.TotalSize, TokenEstimate: art.TokenEstimate,
	})
}

// ingestRef resolves query-parameter overrides against a parsed
// SourceRef and drives the Ingester (the GET routes' common path).
func (h *Handler) ingestRef(w http.ResponseWriter, r *http.Request, ref *sourceref.SourceRef) {
	q := r.URL.Query()

	presetStr := q.Get("preset")
	if q.Get("raw") == "true" || q.Get("raw") == "1" {
		presetStr = string(filterpolicy.PresetRaw)
	}
	preset, ok := filterpolicy.ParsePreset(presetStr)
	if !ok {
		writeError(r.Context(), w, apperrors.New(apperrors.KindInvalidRequest, "unknown preset %q", presetStr))
		return
	}

	branch := ref.Branch
	if b := q.Get("branch"); b != "" {
		branch = b
	}
	path := ref.Path
	if p := q.Get("path"); p != "" {
		path = p
	}
	var maxSize int64
	if m := q.Get("max_size"); m != "" {
		if v, err := strconv.ParseInt(m, 10, 64); err == nil {
			maxSize = v
		}
	}

	art, err := h.Ingest.Ingest(r.Context(), ingest.Request{
		URL: ref.URL, Branch: branch, Preset: preset,
		Includes: splitCSV(q.Get("include")), Excludes: splitCSV(q.Get("exclude")),
		MaxFileSize: maxSize, PathPrefix: path,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writePlainText(w, string(art.Content))
}

func forgeURL(r *http.Request, owner, repo, tail string) string {
	host := r.URL.Query().Get("host")
	if host == "" {
		host = "github.com"
	}
	url := fmt.Sprintf("https://%s/%s/%s", host, owner, repo)
	if tail != "" {
		url += "/" + tail
	}
	return url
}

func splitCompareSpec(spec string) (base, head string, err error) {
	for _, sep := range []string{"...", ".."} {
		if idx := strings.Index(spec, sep); idx >= 0 {
			return spec[:idx], spec[idx+len(sep):], nil
		}
	}
	return "", "", apperrors.New(apperrors.KindInvalidRequest, "malformed compare spec %q", spec)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writePlainText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps a core error to an HTTP status per spec.md §7:
// internal detail never crosses the boundary, only Msg and Kind do.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := kind.HTTPStatus()

	msg := "internal error"
	var e *apperrors.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}

	zerolog.Ctx(ctx).Warn().Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, errorResponse{Error: msg, Code: string(kind)})
}
