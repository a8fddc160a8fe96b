// Package wsapi implements the WebSocket streaming path named in
// spec.md §9's "callback-based streaming" design note: a Sink that
// forwards the Emitter's start/per-file/complete/error events as JSON
// frames over a gorilla/websocket connection, instead of the HTTP
// path's trivial byte-collecting sink.
package wsapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/reposcribe/reposcribe/internal/apperrors"
	"github.com/reposcribe/reposcribe/internal/emitter"
	"github.com/reposcribe/reposcribe/internal/filterpolicy"
	"github.com/reposcribe/reposcribe/internal/ingest"
	"github.com/reposcribe/reposcribe/internal/sourceref"
)

// writeTimeout bounds a single frame write so one stalled client
// cannot block the Emitter goroutine indefinitely.
const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// event is the JSON frame shape sent for every Sink callback.
type event struct {
	Type string `json:"type"` // "start", "file", "complete", "error"

	FileCount int `json:"file_count,omitempty"`

	Path   string `json:"path,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Binary bool   `json:"binary,omitempty"`

	Content       string `json:"content,omitempty"`
	TotalSize     int64  `json:"total_size,omitempty"`
	TokenEstimate int    `json:"token_estimate,omitempty"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// conn wraps a websocket.Conn with a write mutex: gorilla/websocket
// forbids concurrent writes from multiple goroutines, and the
// Emitter calls OnFile repeatedly from a single goroutine but OnError
// may race a deferred cleanup close.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(e event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.ws.WriteJSON(e)
}

// sink adapts a conn into an emitter.Sink, streaming events instead
// of collecting them (spec.md §9).
type sink struct {
	c *conn
}

func (s *sink) Write([]byte) (int, error) { return 0, nil } // bytes travel only in the complete event's content

func (s *sink) OnStart(fileCount int) {
	s.c.send(event{Type: "start", FileCount: fileCount})
}

func (s *sink) OnFile(path string, size int64, binary bool) {
	s.c.send(event{Type: "file", Path: path, Size: size, Binary: binary})
}

func (s *sink) OnComplete(a emitter.Artifact) {
	s.c.send(event{
		Type: "complete", Content: string(a.Content), FileCount: a.FileCount,
		TotalSize: a.TotalSize, TokenEstimate: a.TokenEstimate,
	})
}

func (s *sink) OnError(err error) {
	kind := apperrors.KindOf(err)
	msg := err.Error()
	if e, ok := err.(*apperrors.Error); ok {
		msg = e.Msg
	}
	s.c.send(event{Type: "error", Error: msg, Code: string(kind)})
}

// requestFrame is the client's initial JSON message, mirroring the
// POST /api/ingest body (spec.md §6).
type requestFrame struct {
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

// Handler upgrades connections and drives one Ingest call per
// connection, streaming its Sink events back as JSON frames.
type Handler struct {
	Ingest *ingest.Ingester
}

// New builds a WebSocket handler wrapping ing.
func New(ing *ingest.Ingester) http.Handler {
	return &Handler{Ingest: ing}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}

	var req requestFrame
	if err := ws.ReadJSON(&req); err != nil {
		c.send(event{Type: "error", Error: "invalid request frame", Code: string(apperrors.KindInvalidRequest)})
		return
	}

	if req.Source == "" {
		c.send(event{Type: "error", Error: "source is required", Code: string(apperrors.KindInvalidRequest)})
		return
	}
	ref, err := sourceref.Parse(req.Source)
	if err != nil {
		(&sink{c: c}).OnError(err)
		return
	}

	if ref.Kind == sourceref.KindGist {
		_, _ = h.Ingest.IngestGist(r.Context(), ref.GistID, &sink{c: c})
		return
	}

	preset, ok := filterpolicy.ParsePreset(req.Preset)
	if req.Raw {
		preset = filterpolicy.PresetRaw
	} else if !ok {
		c.send(event{Type: "error", Error: "unknown preset", Code: string(apperrors.KindInvalidRequest)})
		return
	}

	branch := req.Branch
	if branch == "" {
		branch = ref.Branch
	}
	path := req.Path
	if path == "" {
		path = ref.Path
	}

	s := &sink{c: c}
	_, err = h.Ingest.IngestWithSink(r.Context(), ingest.Request{
		URL: ref.URL, Branch: branch, Preset: preset,
		Includes: req.Include, Excludes: req.Exclude, MaxFileSize: req.MaxSize,
		Untracked: req.Untracked, PathPrefix: path,
		NoCache: req.NoCache, ForceRefresh: req.ForceRefresh,
	}, s)
	if err != nil {
		// IngestWithSink already called sink.OnError before returning.
		return
	}
}
