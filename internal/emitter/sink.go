package emitter

// Sink receives emission events as the Emitter walks a FileRecord
// sequence (spec.md §9's "callback-based streaming" design note). The
// HTTP path wires a Sink that only writes bytes; the WebSocket path
// wires one that also forwards start/per-file/complete/error events to
// a client connection.
type Sink interface {
	// Write appends raw emitted bytes (tree preamble and file blocks).
	Write(p []byte) (int, error)

	// OnStart is called once, before any file is processed, with the
	// total candidate count.
	OnStart(fileCount int)

	// OnFile is called once per file actually processed (not skipped
	// by the size cap), after its block has been written.
	OnFile(path string, size int64, binary bool)

	// OnComplete is called once, after every file has been processed,
	// with the final Artifact summary.
	OnComplete(a Artifact)

	// OnError is called at most once, in place of OnComplete, if the
	// emission aborts early.
	OnError(err error)
}

// byteSink is the trivial in-process Sink used by the HTTP path: it
// only accumulates bytes and ignores every event (spec.md §9).
type byteSink struct {
	buf []byte
}

// NewByteSink returns a Sink that only collects written bytes,
// discarding start/per-file/complete/error events.
func NewByteSink() Sink {
	return &byteSink{}
}

func (b *byteSink) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *byteSink) OnStart(int)                {}
func (b *byteSink) OnFile(string, int64, bool) {}
func (b *byteSink) OnComplete(Artifact)        {}
func (b *byteSink) OnError(error)              {}

// Bytes returns everything written so far.
func (b *byteSink) Bytes() []byte { return b.buf }
