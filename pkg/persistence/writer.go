package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redbco/redb-persistence/pkg/uri"
)

// ErrWriterClosed is returned when writing to a committed or aborted writer.
var ErrWriterClosed = errors.New("resource writer closed")

// ResourceWriter streams a resource to an OutputSink. Close commits it and
// moves the store-assigned id, if any, into URI.
type ResourceWriter struct {
	ctx     context.Context
	handler *Handler
	sink    OutputSink

	mu       sync.Mutex
	uri      uri.URI
	response Response
	closed   bool
}

func newResourceWriter(ctx context.Context, h *Handler, u uri.URI, sink OutputSink) *ResourceWriter {
	return &ResourceWriter{ctx: ctx, handler: h, sink: sink, uri: u}
}

// Write implements io.Writer.
func (w *ResourceWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrWriterClosed
	}
	return w.sink.Write(p)
}

// Close commits the resource. The writer's URI carries the assigned id afterwards.
func (w *ResourceWriter) Close() (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	defer w.handler.observe(OpCommit, time.Now(), &err)
	resp, err := w.sink.Commit(w.ctx)
	if err != nil {
		return err
	}
	w.response = resp
	w.uri = resp.Apply(w.uri)
	return nil
}

// Abort discards what was written.
func (w *ResourceWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.sink.Abort()
}

// URI returns the identifier, updated with the assigned id once committed.
func (w *ResourceWriter) URI() uri.URI {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.uri
}

// Response returns the sink's response after a successful Close.
func (w *ResourceWriter) Response() Response {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.response
}
