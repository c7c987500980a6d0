package persistence

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/async"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
	"github.com/redbco/redb-persistence/pkg/logger"
	"github.com/redbco/redb-persistence/pkg/uri"
)

// Operation names reported to the metrics recorder.
const (
	OpOpenInput  = "open_input"
	OpOpenOutput = "open_output"
	OpCommit     = "commit"
	OpDelete     = "delete"
	OpExists     = "exists"
)

// MetricsRecorder receives the outcome of every handler operation.
type MetricsRecorder interface {
	ObserveOperation(op string, d time.Duration, err error)
}

// Handler dispatches resource identifiers to the input and output factories.
type Handler struct {
	scheme      string
	connections *adapter.ConnectionRegistry
	input       InputFactory
	output      OutputFactory
	executor    *async.Executor
	ownExecutor bool
	logger      *logger.Logger
	metrics     MetricsRecorder
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithScheme sets the scheme the handler accepts.
func WithScheme(scheme string) HandlerOption {
	return func(h *Handler) { h.scheme = scheme }
}

// WithLogger sets the handler's logger.
func WithLogger(l *logger.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics sets the recorder that observes every operation.
func WithMetrics(m MetricsRecorder) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a handler. A nil executor is replaced by one with default
// options that Close stops.
func NewHandler(connections *adapter.ConnectionRegistry, input InputFactory, output OutputFactory, executor *async.Executor, opts ...HandlerOption) *Handler {
	if connections == nil {
		connections = adapter.NewConnectionRegistry(nil)
	}
	h := &Handler{
		scheme:      DefaultScheme,
		connections: connections,
		input:       input,
		output:      output,
		executor:    executor,
	}
	if h.executor == nil {
		h.executor = async.NewExecutor(async.Options{})
		h.ownExecutor = true
	}
	for _, o := range opts {
		o(h)
	}
	if h.logger == nil {
		h.logger = logger.NewNop()
	}
	return h
}

// Scheme returns the accepted scheme.
func (h *Handler) Scheme() string { return h.scheme }

// CanHandle reports whether u uses the handler's scheme.
func (h *Handler) CanHandle(u uri.URI) bool {
	return strings.EqualFold(u.Scheme(), h.scheme)
}

func (h *Handler) check(u uri.URI) error {
	if !h.CanHandle(u) {
		return fmt.Errorf("%w: scheme %q, want %q", ErrUnsupportedURI, u.Scheme(), h.scheme)
	}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedURI, err)
	}
	return nil
}

// ResolveConnection starts opening the connection described by opts. Unknown
// connection names, missing options and connect failures are reported by the
// returned future.
func (h *Handler) ResolveConnection(ctx context.Context, opts Options) PendingConnection {
	name, ok := opts.Get(OptionName)
	if !ok {
		return async.Failed[adapter.Connection](fmt.Errorf("%w: %s", ErrMissingOption, OptionName))
	}
	factory, err := h.connections.Get(name)
	if err != nil {
		return async.Failed[adapter.Connection](err)
	}

	dialect, ok := opts.Get(OptionType)
	if !ok {
		if p, isProvider := factory.(adapter.DialectProvider); isProvider && p.Dialect() != "" {
			dialect = p.Dialect()
		} else {
			return async.Failed[adapter.Connection](fmt.Errorf("%w: %s for connection %s", ErrMissingOption, OptionType, name))
		}
	}
	database, ok := opts.Get(OptionDatabaseName)
	if !ok {
		return async.Failed[adapter.Connection](fmt.Errorf("%w: %s", ErrMissingOption, OptionDatabaseName))
	}

	url := dbcapabilities.BuildConnectionURL(dialect, database)
	props := opts.Properties()

	h.logger.Debugf("resolving connection %s as %s", name, url)
	return async.Submit(ctx, h.executor, func(ctx context.Context) (adapter.Connection, error) {
		return factory.Connect(ctx, url, props)
	})
}

// OpenOutput returns a writer for u. The resource is stored when the writer is closed.
func (h *Handler) OpenOutput(ctx context.Context, u uri.URI, opts Options) (w *ResourceWriter, err error) {
	defer h.observe(OpOpenOutput, time.Now(), &err)
	if err := h.check(u); err != nil {
		return nil, err
	}
	if h.output == nil {
		return nil, fmt.Errorf("%w: no output factory", adapter.ErrOperationNotSupported)
	}

	opts = opts.withDefaults(u)
	sink, err := h.output.CreateOutput(ctx, u, opts, h.ResolveConnection(ctx, opts))
	if err != nil {
		return nil, err
	}
	return newResourceWriter(ctx, h, u, sink), nil
}

// OpenInput returns a reader for u.
func (h *Handler) OpenInput(ctx context.Context, u uri.URI, opts Options) (r io.ReadCloser, err error) {
	defer h.observe(OpOpenInput, time.Now(), &err)
	if err := h.check(u); err != nil {
		return nil, err
	}
	if h.input == nil {
		return nil, fmt.Errorf("%w: no input factory", adapter.ErrOperationNotSupported)
	}

	opts = opts.withDefaults(u)
	r, _, err = h.input.CreateInput(ctx, u, opts, h.ResolveConnection(ctx, opts))
	return r, err
}

// Delete asks the input factory to delete u.
func (h *Handler) Delete(ctx context.Context, u uri.URI, opts Options) (err error) {
	defer h.observe(OpDelete, time.Now(), &err)
	if err := h.check(u); err != nil {
		return err
	}
	if h.input == nil {
		return fmt.Errorf("%w: no input factory", adapter.ErrOperationNotSupported)
	}

	opts = opts.withDefaults(u)
	_, err = h.input.CreateDeleteRequest(ctx, u, opts, h.ResolveConnection(ctx, opts))
	return err
}

// Exists reports whether u is stored. Identifiers carrying a query are never
// looked up and report false.
func (h *Handler) Exists(ctx context.Context, u uri.URI, opts Options) (found bool, err error) {
	defer h.observe(OpExists, time.Now(), &err)
	if !h.CanHandle(u) {
		return false, h.check(u)
	}
	if u.HasQuery() {
		return false, nil
	}
	if err := h.check(u); err != nil {
		return false, err
	}

	checker, ok := h.input.(ExistenceChecker)
	if !ok {
		return false, ErrExistsUnsupported
	}
	opts = opts.withDefaults(u)
	return checker.Exists(ctx, u, opts, h.ResolveConnection(ctx, opts))
}

// Close stops the executor if the handler created it.
func (h *Handler) Close() error {
	if h.ownExecutor {
		h.executor.Stop()
	}
	return nil
}

func (h *Handler) observe(op string, start time.Time, err *error) {
	if h.metrics != nil {
		h.metrics.ObserveOperation(op, time.Since(start), *err)
	}
	if *err != nil {
		h.logger.Debugf("%s failed: %v", op, *err)
	}
}
