// Package persistence routes jdbc-style resource identifiers
// (scheme://connectionName/database/table/[id]) to database-backed streams.
//
// The Handler resolves the named connection, opens it on an async.Executor and
// hands the pending connection to injected input and output factories, which
// do the actual reading, writing and deleting.
package persistence

import (
	"context"
	"errors"
	"io"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/async"
	"github.com/redbco/redb-persistence/pkg/uri"
)

// DefaultScheme is the scheme a Handler accepts unless configured otherwise.
const DefaultScheme = "jdbc"

// Option keys understood by connection resolution.
const (
	OptionName         = "name"
	OptionDatabaseName = "databaseName"
	OptionType         = "type"
)

var (
	// ErrUnsupportedURI is returned synchronously for identifiers with a foreign
	// scheme or a path that does not have exactly three segments.
	ErrUnsupportedURI = errors.New("unsupported resource identifier")

	// ErrMissingOption is returned when connection resolution lacks a required option.
	ErrMissingOption = errors.New("missing option")

	// ErrExistsUnsupported is returned by Exists when the input factory cannot
	// check for a resource.
	ErrExistsUnsupported = errors.New("existence check not supported by input factory")
)

// Options are the per-call options. Keys other than name, databaseName and
// type are passed to the connection factory as properties.
type Options map[string]string

// Get returns the value stored under key.
func (o Options) Get(key string) (string, bool) {
	v, ok := o[key]
	return v, ok && v != ""
}

// Properties returns every option except the resolution keys.
func (o Options) Properties() adapter.Properties {
	props := make(adapter.Properties, len(o))
	for k, v := range o {
		switch k {
		case OptionName, OptionDatabaseName, OptionType:
			continue
		}
		props[k] = v
	}
	return props
}

// withDefaults fills name and databaseName from the identifier when the caller
// did not set them.
func (o Options) withDefaults(u uri.URI) Options {
	out := make(Options, len(o)+2)
	for k, v := range o {
		out[k] = v
	}
	if _, ok := out.Get(OptionName); !ok && u.Connection() != "" {
		out[OptionName] = u.Connection()
	}
	if _, ok := out.Get(OptionDatabaseName); !ok && u.Database() != "" {
		out[OptionDatabaseName] = u.Database()
	}
	return out
}

// PendingConnection is a connection that is being opened off the calling goroutine.
type PendingConnection = *async.Future[adapter.Connection]

// Response is what a factory reports back about a completed operation.
type Response struct {
	// AssignedID is the id the store gave a record written without one.
	AssignedID string
	Metadata   map[string]string
}

// Apply returns u carrying the assigned id. Identifiers that already have an
// id, or responses without one, leave u unchanged.
func (r Response) Apply(u uri.URI) uri.URI {
	if r.AssignedID == "" || u.HasID() {
		return u
	}
	return u.WithID(r.AssignedID)
}

// OutputSink receives the bytes of a resource. Commit stores them and reports
// the outcome; Abort discards them.
type OutputSink interface {
	io.Writer
	Commit(ctx context.Context) (Response, error)
	Abort() error
}

// InputFactory opens resources for reading and deletes them.
type InputFactory interface {
	CreateInput(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (io.ReadCloser, Response, error)
	CreateDeleteRequest(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (Response, error)
}

// OutputFactory opens resources for writing.
type OutputFactory interface {
	CreateOutput(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (OutputSink, error)
}

// ExistenceChecker is implemented by input factories that can tell whether a
// resource is stored.
type ExistenceChecker interface {
	Exists(ctx context.Context, u uri.URI, opts Options, conn PendingConnection) (bool, error)
}
