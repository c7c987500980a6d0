// Package store provides input and output factories that keep resources as
// rows of the database behind the resolved connection.
//
// A resource is a JSON object. Tables mapped by an orm.xml entity store one
// column per attribute; any other table uses the document mapping (id,
// payload, version). Values pass through a converter.Service on their way in
// and out.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/converter"
	"github.com/redbco/redb-persistence/pkg/logger"
	"github.com/redbco/redb-persistence/pkg/persistence"
	"github.com/redbco/redb-persistence/pkg/uri"
)

// Response metadata keys.
const (
	MetadataTable   = "table"
	MetadataVersion = "version"
)

var (
	// ErrNoID is returned when reading, deleting or checking a resource whose
	// identifier has no id.
	ErrNoID = errors.New("resource identifier has no id")

	// ErrNotDocument is returned when the written bytes are not a JSON object.
	ErrNotDocument = errors.New("resource is not a JSON object")
)

// Factory implements persistence.InputFactory, persistence.OutputFactory and
// persistence.ExistenceChecker.
type Factory struct {
	mappings   *Mappings
	converters *converter.Service
	logger     *logger.Logger

	// ensured records tables already created, keyed by connection and table.
	ensured sync.Map
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the factory's logger.
func WithLogger(l *logger.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a factory. Nil mappings use the document mapping for
// every table; a nil converter service gets the temporal and uuid converters.
func NewFactory(mappings *Mappings, converters *converter.Service, opts ...Option) *Factory {
	if mappings == nil {
		mappings, _ = NewMappings(nil)
	}
	if converters == nil {
		converters = converter.NewService(converter.NewTemporalConverter(), converter.NewUUIDConverter())
	}
	f := &Factory{mappings: mappings, converters: converters}
	for _, o := range opts {
		o(f)
	}
	if f.logger == nil {
		f.logger = logger.NewNop()
	}
	return f
}

// Mappings returns the table mappings in use.
func (f *Factory) Mappings() *Mappings { return f.mappings }

// CreateOutput implements persistence.OutputFactory. The document is buffered
// and stored on Commit.
func (f *Factory) CreateOutput(ctx context.Context, u uri.URI, opts persistence.Options, conn persistence.PendingConnection) (persistence.OutputSink, error) {
	return &sink{factory: f, uri: u, conn: conn}, nil
}

// CreateInput implements persistence.InputFactory.
func (f *Factory) CreateInput(ctx context.Context, u uri.URI, opts persistence.Options, conn persistence.PendingConnection) (io.ReadCloser, persistence.Response, error) {
	c, t, id, err := f.prepare(ctx, u, conn)
	if err != nil {
		return nil, persistence.Response{}, err
	}

	row, err := c.DataOperations().Get(ctx, t.Definition, id)
	if err != nil {
		return nil, persistence.Response{}, err
	}
	doc, err := f.documentFromRow(t, row)
	if err != nil {
		return nil, persistence.Response{}, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, persistence.Response{}, err
	}

	resp := persistence.Response{Metadata: map[string]string{MetadataTable: t.Definition.Name}}
	if t.Version != nil {
		if v, ok := row[t.Version.Column]; ok && v != nil {
			resp.Metadata[MetadataVersion] = fmt.Sprint(doc[t.Version.Field])
		}
	}
	return io.NopCloser(bytes.NewReader(body)), resp, nil
}

// CreateDeleteRequest implements persistence.InputFactory.
func (f *Factory) CreateDeleteRequest(ctx context.Context, u uri.URI, opts persistence.Options, conn persistence.PendingConnection) (persistence.Response, error) {
	c, t, id, err := f.prepare(ctx, u, conn)
	if err != nil {
		return persistence.Response{}, err
	}

	n, err := c.DataOperations().Delete(ctx, t.Definition, map[string]interface{}{t.ID.Column: id})
	if err != nil {
		return persistence.Response{}, err
	}
	if n == 0 {
		return persistence.Response{}, adapter.NewRecordNotFoundError(c.Type(), t.Definition.Name, id)
	}
	f.logger.Debugf("deleted %s from %s", u.ID(), t.Definition.Name)
	return persistence.Response{Metadata: map[string]string{MetadataTable: t.Definition.Name}}, nil
}

// Exists implements persistence.ExistenceChecker.
func (f *Factory) Exists(ctx context.Context, u uri.URI, opts persistence.Options, conn persistence.PendingConnection) (bool, error) {
	c, t, id, err := f.prepare(ctx, u, conn)
	if err != nil {
		return false, err
	}
	return c.DataOperations().Exists(ctx, t.Definition, id)
}

// prepare waits for the connection and resolves the table and key of u.
func (f *Factory) prepare(ctx context.Context, u uri.URI, pending persistence.PendingConnection) (adapter.Connection, *Table, interface{}, error) {
	if !u.HasID() {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrNoID, u)
	}
	c, err := pending.Get(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	t := f.mappings.For(u.Table())
	if err := f.ensureTable(ctx, c, t); err != nil {
		return nil, nil, nil, err
	}
	id, err := f.converters.ToStore(t.ID.DataType, u.ID())
	if err != nil {
		return nil, nil, nil, err
	}
	return c, t, id, nil
}

func (f *Factory) ensureTable(ctx context.Context, c adapter.Connection, t *Table) error {
	key := c.ID() + "/" + t.Definition.Name
	if _, ok := f.ensured.Load(key); ok {
		return nil
	}
	if err := c.SchemaOperations().EnsureTable(ctx, t.Definition); err != nil && !adapter.IsUnsupported(err) {
		return err
	}
	f.ensured.Store(key, struct{}{})
	return nil
}

// rowFromDocument converts a document into a row without its key. The second
// result is the version the document claims, nil if it carries none.
func (f *Factory) rowFromDocument(t *Table, doc map[string]interface{}) (adapter.Record, interface{}, error) {
	row := make(adapter.Record)

	var expected interface{}
	if t.Version != nil {
		if v, ok := doc[t.Version.Field]; ok && v != nil {
			sv, err := f.converters.ToStore(t.Version.DataType, v)
			if err != nil {
				return nil, nil, err
			}
			expected = sv
		}
	}

	if t.Document {
		payload := make(map[string]interface{}, len(doc))
		for k, v := range doc {
			if k == t.ID.Field || (t.Version != nil && k == t.Version.Field) {
				continue
			}
			payload[k] = v
		}
		text, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, err
		}
		row[DocumentPayloadColumn] = string(text)
		return row, expected, nil
	}

	for _, a := range t.Fields {
		v, ok := doc[a.Field]
		if !ok {
			continue
		}
		sv, err := f.converters.ToStore(a.DataType, v)
		if err != nil {
			return nil, nil, err
		}
		row[a.Column] = sv
	}
	return row, expected, nil
}

func (f *Factory) documentFromRow(t *Table, row adapter.Record) (map[string]interface{}, error) {
	doc := make(map[string]interface{})

	if t.Document {
		if raw, ok := row[DocumentPayloadColumn]; ok && raw != nil {
			dt := converter.DataType{Name: DocumentPayloadColumn, Kind: converter.KindJSON}
			text, err := f.converters.FromStore(dt, raw)
			if err != nil {
				return nil, err
			}
			var payload []byte
			switch x := text.(type) {
			case json.RawMessage:
				payload = x
			case []byte:
				payload = x
			case string:
				payload = []byte(x)
			default:
				return nil, &converter.ConversionError{Type: dt, Value: text, Cause: fmt.Errorf("want JSON text, got %T", text)}
			}
			dec := json.NewDecoder(bytes.NewReader(payload))
			dec.UseNumber()
			if err := dec.Decode(&doc); err != nil {
				return nil, fmt.Errorf("%w: stored payload: %v", ErrNotDocument, err)
			}
		}
	}

	attrs := append([]Attribute{t.ID}, t.Fields...)
	if t.Version != nil {
		attrs = append(attrs, *t.Version)
	}
	for _, a := range attrs {
		v, ok := row[a.Column]
		if !ok {
			continue
		}
		dv, err := f.converters.FromStore(a.DataType, v)
		if err != nil {
			return nil, err
		}
		doc[a.Field] = dv
	}
	return doc, nil
}

func decodeDocument(body []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocument, err)
	}
	if doc == nil {
		return nil, ErrNotDocument
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrNotDocument)
	}
	return doc, nil
}
