package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/converter"
	"github.com/redbco/redb-persistence/pkg/persistence"
	"github.com/redbco/redb-persistence/pkg/uri"
)

// sink buffers a document until Commit.
type sink struct {
	factory *Factory
	uri     uri.URI
	conn    persistence.PendingConnection
	buf     bytes.Buffer
}

func (s *sink) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *sink) Abort() error {
	s.buf.Reset()
	return nil
}

// Commit stores the buffered document. Identifiers without an id insert a new
// row; identifiers with one update it, or insert it when missing. Versioned
// tables only update the row whose version matches the document (or the
// stored one, when the document carries none) and bump it.
func (s *sink) Commit(ctx context.Context) (persistence.Response, error) {
	f := s.factory

	doc, err := decodeDocument(s.buf.Bytes())
	if err != nil {
		return persistence.Response{}, err
	}
	c, err := s.conn.Get(ctx)
	if err != nil {
		return persistence.Response{}, err
	}

	t := f.mappings.For(s.uri.Table())
	if err := f.ensureTable(ctx, c, t); err != nil {
		return persistence.Response{}, err
	}

	row, expected, err := f.rowFromDocument(t, doc)
	if err != nil {
		return persistence.Response{}, err
	}

	rawID := s.uri.ID()
	if rawID == "" && t.Definition.IDGeneration == adapter.IDAssigned {
		if v, ok := doc[t.ID.Field]; ok && v != nil {
			rawID = fmt.Sprint(v)
		}
	}

	var (
		id      interface{}
		version interface{}
	)
	if rawID == "" {
		id, version, err = s.insert(ctx, c, t, row, nil)
	} else {
		key, convErr := f.converters.ToStore(t.ID.DataType, rawID)
		if convErr != nil {
			return persistence.Response{}, convErr
		}
		id, version, err = s.update(ctx, c, t, row, key, expected)
	}
	if err != nil {
		return persistence.Response{}, err
	}

	resp := persistence.Response{Metadata: map[string]string{MetadataTable: t.Definition.Name}}
	if version != nil {
		resp.Metadata[MetadataVersion] = versionString(version)
	}
	if !s.uri.HasID() {
		resp.AssignedID = fmt.Sprint(id)
	}
	f.logger.Debugf("stored %s/%v", t.Definition.Name, id)
	return resp, nil
}

// insert adds a row. A nil key asks the table's id generation for one.
func (s *sink) insert(ctx context.Context, c adapter.Connection, t *Table, row adapter.Record, key interface{}) (interface{}, interface{}, error) {
	row = row.Clone()
	if key == nil && t.Definition.IDGeneration == adapter.IDAssigned {
		switch t.ID.DataType.Kind {
		case converter.KindString, converter.KindUUID:
			key = uuid.NewString()
		default:
			return nil, nil, fmt.Errorf("%w: table %s needs an id for %s", adapter.ErrInvalidConfiguration, t.Definition.Name, t.ID.DataType)
		}
	}
	if key != nil {
		row[t.ID.Column] = key
	}

	var version interface{}
	if t.Version != nil {
		version = nextVersion(t.Version, nil)
		row[t.Version.Column] = version
	}

	id, err := c.DataOperations().Insert(ctx, t.Definition, row)
	if err != nil {
		return nil, nil, err
	}
	if id == nil {
		id = key
	}
	return id, version, nil
}

func (s *sink) update(ctx context.Context, c adapter.Connection, t *Table, row adapter.Record, key, expected interface{}) (interface{}, interface{}, error) {
	data := c.DataOperations()
	conditions := map[string]interface{}{t.ID.Column: key}

	var version interface{}
	if t.Version != nil {
		if expected == nil {
			current, err := data.Get(ctx, t.Definition, key)
			if adapter.IsNotFound(err) {
				return s.insert(ctx, c, t, row, key)
			}
			if err != nil {
				return nil, nil, err
			}
			expected = current[t.Version.Column]
		}
		if expected != nil {
			conditions[t.Version.Column] = expected
		}
		version = nextVersion(t.Version, expected)
		row = row.Clone()
		row[t.Version.Column] = version
	}

	if len(row) == 0 {
		// Nothing but the key; an update would be a no-op.
		found, err := data.Exists(ctx, t.Definition, key)
		if err != nil {
			return nil, nil, err
		}
		if found {
			return key, nil, nil
		}
		return s.insert(ctx, c, t, row, key)
	}

	n, err := data.Update(ctx, t.Definition, row, conditions)
	if err != nil {
		return nil, nil, err
	}
	if n > 0 {
		return key, version, nil
	}

	found, err := data.Exists(ctx, t.Definition, key)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case found && t.Version != nil:
		return nil, nil, fmt.Errorf("%w: %s/%v expected version %v", adapter.ErrStaleVersion, t.Definition.Name, key, expected)
	case found:
		// Unchanged row on a driver reporting changed rather than matched rows.
		return key, nil, nil
	}
	if t.Version != nil {
		delete(row, t.Version.Column)
	}
	return s.insert(ctx, c, t, row, key)
}

// nextVersion returns the version following current: a counter for numeric
// versions, the current time for temporal ones.
func nextVersion(a *Attribute, current interface{}) interface{} {
	if a.DataType.Kind == converter.KindTime {
		return time.Now().UTC().Truncate(time.Millisecond)
	}
	if current == nil {
		return int64(1)
	}
	n, err := converter.NewDefaultConverter().ToStore(a.DataType, current)
	if err != nil {
		return int64(1)
	}
	return n.(int64) + 1
}

func versionString(v interface{}) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}
