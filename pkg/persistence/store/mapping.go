package store

import (
	"fmt"
	"strings"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/converter"
	"github.com/redbco/redb-persistence/pkg/ormmodel"
)

// Columns of the document mapping used for tables without an entity.
const (
	DocumentIDColumn      = "id"
	DocumentPayloadColumn = "payload"
	DocumentVersionColumn = "version"
)

// Attribute binds a document field to a table column.
type Attribute struct {
	Field    string
	Column   string
	DataType converter.DataType
}

// Table is the storage shape of one resource type.
type Table struct {
	Definition adapter.TableSpec

	ID      Attribute
	Version *Attribute
	// Fields are the non-key, non-version attributes.
	Fields []Attribute

	// Document is set for the fallback mapping, which keeps the whole JSON
	// document in the payload column.
	Document bool
}

// Mappings resolves table names to Table definitions.
type Mappings struct {
	root   *ormmodel.DocumentRoot
	tables map[string]*Table
}

// NewMappings indexes the entities of an orm.xml document. A nil root yields
// mappings that use the document mapping for every table.
func NewMappings(root *ormmodel.DocumentRoot) (*Mappings, error) {
	m := &Mappings{root: root, tables: make(map[string]*Table)}
	if root == nil || root.EntityMappings == nil {
		return m, nil
	}

	em := root.EntityMappings
	for i := range em.Entities {
		e := &em.Entities[i]
		t, err := tableFromEntity(e)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.EntityName(), err)
		}
		key := strings.ToLower(t.Definition.Name)
		if _, dup := m.tables[key]; dup {
			return nil, fmt.Errorf("%w: table %s is mapped twice", adapter.ErrInvalidConfiguration, t.Definition.Name)
		}
		m.tables[key] = t
	}
	return m, nil
}

// Root returns the orm document the mappings were built from, if any.
func (m *Mappings) Root() *ormmodel.DocumentRoot { return m.root }

// Len returns the number of entity mapped tables.
func (m *Mappings) Len() int { return len(m.tables) }

// For returns the mapping of table: the entity mapped to it (by table or
// entity name), or the document mapping.
func (m *Mappings) For(table string) *Table {
	if t, ok := m.tables[strings.ToLower(table)]; ok {
		return t
	}
	if m.root != nil && m.root.EntityMappings != nil {
		if e, ok := m.root.EntityMappings.EntityForTable(table); ok {
			if t, ok := m.tables[strings.ToLower(e.TableName())]; ok {
				return t
			}
		}
	}
	return DocumentTable(table)
}

// DocumentTable is the mapping of a table without an entity: a string id
// assigned by the store, the JSON document and a version counter.
func DocumentTable(name string) *Table {
	id := Attribute{Field: DocumentIDColumn, Column: DocumentIDColumn, DataType: converter.DataType{Name: DocumentIDColumn, Kind: converter.KindString}}
	version := Attribute{Field: DocumentVersionColumn, Column: DocumentVersionColumn, DataType: converter.DataType{Name: DocumentVersionColumn, Kind: converter.KindInteger}}
	return &Table{
		Definition: adapter.TableSpec{
			Name: name,
			Columns: []adapter.ColumnSpec{
				{Name: DocumentIDColumn, Type: adapter.ColumnString, Length: 64},
				{Name: DocumentPayloadColumn, Type: adapter.ColumnText, Nullable: true},
				{Name: DocumentVersionColumn, Type: adapter.ColumnInteger},
			},
			PrimaryKey:   DocumentIDColumn,
			IDGeneration: adapter.IDAssigned,
		},
		ID:       id,
		Version:  &version,
		Document: true,
	}
}

func tableFromEntity(e *ormmodel.Entity) (*Table, error) {
	idAttr, ok := e.IdAttribute()
	if !ok {
		return nil, fmt.Errorf("%w: no id attribute", adapter.ErrInvalidConfiguration)
	}

	t := &Table{
		Definition: adapter.TableSpec{
			Name:         e.TableName(),
			IDGeneration: adapter.IDAssigned,
		},
	}

	// Generated ids are numeric unless the column says otherwise.
	idKind := converter.KindString
	if idAttr.GeneratedValue != nil {
		idKind = converter.KindInteger
		t.Definition.IDGeneration = adapter.IDDatabase
	}
	t.ID = attribute(idAttr.Name, idAttr.Column, idAttr.Temporal, idKind)
	t.Definition.PrimaryKey = t.ID.Column
	t.Definition.Columns = append(t.Definition.Columns, columnSpec(t.ID, idAttr.Column, false))

	if v, ok := e.VersionAttribute(); ok {
		va := attribute(v.Name, v.Column, v.Temporal, converter.KindInteger)
		t.Version = &va
		t.Definition.Columns = append(t.Definition.Columns, columnSpec(va, v.Column, false))
	}

	if e.Attributes != nil {
		for _, b := range e.Attributes.Basics {
			kind := converter.KindJSON
			if b.Lob != nil {
				kind = converter.KindString
			}
			a := attribute(b.Name, b.Column, b.Temporal, kind)
			spec := columnSpec(a, b.Column, b.IsOptional())
			if b.Lob != nil && a.DataType.Kind == converter.KindString {
				spec.Type = adapter.ColumnText
			}
			t.Fields = append(t.Fields, a)
			t.Definition.Columns = append(t.Definition.Columns, spec)
		}
	}

	if err := t.Definition.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// attribute derives the data type of an attribute from its column definition,
// then its temporal type, then the given fallback kind.
func attribute(name string, col *ormmodel.Column, temporal *ormmodel.TemporalType, fallback converter.Kind) Attribute {
	dt := converter.DataType{Name: name, Kind: fallback}
	if col != nil && col.ColumnDefinition != "" {
		if k, ok := converter.ParseKind(normalizeDefinition(col.ColumnDefinition)); ok {
			dt.Kind = k
		}
	}
	if temporal != nil {
		dt.Kind = converter.KindTime
		dt.Temporal = converter.Temporal(*temporal)
	}
	return Attribute{Field: name, Column: ormmodel.ColumnName(col, name), DataType: dt}
}

// normalizeDefinition turns "VARCHAR(255) NOT NULL" into "varchar".
func normalizeDefinition(def string) string {
	def = strings.ToLower(strings.TrimSpace(def))
	if i := strings.IndexAny(def, "( "); i >= 0 {
		def = def[:i]
	}
	return def
}

func columnSpec(a Attribute, col *ormmodel.Column, nullable bool) adapter.ColumnSpec {
	spec := adapter.ColumnSpec{Name: a.Column, Nullable: nullable && col.IsNullable()}
	if col != nil && col.Length != nil {
		spec.Length = *col.Length
	}

	switch a.DataType.Kind {
	case converter.KindInteger:
		spec.Type = adapter.ColumnInteger
	case converter.KindFloat:
		spec.Type = adapter.ColumnFloat
	case converter.KindBoolean:
		spec.Type = adapter.ColumnBoolean
	case converter.KindTime:
		switch a.DataType.Temporal {
		case converter.TemporalDate:
			spec.Type = adapter.ColumnDate
		case converter.TemporalTime:
			spec.Type = adapter.ColumnTime
		default:
			spec.Type = adapter.ColumnTimestamp
		}
	case converter.KindBytes:
		spec.Type = adapter.ColumnBytes
	case converter.KindUUID:
		spec.Type = adapter.ColumnString
		spec.Length = 36
	case converter.KindJSON:
		spec.Type = adapter.ColumnText
	default:
		spec.Type = adapter.ColumnString
	}
	return spec
}
