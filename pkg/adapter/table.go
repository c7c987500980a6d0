package adapter

import "fmt"

// ColumnType is the storage-neutral type of a column. Each adapter maps it onto
// its own native type.
type ColumnType string

const (
	ColumnString    ColumnType = "string"
	ColumnText      ColumnType = "text"
	ColumnInteger   ColumnType = "integer"
	ColumnFloat     ColumnType = "float"
	ColumnBoolean   ColumnType = "boolean"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnDate      ColumnType = "date"
	ColumnTime      ColumnType = "time"
	ColumnBytes     ColumnType = "bytes"
)

// IDGeneration says who assigns the primary key of a new record.
type IDGeneration string

const (
	// IDAssigned means the caller (or the stream factory) supplies the id.
	IDAssigned IDGeneration = "assigned"
	// IDDatabase means the database assigns the id (identity column, counter, object id).
	IDDatabase IDGeneration = "database"
)

// ColumnSpec describes one column of a table.
type ColumnSpec struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Length   int        `json:"length,omitempty"`
	Nullable bool       `json:"nullable"`
}

// TableSpec describes the table a record lives in.
type TableSpec struct {
	Name         string       `json:"name"`
	Columns      []ColumnSpec `json:"columns"`
	PrimaryKey   string       `json:"primaryKey"`
	IDGeneration IDGeneration `json:"idGeneration"`
}

// Column returns the column with the given name.
func (t TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// PrimaryKeyColumn returns the primary key column.
func (t TableSpec) PrimaryKeyColumn() ColumnSpec {
	c, _ := t.Column(t.PrimaryKey)
	return c
}

// ColumnNames returns the column names in declaration order.
func (t TableSpec) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks that the table definition is usable by an adapter.
func (t TableSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidConfiguration)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %s has no columns", ErrInvalidConfiguration, t.Name)
	}
	if _, ok := t.Column(t.PrimaryKey); !ok {
		return fmt.Errorf("%w: table %s has no primary key column %q", ErrInvalidConfiguration, t.Name, t.PrimaryKey)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: table %s declares column %s twice", ErrInvalidConfiguration, t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}
