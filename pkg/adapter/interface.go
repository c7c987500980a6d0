// Package adapter provides the unified interface for the database adapters
// backing the persistence handler.
// This package defines the contracts that database-specific implementations must follow.
package adapter

import (
	"context"

	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// DatabaseAdapter represents a database technology adapter.
// Each database type (SQLite, PostgreSQL, MySQL, MongoDB, Redis) must implement this interface.
type DatabaseAdapter interface {
	// Type returns the canonical database type identifier
	Type() dbcapabilities.DatabaseType

	// Capabilities returns the capability metadata for this database type
	Capabilities() dbcapabilities.Capability

	// Connect establishes a connection to a specific database
	Connect(ctx context.Context, config ConnectionConfig) (Connection, error)
}

// Connection represents an active connection to a specific database.
// This is the main interface for interacting with a database.
type Connection interface {
	// Identity and status
	ID() string
	Type() dbcapabilities.DatabaseType
	IsConnected() bool

	// Lifecycle management
	Ping(ctx context.Context) error
	Close() error

	// Operation interfaces
	SchemaOperations() SchemaOperator
	DataOperations() DataOperator

	// Raw returns the underlying database-specific connection object.
	// Type assertion is required when using Raw().
	Raw() interface{}

	// Configuration
	Config() ConnectionConfig
	Adapter() DatabaseAdapter
}

// SchemaOperator handles the table lifecycle needed to store records.
// Schemaless stores return an UnsupportedSchemaOperator.
type SchemaOperator interface {
	// EnsureTable creates the table/collection if it does not exist yet.
	EnsureTable(ctx context.Context, table TableSpec) error

	// ListTables returns the names of all tables/collections in the database
	ListTables(ctx context.Context) ([]string, error)

	// DropTable removes the table/collection if it exists.
	DropTable(ctx context.Context, table string) error
}

// DataOperator handles single-record CRUD operations keyed by the table's primary key.
type DataOperator interface {
	// Get loads the record with the given primary key value.
	// Returns an error matching ErrRecordNotFound when no such record exists.
	Get(ctx context.Context, table TableSpec, id interface{}) (Record, error)

	// Exists reports whether a record with the given primary key value exists.
	Exists(ctx context.Context, table TableSpec, id interface{}) (bool, error)

	// Insert stores a new record and returns its primary key value. When the
	// record carries no primary key the store assigns one according to the
	// table's IDGeneration.
	Insert(ctx context.Context, table TableSpec, record Record) (interface{}, error)

	// Update sets the record's columns on every row matching all conditions and
	// returns the number of rows affected.
	Update(ctx context.Context, table TableSpec, record Record, conditions map[string]interface{}) (int64, error)

	// Delete removes every row matching all conditions and returns the number of rows affected.
	Delete(ctx context.Context, table TableSpec, conditions map[string]interface{}) (int64, error)
}

// Record is a single row/document keyed by column name.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
