package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Dialect generates SQLite statements.
var Dialect = common.Dialect{
	Type:        dbcapabilities.SQLite,
	Quote:       common.QuoteIdentifier,
	Placeholder: common.QuestionPlaceholder,
	ColumnType:  columnType,
	IdentityColumn: func(name string) string {
		return name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	},
	EmptyInsert: "INSERT INTO %s DEFAULT VALUES",
	ListTables:  "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
}

// columnType picks declared types the driver recognises when scanning, so
// booleans and timestamps come back as bool and time.Time.
func columnType(c adapter.ColumnSpec) string {
	switch c.Type {
	case adapter.ColumnString:
		return fmt.Sprintf("VARCHAR(%d)", common.VarcharLength(c))
	case adapter.ColumnInteger:
		return "INTEGER"
	case adapter.ColumnFloat:
		return "REAL"
	case adapter.ColumnBoolean:
		return "BOOLEAN"
	case adapter.ColumnTimestamp:
		return "TIMESTAMP"
	case adapter.ColumnDate:
		return "DATE"
	case adapter.ColumnBytes:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// Connection implements adapter.Connection for SQLite.
type Connection struct {
	id        string
	db        *sql.DB
	store     *common.SQLStore
	config    adapter.ConnectionConfig
	adapter   *Adapter
	connected int32
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Type returns the database type.
func (c *Connection) Type() dbcapabilities.DatabaseType {
	return dbcapabilities.SQLite
}

// IsConnected returns whether the connection is active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Ping checks if the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the connection.
func (c *Connection) Close() error {
	atomic.StoreInt32(&c.connected, 0)
	return c.db.Close()
}

// SchemaOperations returns the schema operator for SQLite.
func (c *Connection) SchemaOperations() adapter.SchemaOperator {
	return c.store
}

// DataOperations returns the data operator for SQLite.
func (c *Connection) DataOperations() adapter.DataOperator {
	return c.store
}

// Raw returns the underlying *sql.DB.
func (c *Connection) Raw() interface{} {
	return c.db
}

// Config returns the connection configuration.
func (c *Connection) Config() adapter.ConnectionConfig {
	return c.config
}

// Adapter returns the database adapter.
func (c *Connection) Adapter() adapter.DatabaseAdapter {
	return c.adapter
}
