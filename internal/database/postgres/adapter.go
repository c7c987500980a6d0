package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// SystemDatabase is connected to when the target database has to be created.
const SystemDatabase = "postgres"

const duplicateDatabase = "42P04"

// Adapter implements the adapter.DatabaseAdapter interface for PostgreSQL.
type Adapter struct{}

// NewAdapter creates a new PostgreSQL adapter.
func NewAdapter() adapter.DatabaseAdapter {
	return &Adapter{}
}

// Type returns the database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseType {
	return dbcapabilities.PostgreSQL
}

// Capabilities returns the capabilities metadata for PostgreSQL.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.PostgreSQL)
}

// Connect establishes a connection to a PostgreSQL database, creating it
// first when config.CreateDatabase is set.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if config.CreateDatabase && config.DatabaseName != SystemDatabase {
		if err := a.createDatabase(ctx, config); err != nil {
			return nil, err
		}
	}

	pool, err := a.open(ctx, config, config.DatabaseName)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		id:        common.ConnectionID(config),
		pool:      pool,
		config:    config,
		adapter:   a,
		connected: 1, // Mark as connected
	}

	return conn, nil
}

// open creates a pool on database and pings it.
func (a *Adapter) open(ctx context.Context, config adapter.ConnectionConfig, database string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, a.connString(config, database))
	if err != nil {
		return nil, adapter.NewConnectionError(
			dbcapabilities.PostgreSQL,
			config.Host,
			config.Port,
			fmt.Errorf("error connecting to database: %w", err),
		)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, adapter.NewConnectionError(
			dbcapabilities.PostgreSQL,
			config.Host,
			config.Port,
			fmt.Errorf("error pinging database: %w", err),
		)
	}
	return pool, nil
}

// createDatabase creates config.DatabaseName through the system database
// unless it already exists.
func (a *Adapter) createDatabase(ctx context.Context, config adapter.ConnectionConfig) error {
	pool, err := a.open(ctx, config, SystemDatabase)
	if err != nil {
		return err
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", config.DatabaseName).Scan(&exists)
	if err != nil {
		return adapter.WrapError(dbcapabilities.PostgreSQL, "create_database", err)
	}
	if exists {
		return nil
	}

	if _, err := pool.Exec(ctx, "CREATE DATABASE "+common.QuoteIdentifier(config.DatabaseName)); err != nil {
		// Lost a race with another creator.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == duplicateDatabase {
			return nil
		}
		return adapter.WrapError(dbcapabilities.PostgreSQL, "create_database", err)
	}
	return nil
}

// connString builds the pgx connection string for database.
func (a *Adapter) connString(config adapter.ConnectionConfig, database string) string {
	var connString strings.Builder

	port := config.Port
	if port == 0 {
		port = a.Capabilities().DefaultPort
	}

	var userinfo string
	if config.Username != "" {
		userinfo = url.UserPassword(config.Username, config.Password).String() + "@"
	}

	// Build base connection string
	fmt.Fprintf(&connString, "postgres://%s%s:%d/%s",
		userinfo,
		config.Host,
		port,
		url.PathEscape(database))

	// Add SSL configuration
	if config.SSL {
		sslMode := a.getSslMode(config)
		fmt.Fprintf(&connString, "?sslmode=%s", sslMode)

		if config.SSLCert != nil && *config.SSLCert != "" && config.SSLKey != nil && *config.SSLKey != "" {
			fmt.Fprintf(&connString, "&sslcert=%s&sslkey=%s", *config.SSLCert, *config.SSLKey)
		}
		if config.SSLRootCert != nil && *config.SSLRootCert != "" {
			fmt.Fprintf(&connString, "&sslrootcert=%s", *config.SSLRootCert)
		}
	} else {
		connString.WriteString("?sslmode=disable")
	}

	if appName, ok := config.Option("application_name"); ok {
		fmt.Fprintf(&connString, "&application_name=%s", url.QueryEscape(appName))
	}

	return connString.String()
}

// getSslMode returns the appropriate SSL mode for database connection
func (a *Adapter) getSslMode(config adapter.ConnectionConfig) string {
	if config.SSLMode != "" {
		return config.SSLMode
	}
	if config.SSLRejectUnauthorized != nil && !*config.SSLRejectUnauthorized {
		return "verify-ca"
	}
	return "verify-full"
}

// Connection implements adapter.Connection for PostgreSQL.
type Connection struct {
	id        string
	pool      *pgxpool.Pool
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
	return dbcapabilities.PostgreSQL
}

// IsConnected returns whether the connection is active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Ping checks if the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes the connection.
func (c *Connection) Close() error {
	atomic.StoreInt32(&c.connected, 0)
	c.pool.Close()
	return nil
}

// SchemaOperations returns the schema operator for PostgreSQL.
func (c *Connection) SchemaOperations() adapter.SchemaOperator {
	return &SchemaOps{conn: c}
}

// DataOperations returns the data operator for PostgreSQL.
func (c *Connection) DataOperations() adapter.DataOperator {
	return &DataOps{conn: c}
}

// Raw returns the underlying pgxpool.Pool.
func (c *Connection) Raw() interface{} {
	return c.pool
}

// Config returns the connection configuration.
func (c *Connection) Config() adapter.ConnectionConfig {
	return c.config
}

// Adapter returns the database adapter.
func (c *Connection) Adapter() adapter.DatabaseAdapter {
	return c.adapter
}
