package mongodb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Adapter implements the adapter.DatabaseAdapter interface for MongoDB.
// Tables are collections and the primary key is stored as _id.
type Adapter struct{}

// NewAdapter creates a new MongoDB adapter.
func NewAdapter() adapter.DatabaseAdapter {
	return &Adapter{}
}

// Type returns the database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseType {
	return dbcapabilities.MongoDB
}

// Capabilities returns the capabilities metadata for MongoDB.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.MongoDB)
}

// Connect establishes a connection to a MongoDB database. Databases are
// created implicitly on first write, so CreateDatabase needs no extra step.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	// Set client options
	clientOptions := options.Client().ApplyURI(a.connString(config))

	// Create client and connect (in v2, Connect handles both creation and connection)
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.MongoDB, config.Host, config.Port,
			fmt.Errorf("error connecting to database: %w", err))
	}

	// Set context with timeout for ping
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Test the connection
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, adapter.NewConnectionError(dbcapabilities.MongoDB, config.Host, config.Port,
			fmt.Errorf("error pinging database: %w", err))
	}

	conn := &Connection{
		id:        common.ConnectionID(config),
		client:    client,
		db:        client.Database(config.DatabaseName),
		config:    config,
		adapter:   a,
		connected: 1,
	}
	return conn, nil
}

func (a *Adapter) connString(config adapter.ConnectionConfig) string {
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
	fmt.Fprintf(&connString, "mongodb://%s%s:%d/%s?",
		userinfo,
		config.Host,
		port,
		url.PathEscape(config.DatabaseName))
	if userinfo != "" {
		connString.WriteString("authSource=admin&")
	}

	// Add SSL configuration
	if config.SSL {
		sslMode := getSslMode(config)
		fmt.Fprintf(&connString, "tls=%t", sslMode != "disable")

		if cert := adapter.GetString(config.SSLCert); cert != "" {
			fmt.Fprintf(&connString, "&tlsCertificateKeyFile=%s", cert)
		}
		if rootCert := adapter.GetString(config.SSLRootCert); rootCert != "" {
			fmt.Fprintf(&connString, "&tlsCAFile=%s", rootCert)
		}
		if sslMode == "allow" || sslMode == "prefer" {
			connString.WriteString("&tlsInsecure=true")
		}
	} else {
		connString.WriteString("tls=false")
	}

	return connString.String()
}

func getSslMode(config adapter.ConnectionConfig) string {
	if config.SSLMode != "" {
		return config.SSLMode
	}
	if config.SSLRejectUnauthorized != nil && !*config.SSLRejectUnauthorized {
		return "prefer"
	}
	return "require"
}

// Connection implements adapter.Connection for MongoDB.
type Connection struct {
	id        string
	client    *mongo.Client
	db        *mongo.Database
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
	return dbcapabilities.MongoDB
}

// IsConnected returns whether the connection is active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Ping checks if the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close closes the connection.
func (c *Connection) Close() error {
	atomic.StoreInt32(&c.connected, 0)
	return c.client.Disconnect(context.Background())
}

// SchemaOperations returns the schema operator for MongoDB.
func (c *Connection) SchemaOperations() adapter.SchemaOperator {
	return &SchemaOps{conn: c}
}

// DataOperations returns the data operator for MongoDB.
func (c *Connection) DataOperations() adapter.DataOperator {
	return &DataOps{conn: c}
}

// Raw returns the underlying *mongo.Database.
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
