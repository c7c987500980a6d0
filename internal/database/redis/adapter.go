package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Adapter implements the adapter.DatabaseAdapter interface for Redis.
//
// Records are hashes stored under <database>:<table>:<id>. Database generated
// ids come from INCR on <database>:<table>:_seq.
type Adapter struct{}

// NewAdapter creates a new Redis adapter.
func NewAdapter() adapter.DatabaseAdapter {
	return &Adapter{}
}

// Type returns the database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseType {
	return dbcapabilities.Redis
}

// Capabilities returns the capabilities metadata for Redis.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.Redis)
}

// Connect establishes a connection to a Redis server.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	options, err := a.options(config)
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.Redis, config.Host, config.Port, err)
	}

	// Create Redis client
	client := redis.NewClient(options)

	// Test the connection with a timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.Redis, config.Host, config.Port,
			fmt.Errorf("error connecting to Redis: %w", err))
	}

	conn := &Connection{
		id:        common.ConnectionID(config),
		client:    client,
		prefix:    config.DatabaseName,
		config:    config,
		adapter:   a,
		connected: 1,
	}
	return conn, nil
}

func (a *Adapter) options(config adapter.ConnectionConfig) (*redis.Options, error) {
	port := config.Port
	if port == 0 {
		port = a.Capabilities().DefaultPort
	}

	// Build connection options
	var options = &redis.Options{
		Addr:     net.JoinHostPort(config.Host, strconv.Itoa(port)),
		Username: config.Username,
		Password: config.Password,
		DB:       0, // Default database
	}

	// A numeric database name also selects the logical database
	if config.DatabaseName != "" {
		dbIndex, err := strconv.Atoi(config.DatabaseName)
		if err == nil && dbIndex >= 0 {
			options.DB = dbIndex
		}
	}

	// Configure TLS if SSL is enabled
	if config.SSL {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: config.Host,
		}

		// Configure client certificates if provided
		if cert, key := adapter.GetString(config.SSLCert), adapter.GetString(config.SSLKey); cert != "" && key != "" {
			pair, err := tls.LoadX509KeyPair(cert, key)
			if err != nil {
				return nil, fmt.Errorf("error loading client certificates: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{pair}
		}

		// Configure root CA if provided
		if rootCert := adapter.GetString(config.SSLRootCert); rootCert != "" {
			pem, err := os.ReadFile(rootCert)
			if err != nil {
				return nil, fmt.Errorf("error reading root certificate: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", rootCert)
			}
			tlsConfig.RootCAs = pool
		}

		// Set InsecureSkipVerify based on SSLRejectUnauthorized
		if config.SSLRejectUnauthorized != nil {
			tlsConfig.InsecureSkipVerify = !*config.SSLRejectUnauthorized
		}

		options.TLSConfig = tlsConfig
	}

	return options, nil
}

// Connection implements adapter.Connection for Redis.
type Connection struct {
	id        string
	client    *redis.Client
	prefix    string
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
	return dbcapabilities.Redis
}

// IsConnected returns whether the connection is active.
func (c *Connection) IsConnected() bool {
	return atomic.LoadInt32(&c.connected) == 1
}

// Ping checks if the connection is alive.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection.
func (c *Connection) Close() error {
	atomic.StoreInt32(&c.connected, 0)
	return c.client.Close()
}

// SchemaOperations returns the schema operator for Redis.
func (c *Connection) SchemaOperations() adapter.SchemaOperator {
	return &SchemaOps{conn: c}
}

// DataOperations returns the data operator for Redis.
func (c *Connection) DataOperations() adapter.DataOperator {
	return &DataOps{conn: c}
}

// Raw returns the underlying *redis.Client.
func (c *Connection) Raw() interface{} {
	return c.client
}

// Config returns the connection configuration.
func (c *Connection) Config() adapter.ConnectionConfig {
	return c.config
}

// Adapter returns the database adapter.
func (c *Connection) Adapter() adapter.DatabaseAdapter {
	return c.adapter
}
