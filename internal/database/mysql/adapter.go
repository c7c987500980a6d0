package mysql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Adapter implements the adapter.DatabaseAdapter interface for MySQL and
// MariaDB, which share the wire protocol and the driver.
type Adapter struct {
	dbType dbcapabilities.DatabaseType
}

// NewAdapter creates a new MySQL adapter.
func NewAdapter() adapter.DatabaseAdapter {
	return &Adapter{dbType: dbcapabilities.MySQL}
}

// NewMariaDBAdapter creates a new MariaDB adapter.
func NewMariaDBAdapter() adapter.DatabaseAdapter {
	return &Adapter{dbType: dbcapabilities.MariaDB}
}

// Type returns the database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseType {
	return a.dbType
}

// Capabilities returns the capabilities metadata.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(a.dbType)
}

// Connect establishes a connection to a MySQL database, creating it first
// when config.CreateDatabase is set.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	driverConfig, err := a.driverConfig(config)
	if err != nil {
		return nil, adapter.NewConnectionError(a.dbType, config.Host, config.Port, err)
	}

	if config.CreateDatabase {
		if err := a.createDatabase(ctx, *driverConfig, config); err != nil {
			return nil, err
		}
	}

	db, err := a.open(ctx, driverConfig, config)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		id:        common.ConnectionID(config),
		db:        db,
		store:     &common.SQLStore{DB: db, Dialect: dialectFor(a.dbType)},
		config:    config,
		adapter:   a,
		connected: 1, // Mark as connected
	}

	return conn, nil
}

func (a *Adapter) open(ctx context.Context, driverConfig *mysql.Config, config adapter.ConnectionConfig) (*sql.DB, error) {
	connector, err := mysql.NewConnector(driverConfig)
	if err != nil {
		return nil, adapter.NewConnectionError(a.dbType, config.Host, config.Port,
			fmt.Errorf("failed to open MySQL connection: %w", err))
	}
	db := sql.OpenDB(connector)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(a.dbType, config.Host, config.Port,
			fmt.Errorf("failed to ping MySQL database: %w", err))
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// createDatabase connects without a default schema and creates the database
// if it is missing.
func (a *Adapter) createDatabase(ctx context.Context, driverConfig mysql.Config, config adapter.ConnectionConfig) error {
	driverConfig.DBName = ""
	db, err := a.open(ctx, &driverConfig, config)
	if err != nil {
		return err
	}
	defer db.Close()

	stmt := "CREATE DATABASE IF NOT EXISTS " + common.QuoteBacktickIdentifier(config.DatabaseName)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return adapter.WrapError(a.dbType, "create_database", err)
	}
	return nil
}

// driverConfig translates the connection configuration into the driver's.
// Times are parsed into time.Time and updates report matched rather than
// changed rows.
func (a *Adapter) driverConfig(config adapter.ConnectionConfig) (*mysql.Config, error) {
	port := config.Port
	if port == 0 {
		port = a.Capabilities().DefaultPort
	}

	c := mysql.NewConfig()
	c.User = config.Username
	c.Passwd = config.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(config.Host, strconv.Itoa(port))
	c.DBName = config.DatabaseName
	c.ParseTime = true
	c.ClientFoundRows = true
	c.Loc = time.UTC

	tlsName, err := a.getTLS(config)
	if err != nil {
		return nil, err
	}
	// Resolved by NewConnector.
	c.TLSConfig = tlsName
	return c, nil
}

// getTLS returns the driver TLS setting for config. Client certificates and
// custom roots are registered with the driver under a per-connection name.
func (a *Adapter) getTLS(config adapter.ConnectionConfig) (string, error) {
	if !config.SSL {
		return "", nil
	}

	skipVerify := config.SSLRejectUnauthorized != nil && !*config.SSLRejectUnauthorized
	rootCert := adapter.GetString(config.SSLRootCert)
	cert := adapter.GetString(config.SSLCert)
	key := adapter.GetString(config.SSLKey)
	if rootCert == "" && (cert == "" || key == "") {
		if skipVerify {
			return "skip-verify", nil
		}
		return "true", nil
	}

	tlsConfig := &tls.Config{
		ServerName:         config.Host,
		InsecureSkipVerify: skipVerify,
	}
	if rootCert != "" {
		pem, err := os.ReadFile(rootCert)
		if err != nil {
			return "", fmt.Errorf("error reading root certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return "", fmt.Errorf("no certificates found in %s", rootCert)
		}
		tlsConfig.RootCAs = pool
	}
	if cert != "" && key != "" {
		pair, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return "", fmt.Errorf("error loading client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{pair}
	}

	name := "redb-" + common.ConnectionID(config)
	if err := mysql.RegisterTLSConfig(name, tlsConfig); err != nil {
		return "", err
	}
	return name, nil
}

// Connection implements adapter.Connection for MySQL and MariaDB.
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
	return c.adapter.dbType
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

// SchemaOperations returns the schema operator.
func (c *Connection) SchemaOperations() adapter.SchemaOperator {
	return c.store
}

// DataOperations returns the data operator.
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
