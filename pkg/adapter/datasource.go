package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
	"github.com/redbco/redb-persistence/pkg/logger"
)

// DefaultDialTimeout bounds a dial when no WithDialTimeout option is given.
const DefaultDialTimeout = 30 * time.Second

// DataSource is a ConnectionFactory backed by a registered DatabaseAdapter. It
// fills a base ConnectionConfig (host, credentials, path) with the database
// named by the connection URL and keeps one live connection per distinct
// URL and property set. Connections handed out remain owned by the DataSource;
// callers must not close them.
type DataSource struct {
	base     ConnectionConfig
	registry    *Registry
	logger      *logger.Logger
	dialTimeout time.Duration
	dials       singleflight.Group

	mu     sync.Mutex
	conns  map[string]Connection
	closed bool
}

// DataSourceOption configures a DataSource.
type DataSourceOption func(*DataSource)

// WithRegistry makes the DataSource resolve adapters from r instead of the global registry.
func WithRegistry(r *Registry) DataSourceOption {
	return func(d *DataSource) { d.registry = r }
}

// WithLogger sets the logger used to report connection lifecycle events.
func WithLogger(l *logger.Logger) DataSourceOption {
	return func(d *DataSource) { d.logger = l }
}

// WithDialTimeout bounds each dial. Zero means no bound.
func WithDialTimeout(t time.Duration) DataSourceOption {
	return func(d *DataSource) { d.dialTimeout = t }
}

// NewDataSource creates a DataSource over base.
func NewDataSource(base ConnectionConfig, opts ...DataSourceOption) *DataSource {
	d := &DataSource{
		base:        base,
		registry:    GlobalRegistry(),
		dialTimeout: DefaultDialTimeout,
		conns:       make(map[string]Connection),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Config returns the base configuration.
func (d *DataSource) Config() ConnectionConfig { return d.base }

// Dialect implements DialectProvider.
func (d *DataSource) Dialect() string { return d.base.ConnectionType }

// Connect implements ConnectionFactory.
func (d *DataSource) Connect(ctx context.Context, rawURL string, props Properties) (Connection, error) {
	u, err := dbcapabilities.ParseConnectionURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	dbType, ok := u.Type()
	if !ok {
		return nil, NewConfigurationError(dbcapabilities.DatabaseType(u.Dialect), "type", "unknown dialect "+u.Dialect)
	}
	if d.base.ConnectionType != "" && !dbcapabilities.SameDialect(d.base.ConnectionType, u.Dialect) {
		return nil, NewConfigurationError(dbType, "type",
			fmt.Sprintf("connection is configured for %s, operation asked for %s", d.base.ConnectionType, u.Dialect))
	}

	key := cacheKey(u, props)
	if conn, ok, err := d.cached(key); err != nil || ok {
		return conn, err
	}

	// Concurrent misses on one key share a single dial. The dial does not
	// hold d.mu, so cache hits and other keys never wait behind it.
	ch := d.dials.DoChan(key, func() (interface{}, error) {
		return d.dial(ctx, key, u, dbType, props)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Connection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cached returns the live connection stored under key.
func (d *DataSource) cached(key string) (Connection, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, ErrConnectionClosed
	}
	if conn, ok := d.conns[key]; ok {
		if conn.IsConnected() {
			return conn, true, nil
		}
		delete(d.conns, key)
	}
	return nil, false, nil
}

// dial opens a connection for key and caches it. It runs detached from the
// caller's cancellation since other callers may be waiting on the same dial;
// the dial timeout bounds it instead.
func (d *DataSource) dial(ctx context.Context, key string, u *dbcapabilities.ConnectionURL, dbType dbcapabilities.DatabaseType, props Properties) (Connection, error) {
	if conn, ok, err := d.cached(key); err != nil || ok {
		return conn, err
	}

	dialCtx := context.WithoutCancel(ctx)
	if d.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, d.dialTimeout)
		defer cancel()
	}

	cfg := d.configFor(u, dbType, props)
	conn, err := d.registry.Connect(dialCtx, cfg)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		_ = conn.Close()
		return nil, ErrConnectionClosed
	}
	if existing, ok := d.conns[key]; ok && existing.IsConnected() {
		_ = conn.Close()
		return existing, nil
	}
	d.conns[key] = conn

	if d.logger != nil {
		d.logger.WithFields(map[string]string{
			"connection": d.base.Name,
			"type":       string(dbType),
			"database":   cfg.DatabaseName,
		}).Debug("opened database connection")
	}
	return conn, nil
}

func (d *DataSource) configFor(u *dbcapabilities.ConnectionURL, dbType dbcapabilities.DatabaseType, props Properties) ConnectionConfig {
	cfg := d.base
	cfg.ConnectionType = string(dbType)
	cfg.DatabaseName = u.Database
	cfg.CreateDatabase = u.Create()

	cfg.Options = make(map[string]interface{}, len(d.base.Options)+len(u.Params)+len(props))
	for k, v := range d.base.Options {
		cfg.Options[k] = v
	}
	for k, v := range u.Params {
		if k == "create" {
			continue
		}
		cfg.Options[k] = v
	}
	for k, v := range props {
		cfg.Options[k] = v
	}
	return cfg
}

// Len returns the number of open cached connections.
func (d *DataSource) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Close closes every cached connection. Further Connect calls fail.
func (d *DataSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	var errs []error
	for key, conn := range d.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(d.conns, key)
	}
	return errors.Join(errs...)
}

func cacheKey(u *dbcapabilities.ConnectionURL, props Properties) string {
	if len(props) == 0 {
		return u.String()
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(u.String())
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, props[k])
	}
	return b.String()
}
