// Package session assembles the persistence handler described by the loaded
// configuration: one DataSource per connection, the store factory over the
// ORM mapping file and the shared executor.
package session

import (
	"fmt"
	"io"
	"os"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/async"
	"github.com/redbco/redb-persistence/pkg/config"
	"github.com/redbco/redb-persistence/pkg/keyring"
	"github.com/redbco/redb-persistence/pkg/logger"
	"github.com/redbco/redb-persistence/pkg/metrics"
	"github.com/redbco/redb-persistence/pkg/ormmodel"
	"github.com/redbco/redb-persistence/pkg/persistence"
	"github.com/redbco/redb-persistence/pkg/persistence/store"
)

// Session owns everything a command needs. Close releases it.
type Session struct {
	Config      *config.Config
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Connections *adapter.ConnectionRegistry
	Handler     *persistence.Handler

	executor *async.Executor
}

// Option configures New.
type Option func(*options)

type options struct {
	logger   *logger.Logger
	registry *adapter.Registry
	keyring  *keyring.Manager
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry resolves adapters from r instead of the global registry.
func WithRegistry(r *adapter.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithKeyring reads connection passwords from m instead of the configured keyring.
func WithKeyring(m *keyring.Manager) Option {
	return func(o *options) { o.keyring = m }
}

// OpenKeyring opens the keyring described by cfg.
func OpenKeyring(cfg *config.Config) (*keyring.Manager, error) {
	m, err := keyring.NewManager(keyring.Backend(cfg.Keyring.Backend), cfg.Keyring.Path, cfg.Keyring.MasterPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return m, nil
}

// New builds a session from cfg.
func New(cfg *config.Config, version string, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		log = logger.New("persist", version)
		log.SetOutput(os.Stderr)
		if err := log.SetLevel(cfg.Logging.Level); err != nil {
			return nil, err
		}
		if err := log.SetFormat(cfg.Logging.Format); err != nil {
			return nil, err
		}
	}

	s := &Session{Config: cfg, Logger: log}

	var observer async.Observer
	if cfg.Metrics.Enabled {
		m, err := metrics.New(cfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		s.Metrics = m
		observer = m
	}

	mappings, err := loadMappings(cfg.MappingFile)
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded %d entity mappings", mappings.Len())

	dsOpts := []adapter.DataSourceOption{
		adapter.WithLogger(log),
		adapter.WithDialTimeout(cfg.Executor.ConnectTimeout),
	}
	if o.registry != nil {
		dsOpts = append(dsOpts, adapter.WithRegistry(o.registry))
	}
	factories := make(map[string]adapter.ConnectionFactory, len(cfg.Connections))
	for name, conn := range cfg.Connections {
		base := conn.ConnectionConfig
		if conn.PasswordKeyring && base.Password == "" {
			if o.keyring == nil {
				if o.keyring, err = OpenKeyring(cfg); err != nil {
					return nil, err
				}
			}
			if base.Password, err = o.keyring.ConnectionPassword(name); err != nil {
				return nil, err
			}
		}
		factories[name] = adapter.NewDataSource(base, dsOpts...)
	}
	s.Connections = adapter.NewConnectionRegistry(factories)

	s.executor = async.NewExecutor(async.Options{
		Workers:   cfg.Executor.Workers,
		QueueSize: cfg.Executor.QueueSize,
		Timeout:   cfg.Executor.ConnectTimeout,
		Observer:  observer,
	})

	factory := store.NewFactory(mappings, nil, store.WithLogger(log))
	handlerOpts := []persistence.HandlerOption{
		persistence.WithScheme(cfg.Scheme),
		persistence.WithLogger(log),
	}
	if s.Metrics != nil {
		handlerOpts = append(handlerOpts, persistence.WithMetrics(s.Metrics))
	}
	s.Handler = persistence.NewHandler(s.Connections, factory, factory, s.executor, handlerOpts...)

	return s, nil
}

func loadMappings(path string) (*store.Mappings, error) {
	var root *ormmodel.DocumentRoot
	if path != "" {
		var err error
		root, err = ormmodel.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load mapping file %s: %w", path, err)
		}
	}
	mappings, err := store.NewMappings(root)
	if err != nil {
		return nil, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}
	return mappings, nil
}

// Close stops the executor and closes every open connection.
func (s *Session) Close() error {
	if err := s.Handler.Close(); err != nil {
		return err
	}
	s.executor.Stop()
	return s.Connections.Close()
}

var _ io.Closer = (*Session)(nil)
