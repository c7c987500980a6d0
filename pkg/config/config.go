// Package config loads the persistence configuration from a YAML file and
// applies REDB_PERSIST_* environment overrides on top of it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REDB_PERSIST_"

// Defaults.
const (
	DefaultScheme         = "jdbc"
	DefaultWorkers        = 4
	DefaultQueueSize      = 64
	DefaultConnectTimeout = 30 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultMetricsNS      = "redb_persistence"
	DefaultKeyringBackend = "auto"
)

type Config struct {
	Scheme      string                      `yaml:"scheme" env:"SCHEME"`
	MappingFile string                      `yaml:"mapping_file" env:"MAPPING_FILE"`
	Executor    ExecutorConfig              `yaml:"executor" envPrefix:"EXECUTOR_"`
	Logging     LoggingConfig               `yaml:"logging" envPrefix:"LOG_"`
	Metrics     MetricsConfig               `yaml:"metrics" envPrefix:"METRICS_"`
	Keyring     KeyringConfig               `yaml:"keyring" envPrefix:"KEYRING_"`
	Connections map[string]ConnectionConfig `yaml:"connections"`
}

type ExecutorConfig struct {
	Workers        int           `yaml:"workers" env:"WORKERS"`
	QueueSize      int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// KeyringConfig locates the keyring holding connection passwords. The master
// password of the file backend only comes from the environment.
type KeyringConfig struct {
	Backend        string `yaml:"backend" env:"BACKEND"`
	Path           string `yaml:"path" env:"PATH"`
	MasterPassword string `yaml:"-" env:"PASSWORD"`
}

// ConnectionConfig is one named connection. URL, when set, is parsed and
// fills every field it carries; discrete fields still override it.
// PasswordKeyring defers the password to the keyring entry of the connection.
type ConnectionConfig struct {
	URL                      string `yaml:"url"`
	PasswordKeyring          bool   `yaml:"password_keyring"`
	adapter.ConnectionConfig `yaml:",inline"`
}

// Load reads path, applies defaults and environment overrides and resolves
// the connections.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for configuration already in memory.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	config.setDefaults()

	if err := config.resolveConnections(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return Parse(nil)
}

func (c *Config) setDefaults() {
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	if c.Executor.Workers <= 0 {
		c.Executor.Workers = DefaultWorkers
	}
	if c.Executor.QueueSize <= 0 {
		c.Executor.QueueSize = DefaultQueueSize
	}
	if c.Executor.ConnectTimeout == 0 {
		c.Executor.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNS
	}
	if c.Keyring.Backend == "" {
		c.Keyring.Backend = DefaultKeyringBackend
	}
}

func (c *Config) resolveConnections() error {
	for name, conn := range c.Connections {
		resolved, err := conn.Resolve(name)
		if err != nil {
			return err
		}
		conn.ConnectionConfig = resolved
		c.Connections[name] = conn
	}
	return nil
}

// Resolve returns the adapter configuration of the connection called name.
func (cc ConnectionConfig) Resolve(name string) (adapter.ConnectionConfig, error) {
	out := cc.ConnectionConfig
	out.Name = name

	if cc.URL != "" {
		details, err := dbcapabilities.ParseConnectionString(cc.URL)
		if err != nil {
			return adapter.ConnectionConfig{}, fmt.Errorf("connection %s: %w", name, err)
		}
		fromURL := adapter.ConnectionConfig{
			ConnectionType: details.DatabaseType,
			Host:           details.Host,
			Port:           int(details.Port),
			Username:       details.Username,
			Password:       details.Password,
			Path:           details.Path,
			SSL:            details.SSL,
			SSLMode:        details.SSLMode,
		}
		if !details.IsSystemDB {
			fromURL.DatabaseName = details.DatabaseName
		}
		if len(details.Parameters) > 0 {
			fromURL.Options = make(map[string]interface{}, len(details.Parameters))
			for k, v := range details.Parameters {
				fromURL.Options[k] = v
			}
		}
		out = merge(fromURL, out)
	}

	if out.ConnectionType == "" {
		return adapter.ConnectionConfig{}, fmt.Errorf("connection %s: type is required", name)
	}
	dbType, ok := dbcapabilities.ParseID(out.ConnectionType)
	if !ok {
		return adapter.ConnectionConfig{}, fmt.Errorf("connection %s: unsupported database type %s", name, out.ConnectionType)
	}
	out.ConnectionType = string(dbType)

	capability := dbcapabilities.MustGet(dbType)
	if !capability.Embedded && out.Host == "" {
		return adapter.ConnectionConfig{}, fmt.Errorf("connection %s: host is required", name)
	}
	if !capability.Embedded && out.Port == 0 {
		out.Port = capability.DefaultPort
	}
	return out, nil
}

// merge returns base with every field set in override applied.
func merge(base, override adapter.ConnectionConfig) adapter.ConnectionConfig {
	out := base
	out.Name = override.Name
	out.Description = override.Description
	if override.ConnectionType != "" {
		out.ConnectionType = override.ConnectionType
	}
	if override.Host != "" {
		out.Host = override.Host
	}
	if override.Port != 0 {
		out.Port = override.Port
	}
	if override.Username != "" {
		out.Username = override.Username
	}
	if override.Password != "" {
		out.Password = override.Password
	}
	if override.DatabaseName != "" {
		out.DatabaseName = override.DatabaseName
	}
	if override.Path != "" {
		out.Path = override.Path
	}
	out.CreateDatabase = out.CreateDatabase || override.CreateDatabase
	out.SSL = out.SSL || override.SSL
	if override.SSLMode != "" {
		out.SSLMode = override.SSLMode
	}
	if override.SSLRejectUnauthorized != nil {
		out.SSLRejectUnauthorized = override.SSLRejectUnauthorized
	}
	if override.SSLCert != nil {
		out.SSLCert = override.SSLCert
	}
	if override.SSLKey != nil {
		out.SSLKey = override.SSLKey
	}
	if override.SSLRootCert != nil {
		out.SSLRootCert = override.SSLRootCert
	}
	for k, v := range override.Options {
		if out.Options == nil {
			out.Options = make(map[string]interface{})
		}
		out.Options[k] = v
	}
	return out
}
