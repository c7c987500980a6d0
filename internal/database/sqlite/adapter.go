package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/redbco/redb-persistence/internal/database/common"
	"github.com/redbco/redb-persistence/pkg/adapter"
	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// FileExtension is appended to the database name to form the file name.
const FileExtension = ".db"

// Adapter implements the adapter.DatabaseAdapter interface for SQLite.
type Adapter struct{}

// NewAdapter creates a new SQLite adapter.
func NewAdapter() adapter.DatabaseAdapter {
	return &Adapter{}
}

// Type returns the database type identifier.
func (a *Adapter) Type() dbcapabilities.DatabaseType {
	return dbcapabilities.SQLite
}

// Capabilities returns the capabilities metadata for SQLite.
func (a *Adapter) Capabilities() dbcapabilities.Capability {
	return dbcapabilities.MustGet(dbcapabilities.SQLite)
}

// Connect opens the database file <Path>/<DatabaseName>.db. The file and its
// directory are only created when config.CreateDatabase is set.
func (a *Adapter) Connect(ctx context.Context, config adapter.ConnectionConfig) (adapter.Connection, error) {
	if config.DatabaseName == "" {
		return nil, adapter.NewConfigurationError(dbcapabilities.SQLite, "databaseName", "database name is required")
	}

	path, err := DatabaseFile(config)
	if err != nil {
		return nil, err
	}
	if config.CreateDatabase {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, adapter.NewConnectionError(dbcapabilities.SQLite, path, 0,
				fmt.Errorf("error creating database directory: %w", err))
		}
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, adapter.NewNotFoundError(dbcapabilities.SQLite, "database", config.DatabaseName)
	}

	db, err := sql.Open("sqlite3", dsn(path, config))
	if err != nil {
		return nil, adapter.NewConnectionError(dbcapabilities.SQLite, path, 0,
			fmt.Errorf("error opening database: %w", err))
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, adapter.NewConnectionError(dbcapabilities.SQLite, path, 0,
			fmt.Errorf("error pinging database: %w", err))
	}

	conn := &Connection{
		id:        common.ConnectionID(config),
		db:        db,
		store:     &common.SQLStore{DB: db, Dialect: Dialect},
		config:    config,
		adapter:   a,
		connected: 1,
	}
	return conn, nil
}

// DatabaseFile returns the file backing the configured database. The name
// must be a plain file name so the file stays inside config.Path.
func DatabaseFile(config adapter.ConnectionConfig) (string, error) {
	name := config.DatabaseName
	if name == "." || name == ".." || strings.ContainsAny(name, `/\:`) ||
		filepath.VolumeName(name) != "" || filepath.Base(name) != name {
		return "", adapter.NewConfigurationError(dbcapabilities.SQLite, "databaseName",
			fmt.Sprintf("%q is not a plain database name", name))
	}

	dir := config.Path
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name+FileExtension), nil
}

func dsn(path string, config adapter.ConnectionConfig) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	if mode, ok := config.Option("journal_mode"); ok {
		params.Set("_journal_mode", mode)
	}
	return "file:" + path + "?" + params.Encode()
}
