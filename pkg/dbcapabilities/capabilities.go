package dbcapabilities

import "strings"

// DatabaseType is the canonical identifier for a database dialect supported by
// the persistence handler. Use these constants to look up capability information.
type DatabaseType string

const (
	// Embedded
	SQLite DatabaseType = "sqlite"

	// Relational SQL
	PostgreSQL DatabaseType = "postgres"
	MySQL      DatabaseType = "mysql"
	MariaDB    DatabaseType = "mariadb"

	// NoSQL / Other paradigms
	MongoDB DatabaseType = "mongodb"
	Redis   DatabaseType = "redis"
)

// DataParadigm enumerates the primary data storage paradigms a database supports.
type DataParadigm string

const (
	ParadigmRelational DataParadigm = "relational" // Tables, schemas, SQL
	ParadigmDocument   DataParadigm = "document"   // Collections, documents
	ParadigmKeyValue   DataParadigm = "keyvalue"   // Key/Value
)

// IDStrategy describes how a database assigns identifiers to new records when
// the caller does not supply one.
type IDStrategy string

const (
	IDStrategyIdentity IDStrategy = "identity" // auto-increment column / RETURNING
	IDStrategyCounter  IDStrategy = "counter"  // server-side counter (INCR)
	IDStrategyObjectID IDStrategy = "objectid" // driver-generated object id
)

// Capability describes what a database supports in a way that the handler and the
// stream factories can consume uniformly.
type Capability struct {
	// Human-friendly vendor or product name, e.g., "PostgreSQL".
	Name string `json:"name"`

	// Canonical ID used across the codebase (see DatabaseType constants), e.g., "postgres".
	ID DatabaseType `json:"id"`

	// Default network port; zero for embedded databases.
	DefaultPort int `json:"defaultPort,omitempty"`

	// Whether the database runs in-process against a local file.
	Embedded bool `json:"embedded"`

	// Whether the database exposes a built-in/system database and its typical names.
	HasSystemDatabase bool     `json:"hasSystemDatabase"`
	SystemDatabases   []string `json:"systemDatabases,omitempty"`

	// Whether a connect call with create=true may create the target database.
	SupportsCreateDatabase bool `json:"supportsCreateDatabase"`

	// How the database assigns ids to new records.
	IDStrategy IDStrategy `json:"idStrategy"`

	// Primary data storage paradigms supported.
	Paradigms []DataParadigm `json:"paradigms"`

	// Common aliases (driver names, dialect tags from other runtimes) that map to this database.
	Aliases []string `json:"aliases,omitempty"`
}

// All is a registry of capabilities keyed by the canonical database type.
var All = map[DatabaseType]Capability{
	SQLite: {
		Name:                   "SQLite",
		ID:                     SQLite,
		Embedded:               true,
		SupportsCreateDatabase: true,
		IDStrategy:             IDStrategyIdentity,
		Paradigms:              []DataParadigm{ParadigmRelational},
		Aliases:                []string{"sqlite3", "derby", "h2", "embedded"},
	},
	PostgreSQL: {
		Name:                   "PostgreSQL",
		ID:                     PostgreSQL,
		DefaultPort:            5432,
		HasSystemDatabase:      true,
		SystemDatabases:        []string{"postgres"},
		SupportsCreateDatabase: true,
		IDStrategy:             IDStrategyIdentity,
		Paradigms:              []DataParadigm{ParadigmRelational},
		Aliases:                []string{"postgresql", "pgsql", "pgx"},
	},
	MySQL: {
		Name:                   "MySQL",
		ID:                     MySQL,
		DefaultPort:            3306,
		HasSystemDatabase:      true,
		SystemDatabases:        []string{"mysql"},
		SupportsCreateDatabase: true,
		IDStrategy:             IDStrategyIdentity,
		Paradigms:              []DataParadigm{ParadigmRelational},
		Aliases:                []string{"aurora-mysql"},
	},
	MariaDB: {
		Name:                   "MariaDB",
		ID:                     MariaDB,
		DefaultPort:            3306,
		HasSystemDatabase:      true,
		SystemDatabases:        []string{"mysql"},
		SupportsCreateDatabase: true,
		IDStrategy:             IDStrategyIdentity,
		Paradigms:              []DataParadigm{ParadigmRelational},
	},
	MongoDB: {
		Name:                   "MongoDB",
		ID:                     MongoDB,
		DefaultPort:            27017,
		HasSystemDatabase:      true,
		SystemDatabases:        []string{"admin", "local", "config"},
		SupportsCreateDatabase: true,
		IDStrategy:             IDStrategyObjectID,
		Paradigms:              []DataParadigm{ParadigmDocument},
		Aliases:                []string{"mongo", "mongodb+srv"},
	},
	Redis: {
		Name:        "Redis",
		ID:          Redis,
		DefaultPort: 6379,
		IDStrategy:  IDStrategyCounter,
		Paradigms:   []DataParadigm{ParadigmKeyValue},
		Aliases:     []string{"rediss"},
	},
}

// nameToID is a normalized lookup index from any known name/alias to the canonical DatabaseType.
var nameToID map[string]DatabaseType

func init() {
	nameToID = make(map[string]DatabaseType, len(All)*2)
	for id, cap := range All {
		// Canonical ID
		nameToID[strings.ToLower(string(id))] = id
		// Also record vendor/product name
		if cap.Name != "" {
			nameToID[strings.ToLower(cap.Name)] = id
		}
		// Aliases
		for _, a := range cap.Aliases {
			if a == "" {
				continue
			}
			nameToID[strings.ToLower(a)] = id
		}
	}
}

// ParseID attempts to resolve an arbitrary database name (canonical id, alias, or product name)
// to a canonical DatabaseType. Returns false if unknown.
func ParseID(name string) (DatabaseType, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	id, ok := nameToID[n]
	return id, ok
}

// IDs returns the list of all known database types.
func IDs() []DatabaseType {
	out := make([]DatabaseType, 0, len(All))
	for id := range All {
		out = append(out, id)
	}
	return out
}

// Get returns capabilities for the given ID and a boolean indicating existence.
func Get(id DatabaseType) (Capability, bool) {
	c, ok := All[id]
	return c, ok
}

// MustGet returns capabilities for the given ID and panics if not found.
func MustGet(id DatabaseType) Capability {
	c, ok := Get(id)
	if !ok {
		panic("dbcapabilities: unknown database id: " + string(id))
	}
	return c
}

// HasSystemDB is a convenience accessor for HasSystemDatabase.
func HasSystemDB(id DatabaseType) bool {
	c, ok := Get(id)
	return ok && c.HasSystemDatabase
}

// SameDialect reports whether two free-form dialect names resolve to the same database type.
func SameDialect(a, b string) bool {
	ida, ok := ParseID(a)
	if !ok {
		return false
	}
	idb, ok := ParseID(b)
	return ok && ida == idb
}
