package common

import (
	"fmt"
	"sort"
	"strings"

	"github.com/redbco/redb-persistence/pkg/adapter"
)

// QuoteIdentifier quotes an identifier with double quotes (SQLite, PostgreSQL).
func QuoteIdentifier(name string) string {
	// Replace any existing quotes with double quotes to escape them
	name = strings.Replace(name, `"`, `""`, -1)
	// Wrap the entire name in quotes
	return fmt.Sprintf(`"%s"`, name)
}

// QuoteBacktickIdentifier quotes an identifier with backticks (MySQL, MariaDB).
func QuoteBacktickIdentifier(name string) string {
	name = strings.Replace(name, "`", "``", -1)
	return fmt.Sprintf("`%s`", name)
}

// SortedKeys returns the keys of m in sorted order so generated statements are stable.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConnectionID builds the identifier of a connection from its configuration.
func ConnectionID(cfg adapter.ConnectionConfig) string {
	if cfg.Name != "" {
		return fmt.Sprintf("%s/%s", cfg.Name, cfg.DatabaseName)
	}
	if cfg.Host == "" {
		return fmt.Sprintf("%s:%s/%s", cfg.ConnectionType, cfg.Path, cfg.DatabaseName)
	}
	return fmt.Sprintf("%s://%s:%d/%s", cfg.ConnectionType, cfg.Host, cfg.Port, cfg.DatabaseName)
}

// KeyString renders a primary key value for use in keys and messages.
func KeyString(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(id)
}
