package dbcapabilities

import (
	"fmt"
	"sort"
	"strings"
)

// ConnectionURLTemplate is the per-operation connection URL handed to a
// connection factory: <dialect>:<database>;create=true
const ConnectionURLTemplate = "%s:%s;create=true"

// ConnectionURL is the parsed form of a per-operation connection URL.
type ConnectionURL struct {
	Dialect  string
	Database string
	Params   map[string]string
}

// BuildConnectionURL substitutes the lowercased dialect tag and the database name
// into ConnectionURLTemplate.
func BuildConnectionURL(dialect, database string) string {
	return fmt.Sprintf(ConnectionURLTemplate, strings.ToLower(dialect), database)
}

// ParseConnectionURL parses "<dialect>:<database>[;key=value]*".
func ParseConnectionURL(raw string) (*ConnectionURL, error) {
	dialect, rest, ok := strings.Cut(raw, ":")
	if !ok || dialect == "" {
		return nil, fmt.Errorf("connection url %q has no dialect", raw)
	}

	parts := strings.Split(rest, ";")
	u := &ConnectionURL{
		Dialect:  strings.ToLower(dialect),
		Database: parts[0],
		Params:   make(map[string]string),
	}
	if u.Database == "" {
		return nil, fmt.Errorf("connection url %q has no database", raw)
	}

	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		k, v, _ := strings.Cut(p, "=")
		u.Params[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	return u, nil
}

// Type resolves the dialect tag to a canonical database type.
func (u *ConnectionURL) Type() (DatabaseType, bool) {
	return ParseID(u.Dialect)
}

// Create reports whether the caller asked for the database to be created if missing.
func (u *ConnectionURL) Create() bool {
	return strings.EqualFold(u.Params["create"], "true")
}

// String renders the URL back into its canonical form with sorted parameters.
func (u *ConnectionURL) String() string {
	var b strings.Builder
	b.WriteString(u.Dialect)
	b.WriteByte(':')
	b.WriteString(u.Database)

	keys := make([]string, 0, len(u.Params))
	for k := range u.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, u.Params[k])
	}
	return b.String()
}
