// Package uri implements the resource identifiers routed by the persistence
// handler:
//
//	jdbc://connectionName/database/table/[id]
//
// The authority names a registered connection. The path has exactly three
// segments; an empty third segment means the record has no id yet and the
// store assigns one on the first write.
package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// SegmentCount is the number of path segments a routable identifier carries.
const SegmentCount = 3

var (
	// ErrMalformed is returned when a string cannot be parsed as a resource identifier.
	ErrMalformed = errors.New("malformed resource identifier")

	// ErrSegmentCount is returned when the path does not have exactly three segments.
	ErrSegmentCount = errors.New("resource identifier path must have exactly 3 segments")

	// ErrSegment is returned when a decoded path segment is a dot segment or
	// contains a path separator.
	ErrSegment = errors.New("invalid resource identifier segment")
)

// URI is an immutable resource identifier. The zero value is not routable.
type URI struct {
	scheme    string
	authority string
	segments  []string
	query     *string
	fragment  string
}

// Parse parses a resource identifier. It does not enforce the segment count;
// use Validate for that, so that queries such as "jdbc://c/db/table/" remain
// representable.
func Parse(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if u.Scheme == "" {
		return URI{}, fmt.Errorf("%w: %q has no scheme", ErrMalformed, raw)
	}
	if u.Opaque != "" {
		return URI{}, fmt.Errorf("%w: %q is not hierarchical", ErrMalformed, raw)
	}

	out := URI{
		scheme:    u.Scheme,
		authority: u.Host,
		fragment:  u.Fragment,
	}

	path := u.EscapedPath()
	if path != "" {
		for _, s := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
			seg, err := url.PathUnescape(s)
			if err != nil {
				return URI{}, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			out.segments = append(out.segments, seg)
		}
	}

	if u.ForceQuery || u.RawQuery != "" {
		q := u.RawQuery
		out.query = &q
	}

	return out, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(raw string) URI {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// New builds an identifier from its parts.
func New(scheme, connection, database, table, id string) URI {
	return URI{
		scheme:    scheme,
		authority: connection,
		segments:  []string{database, table, id},
	}
}

// Scheme returns the scheme tag.
func (u URI) Scheme() string { return u.scheme }

// Connection returns the authority, which names a registered connection.
func (u URI) Connection() string { return u.authority }

// SegmentCount returns the number of path segments.
func (u URI) SegmentCount() int { return len(u.segments) }

// Segment returns the i-th path segment or "" when out of range.
func (u URI) Segment(i int) string {
	if i < 0 || i >= len(u.segments) {
		return ""
	}
	return u.segments[i]
}

// Segments returns a copy of the path segments.
func (u URI) Segments() []string {
	out := make([]string, len(u.segments))
	copy(out, u.segments)
	return out
}

// Database returns segment 0.
func (u URI) Database() string { return u.Segment(0) }

// Table returns segment 1.
func (u URI) Table() string { return u.Segment(1) }

// ID returns segment 2; empty when the store has not assigned one yet.
func (u URI) ID() string { return u.Segment(2) }

// HasID reports whether the id segment is set.
func (u URI) HasID() bool { return u.ID() != "" }

// Query returns the raw query and whether a query component is present at all.
// "jdbc://c/db/t/?" has an empty but present query.
func (u URI) Query() (string, bool) {
	if u.query == nil {
		return "", false
	}
	return *u.query, true
}

// HasQuery reports whether the identifier carries a query component.
func (u URI) HasQuery() bool { return u.query != nil }

// Fragment returns the fragment, if any.
func (u URI) Fragment() string { return u.fragment }

// Validate checks that the identifier has exactly three path segments and
// that none of them, once decoded, could name another path.
func (u URI) Validate() error {
	if len(u.segments) != SegmentCount {
		return fmt.Errorf("%w: %q has %d", ErrSegmentCount, u.String(), len(u.segments))
	}
	for _, s := range u.segments {
		if s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return fmt.Errorf("%w: %q", ErrSegment, s)
		}
	}
	return nil
}

// WithID returns a copy of u whose third segment is id. The query and fragment
// are kept.
func (u URI) WithID(id string) URI {
	out := u
	out.segments = make([]string, SegmentCount)
	copy(out.segments, u.segments)
	out.segments[2] = id
	return out
}

// WithQuery returns a copy of u with the given raw query.
func (u URI) WithQuery(q string) URI {
	out := u
	out.segments = u.Segments()
	out.query = &q
	return out
}

// String renders the identifier.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(u.scheme)
	b.WriteString("://")
	b.WriteString(u.authority)
	for _, s := range u.segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if u.query != nil {
		b.WriteByte('?')
		b.WriteString(*u.query)
	}
	if u.fragment != "" {
		b.WriteByte('#')
		b.WriteString(url.PathEscape(u.fragment))
	}
	return b.String()
}

// Equal reports whether two identifiers render identically.
func (u URI) Equal(o URI) bool { return u.String() == o.String() }
