package uri

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		scheme     string
		connection string
		segments   []string
		hasQuery   bool
		valid      bool
	}{
		{
			name:       "record with id",
			raw:        "jdbc://db1/orders/items/42",
			scheme:     "jdbc",
			connection: "db1",
			segments:   []string{"orders", "items", "42"},
			valid:      true,
		},
		{
			name:       "record without id",
			raw:        "jdbc://db1/orders/items/",
			scheme:     "jdbc",
			connection: "db1",
			segments:   []string{"orders", "items", ""},
			valid:      true,
		},
		{
			name:       "query over a table",
			raw:        "JDBC://db1/orders/items/?status=open",
			scheme:     "JDBC",
			connection: "db1",
			segments:   []string{"orders", "items", ""},
			hasQuery:   true,
			valid:      true,
		},
		{
			name:       "empty query is still a query",
			raw:        "jdbc://db1/orders/items/?",
			scheme:     "jdbc",
			connection: "db1",
			segments:   []string{"orders", "items", ""},
			hasQuery:   true,
			valid:      true,
		},
		{
			name:       "two segments",
			raw:        "jdbc://db1/orders/items",
			scheme:     "jdbc",
			connection: "db1",
			segments:   []string{"orders", "items"},
		},
		{
			name:       "four segments",
			raw:        "jdbc://db1/orders/items/42/extra",
			scheme:     "jdbc",
			connection: "db1",
			segments:   []string{"orders", "items", "42", "extra"},
		},
		{
			name:       "no path",
			raw:        "jdbc://db1",
			scheme:     "jdbc",
			connection: "db1",
			segments:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Parse(tt.raw)
			require.NoError(t, err)

			assert.Equal(t, tt.scheme, u.Scheme())
			assert.Equal(t, tt.connection, u.Connection())
			assert.Equal(t, tt.segments, u.Segments())
			assert.Equal(t, tt.hasQuery, u.HasQuery())

			if tt.valid {
				assert.NoError(t, u.Validate())
			} else {
				assert.True(t, errors.Is(u.Validate(), ErrSegmentCount))
			}
		})
	}
}

func TestValidateRejectsPathLikeSegments(t *testing.T) {
	for _, raw := range []string{
		"jdbc://db1/..%2Fescaped/items/1",
		"jdbc://db1/orders/a%2Fb/1",
		"jdbc://db1/orders/items/..",
		"jdbc://db1/%2E/items/1",
		"jdbc://db1/orders/items/a%5Cb",
	} {
		u, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.ErrorIs(t, u.Validate(), ErrSegment, raw)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "orders/items/42", "jdbc:orders", "%zz://x"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
}

func TestAccessors(t *testing.T) {
	u := MustParse("jdbc://db1/orders/items/42")

	assert.Equal(t, "orders", u.Database())
	assert.Equal(t, "items", u.Table())
	assert.Equal(t, "42", u.ID())
	assert.True(t, u.HasID())
	assert.Equal(t, "", u.Segment(7))
}

func TestWithID(t *testing.T) {
	u := MustParse("jdbc://db1/orders/items/?fetch=eager")
	assigned := u.WithID("42")

	assert.Equal(t, "42", assigned.ID())
	assert.Equal(t, "", u.ID(), "original must not change")
	assert.Equal(t, "jdbc://db1/orders/items/42?fetch=eager", assigned.String())
}

func TestStringRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"jdbc://db1/orders/items/42",
		"jdbc://db1/orders/items/",
		"jdbc://db1/orders/items/?a=b",
		"jdbc://db1/orders/order%20lines/7",
	} {
		u := MustParse(raw)
		assert.Equal(t, raw, u.String())
		assert.True(t, u.Equal(MustParse(u.String())))
	}
}

func TestNew(t *testing.T) {
	u := New("jdbc", "db1", "orders", "items", "")
	assert.NoError(t, u.Validate())
	assert.Equal(t, "jdbc://db1/orders/items/", u.String())
	assert.False(t, u.HasQuery())
}
