package converter

import "time"

// Document layouts for the JPA temporal types.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// TemporalConverter applies JPA temporal precision. DATE values are stored as
// midnight UTC and read back as "2006-01-02"; TIME values travel as
// "15:04:05" text in both directions; TIMESTAMP values are stored in UTC.
type TemporalConverter struct{}

// NewTemporalConverter returns a TemporalConverter.
func NewTemporalConverter() *TemporalConverter { return &TemporalConverter{} }

// Handles reports true for time attributes carrying a temporal type.
func (c *TemporalConverter) Handles(dt DataType) bool {
	return dt.Kind == KindTime && dt.Temporal != TemporalNone
}

// ToStore implements ValueConverter.
func (c *TemporalConverter) ToStore(dt DataType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	t, err := toTime(dt, v)
	if err != nil {
		return nil, err
	}
	switch dt.Temporal {
	case TemporalDate:
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case TemporalTime:
		return t.Format(TimeLayout), nil
	default:
		return t.UTC(), nil
	}
}

// FromStore implements ValueConverter.
func (c *TemporalConverter) FromStore(dt DataType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	t, err := toTime(dt, v)
	if err != nil {
		return nil, err
	}
	switch dt.Temporal {
	case TemporalDate:
		return t.Format(DateLayout), nil
	case TemporalTime:
		return t.Format(TimeLayout), nil
	default:
		return t.UTC(), nil
	}
}
