package converter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultConverter converts by Kind alone. It accepts the loose shapes that
// decoded JSON and the various drivers produce (float64 numbers, []byte
// strings, 0/1 booleans, textual timestamps) and normalises them.
type DefaultConverter struct{}

// NewDefaultConverter returns the converter every chain ends with.
func NewDefaultConverter() *DefaultConverter { return &DefaultConverter{} }

// Handles reports true for every data type.
func (c *DefaultConverter) Handles(dt DataType) bool { return true }

// ToStore implements ValueConverter.
func (c *DefaultConverter) ToStore(dt DataType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch dt.Kind {
	case KindString, KindUUID:
		return toString(dt, v)
	case KindInteger:
		return toInt64(dt, v)
	case KindFloat:
		return toFloat64(dt, v)
	case KindBoolean:
		return toBool(dt, v)
	case KindTime:
		t, err := toTime(dt, v)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	case KindBytes:
		return toBytes(dt, v)
	case KindJSON:
		if raw, ok := v.(json.RawMessage); ok {
			return toJSONText(dt, raw)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, conversionError(dt, v, err)
		}
		return string(b), nil
	}
	return v, nil
}

// FromStore implements ValueConverter.
func (c *DefaultConverter) FromStore(dt DataType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch dt.Kind {
	case KindString, KindUUID:
		return toString(dt, v)
	case KindInteger:
		return toInt64(dt, v)
	case KindFloat:
		return toFloat64(dt, v)
	case KindBoolean:
		return toBool(dt, v)
	case KindTime:
		return toTime(dt, v)
	case KindBytes:
		if s, ok := v.(string); ok {
			// Stores without a binary type hand the raw bytes back as a string.
			return []byte(s), nil
		}
		return toBytes(dt, v)
	case KindJSON:
		text, err := toJSONText(dt, v)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(text), nil
	}
	return v, nil
}

func toString(dt DataType, v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(x), nil
	}
	return "", conversionError(dt, v, nil)
}

func toInt64(dt DataType, v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, conversionError(dt, v, fmt.Errorf("overflows int64"))
		}
		return int64(x), nil
	case float32:
		return floatToInt(dt, float64(x))
	case float64:
		return floatToInt(dt, x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, conversionError(dt, v, err)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, conversionError(dt, v, err)
		}
		return n, nil
	case []byte:
		return toInt64(dt, string(x))
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, conversionError(dt, v, nil)
}

func floatToInt(dt DataType, f float64) (int64, error) {
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, conversionError(dt, f, fmt.Errorf("not an integer"))
	}
	return int64(f), nil
}

func toFloat64(dt DataType, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, conversionError(dt, v, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, conversionError(dt, v, err)
		}
		return f, nil
	case []byte:
		return toFloat64(dt, string(x))
	}
	n, err := toInt64(dt, v)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

func toBool(dt DataType, v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, conversionError(dt, v, err)
		}
		return b, nil
	case []byte:
		return toBool(dt, string(x))
	}
	n, err := toInt64(dt, v)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// timeLayouts are tried in order when a time arrives as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

func toTime(dt DataType, v interface{}) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return time.Time{}, conversionError(dt, v, nil)
		}
		return *x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, conversionError(dt, v, fmt.Errorf("unrecognised time layout"))
	case []byte:
		return toTime(dt, string(x))
	case int64:
		return time.UnixMilli(x).UTC(), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return time.Time{}, conversionError(dt, v, err)
		}
		return time.UnixMilli(n).UTC(), nil
	case float64:
		return time.UnixMilli(int64(x)).UTC(), nil
	}
	return time.Time{}, conversionError(dt, v, nil)
}

func toBytes(dt DataType, v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		// Binary attributes travel base64 encoded in documents.
		b, err := base64.StdEncoding.DecodeString(x)
		if err != nil {
			return nil, conversionError(dt, v, err)
		}
		return b, nil
	}
	return nil, conversionError(dt, v, nil)
}

// toJSONText accepts stored JSON text.
func toJSONText(dt DataType, v interface{}) (string, error) {
	var text string
	switch x := v.(type) {
	case string:
		text = x
	case []byte:
		text = string(x)
	case json.RawMessage:
		text = string(x)
	default:
		return "", conversionError(dt, v, nil)
	}
	if !json.Valid([]byte(text)) {
		return "", conversionError(dt, v, fmt.Errorf("invalid json"))
	}
	return text, nil
}
