package converter

import "fmt"

// Kind is the value category of an attribute.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindTime
	KindBytes
	KindUUID
	KindJSON
)

var kindNames = map[Kind]string{
	KindString:  "string",
	KindInteger: "integer",
	KindFloat:   "float",
	KindBoolean: "boolean",
	KindTime:    "time",
	KindBytes:   "bytes",
	KindUUID:    "uuid",
	KindJSON:    "json",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind name as written in mappings ("string", "long", "int", "timestamp"...).
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "string", "varchar", "char", "text":
		return KindString, true
	case "integer", "int", "long", "short", "bigint", "smallint":
		return KindInteger, true
	case "float", "double", "decimal", "numeric", "real":
		return KindFloat, true
	case "boolean", "bool":
		return KindBoolean, true
	case "time", "timestamp", "date", "datetime":
		return KindTime, true
	case "bytes", "binary", "blob", "bytea":
		return KindBytes, true
	case "uuid":
		return KindUUID, true
	case "json", "jsonb", "document":
		return KindJSON, true
	}
	return 0, false
}

// Temporal narrows a KindTime value to the JPA temporal precision.
type Temporal string

const (
	TemporalNone      Temporal = ""
	TemporalDate      Temporal = "DATE"
	TemporalTime      Temporal = "TIME"
	TemporalTimestamp Temporal = "TIMESTAMP"
)

// DataType describes the attribute a value belongs to.
type DataType struct {
	// Name is the attribute or type name, used in error messages.
	Name     string
	Kind     Kind
	Temporal Temporal
}

func (dt DataType) String() string {
	if dt.Temporal != TemporalNone {
		return fmt.Sprintf("%s(%s %s)", dt.Name, dt.Kind, dt.Temporal)
	}
	return fmt.Sprintf("%s(%s)", dt.Name, dt.Kind)
}

// ConversionError reports a value that cannot be converted for a data type.
type ConversionError struct {
	Type  DataType
	Value interface{}
	Cause error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot convert %T %v for %s: %v", e.Value, e.Value, e.Type, e.Cause)
	}
	return fmt.Sprintf("cannot convert %T %v for %s", e.Value, e.Value, e.Type)
}

func (e *ConversionError) Unwrap() error { return e.Cause }

func conversionError(dt DataType, v interface{}, cause error) error {
	return &ConversionError{Type: dt, Value: v, Cause: cause}
}
