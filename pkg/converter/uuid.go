package converter

import (
	"github.com/google/uuid"
)

// UUIDConverter validates uuid attributes and stores them in canonical
// lowercase text form.
type UUIDConverter struct{}

// NewUUIDConverter returns a UUIDConverter.
func NewUUIDConverter() *UUIDConverter { return &UUIDConverter{} }

// Handles reports true for KindUUID.
func (c *UUIDConverter) Handles(dt DataType) bool { return dt.Kind == KindUUID }

// ToStore implements ValueConverter.
func (c *UUIDConverter) ToStore(dt DataType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	id, err := parseUUID(dt, v)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

// FromStore implements ValueConverter.
func (c *UUIDConverter) FromStore(dt DataType, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	id, err := parseUUID(dt, v)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

func parseUUID(dt DataType, v interface{}) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case string:
		id, err := uuid.Parse(x)
		if err != nil {
			return uuid.Nil, conversionError(dt, v, err)
		}
		return id, nil
	case []byte:
		if len(x) == 16 {
			id, err := uuid.FromBytes(x)
			if err != nil {
				return uuid.Nil, conversionError(dt, v, err)
			}
			return id, nil
		}
		return parseUUID(dt, string(x))
	}
	return uuid.Nil, conversionError(dt, v, nil)
}
