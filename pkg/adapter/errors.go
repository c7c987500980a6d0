package adapter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redbco/redb-persistence/pkg/dbcapabilities"
)

// Sentinels matched with errors.Is. The typed errors below report them through
// their Is methods, so callers never need to know the concrete type.
var (
	ErrOperationNotSupported = errors.New("operation not supported by this database")
	ErrConnectionClosed      = errors.New("connection is closed")
	ErrConnectionFailed      = errors.New("connection failed")
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrTableNotFound         = errors.New("table not found")
	ErrDatabaseNotFound      = errors.New("database not found")
	ErrRecordNotFound        = errors.New("record not found")

	// ErrStaleVersion reports a write whose version no longer matches the stored row.
	ErrStaleVersion = errors.New("stale record version")

	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrUnknownConnection reports a connection name with no registered factory.
	ErrUnknownConnection = errors.New("unknown connection")
)

// DatabaseError is a driver failure tagged with the dialect and the operation
// that hit it. Details such as the database name go in Context.
type DatabaseError struct {
	DatabaseType dbcapabilities.DatabaseType
	Operation    string
	Cause        error
	Context      map[string]interface{}
}

func (e *DatabaseError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.DatabaseType, e.Operation, e.Cause)
	if len(e.Context) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, e.Context[k])
	}
	return msg + " [" + strings.Join(pairs, " ") + "]"
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

func (e *DatabaseError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewDatabaseError tags cause with the dialect and operation.
func NewDatabaseError(dbType dbcapabilities.DatabaseType, operation string, cause error) *DatabaseError {
	return &DatabaseError{DatabaseType: dbType, Operation: operation, Cause: cause}
}

// WithContext records a detail on e and returns it.
func (e *DatabaseError) WithContext(key string, value interface{}) *DatabaseError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WrapError tags err as a DatabaseError unless it already is one.
func WrapError(dbType dbcapabilities.DatabaseType, operation string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	return NewDatabaseError(dbType, operation, err)
}

// UnsupportedOperationError reports an operation a dialect cannot perform.
type UnsupportedOperationError struct {
	DatabaseType dbcapabilities.DatabaseType
	Operation    string
	Reason       string
}

func (e *UnsupportedOperationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s cannot %s", e.DatabaseType, e.Operation)
	}
	return fmt.Sprintf("%s cannot %s: %s", e.DatabaseType, e.Operation, e.Reason)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrOperationNotSupported
}

func NewUnsupportedOperationError(dbType dbcapabilities.DatabaseType, operation string, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{DatabaseType: dbType, Operation: operation, Reason: reason}
}

// ConnectionError reports a failed dial. Host is a file path for embedded
// dialects and empty when unknown.
type ConnectionError struct {
	DatabaseType dbcapabilities.DatabaseType
	Host         string
	Port         int
	Cause        error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.Host == "":
		return fmt.Sprintf("connect %s: %v", e.DatabaseType, e.Cause)
	case e.Port == 0:
		return fmt.Sprintf("connect %s %s: %v", e.DatabaseType, e.Host, e.Cause)
	}
	return fmt.Sprintf("connect %s %s:%d: %v", e.DatabaseType, e.Host, e.Port, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed || errors.Is(e.Cause, target)
}

func NewConnectionError(dbType dbcapabilities.DatabaseType, host string, port int, cause error) *ConnectionError {
	return &ConnectionError{DatabaseType: dbType, Host: host, Port: port, Cause: cause}
}

// ConfigurationError reports a connection setting that cannot work.
type ConfigurationError struct {
	DatabaseType dbcapabilities.DatabaseType
	Field        string
	Reason       string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s configuration: %s", e.DatabaseType, e.Reason)
	}
	return fmt.Sprintf("%s configuration: %s: %s", e.DatabaseType, e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func NewConfigurationError(dbType dbcapabilities.DatabaseType, field string, reason string) *ConfigurationError {
	return &ConfigurationError{DatabaseType: dbType, Field: field, Reason: reason}
}

// NotFoundError reports a missing database, table or record. Which sentinel
// it matches depends on ResourceType.
type NotFoundError struct {
	DatabaseType dbcapabilities.DatabaseType
	ResourceType string
	ResourceName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found in %s", e.ResourceType, e.ResourceName, e.DatabaseType)
}

func (e *NotFoundError) Is(target error) bool {
	switch e.ResourceType {
	case "table", "collection":
		return target == ErrTableNotFound
	case "database":
		return target == ErrDatabaseNotFound
	case "record":
		return target == ErrRecordNotFound
	}
	return false
}

func NewNotFoundError(dbType dbcapabilities.DatabaseType, resourceType string, resourceName string) *NotFoundError {
	return &NotFoundError{DatabaseType: dbType, ResourceType: resourceType, ResourceName: resourceName}
}

// NewRecordNotFoundError reports that table has no record keyed by id.
func NewRecordNotFoundError(dbType dbcapabilities.DatabaseType, table string, id interface{}) *NotFoundError {
	return NewNotFoundError(dbType, "record", fmt.Sprintf("%s/%v", table, id))
}

func IsUnsupported(err error) bool { return errors.Is(err, ErrOperationNotSupported) }
func IsConnectionError(err error) bool { return errors.Is(err, ErrConnectionFailed) }
func IsConfigurationError(err error) bool { return errors.Is(err, ErrInvalidConfiguration) }
func IsNotFound(err error) bool { return errors.Is(err, ErrRecordNotFound) }
