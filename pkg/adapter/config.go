package adapter

// ConnectionConfig contains the configuration for a database connection.
// This is a unified configuration that works across all database types.
type ConnectionConfig struct {
	// Connection metadata
	Name        string `json:"name,omitempty" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`

	// Database type, e.g., "postgres", "mysql", "derby"
	ConnectionType string `json:"connectionType" yaml:"type"`

	// Connection details
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	Username     string `json:"username,omitempty" yaml:"username"`
	Password     string `json:"password,omitempty" yaml:"password"`
	DatabaseName string `json:"databaseName" yaml:"database"`

	// Path is the directory holding embedded database files.
	Path string `json:"path,omitempty" yaml:"path"`

	// CreateDatabase asks the adapter to create DatabaseName if it is missing.
	CreateDatabase bool `json:"createDatabase,omitempty" yaml:"create_database"`

	// SSL/TLS configuration
	SSL                   bool    `json:"ssl,omitempty" yaml:"ssl"`
	SSLMode               string  `json:"sslMode,omitempty" yaml:"ssl_mode"` // verify-full, require, etc.
	SSLRejectUnauthorized *bool   `json:"sslRejectUnauthorized,omitempty" yaml:"ssl_reject_unauthorized"`
	SSLCert               *string `json:"sslCert,omitempty" yaml:"ssl_cert"`
	SSLKey                *string `json:"sslKey,omitempty" yaml:"ssl_key"`
	SSLRootCert           *string `json:"sslRootCert,omitempty" yaml:"ssl_root_cert"`

	// Database-specific options (use sparingly)
	Options map[string]interface{} `json:"options,omitempty" yaml:"options"`
}

// Option returns the string form of a database-specific option.
func (c ConnectionConfig) Option(key string) (string, bool) {
	v, ok := c.Options[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetStringPtr returns a pointer to a string value, or nil if the string is empty.
// Helper function for optional string fields.
func GetStringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetString returns the string value from a pointer, or empty string if nil.
// Helper function for optional string fields.
func GetString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetBoolPtr returns a pointer to a bool value.
// Helper function for optional bool fields.
func GetBoolPtr(b bool) *bool {
	return &b
}

// GetBool returns the bool value from a pointer, or false if nil.
// Helper function for optional bool fields.
func GetBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
