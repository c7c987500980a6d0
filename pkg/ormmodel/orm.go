// Package ormmodel holds the records of a JPA object-relational mapping
// (orm.xml): entity mappings, entities, their tables and attributes.
//
// The records carry no behaviour beyond lookups and defaulting; reading and
// writing the XML form lives in document.go.
package ormmodel

import "strings"

// AccessType is the JPA access type.
type AccessType string

const (
	AccessProperty AccessType = "PROPERTY"
	AccessField    AccessType = "FIELD"
)

// TemporalType is the JPA temporal precision of a date/time attribute.
type TemporalType string

const (
	TemporalDate      TemporalType = "DATE"
	TemporalTime      TemporalType = "TIME"
	TemporalTimestamp TemporalType = "TIMESTAMP"
)

// GenerationType is the JPA primary key generation strategy.
type GenerationType string

const (
	GenerationTable    GenerationType = "TABLE"
	GenerationSequence GenerationType = "SEQUENCE"
	GenerationIdentity GenerationType = "IDENTITY"
	GenerationAuto     GenerationType = "AUTO"
)

// FetchType is the JPA fetch strategy.
type FetchType string

const (
	FetchLazy  FetchType = "LAZY"
	FetchEager FetchType = "EAGER"
)

// EnumType is the JPA enumerated mapping.
type EnumType string

const (
	EnumOrdinal EnumType = "ORDINAL"
	EnumString  EnumType = "STRING"
)

// EntityMappings is the root of an orm.xml document.
type EntityMappings struct {
	Version                 string                   `xml:"version,attr,omitempty"`
	Description             string                   `xml:"description,omitempty"`
	PersistenceUnitMetadata *PersistenceUnitMetadata `xml:"persistence-unit-metadata"`
	Package                 string                   `xml:"package,omitempty"`
	Schema                  string                   `xml:"schema,omitempty"`
	Catalog                 string                   `xml:"catalog,omitempty"`
	Access                  *AccessType              `xml:"access"`
	SequenceGenerators      []SequenceGenerator      `xml:"sequence-generator"`
	TableGenerators         []TableGenerator         `xml:"table-generator"`
	NamedQueries            []NamedQuery             `xml:"named-query"`
	Entities                []Entity                 `xml:"entity"`
}

// PersistenceUnitMetadata holds defaults for the whole persistence unit.
type PersistenceUnitMetadata struct {
	Description                string                   `xml:"description,omitempty"`
	XMLMappingMetadataComplete *Empty                   `xml:"xml-mapping-metadata-complete"`
	PersistenceUnitDefaults    *PersistenceUnitDefaults `xml:"persistence-unit-defaults"`
}

// PersistenceUnitDefaults are the schema, catalog and access defaults.
type PersistenceUnitDefaults struct {
	Description string      `xml:"description,omitempty"`
	Schema      string      `xml:"schema,omitempty"`
	Catalog     string      `xml:"catalog,omitempty"`
	Access      *AccessType `xml:"access"`
}

// Empty is a marker element without content.
type Empty struct{}

// SequenceGenerator maps <sequence-generator>.
type SequenceGenerator struct {
	Name           string `xml:"name,attr"`
	SequenceName   string `xml:"sequence-name,attr,omitempty"`
	Catalog        string `xml:"catalog,attr,omitempty"`
	Schema         string `xml:"schema,attr,omitempty"`
	InitialValue   *int   `xml:"initial-value,attr"`
	AllocationSize *int   `xml:"allocation-size,attr"`
}

// TableGenerator maps <table-generator>.
type TableGenerator struct {
	Name            string `xml:"name,attr"`
	Table           string `xml:"table,attr,omitempty"`
	PkColumnName    string `xml:"pk-column-name,attr,omitempty"`
	ValueColumnName string `xml:"value-column-name,attr,omitempty"`
	PkColumnValue   string `xml:"pk-column-value,attr,omitempty"`
	InitialValue    *int   `xml:"initial-value,attr"`
	AllocationSize  *int   `xml:"allocation-size,attr"`
}

// NamedQuery maps <named-query>.
type NamedQuery struct {
	Name        string `xml:"name,attr"`
	Description string `xml:"description,omitempty"`
	Query       string `xml:"query"`
}

// Entity maps <entity>.
type Entity struct {
	Name             string      `xml:"name,attr,omitempty"`
	Class            string      `xml:"class,attr"`
	Access           *AccessType `xml:"access,attr"`
	Cacheable        *bool       `xml:"cacheable,attr"`
	MetadataComplete *bool       `xml:"metadata-complete,attr"`
	Description      string      `xml:"description,omitempty"`
	Table            *Table      `xml:"table"`
	Attributes       *Attributes `xml:"attributes"`
}

// Table maps <table>.
type Table struct {
	Name              string             `xml:"name,attr,omitempty"`
	Catalog           string             `xml:"catalog,attr,omitempty"`
	Schema            string             `xml:"schema,attr,omitempty"`
	UniqueConstraints []UniqueConstraint `xml:"unique-constraint"`
}

// UniqueConstraint maps <unique-constraint>.
type UniqueConstraint struct {
	Name        string   `xml:"name,attr,omitempty"`
	ColumnNames []string `xml:"column-name"`
}

// Attributes maps <attributes>.
type Attributes struct {
	Description string      `xml:"description,omitempty"`
	Ids         []Id        `xml:"id"`
	Basics      []Basic     `xml:"basic"`
	Versions    []Version   `xml:"version"`
	Transients  []Transient `xml:"transient"`
}

// Id maps <id>.
type Id struct {
	Name           string          `xml:"name,attr"`
	Access         *AccessType     `xml:"access,attr"`
	Column         *Column         `xml:"column"`
	GeneratedValue *GeneratedValue `xml:"generated-value"`
	Temporal       *TemporalType   `xml:"temporal"`
}

// GeneratedValue maps <generated-value>. An empty strategy means AUTO.
type GeneratedValue struct {
	Strategy  GenerationType `xml:"strategy,attr,omitempty"`
	Generator string         `xml:"generator,attr,omitempty"`
}

// EffectiveStrategy returns the strategy, defaulting to AUTO.
func (g *GeneratedValue) EffectiveStrategy() GenerationType {
	if g == nil || g.Strategy == "" {
		return GenerationAuto
	}
	return g.Strategy
}

// Basic maps <basic>.
type Basic struct {
	Name       string        `xml:"name,attr"`
	Fetch      *FetchType    `xml:"fetch,attr"`
	Optional   *bool         `xml:"optional,attr"`
	Access     *AccessType   `xml:"access,attr"`
	Column     *Column       `xml:"column"`
	Lob        *Empty        `xml:"lob"`
	Temporal   *TemporalType `xml:"temporal"`
	Enumerated *EnumType     `xml:"enumerated"`
}

// IsOptional reports whether the attribute may be null; JPA defaults to true.
func (b *Basic) IsOptional() bool {
	return b.Optional == nil || *b.Optional
}

// Version maps <version>, the optimistic locking attribute.
type Version struct {
	Name     string        `xml:"name,attr"`
	Access   *AccessType   `xml:"access,attr"`
	Column   *Column       `xml:"column"`
	Temporal *TemporalType `xml:"temporal"`
}

// GetAccess returns the access type, PROPERTY when unset.
func (v *Version) GetAccess() AccessType {
	if v.Access == nil {
		return AccessProperty
	}
	return *v.Access
}

// SetAccess sets the access type.
func (v *Version) SetAccess(a AccessType) { v.Access = &a }

// UnsetAccess clears the access type.
func (v *Version) UnsetAccess() { v.Access = nil }

// IsSetAccess reports whether the access type was set explicitly.
func (v *Version) IsSetAccess() bool { return v.Access != nil }

// Transient maps <transient>.
type Transient struct {
	Name string `xml:"name,attr"`
}

// Column maps <column>.
type Column struct {
	Name             string `xml:"name,attr,omitempty"`
	Unique           *bool  `xml:"unique,attr"`
	Nullable         *bool  `xml:"nullable,attr"`
	Insertable       *bool  `xml:"insertable,attr"`
	Updatable        *bool  `xml:"updatable,attr"`
	ColumnDefinition string `xml:"column-definition,attr,omitempty"`
	Table            string `xml:"table,attr,omitempty"`
	Length           *int   `xml:"length,attr"`
	Precision        *int   `xml:"precision,attr"`
	Scale            *int   `xml:"scale,attr"`
}

// ColumnName returns the mapped column name for an attribute, defaulting to the attribute name.
func ColumnName(c *Column, attribute string) string {
	if c != nil && c.Name != "" {
		return c.Name
	}
	return attribute
}

// IsNullable reports whether the column accepts null; JPA defaults to true.
func (c *Column) IsNullable() bool {
	return c == nil || c.Nullable == nil || *c.Nullable
}

// IsUpdatable reports whether the column is written on update; JPA defaults to true.
func (c *Column) IsUpdatable() bool {
	return c == nil || c.Updatable == nil || *c.Updatable
}

// EntityName returns the entity name, defaulting to the unqualified class name.
func (e *Entity) EntityName() string {
	if e.Name != "" {
		return e.Name
	}
	if i := strings.LastIndex(e.Class, "."); i >= 0 {
		return e.Class[i+1:]
	}
	return e.Class
}

// TableName returns the mapped table name, defaulting to the entity name.
func (e *Entity) TableName() string {
	if e.Table != nil && e.Table.Name != "" {
		return e.Table.Name
	}
	return e.EntityName()
}

// IdAttribute returns the first id attribute.
func (e *Entity) IdAttribute() (*Id, bool) {
	if e.Attributes == nil || len(e.Attributes.Ids) == 0 {
		return nil, false
	}
	return &e.Attributes.Ids[0], true
}

// VersionAttribute returns the version attribute, if any.
func (e *Entity) VersionAttribute() (*Version, bool) {
	if e.Attributes == nil || len(e.Attributes.Versions) == 0 {
		return nil, false
	}
	return &e.Attributes.Versions[0], true
}

// EffectiveAccess resolves the access type through entity, mapping file and
// persistence unit defaults.
func (em *EntityMappings) EffectiveAccess(e *Entity) AccessType {
	if e.Access != nil {
		return *e.Access
	}
	if em.Access != nil {
		return *em.Access
	}
	if md := em.PersistenceUnitMetadata; md != nil && md.PersistenceUnitDefaults != nil && md.PersistenceUnitDefaults.Access != nil {
		return *md.PersistenceUnitDefaults.Access
	}
	return AccessProperty
}

// EntityForTable finds the entity mapped to table. Table names and entity
// names are matched case-insensitively.
func (em *EntityMappings) EntityForTable(table string) (*Entity, bool) {
	for i := range em.Entities {
		if strings.EqualFold(em.Entities[i].TableName(), table) {
			return &em.Entities[i], true
		}
	}
	for i := range em.Entities {
		if strings.EqualFold(em.Entities[i].EntityName(), table) {
			return &em.Entities[i], true
		}
	}
	return nil, false
}

// EntityByClass finds the entity for a fully qualified class name. Unqualified
// class names are resolved against the mapping's package.
func (em *EntityMappings) EntityByClass(class string) (*Entity, bool) {
	for i := range em.Entities {
		c := em.Entities[i].Class
		if c == class || (em.Package != "" && !strings.Contains(c, ".") && em.Package+"."+c == class) {
			return &em.Entities[i], true
		}
	}
	return nil, false
}
