package ormmodel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSample(t *testing.T) *DocumentRoot {
	t.Helper()
	root, err := Load("testdata/orm.xml")
	require.NoError(t, err)
	require.NotNil(t, root.EntityMappings)
	return root
}

func TestLoadDocumentRoot(t *testing.T) {
	root := loadSample(t)

	assert.Equal(t, ORMNamespace, root.XMLNSPrefixMap[""])
	assert.Equal(t, XSINamespace, root.XMLNSPrefixMap["xsi"])
	assert.Equal(t, "http://xmlns.jcp.org/xml/ns/persistence/orm_2_1.xsd", root.XSISchemaLocation[ORMNamespace])

	em := root.EntityMappings
	assert.Equal(t, "2.1", em.Version)
	assert.Equal(t, "com.example.orders", em.Package)
	require.Len(t, em.Entities, 2)
	require.Len(t, em.SequenceGenerators, 1)
	require.NotNil(t, em.SequenceGenerators[0].AllocationSize)
	assert.Equal(t, 1, *em.SequenceGenerators[0].AllocationSize)
}

func TestEntityLookups(t *testing.T) {
	em := loadSample(t).EntityMappings

	customer, ok := em.EntityForTable("CUSTOMER")
	require.True(t, ok)
	assert.Equal(t, "Customer", customer.EntityName())
	assert.Equal(t, AccessField, em.EffectiveAccess(customer))

	id, ok := customer.IdAttribute()
	require.True(t, ok)
	assert.Equal(t, "customer_id", ColumnName(id.Column, id.Name))
	assert.Equal(t, GenerationIdentity, id.GeneratedValue.EffectiveStrategy())

	attrs := customer.Attributes
	require.Len(t, attrs.Basics, 4)
	assert.Equal(t, "full_name", ColumnName(attrs.Basics[0].Column, attrs.Basics[0].Name))
	assert.False(t, attrs.Basics[0].Column.IsNullable())
	assert.Equal(t, 120, *attrs.Basics[0].Column.Length)
	assert.True(t, attrs.Basics[1].IsOptional())
	require.NotNil(t, attrs.Basics[2].Temporal)
	assert.Equal(t, TemporalDate, *attrs.Basics[2].Temporal)
	assert.Equal(t, "cachedScore", attrs.Transients[0].Name)

	line, ok := em.EntityForTable("line")
	require.True(t, ok, "entity name is the default table name")
	assert.Equal(t, AccessProperty, em.EffectiveAccess(line))

	byClass, ok := em.EntityByClass("com.example.orders.Customer")
	require.True(t, ok, "unqualified classes resolve against the package")
	assert.Same(t, customer, byClass)

	_, ok = em.EntityForTable("invoice")
	assert.False(t, ok)
}

func TestVersionAccess(t *testing.T) {
	em := loadSample(t).EntityMappings

	customer, _ := em.EntityForTable("customer")
	v, ok := customer.VersionAttribute()
	require.True(t, ok)
	assert.Equal(t, "rev", ColumnName(v.Column, v.Name))
	assert.False(t, v.IsSetAccess())
	assert.Equal(t, AccessProperty, v.GetAccess())

	v.SetAccess(AccessField)
	assert.True(t, v.IsSetAccess())
	assert.Equal(t, AccessField, v.GetAccess())
	v.UnsetAccess()
	assert.False(t, v.IsSetAccess())

	line, _ := em.EntityForTable("Line")
	lv, ok := line.VersionAttribute()
	require.True(t, ok)
	assert.True(t, lv.IsSetAccess())
	assert.Equal(t, TemporalTimestamp, *lv.Temporal)
}

func TestMarshalKeepsNamespaces(t *testing.T) {
	root := loadSample(t)

	out, err := root.Marshal()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("<?xml")))
	assert.Contains(t, string(out), `xmlns:xsi="`+XSINamespace+`"`)

	again, err := Parse(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, root.XMLNSPrefixMap, again.XMLNSPrefixMap)
	assert.Equal(t, root.XSISchemaLocation, again.XSISchemaLocation)

	customer, ok := again.EntityMappings.EntityForTable("customer")
	require.True(t, ok)
	v, _ := customer.VersionAttribute()
	assert.False(t, v.IsSetAccess())
}

func TestNewDocumentRoot(t *testing.T) {
	root := NewDocumentRoot(&EntityMappings{Version: "2.1", Entities: []Entity{{Class: "a.B"}}})
	out, err := root.Marshal()
	require.NoError(t, err)

	again, err := Parse(bytes.NewReader(out))
	require.NoError(t, err)
	e, ok := again.EntityMappings.EntityForTable("B")
	require.True(t, ok)
	assert.Equal(t, "a.B", e.Class)
}

func TestParseRejectsOtherDocuments(t *testing.T) {
	_, err := Parse(strings.NewReader(`<persistence version="2.1"/>`))
	assert.Error(t, err)

	_, err = Load("testdata/missing.xml")
	assert.Error(t, err)
}
