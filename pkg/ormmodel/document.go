package ormmodel

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const (
	// RootElement is the local name of the orm.xml document element.
	RootElement = "entity-mappings"

	// XSINamespace is the XML Schema instance namespace carrying schemaLocation.
	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

	// ORMNamespace is the JPA 2.1 orm namespace.
	ORMNamespace = "http://xmlns.jcp.org/xml/ns/persistence/orm"
)

// DocumentRoot wraps EntityMappings with the namespace declarations and
// schema locations found on the document element.
type DocumentRoot struct {
	// XMLNSPrefixMap maps a namespace prefix ("" for the default namespace) to its URI.
	XMLNSPrefixMap map[string]string
	// XSISchemaLocation maps a namespace URI to the location of its schema.
	XSISchemaLocation map[string]string

	EntityMappings *EntityMappings
}

// NewDocumentRoot returns a root for em declaring the JPA orm namespace as default.
func NewDocumentRoot(em *EntityMappings) *DocumentRoot {
	return &DocumentRoot{
		XMLNSPrefixMap:    map[string]string{"": ORMNamespace, "xsi": XSINamespace},
		XSISchemaLocation: map[string]string{ORMNamespace: "http://xmlns.jcp.org/xml/ns/persistence/orm_2_1.xsd"},
		EntityMappings:    em,
	}
}

// UnmarshalXML implements xml.Unmarshaler.
func (d *DocumentRoot) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	if start.Name.Local != RootElement {
		return fmt.Errorf("unexpected document element <%s>, want <%s>", start.Name.Local, RootElement)
	}

	d.XMLNSPrefixMap = make(map[string]string)
	d.XSISchemaLocation = make(map[string]string)

	for _, a := range start.Attr {
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			d.XMLNSPrefixMap[""] = a.Value
		case a.Name.Space == "xmlns":
			d.XMLNSPrefixMap[a.Name.Local] = a.Value
		case a.Name.Local == "schemaLocation" && (a.Name.Space == XSINamespace || a.Name.Space == "xsi"):
			fields := strings.Fields(a.Value)
			for i := 0; i+1 < len(fields); i += 2 {
				d.XSISchemaLocation[fields[i]] = fields[i+1]
			}
		}
	}

	em := &EntityMappings{}
	if err := dec.DecodeElement(em, &start); err != nil {
		return err
	}
	d.EntityMappings = em
	return nil
}

// MarshalXML implements xml.Marshaler.
func (d *DocumentRoot) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: RootElement}}

	prefixes := make([]string, 0, len(d.XMLNSPrefixMap))
	for p := range d.XMLNSPrefixMap {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		name := "xmlns"
		if p != "" {
			name = "xmlns:" + p
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: d.XMLNSPrefixMap[p]})
	}

	if len(d.XSISchemaLocation) > 0 {
		namespaces := make([]string, 0, len(d.XSISchemaLocation))
		for ns := range d.XSISchemaLocation {
			namespaces = append(namespaces, ns)
		}
		sort.Strings(namespaces)
		pairs := make([]string, 0, 2*len(namespaces))
		for _, ns := range namespaces {
			pairs = append(pairs, ns, d.XSISchemaLocation[ns])
		}
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: d.xsiPrefix() + ":schemaLocation"},
			Value: strings.Join(pairs, " "),
		})
	}

	em := d.EntityMappings
	if em == nil {
		em = &EntityMappings{}
	}
	return enc.EncodeElement(em, start)
}

func (d *DocumentRoot) xsiPrefix() string {
	for p, ns := range d.XMLNSPrefixMap {
		if ns == XSINamespace && p != "" {
			return p
		}
	}
	return "xsi"
}

// Parse reads an orm.xml document.
func Parse(r io.Reader) (*DocumentRoot, error) {
	root := &DocumentRoot{}
	if err := xml.NewDecoder(r).Decode(root); err != nil {
		return nil, fmt.Errorf("parsing orm mapping: %w", err)
	}
	return root, nil
}

// Load reads an orm.xml document from path.
func Load(path string) (*DocumentRoot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening orm mapping: %w", err)
	}
	defer f.Close()

	root, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

// Marshal renders the document with an XML declaration.
func (d *DocumentRoot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
