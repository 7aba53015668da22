package policy

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
)

// Document is an ePO policy export: a version stamp, one or more policy
// objects and the settings blocks they reference, all under one root.
type Document struct {
	XMLName  xml.Name
	Attrs    []xml.Attr       `xml:",any,attr"`
	VerInfo  *VersionInfo     `xml:"EPOPolicyVerInfo"`
	Settings []*SettingsBlock `xml:"EPOPolicySettings"`
	Objects  []*Object        `xml:"EPOPolicyObject"`
	Extra    []Element        `xml:",any"`
}

// VersionInfo is the ePO server version that produced the export.
type VersionInfo struct {
	Major   string     `xml:"vermjr,attr"`
	Minor   string     `xml:"vermin,attr"`
	Release string     `xml:"verrel,attr"`
	Build   string     `xml:"verbld,attr"`
	Attrs   []xml.Attr `xml:",any,attr"`
}

// String returns the dotted version, e.g. "5.10.0.2428".
func (v *VersionInfo) String() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s.%s.%s.%s", v.Major, v.Minor, v.Release, v.Build)
}

// Object is one named policy of a given product and type.
type Object struct {
	ServerID     string     `xml:"serverid,attr"`
	Name         string     `xml:"name,attr"`
	FeatureID    string     `xml:"featureid,attr"`
	TypeID       string     `xml:"typeid,attr"`
	Attrs        []xml.Attr `xml:",any,attr"`
	SettingsRefs []string   `xml:"PolicySettings"`
	Extra        []Element  `xml:",any"`
}

// SettingsBlock is a named group of sections. ParamInt and ParamStr carry
// product-specific discriminators (the firewall uses them to tag rules).
type SettingsBlock struct {
	Name      string     `xml:"name,attr"`
	FeatureID string     `xml:"featureid,attr,omitempty"`
	TypeID    string     `xml:"typeid,attr,omitempty"`
	ParamInt  string     `xml:"param_int,attr,omitempty"`
	ParamStr  string     `xml:"param_str,attr,omitempty"`
	Attrs     []xml.Attr `xml:",any,attr"`
	Sections  []*Section `xml:"Section"`
}

// Section returns the first section with the given name.
func (b *SettingsBlock) Section(name string) *Section {
	for _, s := range b.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Section is a named list of settings.
type Section struct {
	Name     string     `xml:"name,attr"`
	Settings []*Setting `xml:"Setting"`
}

// Get returns the value of the first setting with the given name.
func (s *Section) Get(name string) (string, bool) {
	if st := s.Setting(name); st != nil {
		return st.Value, true
	}
	return "", false
}

// Setting returns the first setting with the given name.
func (s *Section) Setting(name string) *Setting {
	for _, st := range s.Settings {
		if st.Name == name {
			return st
		}
	}
	return nil
}

// Setting is a single name/value pair. Values are always strings.
type Setting struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Element preserves an element the model does not know about.
type Element struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// Parse decodes an ePO policy export.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy XML: %w", err)
	}
	doc.flattenNamespaces()
	return &doc, nil
}

// ReadFile loads an exported policy file.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Bytes encodes the document, including the XML declaration.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode policy XML: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFile saves the document so it can be imported into an ePO server.
func (d *Document) WriteFile(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write policy file: %w", err)
	}
	return nil
}

// Version returns the ePO version string, or "" when the export has none.
func (d *Document) Version() string {
	return d.VerInfo.String()
}

// Block returns the settings block with the given name.
func (d *Document) Block(name string) *SettingsBlock {
	for _, b := range d.Settings {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Object returns the policy object with the given type and name.
func (d *Document) Object(typeID, name string) *Object {
	for _, o := range d.Objects {
		if o.TypeID == typeID && o.Name == name {
			return o
		}
	}
	return nil
}

// flattenNamespaces rewrites prefixed root attributes (xmlns:xsi,
// xsi:noNamespaceSchemaLocation) to plain names so they encode verbatim.
func (d *Document) flattenNamespaces() {
	prefixes := make(map[string]string)
	for _, a := range d.Attrs {
		if a.Name.Space == "xmlns" {
			prefixes[a.Value] = a.Name.Local
		}
	}

	attrs := make([]xml.Attr, 0, len(d.Attrs))
	for _, a := range d.Attrs {
		switch {
		case a.Name.Space == "xmlns":
			a.Name = xml.Name{Local: "xmlns:" + a.Name.Local}
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			// default namespace, re-emitted through this attribute only
			d.XMLName.Space = ""
		case a.Name.Space != "":
			if p, ok := prefixes[a.Name.Space]; ok {
				a.Name = xml.Name{Local: p + ":" + a.Name.Local}
			} else {
				a.Name = xml.Name{Local: a.Name.Local}
			}
		}
		attrs = append(attrs, a)
	}
	d.Attrs = attrs
	d.XMLName.Space = ""
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		XMLName: d.XMLName,
		Attrs:   cloneAttrs(d.Attrs),
		Extra:   cloneElements(d.Extra),
	}
	if d.VerInfo != nil {
		v := *d.VerInfo
		v.Attrs = cloneAttrs(d.VerInfo.Attrs)
		c.VerInfo = &v
	}
	for _, b := range d.Settings {
		c.Settings = append(c.Settings, b.clone())
	}
	for _, o := range d.Objects {
		c.Objects = append(c.Objects, o.clone())
	}
	return c
}

func (o *Object) clone() *Object {
	c := *o
	c.Attrs = cloneAttrs(o.Attrs)
	c.SettingsRefs = append([]string(nil), o.SettingsRefs...)
	c.Extra = cloneElements(o.Extra)
	return &c
}

func (b *SettingsBlock) clone() *SettingsBlock {
	c := *b
	c.Attrs = cloneAttrs(b.Attrs)
	c.Sections = make([]*Section, len(b.Sections))
	for i, s := range b.Sections {
		c.Sections[i] = s.clone()
	}
	return &c
}

func (s *Section) clone() *Section {
	c := &Section{Name: s.Name, Settings: make([]*Setting, len(s.Settings))}
	for i, st := range s.Settings {
		v := *st
		c.Settings[i] = &v
	}
	return c
}

func cloneAttrs(attrs []xml.Attr) []xml.Attr {
	if attrs == nil {
		return nil
	}
	return append([]xml.Attr(nil), attrs...)
}

func cloneElements(elems []Element) []Element {
	if elems == nil {
		return nil
	}
	c := make([]Element, len(elems))
	for i, e := range elems {
		c[i] = Element{XMLName: e.XMLName, Attrs: cloneAttrs(e.Attrs), Inner: e.Inner}
	}
	return c
}
