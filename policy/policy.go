// Package policy reads and writes ePolicy Orchestrator policy exports.
//
// A Document is the raw XML model. A Policy is a document narrowed to one
// policy object and the settings blocks it references; it is the settings
// store every product facade is built on. A Bundle is a multi-policy export
// from which policies are selected or cloned.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"grimm.is/epolicy/internal/validation"
)

// Products (featureid values).
const (
	ProductFirewall         = "ENDP_FW_META_FW"
	ProductThreatPrevention = "ENDP_AM_1000"
	ProductAgent            = "EPOAGENTMETA"
)

// Policy types (typeid values).
const (
	TypeFirewallRules   = "FireCore_FW_Rules"
	TypeOnAccessGeneral = "EAM_General_Policies"
	TypeOnDemandScan    = "EAM_OnDemandScan_Policies"
	TypeAgentGeneral    = "General"
	TypeAgentRepository = "Repository"
)

// DefaultTemplate is the policy cloned by NewPolicy when no template is named.
const DefaultTemplate = "My Default"

var (
	ErrWrongProduct    = errors.New("wrong product")
	ErrWrongType       = errors.New("wrong policy type")
	ErrPolicyNotFound  = errors.New("policy not found")
	ErrPolicyExists    = errors.New("policy already exists")
	ErrSectionNotFound = errors.New("section not found")
	ErrSettingNotFound = errors.New("setting not found")
	ErrMalformed       = errors.New("malformed policy")
)

// Policy is a single policy object together with its settings.
type Policy struct {
	doc    *Document
	object *Object
}

// FromDocument wraps a single-policy document, such as a file exported for
// one policy. The document's first policy object is used.
func FromDocument(doc *Document) (*Policy, error) {
	if doc == nil || len(doc.Objects) == 0 {
		return nil, fmt.Errorf("%w: document has no policy object", ErrPolicyNotFound)
	}
	return &Policy{doc: doc, object: doc.Objects[0]}, nil
}

// Open reads a single-policy export file.
func Open(path string) (*Policy, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// Name returns the policy name.
func (p *Policy) Name() string { return p.object.Name }

// Type returns the policy type id.
func (p *Policy) Type() string { return p.object.TypeID }

// Product returns the product (featureid) the policy applies to.
func (p *Policy) Product() string { return p.object.FeatureID }

// ServerID returns the ePO server the policy was exported from.
func (p *Policy) ServerID() string { return p.object.ServerID }

// Version returns the ePO server version.
func (p *Policy) Version() string { return p.doc.Version() }

// Document returns the underlying document.
func (p *Policy) Document() *Document { return p.doc }

// Object returns the policy object.
func (p *Policy) Object() *Object { return p.object }

// Bytes encodes the policy as XML.
func (p *Policy) Bytes() ([]byte, error) { return p.doc.Bytes() }

// WriteFile saves the policy as an importable XML file.
func (p *Policy) WriteFile(path string) error { return p.doc.WriteFile(path) }

// SettingsRefs returns the names of the referenced settings blocks in order.
func (p *Policy) SettingsRefs() []string {
	return append([]string(nil), p.object.SettingsRefs...)
}

// Block returns a settings block by name.
func (p *Policy) Block(name string) (*SettingsBlock, bool) {
	b := p.doc.Block(name)
	return b, b != nil
}

// Require checks the policy's product and type. Empty arguments are not
// checked.
func (p *Policy) Require(product, typeID string) error {
	if product != "" && p.Product() != product {
		return fmt.Errorf("%w: policy %q is for %q, want %q", ErrWrongProduct, p.Name(), p.Product(), product)
	}
	if typeID != "" && p.Type() != typeID {
		return fmt.Errorf("%w: policy %q is %q, want %q", ErrWrongType, p.Name(), p.Type(), typeID)
	}
	return nil
}

// Section returns the first section with the given name across all blocks.
func (p *Policy) Section(name string) *Section {
	for _, b := range p.doc.Settings {
		if s := b.Section(name); s != nil {
			return s
		}
	}
	return nil
}

// Sections returns every section in document order.
func (p *Policy) Sections() []*Section {
	var out []*Section
	for _, b := range p.doc.Settings {
		out = append(out, b.Sections...)
	}
	return out
}

func (p *Policy) findSetting(section, setting string) *Setting {
	for _, b := range p.doc.Settings {
		for _, s := range b.Sections {
			if s.Name != section {
				continue
			}
			if st := s.Setting(setting); st != nil {
				return st
			}
		}
	}
	return nil
}

// Get returns a setting value. The boolean is false when the setting does
// not exist.
func (p *Policy) Get(section, setting string) (string, bool) {
	if st := p.findSetting(section, setting); st != nil {
		return st.Value, true
	}
	return "", false
}

// Set changes a setting value. When the setting does not exist it is added
// to the section if create is true; otherwise ErrSettingNotFound is
// returned.
func (p *Policy) Set(section, setting, value string, create bool) error {
	if st := p.findSetting(section, setting); st != nil {
		st.Value = value
		return nil
	}
	if !create {
		return fmt.Errorf("%w: %s/%s", ErrSettingNotFound, section, setting)
	}
	s := p.Section(section)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	s.Settings = append(s.Settings, &Setting{Name: setting, Value: value})
	return nil
}

// MustGet returns a setting value or ErrSettingNotFound.
func (p *Policy) MustGet(section, setting string) (string, error) {
	v, ok := p.Get(section, setting)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrSettingNotFound, section, setting)
	}
	return v, nil
}

// Int reads an integer setting.
func (p *Policy) Int(section, setting string) (int, error) {
	v, err := p.MustGet(section, setting)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s/%s is not a number: %q", ErrMalformed, section, setting, v)
	}
	return n, nil
}

// State is the value of a boolean setting.
type State string

const (
	Enabled  State = "1"
	Disabled State = "0"
)

// StateOf converts a bool.
func StateOf(b bool) State {
	if b {
		return Enabled
	}
	return Disabled
}

// Bool reports whether s is Enabled.
func (s State) Bool() bool { return s == Enabled }

// Invert swaps Enabled and Disabled.
func (s State) Invert() State {
	if s == Enabled {
		return Disabled
	}
	return Enabled
}

// State reads a boolean setting.
func (p *Policy) State(section, setting string) (State, error) {
	v, err := p.MustGet(section, setting)
	if err != nil {
		return "", err
	}
	if err := validation.State(setting, v); err != nil {
		return "", fmt.Errorf("%w: %s/%s: %v", ErrMalformed, section, setting, err)
	}
	return State(v), nil
}

// SetState changes an existing boolean setting.
func (p *Policy) SetState(section, setting string, s State) error {
	if err := validation.State(setting, string(s)); err != nil {
		return err
	}
	return p.Set(section, setting, string(s), false)
}

// ReplaceSection replaces the settings of an existing section.
func (p *Policy) ReplaceSection(name string, settings []Setting) error {
	s := p.Section(name)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	}
	s.Settings = make([]*Setting, len(settings))
	for i := range settings {
		st := settings[i]
		s.Settings[i] = &st
	}
	return nil
}

// Table reads a counted table. countName holds the row count n; cell (row,
// col) is stored as columns[col]+strconv.Itoa(base+row).
func (p *Policy) Table(section, countName string, base int, columns ...string) ([][]string, error) {
	s := p.Section(section)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	raw, ok := s.Get(countName)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrSettingNotFound, section, countName)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s/%s is not a count: %q", ErrMalformed, section, countName, raw)
	}

	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(columns))
		for c, col := range columns {
			name := col + strconv.Itoa(base+i)
			v, ok := s.Get(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s/%s missing", ErrMalformed, section, name)
			}
			row[c] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SetTable replaces a counted table written by Table. Existing count and
// cell settings are removed; other settings in the section are kept.
func (p *Policy) SetTable(section, countName string, base int, columns []string, rows [][]string) error {
	s := p.Section(section)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrMalformed, i, len(row), len(columns))
		}
	}

	patterns := make([]*regexp.Regexp, len(columns))
	for i, col := range columns {
		patterns[i] = regexp.MustCompile("^" + regexp.QuoteMeta(col) + `\d+$`)
	}
	kept := s.Settings[:0]
	for _, st := range s.Settings {
		if st.Name == countName || matchesAny(patterns, st.Name) {
			continue
		}
		kept = append(kept, st)
	}
	s.Settings = kept

	s.Settings = append(s.Settings, &Setting{Name: countName, Value: strconv.Itoa(len(rows))})
	for i, row := range rows {
		for c, col := range columns {
			s.Settings = append(s.Settings, &Setting{Name: col + strconv.Itoa(base+i), Value: row[c]})
		}
	}
	return nil
}

// List reads a single-column counted list.
func (p *Policy) List(section, countName, itemPrefix string, base int) ([]string, error) {
	rows, err := p.Table(section, countName, base, itemPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r[0]
	}
	return out, nil
}

// SetList replaces a single-column counted list.
func (p *Policy) SetList(section, countName, itemPrefix string, base int, items []string) error {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it}
	}
	return p.SetTable(section, countName, base, []string{itemPrefix}, rows)
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
