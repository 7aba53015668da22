package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"grimm.is/epolicy/internal/logging"
)

// Entry identifies one policy in a bundle.
type Entry struct {
	Type string `json:"typeid" yaml:"typeid"`
	Name string `json:"name" yaml:"name"`
}

// Bundle is a multi-policy export for one product, as returned by the ePO
// policy.export API.
type Bundle struct {
	doc     *Document
	product string
	log     *logging.Logger
}

// BundleOption configures a Bundle.
type BundleOption func(*Bundle)

// WithLogger sets the logger used for bundle operations.
func WithLogger(l *logging.Logger) BundleOption {
	return func(b *Bundle) {
		if l != nil {
			b.log = l.WithComponent("policy")
		}
	}
}

// OpenBundle wraps doc after checking that it holds policies of product.
func OpenBundle(doc *Document, product string, opts ...BundleOption) (*Bundle, error) {
	if doc == nil || len(doc.Objects) == 0 {
		return nil, fmt.Errorf("%w: bundle is empty", ErrPolicyNotFound)
	}
	if got := doc.Objects[0].FeatureID; product != "" && got != product {
		return nil, fmt.Errorf("%w: bundle is for %q, want %q", ErrWrongProduct, got, product)
	}
	b := &Bundle{doc: doc, product: doc.Objects[0].FeatureID, log: logging.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// ParseBundle decodes an export and opens it as a bundle.
func ParseBundle(data []byte, product string, opts ...BundleOption) (*Bundle, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return OpenBundle(doc, product, opts...)
}

// OpenBundleFile reads an export file and opens it as a bundle.
func OpenBundleFile(path, product string, opts ...BundleOption) (*Bundle, error) {
	doc, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return OpenBundle(doc, product, opts...)
}

// Document returns the underlying document.
func (b *Bundle) Document() *Document { return b.doc }

// Product returns the bundle's product.
func (b *Bundle) Product() string { return b.product }

// ServerID returns the ePO server of the first policy.
func (b *Bundle) ServerID() string { return b.doc.Objects[0].ServerID }

// Version returns the ePO server version.
func (b *Bundle) Version() string { return b.doc.Version() }

// Contains reports whether the bundle holds a policy of the type and name.
func (b *Bundle) Contains(typeID, name string) bool {
	return b.doc.Object(typeID, name) != nil
}

// Names returns the distinct policy names, sorted.
func (b *Bundle) Names() []string {
	return b.distinct(func(o *Object) string { return o.Name })
}

// Types returns the distinct policy types, sorted.
func (b *Bundle) Types() []string {
	return b.distinct(func(o *Object) string { return o.TypeID })
}

func (b *Bundle) distinct(key func(*Object) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range b.doc.Objects {
		k := key(o)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// List returns every policy sorted by type, then name.
func (b *Bundle) List() []Entry {
	out := make([]Entry, 0, len(b.doc.Objects))
	for _, o := range b.doc.Objects {
		out = append(out, Entry{Type: o.TypeID, Name: o.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Policy returns a copy of one policy: the bundle root narrowed to that
// policy object and the settings blocks it references.
func (b *Bundle) Policy(typeID, name string) (*Policy, error) {
	obj := b.doc.Object(typeID, name)
	if obj == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrPolicyNotFound, typeID, name)
	}

	refs := make(map[string]bool, len(obj.SettingsRefs))
	for _, r := range obj.SettingsRefs {
		refs[r] = true
	}

	doc := &Document{
		XMLName: b.doc.XMLName,
		Attrs:   cloneAttrs(b.doc.Attrs),
		Extra:   cloneElements(b.doc.Extra),
	}
	if b.doc.VerInfo != nil {
		v := *b.doc.VerInfo
		v.Attrs = cloneAttrs(b.doc.VerInfo.Attrs)
		doc.VerInfo = &v
	}
	for _, blk := range b.doc.Settings {
		if refs[blk.Name] {
			doc.Settings = append(doc.Settings, blk.clone())
		}
	}
	doc.Objects = []*Object{obj.clone()}

	return &Policy{doc: doc, object: doc.Objects[0]}, nil
}

// NewPolicy clones template (DefaultTemplate when empty) into a new policy
// called name. Every settings block gets a fresh "name::Settings (UUID)"
// name. The bundle itself is not modified; see Add.
func (b *Bundle) NewPolicy(typeID, name, template string) (*Policy, error) {
	if template == "" {
		template = DefaultTemplate
	}
	if b.Contains(typeID, name) {
		return nil, fmt.Errorf("%w: %s %q", ErrPolicyExists, typeID, name)
	}
	p, err := b.Policy(typeID, template)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}

	renamed := make(map[string]string, len(p.object.SettingsRefs))
	for i, ref := range p.object.SettingsRefs {
		fresh := fmt.Sprintf("%s::Settings (%s)", name, strings.ToUpper(uuid.New().String()))
		renamed[ref] = fresh
		p.object.SettingsRefs[i] = fresh
	}
	for _, blk := range p.doc.Settings {
		if fresh, ok := renamed[blk.Name]; ok {
			blk.Name = fresh
		}
	}
	p.object.Name = name

	b.log.Debug("created policy from template", "type", typeID, "name", name, "template", template)
	return p, nil
}

// Add merges a policy into the bundle.
func (b *Bundle) Add(p *Policy) error {
	if p.Product() != b.product {
		return fmt.Errorf("%w: policy is for %q, bundle is for %q", ErrWrongProduct, p.Product(), b.product)
	}
	if b.Contains(p.Type(), p.Name()) {
		return fmt.Errorf("%w: %s %q", ErrPolicyExists, p.Type(), p.Name())
	}
	for _, ref := range p.object.SettingsRefs {
		if b.doc.Block(ref) != nil {
			return fmt.Errorf("%w: settings block %q already present", ErrPolicyExists, ref)
		}
	}
	for _, ref := range p.object.SettingsRefs {
		if blk := p.doc.Block(ref); blk != nil {
			b.doc.Settings = append(b.doc.Settings, blk.clone())
		}
	}
	b.doc.Objects = append(b.doc.Objects, p.object.clone())
	return nil
}

// Remove deletes a policy and the settings blocks only it references.
func (b *Bundle) Remove(typeID, name string) error {
	obj := b.doc.Object(typeID, name)
	if obj == nil {
		return fmt.Errorf("%w: %s %q", ErrPolicyNotFound, typeID, name)
	}

	objects := make([]*Object, 0, len(b.doc.Objects)-1)
	used := make(map[string]bool)
	for _, o := range b.doc.Objects {
		if o == obj {
			continue
		}
		objects = append(objects, o)
		for _, r := range o.SettingsRefs {
			used[r] = true
		}
	}
	settings := b.doc.Settings[:0]
	for _, blk := range b.doc.Settings {
		if used[blk.Name] || !contains(obj.SettingsRefs, blk.Name) {
			settings = append(settings, blk)
		}
	}
	b.doc.Objects = objects
	b.doc.Settings = settings
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
