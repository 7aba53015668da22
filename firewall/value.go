package firewall

import (
	"encoding/json"
	"sort"
)

// Value is a property value: either a scalar string or an ordered list of
// strings. Lists come from counted settings ("_Name" plus "+Name#i").
type Value struct {
	scalar string
	items  []string
	list   bool
}

// Scalar returns a scalar value.
func Scalar(s string) Value {
	return Value{scalar: s}
}

// List returns a list value.
func List(items ...string) Value {
	return Value{items: append([]string{}, items...), list: true}
}

// IsList reports whether v is a list.
func (v Value) IsList() bool { return v.list }

// String returns the scalar value, or the first item of a list.
func (v Value) String() string {
	if v.list {
		if len(v.items) == 0 {
			return ""
		}
		return v.items[0]
	}
	return v.scalar
}

// Items returns the list items, or a one-element slice for a scalar.
func (v Value) Items() []string {
	if v.list {
		return append([]string(nil), v.items...)
	}
	return []string{v.scalar}
}

// Len returns the number of list items; a scalar has length 1.
func (v Value) Len() int {
	if v.list {
		return len(v.items)
	}
	return 1
}

// Interface returns a string or []string for JSON and YAML encoding.
func (v Value) Interface() any {
	if v.list {
		return v.Items()
	}
	return v.scalar
}

// MarshalJSON encodes a scalar as a string and a list as an array.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Properties maps property names to values.
type Properties map[string]Value

// Get returns a scalar property. A list property yields its first item.
func (p Properties) Get(name string) (string, bool) {
	v, ok := p[name]
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Value returns a scalar property or "".
func (p Properties) Value(name string) string {
	s, _ := p.Get(name)
	return s
}

// List returns a property as a list.
func (p Properties) List(name string) ([]string, bool) {
	v, ok := p[name]
	if !ok {
		return nil, false
	}
	return v.Items(), true
}

// Names returns the property names, sorted.
func (p Properties) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Record returns the properties as plain strings and string slices.
func (p Properties) Record() map[string]any {
	out := make(map[string]any, len(p))
	for n, v := range p {
		out[n] = v.Interface()
	}
	return out
}
