package firewall

import (
	"encoding/json"
	"fmt"
	"maps"

	"gopkg.in/yaml.v2"
)

// ActionRoot is the action of the synthetic root node.
const ActionRoot = "ROOT"

// Node is one rule of a Tree with its location profiles resolved.
type Node struct {
	ID         string
	Action     string
	Properties Properties
	Aggregates []*Aggregate
	// Children is nil for a rule that owns no sequence.
	Children []*Node
}

// IsRoot reports whether n is the synthetic root.
func (n *Node) IsRoot() bool { return n.Action == ActionRoot && n.ID == "" }

// Tree builds the nested form of the rules below key. The root key yields
// a synthetic node with Action ROOT; any other key yields the rule itself.
// Nodes hold copies of the rule and aggregate properties, so editing a tree
// leaves the graph untouched.
func (g *Graph) Tree(key string) (*Node, error) {
	if key == "" {
		key = RootKey
	}

	var top *Node
	if key == RootKey {
		top = &Node{Action: ActionRoot, Children: []*Node{}}
	} else {
		r, ok := g.Rule(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
		top = g.node(r)
		if top.Children == nil {
			return top, nil
		}
	}

	stack := []*Node{top}
	err := g.Walk(key, func(v Visit) error {
		n := g.node(v.Rule)
		parent := stack[v.Depth]
		parent.Children = append(parent.Children, n)
		stack = append(stack[:v.Depth+1], n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return top, nil
}

func (g *Graph) node(r *Rule) *Node {
	n := &Node{
		ID:         r.ID,
		Action:     r.Action(),
		Properties: maps.Clone(r.Props),
	}
	for _, a := range g.Aggregates(r) {
		n.Aggregates = append(n.Aggregates, &Aggregate{ID: a.ID, Props: maps.Clone(a.Props)})
	}
	if g.HasChildren(r.ID) {
		n.Children = []*Node{}
	}
	return n
}

// Record returns the node as nested maps: the rule properties with AggRef
// replaced by the referenced aggregate records, plus Children when the rule
// owns a sequence.
func (n *Node) Record() map[string]any {
	var rec map[string]any
	if n.IsRoot() {
		rec = map[string]any{"Action": ActionRoot}
	} else {
		rec = n.Properties.Record()
		if _, ok := n.Properties["AggRef"]; ok {
			aggs := make([]map[string]any, len(n.Aggregates))
			for i, a := range n.Aggregates {
				aggs[i] = a.Props.Record()
			}
			rec["AggRef"] = aggs
		}
	}
	if n.Children != nil {
		children := make([]map[string]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = c.Record()
		}
		rec["Children"] = children
	}
	return rec
}

// MarshalJSON encodes the record form.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Record())
}

// YAML encodes the record form as YAML.
func (n *Node) YAML() ([]byte, error) {
	out, err := yaml.Marshal(n.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule tree: %w", err)
	}
	return out, nil
}
