// Package firewall rebuilds the rule tree of an Endpoint Security Firewall
// rules policy and renders it as an outline or a Markdown document.
//
// The policy stores the tree flat: every folder, rule and location profile
// is its own settings block, tagged by param_int. Sequence blocks (100)
// list the children of a folder, or of the root; Rule blocks (101) hold a
// rule or folder; Aggregate blocks (104) hold a reusable network location
// referenced from rules through AggRef.
package firewall

import (
	"errors"
	"fmt"

	"grimm.is/epolicy/internal/logging"
	"grimm.is/epolicy/internal/metrics"
)

// RootKey is the sequence key of the top-level folder.
const RootKey = "root"

// ActionJump marks a folder.
const ActionJump = "JUMP"

var (
	ErrMalformed     = errors.New("malformed firewall policy")
	ErrUnknownBlock  = errors.New("unknown settings block")
	ErrCycle         = errors.New("folder cycle")
	ErrDepthExceeded = errors.New("folder nesting too deep")
	ErrUnknownKey    = errors.New("unknown sequence key")
)

// Kind distinguishes folders from match rules.
type Kind int

const (
	KindRule Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "rule"
}

// Handle addresses a node in a Graph.
type Handle int

// Rule is a folder or a match rule.
type Rule struct {
	ID    string
	Kind  Kind
	Props Properties

	aggs []Handle
}

// Name returns the rule name.
func (r *Rule) Name() string { return r.Props.Value("Name") }

// Action returns the rule action (JUMP for folders).
func (r *Rule) Action() string { return r.Props.Value("Action") }

// IsFolder reports whether the rule is a folder.
func (r *Rule) IsFolder() bool { return r.Kind == KindFolder }

// Aggregate is a reusable network location profile.
type Aggregate struct {
	ID    string
	Props Properties
}

// Name returns the aggregate name.
func (a *Aggregate) Name() string { return a.Props.Value("Name") }

// Graph is the decoded rule tree of one policy. It is read-only after Load.
type Graph struct {
	name string

	rules      []*Rule
	ruleIndex  map[string]Handle
	aggregates []*Aggregate
	aggIndex   map[string]Handle

	// sequences keeps the child ids per key; children the resolved handles.
	sequences map[string][]string
	children  map[string][]Handle

	maxDepth int
	log      *logging.Logger
	metrics  *metrics.Registry
}

// Name returns the name of the policy the graph was loaded from.
func (g *Graph) Name() string { return g.name }

// Sequence returns the ordered child ids of key. An empty key means the
// root sequence.
func (g *Graph) Sequence(key string) ([]string, bool) {
	if key == "" {
		key = RootKey
	}
	ids, ok := g.sequences[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), ids...), true
}

// HasChildren reports whether id owns a sequence.
func (g *Graph) HasChildren(id string) bool {
	_, ok := g.sequences[id]
	return ok
}

// Rule looks up a rule or folder by GUID.
func (g *Graph) Rule(id string) (*Rule, bool) {
	h, ok := g.ruleIndex[id]
	if !ok {
		return nil, false
	}
	return g.rules[h], true
}

// Aggregate looks up an aggregate by GUID.
func (g *Graph) Aggregate(id string) (*Aggregate, bool) {
	h, ok := g.aggIndex[id]
	if !ok {
		return nil, false
	}
	return g.aggregates[h], true
}

// Aggregates returns the aggregates referenced by r, in AggRef order.
func (g *Graph) Aggregates(r *Rule) []*Aggregate {
	out := make([]*Aggregate, len(r.aggs))
	for i, h := range r.aggs {
		out[i] = g.aggregates[h]
	}
	return out
}

// Rules returns every rule in load order.
func (g *Graph) Rules() []*Rule {
	return append([]*Rule(nil), g.rules...)
}

// AllAggregates returns every aggregate in load order.
func (g *Graph) AllAggregates() []*Aggregate {
	return append([]*Aggregate(nil), g.aggregates...)
}

// Counts returns the number of sequences, rules and aggregates.
func (g *Graph) Counts() (sequences, rules, aggregates int) {
	return len(g.sequences), len(g.rules), len(g.aggregates)
}

// Info summarises the graph in one line.
func (g *Graph) Info() string {
	s, r, a := g.Counts()
	return fmt.Sprintf("Policy %s has %d sequences, %d rules and %d aggregates.", g.name, s, r, a)
}

// Visit is one step of a Walk.
type Visit struct {
	Rule  *Rule
	Depth int
	// Parent is the sequence key the rule was listed under.
	Parent string
}

// WalkFunc is called for every rule in pre-order. Returning an error stops
// the walk.
type WalkFunc func(v Visit) error

// Walk visits the rules below key (RootKey when empty) depth first, in
// sequence order. A folder that contains itself, directly or through its
// descendants, yields ErrCycle; nesting deeper than the configured limit
// yields ErrDepthExceeded.
func (g *Graph) Walk(key string, fn WalkFunc) error {
	if key == "" {
		key = RootKey
	}
	if _, ok := g.children[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	w := walker{g: g, fn: fn, onPath: make(map[Handle]bool)}
	if h, ok := g.ruleIndex[key]; ok {
		w.onPath[h] = true
	}
	return w.walk(key, 0)
}

type walker struct {
	g      *Graph
	fn     WalkFunc
	onPath map[Handle]bool
}

func (w *walker) walk(key string, depth int) error {
	if depth >= w.g.maxDepth {
		return fmt.Errorf("%w: more than %d levels below %q", ErrDepthExceeded, w.g.maxDepth, key)
	}
	for _, h := range w.g.children[key] {
		r := w.g.rules[h]
		if w.onPath[h] {
			return fmt.Errorf("%w: %q contains itself", ErrCycle, r.ID)
		}
		if err := w.fn(Visit{Rule: r, Depth: depth, Parent: key}); err != nil {
			return err
		}
		if _, ok := w.g.children[r.ID]; !ok {
			continue
		}
		w.onPath[h] = true
		err := w.walk(r.ID, depth+1)
		delete(w.onPath, h)
		if err != nil {
			return err
		}
	}
	return nil
}
