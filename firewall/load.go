package firewall

import (
	"fmt"
	"strconv"
	"strings"

	"grimm.is/epolicy/internal/config"
	"grimm.is/epolicy/internal/logging"
	"grimm.is/epolicy/internal/metrics"
	"grimm.is/epolicy/policy"
)

// Settings block discriminators (param_int).
const (
	BlockSequence  = 100
	BlockRule      = 101
	BlockAggregate = 104
)

// UnknownBlocks selects what Load does with a block whose param_int is not
// one of the three known discriminators.
type UnknownBlocks int

const (
	// Reject fails the load with ErrUnknownBlock.
	Reject UnknownBlocks = iota
	// Skip logs a warning, counts the block as skipped and continues.
	Skip
)

type loadOptions struct {
	unknown  UnknownBlocks
	maxDepth int
	log      *logging.Logger
	metrics  *metrics.Registry
}

// Option configures Load.
type Option func(*loadOptions)

// WithUnknownBlocks sets the unknown discriminator policy. The default is Reject.
func WithUnknownBlocks(u UnknownBlocks) Option {
	return func(o *loadOptions) { o.unknown = u }
}

// WithMaxDepth bounds folder nesting during traversal.
func WithMaxDepth(n int) Option {
	return func(o *loadOptions) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithLogger sets the logger. Loading is silent by default.
func WithLogger(l *logging.Logger) Option {
	return func(o *loadOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records load activity in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *loadOptions) { o.metrics = m }
}

// FromConfig returns the load options described by cfg.
func FromConfig(cfg *config.Config) []Option {
	opts := []Option{}
	if cfg.SkipUnknownBlocks() {
		opts = append(opts, WithUnknownBlocks(Skip))
	}
	if cfg.Loader != nil {
		opts = append(opts, WithMaxDepth(cfg.Loader.MaxDepth))
	}
	return opts
}

// Load decodes the rule tree of a firewall rules policy. Every block the
// policy object references is decoded in order; afterwards all sequence and
// AggRef references are resolved. Any structural problem fails the whole
// load.
func Load(p *policy.Policy, opts ...Option) (*Graph, error) {
	o := loadOptions{unknown: Reject, maxDepth: config.DefaultMaxDepth, log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.WithComponent("firewall")

	if err := p.Require(policy.ProductFirewall, policy.TypeFirewallRules); err != nil {
		o.record(p.Type(), err)
		return nil, err
	}

	l := loader{
		policy: p,
		opts:   &o,
		log:    log,
		graph: &Graph{
			name:      p.Name(),
			ruleIndex: make(map[string]Handle),
			aggIndex:  make(map[string]Handle),
			sequences: make(map[string][]string),
			children:  make(map[string][]Handle),
			maxDepth:  o.maxDepth,
			log:       log,
			metrics:   o.metrics,
		},
	}

	err := l.load()
	o.record(p.Type(), err)
	if err != nil {
		return nil, err
	}

	g := l.graph
	s, r, a := g.Counts()
	if o.metrics != nil {
		o.metrics.SetGraphSize(s, r, a)
	}
	log.Debug("loaded firewall policy", "policy", g.name, "sequences", s, "rules", r, "aggregates", a)
	return g, nil
}

func (o *loadOptions) record(policyType string, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordLoad(policyType, err, func(err error) string {
		return metrics.Classify(err, map[string]error{
			"malformed":     ErrMalformed,
			"unknown_block": ErrUnknownBlock,
			"wrong_type":    policy.ErrWrongType,
			"wrong_product": policy.ErrWrongProduct,
		})
	})
}

type loader struct {
	policy *policy.Policy
	opts   *loadOptions
	log    *logging.Logger
	graph  *Graph
}

func (l *loader) load() error {
	for _, ref := range l.policy.SettingsRefs() {
		blk, ok := l.policy.Block(ref)
		if !ok {
			return fmt.Errorf("%w: settings block %q is referenced but missing", ErrMalformed, ref)
		}
		if err := l.decode(blk); err != nil {
			return fmt.Errorf("failed to decode block %q: %w", ref, err)
		}
	}
	return l.link()
}

func (l *loader) decode(blk *policy.SettingsBlock) error {
	kind, err := strconv.Atoi(blk.ParamInt)
	if err != nil {
		kind = -1
	}

	switch kind {
	case BlockSequence, BlockRule, BlockAggregate:
	default:
		if l.opts.unknown == Skip {
			l.log.Warn("skipping settings block with unknown discriminator",
				"block", blk.Name, "param_int", blk.ParamInt)
			l.count("skipped")
			return nil
		}
		return fmt.Errorf("%w: param_int %q", ErrUnknownBlock, blk.ParamInt)
	}

	sec := blk.Section(blk.ParamStr)
	if sec == nil {
		return fmt.Errorf("%w: section %q not found", ErrMalformed, blk.ParamStr)
	}

	switch kind {
	case BlockSequence:
		return l.decodeSequence(sec)
	case BlockRule:
		return l.decodeRule(sec)
	default:
		return l.decodeAggregate(sec)
	}
}

func (l *loader) count(kind string) {
	if l.opts.metrics != nil {
		l.opts.metrics.RecordBlock(kind)
	}
}

func (l *loader) decodeSequence(sec *policy.Section) error {
	key, ok := sec.Get("RuleListID")
	if !ok {
		key = RootKey
	}
	ids, err := readList(sec, "RuleIDSequence")
	if err != nil {
		return err
	}
	// A repeated key replaces the earlier list.
	l.graph.sequences[key] = ids
	l.count("sequence")
	return nil
}

func (l *loader) decodeRule(sec *policy.Section) error {
	props, id, err := decodeProperties(sec)
	if err != nil {
		return err
	}
	r := &Rule{ID: id, Kind: KindRule, Props: props}
	if props.Value("Action") == ActionJump {
		r.Kind = KindFolder
	}
	if h, ok := l.graph.ruleIndex[id]; ok {
		l.graph.rules[h] = r
	} else {
		l.graph.ruleIndex[id] = Handle(len(l.graph.rules))
		l.graph.rules = append(l.graph.rules, r)
	}
	l.count("rule")
	return nil
}

func (l *loader) decodeAggregate(sec *policy.Section) error {
	props, id, err := decodeProperties(sec)
	if err != nil {
		return err
	}
	a := &Aggregate{ID: id, Props: props}
	if h, ok := l.graph.aggIndex[id]; ok {
		l.graph.aggregates[h] = a
	} else {
		l.graph.aggIndex[id] = Handle(len(l.graph.aggregates))
		l.graph.aggregates = append(l.graph.aggregates, a)
	}
	l.count("aggregate")
	return nil
}

// decodeProperties turns a rule or aggregate section into typed properties.
// Plain settings are scalars; "_Name" holds the length of list Name whose
// items are "+Name#0".."+Name#n-1".
func decodeProperties(sec *policy.Section) (Properties, string, error) {
	props := make(Properties, len(sec.Settings))
	for _, st := range sec.Settings {
		switch {
		case strings.HasPrefix(st.Name, "+"):
			// list item, read through its count
		case strings.HasPrefix(st.Name, "_"):
			name := strings.TrimPrefix(st.Name, "_")
			items, err := readList(sec, name)
			if err != nil {
				return nil, "", err
			}
			props[name] = List(items...)
		default:
			props[st.Name] = Scalar(st.Value)
		}
	}

	id, ok := props.Get("GUID")
	if !ok || id == "" {
		return nil, "", fmt.Errorf("%w: section %q has no GUID", ErrMalformed, sec.Name)
	}
	return props, id, nil
}

func readList(sec *policy.Section, name string) ([]string, error) {
	raw, ok := sec.Get("_" + name)
	if !ok {
		return nil, fmt.Errorf("%w: count _%s missing in section %q", ErrMalformed, name, sec.Name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: count _%s is %q", ErrMalformed, name, raw)
	}
	items := make([]string, n)
	for i := range items {
		entry := "+" + name + "#" + strconv.Itoa(i)
		v, ok := sec.Get(entry)
		if !ok {
			return nil, fmt.Errorf("%w: entry %s missing in section %q", ErrMalformed, entry, sec.Name)
		}
		items[i] = v
	}
	return items, nil
}

// link resolves sequence members and AggRef ids to handles.
func (l *loader) link() error {
	g := l.graph
	if _, ok := g.sequences[RootKey]; !ok {
		return fmt.Errorf("%w: no root sequence", ErrMalformed)
	}
	for key, ids := range g.sequences {
		if key != RootKey {
			if _, ok := g.ruleIndex[key]; !ok {
				return fmt.Errorf("%w: sequence %q has no owning rule", ErrMalformed, key)
			}
		}
		handles := make([]Handle, len(ids))
		for i, id := range ids {
			h, ok := g.ruleIndex[id]
			if !ok {
				return fmt.Errorf("%w: sequence %q lists unknown rule %q", ErrMalformed, key, id)
			}
			handles[i] = h
		}
		g.children[key] = handles
	}
	for _, r := range g.rules {
		refs, ok := r.Props.List("AggRef")
		if !ok {
			continue
		}
		r.aggs = make([]Handle, len(refs))
		for i, ref := range refs {
			h, ok := g.aggIndex[ref]
			if !ok {
				return fmt.Errorf("%w: rule %q references unknown aggregate %q", ErrMalformed, r.ID, ref)
			}
			r.aggs[i] = h
		}
	}
	return nil
}
