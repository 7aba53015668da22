package firewall

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/epolicy/internal/config"
	"grimm.is/epolicy/internal/metrics"
	"grimm.is/epolicy/internal/testutil"
	"grimm.is/epolicy/policy"
)

// seq builds a sequence block. An empty key builds the root sequence.
func seq(key string, ids ...string) testutil.Block {
	var settings []testutil.Setting
	name := "Sequence root"
	if key != "" {
		settings = append(settings, testutil.Setting{Name: "RuleListID", Value: key})
		name = "Sequence " + key
	}
	settings = append(settings, testutil.Props("RuleIDSequence", ids)...)
	return testutil.Block{
		Name:     name,
		ParamInt: "100",
		ParamStr: "RuleSequence",
		Sections: []testutil.Section{{Name: "RuleSequence", Settings: settings}},
	}
}

func rule(id string, kv ...any) testutil.Block {
	return testutil.Block{
		Name:     "Rule " + id,
		ParamInt: "101",
		ParamStr: "FirewallRule",
		Sections: []testutil.Section{{Name: "FirewallRule", Settings: testutil.Props(append([]any{"GUID", id}, kv...)...)}},
	}
}

func aggregate(id string, kv ...any) testutil.Block {
	return testutil.Block{
		Name:     "Aggregate " + id,
		ParamInt: "104",
		ParamStr: "Aggregate",
		Sections: []testutil.Section{{Name: "Aggregate", Settings: testutil.Props(append([]any{"GUID", id}, kv...)...)}},
	}
}

func rulesPolicy(t *testing.T, blocks ...testutil.Block) *policy.Policy {
	t.Helper()
	b := testutil.NewPolicy(policy.ProductFirewall, policy.TypeFirewallRules, "My Rules")
	for _, blk := range blocks {
		b.Block(blk)
	}
	doc, err := policy.Parse(b.XML())
	require.NoError(t, err)
	p, err := policy.FromDocument(doc)
	require.NoError(t, err)
	return p
}

func load(t *testing.T, opts []Option, blocks ...testutil.Block) *Graph {
	t.Helper()
	g, err := Load(rulesPolicy(t, blocks...), opts...)
	require.NoError(t, err)
	return g
}

// folderPolicy is a root holding one folder with one rule.
func folderPolicy() []testutil.Block {
	return []testutil.Block{
		seq("", "R1"),
		rule("R1", "Name", "Folder", "Action", "JUMP", "Direction", "Either"),
		seq("R1", "R2"),
		rule("R2", "Name", "Allow DNS", "Action", "ALLOW", "Direction", "In"),
	}
}

func TestLoad(t *testing.T) {
	g := load(t, nil, folderPolicy()...)

	assert.Equal(t, "My Rules", g.Name())
	s, r, a := g.Counts()
	assert.Equal(t, 2, s)
	assert.Equal(t, 2, r)
	assert.Equal(t, 0, a)
	assert.Equal(t, "Policy My Rules has 2 sequences, 2 rules and 0 aggregates.", g.Info())

	ids, ok := g.Sequence("")
	require.True(t, ok)
	assert.Equal(t, []string{"R1"}, ids)
	ids, ok = g.Sequence("R1")
	require.True(t, ok)
	assert.Equal(t, []string{"R2"}, ids)

	folder, ok := g.Rule("R1")
	require.True(t, ok)
	assert.Equal(t, KindFolder, folder.Kind)
	assert.True(t, folder.IsFolder())
	assert.True(t, g.HasChildren("R1"))

	leaf, ok := g.Rule("R2")
	require.True(t, ok)
	assert.Equal(t, KindRule, leaf.Kind)
	assert.Equal(t, "ALLOW", leaf.Action())
	assert.False(t, g.HasChildren("R2"))
}

func TestLoad_ListProperties(t *testing.T) {
	g := load(t, nil,
		seq("", "R1"),
		rule("R1", "Name", "Web", "Action", "ALLOW",
			"PhysicalMedium", []string{"WIRED", "WIRELESS"},
			"LocalPort", []string{},
			"AggRef", []string{"A1"}),
		aggregate("A1", "Name", "Office", "RemoteAddress", []string{"10.0.0.0/8"}),
	)

	r, _ := g.Rule("R1")
	media := r.Props["PhysicalMedium"]
	assert.True(t, media.IsList())
	assert.Equal(t, []string{"WIRED", "WIRELESS"}, media.Items())
	assert.Equal(t, "WIRED", media.String())

	ports, ok := r.Props.List("LocalPort")
	assert.True(t, ok)
	assert.Empty(t, ports)

	assert.False(t, r.Props["Name"].IsList())
	_, ok = r.Props["+PhysicalMedium#0"]
	assert.False(t, ok, "list entries must not leak as properties")

	aggs := g.Aggregates(r)
	require.Len(t, aggs, 1)
	assert.Equal(t, "Office", aggs[0].Name())

	a, ok := g.Aggregate("A1")
	require.True(t, ok)
	assert.Same(t, aggs[0], a)
	assert.Len(t, g.AllAggregates(), 1)
	assert.Len(t, g.Rules(), 1)
}

func TestLoad_SequenceLastWriteWins(t *testing.T) {
	g := load(t, nil,
		seq("", "R1"),
		rule("R1", "Name", "One", "Action", "ALLOW"),
		rule("R2", "Name", "Two", "Action", "BLOCK"),
		testutil.Block{
			Name:     "Sequence root again",
			ParamInt: "100",
			ParamStr: "RuleSequence",
			Sections: []testutil.Section{{Name: "RuleSequence", Settings: testutil.Props("RuleIDSequence", []string{"R2"})}},
		},
	)
	ids, _ := g.Sequence(RootKey)
	assert.Equal(t, []string{"R2"}, ids)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		blocks []testutil.Block
		want   error
	}{
		{
			name:   "unknown discriminator",
			blocks: append(folderPolicy(), testutil.Block{Name: "Odd", ParamInt: "999", ParamStr: "Odd", Sections: []testutil.Section{testutil.S("Odd")}}),
			want:   ErrUnknownBlock,
		},
		{
			name:   "no root sequence",
			blocks: []testutil.Block{rule("R1", "Name", "x", "Action", "ALLOW")},
			want:   ErrMalformed,
		},
		{
			name:   "sequence lists unknown rule",
			blocks: []testutil.Block{seq("", "R9")},
			want:   ErrMalformed,
		},
		{
			name:   "sequence key without rule",
			blocks: []testutil.Block{seq(""), seq("Z")},
			want:   ErrMalformed,
		},
		{
			name: "dangling aggregate reference",
			blocks: []testutil.Block{
				seq("", "R1"),
				rule("R1", "Name", "x", "Action", "ALLOW", "AggRef", []string{"missing"}),
			},
			want: ErrMalformed,
		},
		{
			name: "missing section",
			blocks: []testutil.Block{
				{Name: "Sequence", ParamInt: "100", ParamStr: "Nope", Sections: []testutil.Section{testutil.S("RuleSequence")}},
			},
			want: ErrMalformed,
		},
		{
			name: "missing count",
			blocks: []testutil.Block{
				{Name: "Sequence", ParamInt: "100", ParamStr: "RuleSequence", Sections: []testutil.Section{testutil.S("RuleSequence")}},
			},
			want: ErrMalformed,
		},
		{
			name: "missing entry",
			blocks: []testutil.Block{
				{Name: "Sequence", ParamInt: "100", ParamStr: "RuleSequence", Sections: []testutil.Section{
					testutil.S("RuleSequence", "_RuleIDSequence", "2", "+RuleIDSequence#0", "R1"),
				}},
				rule("R1", "Name", "x", "Action", "ALLOW"),
			},
			want: ErrMalformed,
		},
		{
			name: "rule without GUID",
			blocks: []testutil.Block{
				seq(""),
				{Name: "Rule", ParamInt: "101", ParamStr: "FirewallRule", Sections: []testutil.Section{testutil.S("FirewallRule", "Name", "x")}},
			},
			want: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Load(rulesPolicy(t, tt.blocks...))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, g)
		})
	}
}

func TestLoad_WrongType(t *testing.T) {
	b := testutil.NewPolicy(policy.ProductFirewall, "FireCore_FW_Options", "Options").
		Settings("Options::Settings", testutil.S("General", "Enabled", "1"))
	doc, err := policy.Parse(b.XML())
	require.NoError(t, err)
	p, err := policy.FromDocument(doc)
	require.NoError(t, err)

	_, err = Load(p)
	assert.ErrorIs(t, err, policy.ErrWrongType)
}

func TestLoad_SkipUnknownBlocks(t *testing.T) {
	reg := metrics.New(prometheus.NewRegistry())
	blocks := append(folderPolicy(), testutil.Block{Name: "Odd", ParamInt: "999", ParamStr: "Odd"})

	g, err := Load(rulesPolicy(t, blocks...), WithUnknownBlocks(Skip), WithMetrics(reg))
	require.NoError(t, err)

	_, r, _ := g.Counts()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.BlocksDecoded.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, promtest.ToFloat64(reg.BlocksDecoded.WithLabelValues("rule")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.PolicyLoads.WithLabelValues(policy.TypeFirewallRules, "ok")))
	assert.Equal(t, 2.0, promtest.ToFloat64(reg.GraphNodes.WithLabelValues("rule")))
}

func TestLoad_ErrorMetrics(t *testing.T) {
	reg := metrics.New(prometheus.NewRegistry())
	_, err := Load(rulesPolicy(t, seq("", "R9")), WithMetrics(reg))
	require.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(reg.PolicyLoads.WithLabelValues(policy.TypeFirewallRules, "error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.LoadErrors.WithLabelValues("malformed")))
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Parse("epolicy.hcl", []byte(`
loader {
  unknown_blocks = "skip"
  max_depth      = 1
}
`))
	require.NoError(t, err)

	blocks := append(folderPolicy(), testutil.Block{Name: "Odd", ParamInt: "7", ParamStr: "Odd"})
	g, err := Load(rulesPolicy(t, blocks...), FromConfig(cfg)...)
	require.NoError(t, err)

	// max_depth 1 leaves no room below the first folder.
	_, err = g.Tree(RootKey)
	assert.ErrorIs(t, err, ErrDepthExceeded)

	assert.Empty(t, FromConfig(&config.Config{}))
}
