package policy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/epolicy/internal/testutil"
)

func agentPolicy() *testutil.PolicyBuilder {
	return testutil.NewPolicy(ProductAgent, TypeAgentGeneral, "My Default").
		Settings("My Default::Settings (A1)",
			testutil.S("General", "PolicyEnforcementInterval", "300", "ShowAgentUI", "1"),
			testutil.S("PolicyService", "PolicyEnforcementTimeout", "5"),
		)
}

func TestParse(t *testing.T) {
	doc, err := Parse(agentPolicy().XML())
	require.NoError(t, err)

	assert.Equal(t, "EPOPolicySchema", doc.XMLName.Local)
	assert.Equal(t, "5.10.0.2428", doc.Version())
	require.Len(t, doc.Objects, 1)
	assert.Equal(t, "My Default", doc.Objects[0].Name)
	assert.Equal(t, []string{"My Default::Settings (A1)"}, doc.Objects[0].SettingsRefs)

	blk := doc.Block("My Default::Settings (A1)")
	require.NotNil(t, blk)
	v, ok := blk.Section("General").Get("ShowAgentUI")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("<EPOPolicySchema><EPOPolicyObject"))
	assert.Error(t, err)
}

func TestDocument_RoundTrip(t *testing.T) {
	doc, err := Parse(agentPolicy().XML())
	require.NoError(t, err)

	data, err := doc.Bytes()
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`)
	assert.Contains(t, out, `xsi:noNamespaceSchemaLocation="EPOPolicySchema.xsd"`)
	assert.Contains(t, out, `<EPOPolicyVerInfo vermjr="5" vermin="10" verrel="0" verbld="2428"></EPOPolicyVerInfo>`)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Objects, again.Objects)
	assert.Equal(t, doc.Settings, again.Settings)
	assert.Equal(t, doc.Attrs, again.Attrs)
}

func TestDocument_PreservesUnknownElements(t *testing.T) {
	src := `<EPOPolicySchema>
  <EPOPolicyObject serverid="S" name="P" featureid="F" typeid="T" owner="admin">
    <PolicySettings>P::Settings</PolicySettings>
    <Description lang="en">kept <b>as is</b></Description>
  </EPOPolicyObject>
  <EPOPolicySettings name="P::Settings" param_int="0" custom="x"><Section name="A"><Setting name="k" value="v"/></Section></EPOPolicySettings>
</EPOPolicySchema>`

	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	data, err := doc.Bytes()
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `owner="admin"`)
	assert.Contains(t, out, `custom="x"`)
	assert.Contains(t, out, `<Description lang="en">kept <b>as is</b></Description>`)
	assert.Empty(t, doc.Version())
}

func TestDocument_FileIO(t *testing.T) {
	doc, err := Parse(agentPolicy().XML())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "policy.xml")
	require.NoError(t, doc.WriteFile(path))

	loaded, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Settings, loaded.Settings)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestDocument_Clone(t *testing.T) {
	doc, err := Parse(agentPolicy().XML())
	require.NoError(t, err)

	c := doc.Clone()
	assert.Equal(t, doc.Settings, c.Settings)

	c.Settings[0].Sections[0].Settings[0].Value = "changed"
	c.Objects[0].SettingsRefs[0] = "other"
	c.VerInfo.Major = "4"

	assert.Equal(t, "300", doc.Settings[0].Sections[0].Settings[0].Value)
	assert.Equal(t, "My Default::Settings (A1)", doc.Objects[0].SettingsRefs[0])
	assert.Equal(t, "5", doc.VerInfo.Major)
}
