package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/epolicy/policy"
)

func TestNewGeneral_WrongType(t *testing.T) {
	_, err := NewGeneral(load(t, repositoryBuilder("SitelistOrderNum", "0")))
	assert.ErrorIs(t, err, policy.ErrWrongType)
}

func TestGeneral_GetFallsBackToLegacy(t *testing.T) {
	g := generalPolicy(t)

	// UpdaterService has no EnableRebootUI.
	st, err := g.State(RebootPrompt)
	require.NoError(t, err)
	assert.Equal(t, policy.Enabled, st)

	require.NoError(t, g.SetState(RebootPrompt, policy.Disabled))
	v, _ := g.Policy().Get("General", "ShowRebootUI")
	assert.Equal(t, "0", v)
	_, ok := g.Policy().Get("UpdaterService", "EnableRebootUI")
	assert.False(t, ok)

	// Current section wins when both exist.
	require.NoError(t, g.Policy().Set("General", "ShowAgentUI", "0", false))
	st, _ = g.State(AgentUI)
	assert.Equal(t, policy.Enabled, st)
}

func TestGeneral_SetWritesBothSections(t *testing.T) {
	g := generalPolicy(t)

	require.NoError(t, g.SetState(AgentUI, policy.Disabled))
	for _, k := range []Key{AgentUI.Current, AgentUI.Legacy} {
		v, _ := g.Policy().Get(k.Section, k.Setting)
		assert.Equal(t, "0", v, k.String())
	}

	assert.ErrorIs(t, g.SetState(AgentUI, "2"), ErrInvalid)
	assert.ErrorIs(t, g.SetState(PeerClient, policy.Enabled), policy.ErrSettingNotFound)
	_, err := g.Get(PeerClient)
	assert.ErrorIs(t, err, policy.ErrSettingNotFound)

	require.NoError(t, g.Policy().Set("General", "ShowRebootUI", "yes", false))
	_, err = g.State(RebootPrompt)
	assert.ErrorIs(t, err, policy.ErrMalformed)
}

func TestGeneral_EnforcementInterval(t *testing.T) {
	g := generalPolicy(t)

	d, err := g.EnforcementInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	assert.ErrorIs(t, g.SetEnforcementInterval(4*time.Minute), ErrInvalid)
	require.NoError(t, g.SetEnforcementInterval(10*time.Minute))

	v, _ := g.Policy().Get("PolicyService", "PolicyEnforcementTimeout")
	assert.Equal(t, "10", v)
	v, _ = g.Policy().Get("General", "PolicyEnforcementInterval")
	assert.Equal(t, "600", v)
}

func TestGeneral_ASCIIntervalLegacyOnly(t *testing.T) {
	g := generalPolicy(t)

	d, err := g.ASCIInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	assert.ErrorIs(t, g.SetASCIInterval(time.Minute), ErrInvalid)
	require.NoError(t, g.SetASCIInterval(15*time.Minute))
	v, _ := g.Policy().Get("Network", "CheckNetworkMessageInterval")
	assert.Equal(t, "900", v)

	d, _ = g.ASCIInterval()
	assert.Equal(t, 15*time.Minute, d)

	n, err := g.Int(ASCIAfterDays)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGeneral_Events(t *testing.T) {
	g := generalPolicy(t)

	p, err := g.EventPriority()
	require.NoError(t, err)
	assert.Equal(t, PriorityMajor, p)

	assert.ErrorIs(t, g.SetEventPriority(5), ErrInvalid)
	assert.ErrorIs(t, g.SetEventPriority(-1), ErrInvalid)
	require.NoError(t, g.SetEventPriority(PriorityCritical))
	v, _ := g.Policy().Get("EventService", "EventPriorityLevel")
	assert.Equal(t, "4", v)

	d, err := g.EventUploadInterval()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
	assert.ErrorIs(t, g.SetEventUploadInterval(30*time.Second), ErrInvalid)
	require.NoError(t, g.SetEventUploadInterval(time.Minute))
}

func TestGeneral_PositiveCounts(t *testing.T) {
	tests := []struct {
		name string
		get  func(*General) (int, error)
		set  func(*General, int) error
		want int
	}{
		{"max events", (*General).MaxEventsPerUpload, (*General).SetMaxEventsPerUpload, 10},
		{"log size", (*General).LogSizeLimit, (*General).SetLogSizeLimit, 2},
		{"rollover", (*General).LogRolloverCount, (*General).SetLogRolloverCount, 1},
		{"remote lines", (*General).RemoteLogLimit, (*General).SetRemoteLogLimit, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := generalPolicy(t)

			n, err := tt.get(g)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			assert.ErrorIs(t, tt.set(g, 0), ErrInvalid)
			require.NoError(t, tt.set(g, 42))
			n, _ = tt.get(g)
			assert.Equal(t, 42, n)
		})
	}
}

func TestGeneral_RebootTimeout(t *testing.T) {
	g := generalPolicy(t)

	d, err := g.RebootTimeout()
	require.NoError(t, err)
	assert.Equal(t, NoAutoReboot, d)

	require.NoError(t, g.SetRebootTimeout(90*time.Second))
	d, _ = g.RebootTimeout()
	assert.Equal(t, 90*time.Second, d)

	assert.ErrorIs(t, g.SetRebootTimeout(0), ErrInvalid)
	require.NoError(t, g.SetRebootTimeout(NoAutoReboot))
	v, _ := g.Policy().Get("General", "RebootTimeOut")
	assert.Equal(t, "-1", v)
}

func TestGeneral_RelayPort(t *testing.T) {
	g := generalPolicy(t)

	port, err := g.RelayPort()
	require.NoError(t, err)
	assert.Equal(t, 8083, port)

	assert.ErrorIs(t, g.SetRelayPort(0), ErrInvalid)
	assert.ErrorIs(t, g.SetRelayPort(70000), ErrInvalid)
	require.NoError(t, g.SetRelayPort(8443))
	v, _ := g.Policy().Get("AgentListenServer", "AgtServiceMgrPort")
	assert.Equal(t, "8443", v)
}
