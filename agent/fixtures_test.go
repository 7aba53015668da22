package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/epolicy/internal/testutil"
	"grimm.is/epolicy/policy"
)

func load(t *testing.T, b *testutil.PolicyBuilder) *policy.Policy {
	t.Helper()
	doc, err := policy.Parse(b.XML())
	require.NoError(t, err)
	p, err := policy.FromDocument(doc)
	require.NoError(t, err)
	return p
}

// generalBuilder mixes agent 5.x sections with legacy ones. PropertyService
// is absent so ASCI settings only exist in Network.
func generalBuilder() *testutil.PolicyBuilder {
	return testutil.NewPolicy(policy.ProductAgent, policy.TypeAgentGeneral, "My Default").
		Settings("My Default::Settings (A1)",
			testutil.S("General",
				"ShowAgentUI", "1",
				"ShowRebootUI", "1",
				"PolicyEnforcementInterval", "3600",
				"RebootTimeOut", "-1",
				"bAllowUpdateSecurity", "1",
			),
			testutil.S("PolicyService", "PolicyEnforcementTimeout", "60"),
			testutil.S("UpdaterService", "EnableAgentUI", "1"),
			testutil.S("Network",
				"bAgentASCI", "1",
				"CheckNetworkMessageInterval", "3600",
				"AsciDoWhen", "1",
			),
			testutil.S("AgentEvents",
				"AgPlcyEventTriggerThreshold", "3",
				"AgPlcyEventTriggerDelayMins", "5",
				"AgPlcyMaxEventsPerTrigger", "10",
			),
			testutil.S("EventService",
				"EventPriorityLevel", "3",
				"EventUploadTimeout", "5",
				"EventUploadThreshold", "10",
			),
			testutil.S("AgentLogging",
				"LogSizeLimit", "2",
				"LogMaxRollover", "1",
				"bEnableLog", "1",
				"nLogSizeLimit", "200",
			),
			testutil.S("LoggerService",
				"LogSizeLimit", "2",
				"LogMaxRollover", "1",
				"IsLogRecordingEnabled", "1",
				"LogRecordsSize", "200",
			),
			testutil.S("RelayService",
				"IsEnabled", "0",
				"RelayServerPort", "8083",
				"RelayServerCount", "1",
				"relayselect_1", "1",
				"relayip_1", "relay1.example.com",
				"relayport_1", "8081",
			),
			testutil.S("AgentListenServer",
				"bEnableRelayService", "0",
				"AgtServiceMgrPort", "8083",
			),
			testutil.S("BranchSelection",
				"NumberOfItems", "1",
				"BranchType_0", "Current",
				"OneClickEnabled_0", "0",
				"SoftwareID_0", "EPOAGENTMETA",
			),
		)
}

func generalPolicy(t *testing.T) *General {
	t.Helper()
	g, err := NewGeneral(load(t, generalBuilder()))
	require.NoError(t, err)
	return g
}

func repositoryBuilder(inet ...string) *testutil.PolicyBuilder {
	return testutil.NewPolicy(policy.ProductAgent, policy.TypeAgentRepository, "My Default").
		Settings("My Default::Settings (R1)", testutil.S("InetManager", inet...))
}

func repositoryPolicy(t *testing.T) *Repository {
	t.Helper()
	r, err := NewRepository(load(t, repositoryBuilder(
		"bUseProxy", "0",
		"SitelistOrderNum", "3",
		"SitelistOrder_0", "ePOSiteMgr_EPO-TEST",
		"SitelistOrder_1", "McAfeeHttp",
		"SitelistOrder_2", "McAfeeFtp",
		"DisabledSiteNum", "1",
		"DisabledSites_0", "McAfeeFtp",
	)))
	require.NoError(t, err)
	return r
}
