package threat

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

func detection(name, writeBypass, readBypass string) testutil.Section {
	return testutil.S(name,
		"bScanWriting", "1",
		"bScanReading", "1",
		"bScanWritingByPass", writeBypass,
		"bScanReadingByPass", readBypass,
		"extensionMode", "2",
		"szProgExts", "",
		"bNetworkScanEnabled", "0",
		"bScanBackupReads", "0",
		"bScanArchives", "0",
		"bScanMime", "0",
		"bApplyNVP", "1",
		"bUnknownProgramHeuristics", "1",
		"bUnknownMacroHeuristics", "1",
		"uAction", "1",
		"uSecAction", "2",
		"uAction_Program", "1",
		"uSecAction_Program", "2",
	)
}

func oasBuilder() *testutil.PolicyBuilder {
	return testutil.NewPolicy(policy.ProductThreatPrevention, policy.TypeOnAccessGeneral, "My Default").
		Settings("My Default::Settings (OAS)",
			testutil.S("General",
				"bOASEnabled", "1",
				"bStartEnabled", "1",
				"bAllowDisableViaMcTray", "0",
				"bEnforceMaxScanTime", "1",
				"dwScannerThreadTimeout", "45",
				"bScanBootSectors", "1",
				"scanShadowCopyDisableStatus", "1",
				"bOnlyUseDefaultConfig", "0",
			),
			testutil.S("GTI", "GTISensitivityLevel", "3"),
			testutil.S("Alerting", "bShowAlerts", "1", "szDialogMessage", DefaultAlertMessage),
			testutil.S("Application",
				"dwApplicationCount", "2",
				"szApplicationItem_0", "backup.exe",
				"TypeItem_0", "0",
				"szApplicationItem_1", "winword.exe",
				"TypeItem_1", "1",
			),
			detection("Default-Detection", "1", "1"),
			detection("HighRisk-Detection", "2", "2"),
			detection("LowRisk-Detection", "0", "0"),
			testutil.S("Default-Detection_Exclusions",
				"bOverwriteExclusions", "0",
				"dwExclusionCount", "1",
				"ExcludedItem_0", `3|7|C:\Program Files\Backup\|vendor`,
			),
			testutil.S("ScriptScan", "scriptScanEnabled", "1"),
			testutil.S("ScriptScanURLExclItems",
				"dwScriptScanURLExclItemCount", "1",
				"ScriptScanExclusionURL_0", "intranet.example.com",
			),
		)
}

func oasPolicy(t *testing.T) *OnAccessScan {
	t.Helper()
	s, err := NewOnAccessScan(load(t, oasBuilder()))
	require.NoError(t, err)
	return s
}

func odsBuilder() *testutil.PolicyBuilder {
	return testutil.NewPolicy(policy.ProductThreatPrevention, policy.TypeOnDemandScan, "Weekly").
		Settings("Weekly::Settings (ODS)",
			testutil.S("FS_ScanOptions",
				"bScanBootSectors", "1",
				"bScanArchives", "1",
				"bScanSubDirs", "1",
				"dwScanItemCount", "2",
				"szScanItem0", LocationMemory,
				"szScanItem1", `C:\Data\`,
				"ExtensionMode", "1",
				"szProgExts", "",
				"GTISensitivityLevel", "2",
			),
			testutil.S("FS_Exclusions", "bOverwriteExclusions", "0", "dwExclusionCount", "0"),
			testutil.S("FS_Remediation",
				"uAction", "1",
				"uSecAction", "2",
				"uAction_Program", "1",
				"uSecAction_Program", "2",
			),
			testutil.S("FS_Performance",
				"bInteractiveUserIsIdle", "1",
				"bUseCache", "1",
				"bSystemUtilization", "1",
				"uDeferTime", "3",
				"szDeferMessage", DefaultDeferMessage,
				"uMessageDuration", "30",
				"SystemUtilization", "2",
				"CPUPercentage", "50",
			),
			testutil.S("FS_Account", "szUserName", "svc-scan", "szDomainName", "CORP", "szPassword", "opaque"),
			testutil.S("QS_ScanOptions",
				"dwScanItemCount", "0",
				"ExtensionMode", "2",
				"szProgExts", "",
				"GTISensitivityLevel", "3",
			),
		)
}

func odsPolicy(t *testing.T) *OnDemandScan {
	t.Helper()
	s, err := NewOnDemandScan(load(t, odsBuilder()))
	require.NoError(t, err)
	return s
}
