package threat

import (
	"fmt"
	"strconv"
	"time"

	"grimm.is/epolicy/internal/validation"
	"grimm.is/epolicy/policy"
)

// Profile is one of the three on-access process profiles.
type Profile string

const (
	ProfileStandard Profile = "Default-Detection"
	ProfileHighRisk Profile = "HighRisk-Detection"
	ProfileLowRisk  Profile = "LowRisk-Detection"
)

var profiles = []string{string(ProfileStandard), string(ProfileHighRisk), string(ProfileLowRisk)}

func (pr Profile) validate() error {
	return validation.ValidateAllowlist("profile", string(pr), profiles)
}

// Toggle is a boolean setting of the on-access policy.
type Toggle struct {
	Section string
	Setting string
	// Inverted settings store "1" when the feature is off.
	Inverted bool
}

var (
	OASEnabled              = Toggle{Section: "General", Setting: "bOASEnabled"}
	OASScanOnStartup        = Toggle{Section: "General", Setting: "bStartEnabled"}
	OASAllowUserDisable     = Toggle{Section: "General", Setting: "bAllowDisableViaMcTray"}
	OASEnforceMaxScanTime   = Toggle{Section: "General", Setting: "bEnforceMaxScanTime"}
	OASBootSectors          = Toggle{Section: "General", Setting: "bScanBootSectors"}
	OASProcessesOnEnable    = Toggle{Section: "General", Setting: "scanProcessesOnEnable"}
	OASTrustedInstallers    = Toggle{Section: "General", Setting: "scanTrustedInstallers"}
	OASCopyLocalFolders     = Toggle{Section: "General", Setting: "scanCopyLocalFolders"}
	OASCopyNetworkRemovable = Toggle{Section: "General", Setting: "scanCopyNetworkRemovable"}
	OASEmailAttachments     = Toggle{Section: "General", Setting: "scanEmailAttachments"}
	OASShadowCopy           = Toggle{Section: "General", Setting: "scanShadowCopyDisableStatus", Inverted: true}
	OASAMSI                 = Toggle{Section: "General", Setting: "scanUsingAMSIHooks"}
	OASAMSIObserveMode      = Toggle{Section: "General", Setting: "enableAMSIObserveMode"}
	OASStandardSettingsOnly = Toggle{Section: "General", Setting: "bOnlyUseDefaultConfig"}
	OASShowAlerts           = Toggle{Section: "Alerting", Setting: "bShowAlerts"}
	OASScriptScan           = Toggle{Section: "ScriptScan", Setting: "scriptScanEnabled"}
)

// ProfileToggle is a boolean setting held by each process profile.
type ProfileToggle string

const (
	ProfileNetworkDrives    ProfileToggle = "bNetworkScanEnabled"
	ProfileBackupReads      ProfileToggle = "bScanBackupReads"
	ProfileArchives         ProfileToggle = "bScanArchives"
	ProfileMime             ProfileToggle = "bScanMime"
	ProfileUnwantedPrograms ProfileToggle = "bApplyNVP"
	ProfileUnknownPrograms  ProfileToggle = "bUnknownProgramHeuristics"
	ProfileUnknownMacros    ProfileToggle = "bUnknownMacroHeuristics"
)

// WhenToScan is the read/write scan timing of a profile.
type WhenToScan int

const (
	// NeverScan is only valid for the low risk profile.
	NeverScan WhenToScan = iota
	ScanOnWrite
	ScanOnRead
	LetMcAfeeDecide
	LetMeDecideOnWrite
	LetMeDecideOnRead
	LetMeDecideOnReadWrite
)

// whenToScanFlags are bScanWriting, bScanReading, bScanWritingByPass and
// bScanReadingByPass for each level.
var whenToScanFlags = [...][4]string{
	NeverScan:              {"0", "0", "0", "0"},
	ScanOnWrite:            {"1", "0", "2", "0"},
	ScanOnRead:             {"0", "1", "0", "2"},
	LetMcAfeeDecide:        {"1", "1", "1", "1"},
	LetMeDecideOnWrite:     {"1", "0", "2", "0"},
	LetMeDecideOnRead:      {"0", "1", "0", "2"},
	LetMeDecideOnReadWrite: {"1", "1", "2", "2"},
}

var whenToScanSettings = [4]string{"bScanWriting", "bScanReading", "bScanWritingByPass", "bScanReadingByPass"}

const (
	DefaultAlertMessage = "McAfee Endpoint Security detected a threat."
	// MinMaxScanTime is the lowest accepted per-file scan timeout.
	MinMaxScanTime = 10 * time.Second
)

var (
	oasFirstThreat   = []Action{ActionClean, ActionDelete, ActionDeny}
	oasSecondThreat  = []Action{ActionDelete, ActionDeny}
	oasFirstProgram  = []Action{ActionClean, ActionDelete, ActionDeny, ActionAllow}
	oasSecondProgram = []Action{ActionDelete, ActionDeny, ActionAllow}
)

// OnAccessScan edits an On-Access Scan policy (EAM_General_Policies).
type OnAccessScan struct {
	p *policy.Policy
}

// NewOnAccessScan wraps p, which must be a Threat Prevention on-access
// policy.
func NewOnAccessScan(p *policy.Policy) (*OnAccessScan, error) {
	if err := p.Require(policy.ProductThreatPrevention, policy.TypeOnAccessGeneral); err != nil {
		return nil, err
	}
	return &OnAccessScan{p: p}, nil
}

// Policy returns the wrapped policy.
func (s *OnAccessScan) Policy() *policy.Policy { return s.p }

// Get reads a toggle.
func (s *OnAccessScan) Get(t Toggle) (policy.State, error) {
	st, err := s.p.State(t.Section, t.Setting)
	if err != nil || !t.Inverted {
		return st, err
	}
	return st.Invert(), nil
}

// Set changes a toggle.
func (s *OnAccessScan) Set(t Toggle, st policy.State) error {
	if err := validation.State(t.Setting, string(st)); err != nil {
		return err
	}
	if t.Inverted {
		st = st.Invert()
	}
	return s.p.SetState(t.Section, t.Setting, st)
}

// GTILevel reads the Global Threat Intelligence sensitivity.
func (s *OnAccessScan) GTILevel() (GTILevel, error) { return readGTI(s.p, "GTI") }

// SetGTILevel sets the Global Threat Intelligence sensitivity.
func (s *OnAccessScan) SetGTILevel(l GTILevel) error { return writeGTI(s.p, "GTI", l) }

// MaxScanTime is the longest a single file scan may run.
func (s *OnAccessScan) MaxScanTime() (time.Duration, error) {
	n, err := s.p.Int("General", "dwScannerThreadTimeout")
	return time.Duration(n) * time.Second, err
}

// SetMaxScanTime stores d in whole seconds. It must be at least
// MinMaxScanTime.
func (s *OnAccessScan) SetMaxScanTime(d time.Duration) error {
	secs := int(d / time.Second)
	if err := validation.Min("max scan time (seconds)", secs, int(MinMaxScanTime/time.Second)); err != nil {
		return err
	}
	return s.p.Set("General", "dwScannerThreadTimeout", strconv.Itoa(secs), false)
}

// AlertMessage is the text shown to the user when a threat is found.
func (s *OnAccessScan) AlertMessage() (string, error) {
	return s.p.MustGet("Alerting", "szDialogMessage")
}

// SetAlertMessage sets the threat detection dialog text (1 to 256
// characters).
func (s *OnAccessScan) SetAlertMessage(msg string) error {
	if err := validation.Length("alert message", msg, 1, 256); err != nil {
		return err
	}
	return s.p.Set("Alerting", "szDialogMessage", msg, false)
}

// WhenToScan decodes the read/write flags of a profile.
func (s *OnAccessScan) WhenToScan(pr Profile) (WhenToScan, error) {
	if err := pr.validate(); err != nil {
		return 0, err
	}
	var v [4]string
	for i, name := range whenToScanSettings {
		v[i], _ = s.p.Get(string(pr), name)
	}
	write, read, writeBypass, readBypass := v[0], v[1], v[2], v[3]
	switch {
	case writeBypass == "2" && readBypass == "2":
		return LetMeDecideOnReadWrite, nil
	case readBypass == "2":
		return LetMeDecideOnRead, nil
	case writeBypass == "2":
		return LetMeDecideOnWrite, nil
	case write == "1" && read == "1":
		return LetMcAfeeDecide, nil
	case read == "1":
		return ScanOnRead, nil
	case write == "1":
		return ScanOnWrite, nil
	}
	return NeverScan, nil
}

// SetWhenToScan writes the read/write flags of a profile. NeverScan is
// accepted for ProfileLowRisk only.
func (s *OnAccessScan) SetWhenToScan(pr Profile, w WhenToScan) error {
	if err := pr.validate(); err != nil {
		return err
	}
	if err := validation.Range("when to scan", int(w), int(NeverScan), int(LetMeDecideOnReadWrite)); err != nil {
		return err
	}
	if w == NeverScan && pr != ProfileLowRisk {
		return &validation.Error{Field: "when to scan", Value: int(w), Message: "is only allowed for the low risk profile"}
	}
	for i, name := range whenToScanSettings {
		if err := s.p.Set(string(pr), name, whenToScanFlags[w][i], false); err != nil {
			return err
		}
	}
	return nil
}

// WhatToScan reads the file types the profile scans.
func (s *OnAccessScan) WhatToScan(pr Profile) (FileTypes, error) {
	if err := pr.validate(); err != nil {
		return FileTypes{}, err
	}
	return readFileTypes(s.p, string(pr), "extensionMode")
}

// SetWhatToScan sets the file types the profile scans.
func (s *OnAccessScan) SetWhatToScan(pr Profile, ft FileTypes) error {
	if err := pr.validate(); err != nil {
		return err
	}
	return writeFileTypes(s.p, string(pr), "extensionMode", ft)
}

// ProfileState reads a scan toggle of the profile.
func (s *OnAccessScan) ProfileState(pr Profile, t ProfileToggle) (policy.State, error) {
	if err := pr.validate(); err != nil {
		return "", err
	}
	return s.p.State(string(pr), string(t))
}

// SetProfileState writes a scan toggle of the profile.
func (s *OnAccessScan) SetProfileState(pr Profile, t ProfileToggle, st policy.State) error {
	if err := pr.validate(); err != nil {
		return err
	}
	return s.p.SetState(string(pr), string(t), st)
}

// ThreatResponse reads the actions taken on a detected threat.
func (s *OnAccessScan) ThreatResponse(pr Profile) (Response, error) {
	if err := pr.validate(); err != nil {
		return Response{}, err
	}
	return readResponse(s.p, string(pr), "uAction", "uSecAction")
}

// SetThreatResponse accepts clean, delete or deny first and delete or deny
// second.
func (s *OnAccessScan) SetThreatResponse(pr Profile, r Response) error {
	if err := pr.validate(); err != nil {
		return err
	}
	if err := r.validate("threat", oasFirstThreat, oasSecondThreat); err != nil {
		return err
	}
	return writeResponse(s.p, string(pr), "uAction", "uSecAction", r)
}

// UnwantedResponse reads the actions taken on a potentially unwanted
// program.
func (s *OnAccessScan) UnwantedResponse(pr Profile) (Response, error) {
	if err := pr.validate(); err != nil {
		return Response{}, err
	}
	return readResponse(s.p, string(pr), "uAction_Program", "uSecAction_Program")
}

// SetUnwantedResponse sets the actions taken on potentially unwanted programs.
func (s *OnAccessScan) SetUnwantedResponse(pr Profile, r Response) error {
	if err := pr.validate(); err != nil {
		return err
	}
	if err := r.validate("unwanted program", oasFirstProgram, oasSecondProgram); err != nil {
		return err
	}
	return writeResponse(s.p, string(pr), "uAction_Program", "uSecAction_Program", r)
}

// Processes reads the process list of the Application section.
func (s *OnAccessScan) Processes() (*ProcessList, error) {
	rows, err := s.p.Table("Application", "dwApplicationCount", 0, "szApplicationItem_", "TypeItem_")
	if err != nil {
		return nil, fmt.Errorf("failed to read process list: %w", err)
	}
	l := NewProcessList()
	for _, row := range rows {
		risk := LowRisk
		if row[1] != "0" {
			risk = HighRisk
		}
		l.items = append(l.items, Process{Name: row[0], Risk: risk})
	}
	return l, nil
}

// SetProcesses replaces the process list.
func (s *OnAccessScan) SetProcesses(l *ProcessList) error {
	rows := make([][]string, len(l.items))
	for i, p := range l.items {
		rows[i] = []string{p.Name, strconv.Itoa(int(p.Risk))}
	}
	return s.p.SetTable("Application", "dwApplicationCount", 0, []string{"szApplicationItem_", "TypeItem_"}, rows)
}

func exclusionSection(pr Profile) string { return string(pr) + "_Exclusions" }

// Exclusions reads the exclusion list of a profile.
func (s *OnAccessScan) Exclusions(pr Profile) (*ExclusionList, error) {
	if err := pr.validate(); err != nil {
		return nil, err
	}
	return readExclusions(s.p, exclusionSection(pr))
}

// SetExclusions replaces the exclusion list of a profile. Other settings
// of the section are kept.
func (s *OnAccessScan) SetExclusions(pr Profile, l *ExclusionList) error {
	if err := pr.validate(); err != nil {
		return err
	}
	return writeExclusions(s.p, exclusionSection(pr), l)
}

// OverwriteExclusions reports whether the profile's exclusions replace
// those configured on the client.
func (s *OnAccessScan) OverwriteExclusions(pr Profile) (policy.State, error) {
	if err := pr.validate(); err != nil {
		return "", err
	}
	return s.p.State(exclusionSection(pr), "bOverwriteExclusions")
}

// SetOverwriteExclusions sets whether the profile exclusions replace client-side ones.
func (s *OnAccessScan) SetOverwriteExclusions(pr Profile, st policy.State) error {
	if err := pr.validate(); err != nil {
		return err
	}
	return s.p.SetState(exclusionSection(pr), "bOverwriteExclusions", st)
}

// ScriptScanExclusions reads the URLs excluded from script scanning.
func (s *OnAccessScan) ScriptScanExclusions() (*URLList, error) {
	urls, err := s.p.List("ScriptScanURLExclItems", "dwScriptScanURLExclItemCount", "ScriptScanExclusionURL_", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read script scan exclusions: %w", err)
	}
	return NewURLList(urls...), nil
}

// SetScriptScanExclusions replaces the URLs excluded from script scanning.
func (s *OnAccessScan) SetScriptScanExclusions(l *URLList) error {
	return s.p.SetList("ScriptScanURLExclItems", "dwScriptScanURLExclItemCount", "ScriptScanExclusionURL_", 0, l.items)
}
