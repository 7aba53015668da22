package threat

import (
	"fmt"
	"strconv"
	"time"

	"grimm.is/epolicy/internal/validation"
	"grimm.is/epolicy/policy"
)

// ScanKind selects one of the three scans of an on-demand policy.
type ScanKind string

const (
	FullScan       ScanKind = "FS"
	QuickScan      ScanKind = "QS"
	RightClickScan ScanKind = "RS"
)

func (k ScanKind) validate() error {
	return validation.ValidateAllowlist("scan kind", string(k), []string{string(FullScan), string(QuickScan), string(RightClickScan)})
}

func (k ScanKind) section(suffix string) string { return string(k) + suffix }

// Section suffixes of an on-demand scan.
const (
	scanOptions = "_ScanOptions"
	exclusions  = "_Exclusions"
	remediation = "_Remediation"
	performance = "_Performance"
	account     = "_Account"
)

// ScanToggle is a boolean setting held by each on-demand scan.
type ScanToggle struct {
	Suffix  string
	Setting string
}

var (
	ODSBootSectors         = ScanToggle{scanOptions, "bScanBootSectors"}
	ODSMigratedFiles       = ScanToggle{scanOptions, "bScanFilesMigratedToStorage"}
	ODSMime                = ScanToggle{scanOptions, "bScanMime"}
	ODSArchives            = ScanToggle{scanOptions, "bScanArchives"}
	ODSUnwantedPrograms    = ScanToggle{scanOptions, "bDetectUnwantedPrograms"}
	ODSUnknownPrograms     = ScanToggle{scanOptions, "bUnknownProgramHeuristics"}
	ODSUnknownMacros       = ScanToggle{scanOptions, "bUnknownMacroHeuristics"}
	ODSSubfolders          = ScanToggle{scanOptions, "bScanSubDirs"}
	ODSOverwriteExclusions = ScanToggle{exclusions, "bOverwriteExclusions"}
	ODSOnlyWhenIdle        = ScanToggle{performance, "bInteractiveUserIsIdle"}
	ODSResumePaused        = ScanToggle{performance, "bResumePausedScans"}
	ODSUserDefer           = ScanToggle{performance, "bPermitUserDefer"}
	ODSUserPauseCancel     = ScanToggle{performance, "bPauseAndCancelScans"}
	ODSNotInPresentation   = ScanToggle{performance, "bDeferScanInFullScreen"}
	ODSNotOnBattery        = ScanToggle{performance, "bDeferScanOnBattery"}
	ODSUseCache            = ScanToggle{performance, "bUseCache"}
	// ODSSystemUtilization selects SystemUtilization over CPUPercentage.
	ODSSystemUtilization = ScanToggle{performance, "bSystemUtilization"}
)

// Utilization is the system utilization level of a scan.
type Utilization int

const (
	UtilizationLow Utilization = iota + 1
	UtilizationBelowNormal
	UtilizationNormal
)

const DefaultDeferMessage = "McAfee Endpoint Security is about to scan your system."

var (
	odsFirst  = []Action{ActionClean, ActionDelete, ActionContinue}
	odsSecond = []Action{ActionDelete, ActionContinue}
)

// OnDemandScan edits an On-Demand Scan policy (EAM_OnDemandScan_Policies).
// Every accessor takes the scan it applies to. Right-click scans have no
// locations of their own.
type OnDemandScan struct {
	p *policy.Policy
}

// NewOnDemandScan wraps p, which must be a Threat Prevention on-demand
// policy.
func NewOnDemandScan(p *policy.Policy) (*OnDemandScan, error) {
	if err := p.Require(policy.ProductThreatPrevention, policy.TypeOnDemandScan); err != nil {
		return nil, err
	}
	return &OnDemandScan{p: p}, nil
}

// Policy returns the underlying policy.
func (s *OnDemandScan) Policy() *policy.Policy { return s.p }

// Get reads a scan toggle.
func (s *OnDemandScan) Get(k ScanKind, t ScanToggle) (policy.State, error) {
	if err := k.validate(); err != nil {
		return "", err
	}
	return s.p.State(k.section(t.Suffix), t.Setting)
}

// Set writes a scan toggle.
func (s *OnDemandScan) Set(k ScanKind, t ScanToggle, st policy.State) error {
	if err := k.validate(); err != nil {
		return err
	}
	return s.p.SetState(k.section(t.Suffix), t.Setting, st)
}

// Locations reads the scan locations.
func (s *OnDemandScan) Locations(k ScanKind) (*LocationList, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	items, err := s.p.List(k.section(scanOptions), "dwScanItemCount", "szScanItem", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan locations: %w", err)
	}
	return NewLocationList(items...), nil
}

// SetLocations replaces the scan locations.
func (s *OnDemandScan) SetLocations(k ScanKind, l *LocationList) error {
	if err := k.validate(); err != nil {
		return err
	}
	return s.p.SetList(k.section(scanOptions), "dwScanItemCount", "szScanItem", 0, l.items)
}

// FileTypes reads the file types the scan covers.
func (s *OnDemandScan) FileTypes(k ScanKind) (FileTypes, error) {
	if err := k.validate(); err != nil {
		return FileTypes{}, err
	}
	return readFileTypes(s.p, k.section(scanOptions), "ExtensionMode")
}

func (s *OnDemandScan) SetFileTypes(k ScanKind, ft FileTypes) error {
	if err := k.validate(); err != nil {
		return err
	}
	return writeFileTypes(s.p, k.section(scanOptions), "ExtensionMode", ft)
}

// GTILevel reads the Global Threat Intelligence sensitivity of the scan.
func (s *OnDemandScan) GTILevel(k ScanKind) (GTILevel, error) {
	if err := k.validate(); err != nil {
		return 0, err
	}
	return readGTI(s.p, k.section(scanOptions))
}

func (s *OnDemandScan) SetGTILevel(k ScanKind, l GTILevel) error {
	if err := k.validate(); err != nil {
		return err
	}
	return writeGTI(s.p, k.section(scanOptions), l)
}

// Exclusions reads the scan exclusion list.
func (s *OnDemandScan) Exclusions(k ScanKind) (*ExclusionList, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	return readExclusions(s.p, k.section(exclusions))
}

// SetExclusions replaces the exclusion list. Other settings of the
// section are kept.
func (s *OnDemandScan) SetExclusions(k ScanKind, l *ExclusionList) error {
	if err := k.validate(); err != nil {
		return err
	}
	return writeExclusions(s.p, k.section(exclusions), l)
}

// ThreatResponse reads the actions taken when a threat is found.
func (s *OnDemandScan) ThreatResponse(k ScanKind) (Response, error) {
	if err := k.validate(); err != nil {
		return Response{}, err
	}
	return readResponse(s.p, k.section(remediation), "uAction", "uSecAction")
}

// SetThreatResponse accepts clean, delete or continue first and delete or
// continue second.
func (s *OnDemandScan) SetThreatResponse(k ScanKind, r Response) error {
	if err := k.validate(); err != nil {
		return err
	}
	if err := r.validate("threat", odsFirst, odsSecond); err != nil {
		return err
	}
	return writeResponse(s.p, k.section(remediation), "uAction", "uSecAction", r)
}

// UnwantedResponse reads the actions taken on potentially unwanted programs.
func (s *OnDemandScan) UnwantedResponse(k ScanKind) (Response, error) {
	if err := k.validate(); err != nil {
		return Response{}, err
	}
	return readResponse(s.p, k.section(remediation), "uAction_Program", "uSecAction_Program")
}

func (s *OnDemandScan) SetUnwantedResponse(k ScanKind, r Response) error {
	if err := k.validate(); err != nil {
		return err
	}
	if err := r.validate("unwanted program", odsFirst, odsSecond); err != nil {
		return err
	}
	return writeResponse(s.p, k.section(remediation), "uAction_Program", "uSecAction_Program", r)
}

func (s *OnDemandScan) intSetting(k ScanKind, suffix, setting string) (int, error) {
	if err := k.validate(); err != nil {
		return 0, err
	}
	return s.p.Int(k.section(suffix), setting)
}

func (s *OnDemandScan) setInt(k ScanKind, suffix, setting string, v int) error {
	if err := k.validate(); err != nil {
		return err
	}
	return s.p.Set(k.section(suffix), setting, strconv.Itoa(v), false)
}

// DeferLimit is how many times per hour the user may defer the scan.
func (s *OnDemandScan) DeferLimit(k ScanKind) (int, error) {
	return s.intSetting(k, performance, "uDeferTime")
}

func (s *OnDemandScan) SetDeferLimit(k ScanKind, n int) error {
	if err := validation.Min("defer limit", n, 0); err != nil {
		return err
	}
	return s.setInt(k, performance, "uDeferTime", n)
}

// DeferMessage is the text shown when the user may defer the scan.
func (s *OnDemandScan) DeferMessage(k ScanKind) (string, error) {
	if err := k.validate(); err != nil {
		return "", err
	}
	return s.p.MustGet(k.section(performance), "szDeferMessage")
}

func (s *OnDemandScan) SetDeferMessage(k ScanKind, msg string) error {
	if err := k.validate(); err != nil {
		return err
	}
	if err := validation.Length("defer message", msg, 1, 256); err != nil {
		return err
	}
	return s.p.Set(k.section(performance), "szDeferMessage", msg, false)
}

// MessageDuration is how long the defer message is shown.
func (s *OnDemandScan) MessageDuration(k ScanKind) (time.Duration, error) {
	n, err := s.intSetting(k, performance, "uMessageDuration")
	return time.Duration(n) * time.Second, err
}

func (s *OnDemandScan) SetMessageDuration(k ScanKind, d time.Duration) error {
	secs := int(d / time.Second)
	if err := validation.Min("message duration (seconds)", secs, 0); err != nil {
		return err
	}
	return s.setInt(k, performance, "uMessageDuration", secs)
}

// SystemUtilization reads the scan priority level.
func (s *OnDemandScan) SystemUtilization(k ScanKind) (Utilization, error) {
	n, err := s.intSetting(k, performance, "SystemUtilization")
	return Utilization(n), err
}

func (s *OnDemandScan) SetSystemUtilization(k ScanKind, u Utilization) error {
	if err := validation.Range("system utilization", int(u), int(UtilizationLow), int(UtilizationNormal)); err != nil {
		return err
	}
	return s.setInt(k, performance, "SystemUtilization", int(u))
}

// CPULimit is the maximum CPU percentage of a scan that runs anytime.
func (s *OnDemandScan) CPULimit(k ScanKind) (int, error) {
	return s.intSetting(k, performance, "CPUPercentage")
}

// SetCPULimit accepts 25 to 99 percent.
func (s *OnDemandScan) SetCPULimit(k ScanKind, percent int) error {
	if err := validation.Range("CPU percentage", percent, 25, 99); err != nil {
		return err
	}
	return s.setInt(k, performance, "CPUPercentage", percent)
}

// Account returns the user and domain used to scan network drives. The
// password is stored encrypted and is not exposed.
func (s *OnDemandScan) Account(k ScanKind) (user, domain string, err error) {
	if err := k.validate(); err != nil {
		return "", "", err
	}
	if user, err = s.p.MustGet(k.section(account), "szUserName"); err != nil {
		return "", "", err
	}
	if domain, err = s.p.MustGet(k.section(account), "szDomainName"); err != nil {
		return "", "", err
	}
	return user, domain, nil
}

func (s *OnDemandScan) SetAccount(k ScanKind, user, domain string) error {
	if err := k.validate(); err != nil {
		return err
	}
	if err := s.p.Set(k.section(account), "szUserName", user, false); err != nil {
		return err
	}
	return s.p.Set(k.section(account), "szDomainName", domain, false)
}
