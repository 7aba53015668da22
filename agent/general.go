// Package agent edits McAfee Agent General and Repository policies.
//
// Agent 5.x moved most General settings to new service sections
// (PolicyService, UpdaterService, HttpServerService, ...) while older agents
// still read the legacy sections. A Field names both places: reads prefer
// the current section and fall back to the legacy one, writes go to every
// place that exists in the policy.
package agent

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"grimm.is/epolicy/internal/validation"
	"grimm.is/epolicy/policy"
)

var (
	ErrInvalid   = validation.ErrInvalid
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already listed")
)

// Key addresses one setting.
type Key struct {
	Section string
	Setting string
}

func (k Key) String() string { return k.Section + "/" + k.Setting }

// Field is a General setting. Legacy is zero for settings that only live in
// one section.
type Field struct {
	Current Key
	Legacy  Key
}

func dual(section, setting, legacySection, legacySetting string) Field {
	return Field{Key{section, setting}, Key{legacySection, legacySetting}}
}

func single(section, setting string) Field {
	return Field{Current: Key{section, setting}}
}

func (f Field) keys() []Key {
	if f.Legacy.Setting == "" {
		return []Key{f.Current}
	}
	return []Key{f.Current, f.Legacy}
}

// General tab.
var (
	AgentUI             = dual("UpdaterService", "EnableAgentUI", "General", "ShowAgentUI")
	AllowUpdateSecurity = single("General", "bAllowUpdateSecurity")
	AgentUIOverRDP      = single("General", "bAllowMcTrayRDP")
	AgentWakeUp         = dual("HttpServerService", "IsAgentPingEnabled", "AgentListenServer", "bEnableAgentPing")
	SuperAgentWakeUp    = dual("UdpService", "IsBroadcastPingEnabled", "AgentListenServer", "bEnableBroadcastPing")
	ListenToServerOnly  = dual("HttpServerService", "IsListenToEPOServerOnly", "AgentListenServer", "bListenToEPOServerOnly")
	ReducePriority      = single("General", "ReduceProcessPriority")
	SelfProtection      = single("General", "IsSelfProtectionEnabled")
	RebootPrompt        = dual("UpdaterService", "EnableRebootUI", "General", "ShowRebootUI")
	ServerCommunication = single("Network", "bAgentASCI")
	ASCIAfterDays       = dual("PropertyService", "PropertyCollectionIfDelayByDays", "Network", "AsciDoWhen")
	FullProperties      = dual("PropertyService", "PropertyCollectFullProps", "General", "bCollectFullProps")
)

// SuperAgent tab.
var (
	SuperAgent           = dual("HttpServerService", "IsSuperAgentEnabled", "AgentListenServer", "bEnableSuperAgent")
	SuperAgentRepository = dual("HttpServerService", "IsSuperAgentRepositoryEnabled", "AgentListenServer", "bEnableSuperAgentRepository")
	RepositoryPath       = dual("HttpServerService", "VirtualDirectory", "AgentListenServer", "VirtualDirectory")
	RepositoryPathUnix   = dual("HttpServerService", "VirtualDirectoryUnix", "AgentListenServer", "VirtualDirectoryUnix")
	LazyCaching          = single("HttpServerService", "IsLazyCachingEnabled")
	CacheSyncMinutes     = dual("HttpServerService", "RepositorySyncInterval", "AgentListenServer", "NewRepositoryContentInterval")
	CacheQuotaGB         = dual("HttpServerService", "DiskQuota", "AgentListenServer", "LCDiskQuota")
	CachePurgeDays       = dual("HttpServerService", "ContentLongevity", "AgentListenServer", "ContentLongevity")
)

// Relay tab.
var (
	RelayClient       = dual("RelayService", "EnableClient", "AgentListenServer", "IsRelayClientEnabled")
	RelayDiscoveryOff = single("RelayService", "IsRelayDiscoveryDisabled")
	RelayServer       = dual("RelayService", "IsEnabled", "AgentListenServer", "bEnableRelayService")
	RelayServerPort   = dual("RelayService", "RelayServerPort", "AgentListenServer", "AgtServiceMgrPort")
)

// Events tab.
var (
	EventPriorityForward = dual("AgentEvents", "AgPlcyEnableEventTrigger", "EventService", "EventIsEnabledPriorityForward")
	EventPriorityLevel   = dual("AgentEvents", "AgPlcyEventTriggerThreshold", "EventService", "EventPriorityLevel")
	EventUploadMinutes   = dual("AgentEvents", "AgPlcyEventTriggerDelayMins", "EventService", "EventUploadTimeout")
	EventsPerUpload      = dual("AgentEvents", "AgPlcyMaxEventsPerTrigger", "EventService", "EventUploadThreshold")
)

// Logging tab.
var (
	ApplicationLog  = dual("AgentLogging", "IsApplicationLogEnabled", "LoggerService", "IsApplicationLogEnabled")
	DetailedLog     = dual("AgentLogging", "bVerbose", "LoggerService", "bVerbose")
	LogSizeMB       = dual("AgentLogging", "LogSizeLimit", "LoggerService", "LogSizeLimit")
	LogRollover     = dual("AgentLogging", "LogMaxRollover", "LoggerService", "LogMaxRollover")
	RemoteLog       = dual("AgentLogging", "bEnableLog", "LoggerService", "IsLogRecordingEnabled")
	RemoteLogLines  = dual("AgentLogging", "nLogSizeLimit", "LoggerService", "LogRecordsSize")
	RemoteLogAccess = dual("AgentLogging", "bEnableRemoteLog", "LoggerService", "IsRemoteLogEnabled")
)

// Updates tab.
var (
	UpdateLogFile         = dual("UpdateOptions", "szLogFileName", "UpdaterService", "UpdateLogFileName")
	UpdateRunExe          = dual("UpdateOptions", "szRunAfterUpdateEXE", "UpdaterService", "ExeNameToRunAfterUpdate")
	UpdateRunOnSuccess    = dual("UpdateOptions", "bRunIfUpdateSuccess", "UpdaterService", "EnableExeAfterUpdate")
	UpdateDATDowngrade    = dual("UpdateOptions", "bAllowDATDowngrade", "UpdaterService", "EnableDatDowngrade")
	UpdateAfterDeployment = dual("UpdateOptions", "bUpdateAfterDeployment", "UpdaterService", "EnableUpdateAfterDeployment")
)

// Peer-to-peer and deployment tabs.
var (
	PeerClient         = single("P2pService", "EnableClient")
	PeerServer         = single("P2pService", "EnableServing")
	PeerRepoPath       = single("P2pService", "P2pRepoPath")
	PeerRepoPathUnix   = single("P2pService", "P2pRepoPathUnix")
	PeerQuotaMB        = single("P2pService", "DiskQuota")
	PeerPurgeDays      = single("P2pService", "ContentLongevity")
	CompatibilityCheck = single("Deployment", "EnableCompatibilityCheck")
)

// Minimum intervals accepted by the agent.
const (
	MinEnforcementInterval = 5 * time.Minute
	MinASCIInterval        = 5 * time.Minute
)

// NoAutoReboot disables the forced reboot after an update.
const NoAutoReboot time.Duration = -1

// Priority is the lowest event priority forwarded immediately.
type Priority int

const (
	PriorityInformational Priority = iota
	PriorityWarning
	PriorityMinor
	PriorityMajor
	PriorityCritical
)

// General edits a McAfee Agent General policy.
type General struct {
	p *policy.Policy
}

// NewGeneral wraps p, which must be a McAfee Agent General policy.
func NewGeneral(p *policy.Policy) (*General, error) {
	if err := p.Require(policy.ProductAgent, policy.TypeAgentGeneral); err != nil {
		return nil, err
	}
	return &General{p: p}, nil
}

func (g *General) Policy() *policy.Policy { return g.p }

// Get reads f from its current section, falling back to the legacy one.
func (g *General) Get(f Field) (string, error) {
	for _, k := range f.keys() {
		if v, ok := g.p.Get(k.Section, k.Setting); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s", policy.ErrSettingNotFound, f.Current)
}

// Set writes v to every place of f present in the policy. It fails only
// when none is.
func (g *General) Set(f Field, v string) error {
	return g.setEach(f, func(Key) string { return v })
}

func (g *General) setEach(f Field, value func(Key) string) error {
	written := 0
	for _, k := range f.keys() {
		err := g.p.Set(k.Section, k.Setting, value(k), false)
		if errors.Is(err, policy.ErrSettingNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		written++
	}
	if written == 0 {
		return fmt.Errorf("%w: %s", policy.ErrSettingNotFound, f.Current)
	}
	return nil
}

func (g *General) State(f Field) (policy.State, error) {
	v, err := g.Get(f)
	if err != nil {
		return "", err
	}
	if err := validation.State(f.Current.Setting, v); err != nil {
		return "", fmt.Errorf("%w: %s: %v", policy.ErrMalformed, f.Current, err)
	}
	return policy.State(v), nil
}

func (g *General) SetState(f Field, s policy.State) error {
	if err := validation.State(f.Current.Setting, string(s)); err != nil {
		return err
	}
	return g.Set(f, string(s))
}

func (g *General) Int(f Field) (int, error) {
	v, err := g.Get(f)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number: %q", policy.ErrMalformed, f.Current, v)
	}
	return n, nil
}

func (g *General) SetInt(f Field, n int) error {
	return g.Set(f, strconv.Itoa(n))
}

// minutesAndSeconds reads an interval kept in minutes in the current
// section and in seconds in the legacy one.
func (g *General) minutesAndSeconds(f Field) (time.Duration, error) {
	if v, ok := g.p.Get(f.Current.Section, f.Current.Setting); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number: %q", policy.ErrMalformed, f.Current, v)
		}
		return time.Duration(n) * time.Minute, nil
	}
	n, err := g.p.Int(f.Legacy.Section, f.Legacy.Setting)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func (g *General) setMinutesAndSeconds(f Field, d time.Duration) error {
	minutes := int(d / time.Minute)
	return g.setEach(f, func(k Key) string {
		if k == f.Current {
			return strconv.Itoa(minutes)
		}
		return strconv.Itoa(minutes * 60)
	})
}

var (
	enforcementInterval = dual("PolicyService", "PolicyEnforcementTimeout", "General", "PolicyEnforcementInterval")
	asciInterval        = dual("PropertyService", "PropertyCollectionTimeout", "Network", "CheckNetworkMessageInterval")
)

// EnforcementInterval is how often the agent enforces policies.
func (g *General) EnforcementInterval() (time.Duration, error) {
	return g.minutesAndSeconds(enforcementInterval)
}

// SetEnforcementInterval accepts whole minutes from MinEnforcementInterval.
func (g *General) SetEnforcementInterval(d time.Duration) error {
	if err := validation.Min("policy enforcement interval (minutes)", int(d/time.Minute), int(MinEnforcementInterval/time.Minute)); err != nil {
		return err
	}
	return g.setMinutesAndSeconds(enforcementInterval, d)
}

// ASCIInterval is the agent-to-server communication interval.
func (g *General) ASCIInterval() (time.Duration, error) {
	return g.minutesAndSeconds(asciInterval)
}

func (g *General) SetASCIInterval(d time.Duration) error {
	if err := validation.Min("ASCI interval (minutes)", int(d/time.Minute), int(MinASCIInterval/time.Minute)); err != nil {
		return err
	}
	return g.setMinutesAndSeconds(asciInterval, d)
}

func (g *General) EventPriority() (Priority, error) {
	n, err := g.Int(EventPriorityLevel)
	return Priority(n), err
}

func (g *General) SetEventPriority(p Priority) error {
	if err := validation.Range("event priority level", int(p), int(PriorityInformational), int(PriorityCritical)); err != nil {
		return err
	}
	return g.SetInt(EventPriorityLevel, int(p))
}

func (g *General) EventUploadInterval() (time.Duration, error) {
	n, err := g.Int(EventUploadMinutes)
	return time.Duration(n) * time.Minute, err
}

func (g *General) SetEventUploadInterval(d time.Duration) error {
	minutes := int(d / time.Minute)
	if err := validation.Min("event upload interval (minutes)", minutes, 1); err != nil {
		return err
	}
	return g.SetInt(EventUploadMinutes, minutes)
}

// setPositive writes a count that must be at least one.
func (g *General) setPositive(f Field, field string, n int) error {
	if err := validation.Min(field, n, 1); err != nil {
		return err
	}
	return g.SetInt(f, n)
}

func (g *General) MaxEventsPerUpload() (int, error) { return g.Int(EventsPerUpload) }
func (g *General) LogSizeLimit() (int, error)       { return g.Int(LogSizeMB) }
func (g *General) LogRolloverCount() (int, error)   { return g.Int(LogRollover) }
func (g *General) RemoteLogLimit() (int, error)     { return g.Int(RemoteLogLines) }

func (g *General) SetMaxEventsPerUpload(n int) error {
	return g.setPositive(EventsPerUpload, "max events per upload", n)
}

// SetLogSizeLimit sets the log file size limit in megabytes.
func (g *General) SetLogSizeLimit(mb int) error {
	return g.setPositive(LogSizeMB, "log size limit (MB)", mb)
}

func (g *General) SetLogRolloverCount(n int) error {
	return g.setPositive(LogRollover, "log rollover count", n)
}

// SetRemoteLogLimit sets how many log lines remote viewers get.
func (g *General) SetRemoteLogLimit(lines int) error {
	return g.setPositive(RemoteLogLines, "remote log lines", lines)
}

// RebootTimeout is the delay before a forced reboot, or NoAutoReboot.
func (g *General) RebootTimeout() (time.Duration, error) {
	n, err := g.p.Int("General", "RebootTimeOut")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return NoAutoReboot, nil
	}
	return time.Duration(n) * time.Second, nil
}

func (g *General) SetRebootTimeout(d time.Duration) error {
	secs := -1
	if d != NoAutoReboot {
		secs = int(d / time.Second)
		if err := validation.Min("reboot timeout (seconds)", secs, 1); err != nil {
			return err
		}
	}
	return g.p.Set("General", "RebootTimeOut", strconv.Itoa(secs), false)
}

func (g *General) RelayPort() (int, error) { return g.Int(RelayServerPort) }

func (g *General) SetRelayPort(port int) error {
	if err := validation.ValidatePortNumber("relay server port", port); err != nil {
		return err
	}
	return g.SetInt(RelayServerPort, port)
}
