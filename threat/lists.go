package threat

import (
	"fmt"
	"slices"
	"strings"

	"grimm.is/epolicy/internal/validation"
)

// Risk is the process type of an on-access process entry.
type Risk int

const (
	LowRisk Risk = iota
	HighRisk
)

func (r Risk) String() string {
	if r == HighRisk {
		return "High Risk"
	}
	return "Low Risk"
}

// Process is a process name assigned to a risk profile.
type Process struct {
	Name string
	Risk Risk
}

// ProcessList holds processes that use the low or high risk profile.
// Unlisted processes use the standard profile. Names are unique.
type ProcessList struct {
	items []Process
}

// NewProcessList returns a list holding items.
func NewProcessList(items ...Process) *ProcessList {
	return &ProcessList{items: append([]Process(nil), items...)}
}

func (l *ProcessList) Items() []Process { return append([]Process(nil), l.items...) }
func (l *ProcessList) Len() int         { return len(l.items) }

// Add appends a process. A name already listed with any risk is
// ErrDuplicate.
func (l *ProcessList) Add(name string, risk Risk) error {
	if err := validation.Var("process name", name, "required"); err != nil {
		return err
	}
	if risk != LowRisk && risk != HighRisk {
		return &validation.Error{Field: "process risk", Value: int(risk), Message: "must be Low Risk or High Risk"}
	}
	if l.Contains(name) {
		return fmt.Errorf("%w: process %q", ErrDuplicate, name)
	}
	l.items = append(l.items, Process{Name: name, Risk: risk})
	return nil
}

func (l *ProcessList) AddLowRisk(name string) error  { return l.Add(name, LowRisk) }
func (l *ProcessList) AddHighRisk(name string) error { return l.Add(name, HighRisk) }

// Remove deletes a process.
func (l *ProcessList) Remove(name string) error {
	i := slices.IndexFunc(l.items, func(p Process) bool { return p.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: process %q", ErrNotFound, name)
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

func (l *ProcessList) Contains(name string) bool {
	return slices.ContainsFunc(l.items, func(p Process) bool { return p.Name == name })
}

func (l *ProcessList) ContainsLowRisk(name string) bool {
	return slices.Contains(l.items, Process{Name: name, Risk: LowRisk})
}

func (l *ProcessList) ContainsHighRisk(name string) bool {
	return slices.Contains(l.items, Process{Name: name, Risk: HighRisk})
}

// Markdown renders the list as a table.
func (l *ProcessList) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "| %-40s| %-13s|\n", "Process Name", "Process Type")
	b.WriteString("|:" + strings.Repeat("-", 40) + "|:" + strings.Repeat("-", 13) + "|")
	for _, p := range l.items {
		fmt.Fprintf(&b, "\n| %-40s| %-13s|", p.Name, p.Risk)
	}
	return b.String()
}

// URLList holds URLs or partial URLs excluded from script scanning.
type URLList struct {
	items []string
}

func NewURLList(urls ...string) *URLList {
	return &URLList{items: append([]string(nil), urls...)}
}

func (l *URLList) Items() []string          { return append([]string(nil), l.items...) }
func (l *URLList) Len() int                 { return len(l.items) }
func (l *URLList) Contains(url string) bool { return slices.Contains(l.items, url) }

// Add appends a URL. A URL already listed is ErrDuplicate.
func (l *URLList) Add(url string) error {
	if err := validation.Var("url", url, "required"); err != nil {
		return err
	}
	if l.Contains(url) {
		return fmt.Errorf("%w: url %q", ErrDuplicate, url)
	}
	l.items = append(l.items, url)
	return nil
}

func (l *URLList) Remove(url string) error {
	i := slices.Index(l.items, url)
	if i < 0 {
		return fmt.Errorf("%w: url %q", ErrNotFound, url)
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

func (l *URLList) Markdown() string {
	return singleColumn("Excluded URL", l.items)
}

// Built-in scan locations.
const (
	LocationRootkits        = "SpecialScanForRootkits"
	LocationMemory          = "SpecialMemory"
	LocationRegisteredFiles = "SpecialCritical"
	LocationMyComputer      = "My Computer"
	LocationLocalDrives     = "LocalDrives"
	LocationFixedDrives     = "All fixed disks"
	LocationRemovable       = "All removable media"
	LocationNetworkDrives   = "All Network drives"
	LocationHome            = "HomeDir"
	LocationProfile         = "ProfileDir"
	LocationWindows         = "WinDir"
	LocationProgramFiles    = "ProgramFilesDir"
	LocationTemp            = "TempDir"
	LocationRecycleBin      = "SpecialRecycleName"
	LocationRegistry        = "SpecialRegistry"
)

var locationNames = map[string]string{
	LocationRootkits:        "Memory for rootkits",
	LocationMemory:          "Running processes",
	LocationRegisteredFiles: "Registered files",
	LocationMyComputer:      "My computer",
	LocationLocalDrives:     "All local drives",
	LocationFixedDrives:     "All fixed drives",
	LocationRemovable:       "All removable drives",
	LocationNetworkDrives:   "All mapped drives",
	LocationHome:            "Home folder",
	LocationProfile:         "User profile folder",
	LocationWindows:         "Windows folder",
	LocationProgramFiles:    "Program files folder",
	LocationTemp:            "Temp folder",
	LocationRecycleBin:      "Recycle bin",
	LocationRegistry:        "Registry",
}

// IsBuiltinLocation reports whether loc is one of the Location constants.
func IsBuiltinLocation(loc string) bool {
	_, ok := locationNames[loc]
	return ok
}

// LocationName returns the display name of a scan location.
func LocationName(loc string) string {
	if name, ok := locationNames[loc]; ok {
		return name
	}
	return "File or folder = " + loc
}

// LocationList holds the locations of an on-demand scan: built-in
// locations and full file or folder paths.
type LocationList struct {
	items []string
}

func NewLocationList(locations ...string) *LocationList {
	return &LocationList{items: append([]string(nil), locations...)}
}

func (l *LocationList) Items() []string               { return append([]string(nil), l.items...) }
func (l *LocationList) Len() int                      { return len(l.items) }
func (l *LocationList) Contains(location string) bool { return slices.Contains(l.items, location) }

func (l *LocationList) add(location string) error {
	if l.Contains(location) {
		return fmt.Errorf("%w: location %q", ErrDuplicate, location)
	}
	l.items = append(l.items, location)
	return nil
}

// AddBuiltin adds one of the Location constants.
func (l *LocationList) AddBuiltin(location string) error {
	if !IsBuiltinLocation(location) {
		return &validation.Error{Field: "location", Value: location, Message: "is not a built-in location"}
	}
	return l.add(location)
}

// AddPath adds a file or folder.
func (l *LocationList) AddPath(path string) error {
	if err := validation.Var("path", path, "required"); err != nil {
		return err
	}
	return l.add(path)
}

func (l *LocationList) Remove(location string) error {
	i := slices.Index(l.items, location)
	if i < 0 {
		return fmt.Errorf("%w: location %q", ErrNotFound, location)
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

func (l *LocationList) Clear() { l.items = nil }

func (l *LocationList) Markdown() string {
	names := make([]string, len(l.items))
	for i, loc := range l.items {
		names[i] = LocationName(loc)
	}
	return singleColumn("Scan Locations", names)
}

func singleColumn(title string, rows []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| %-40s|\n", title)
	b.WriteString("|:" + strings.Repeat("-", 40) + "|")
	for _, r := range rows {
		fmt.Fprintf(&b, "\n| %-40s|", r)
	}
	return b.String()
}
