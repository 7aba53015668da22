// Package threat edits Endpoint Security Threat Prevention policies.
//
// OnAccessScan and OnDemandScan wrap the two policy types with typed
// accessors. The list types (ExclusionList, ProcessList, URLList and
// LocationList) are plain in-memory collections read from and written back
// to those policies.
package threat

import (
	"errors"
	"fmt"
	"strconv"

	"grimm.is/epolicy/internal/validation"
	"grimm.is/epolicy/policy"
)

var (
	// ErrInvalid is wrapped by every rejected setter argument.
	ErrInvalid   = validation.ErrInvalid
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already listed")
)

// GTILevel is the Global Threat Intelligence sensitivity.
type GTILevel int

const (
	GTIDisabled GTILevel = iota
	GTIVeryLow
	GTILow
	GTIMedium
	GTIHigh
	GTIVeryHigh
)

var gtiNames = [...]string{"Disabled", "Very low", "Low", "Medium", "High", "Very high"}

func (l GTILevel) String() string {
	if l < GTIDisabled || l > GTIVeryHigh {
		return "GTILevel(" + strconv.Itoa(int(l)) + ")"
	}
	return gtiNames[l]
}

// ExtensionMode selects which file types are scanned.
type ExtensionMode int

const (
	AllFiles ExtensionMode = iota + 1
	DefaultAndSpecified
	DefaultAndSpecifiedWithMacros
	SpecifiedOnly
)

// FileTypes is the what-to-scan setting. Extensions is a comma separated
// list; ":::" stands for files without an extension.
type FileTypes struct {
	Mode       ExtensionMode
	Extensions string
}

func (ft FileTypes) validate() error {
	if err := validation.Range("extension mode", int(ft.Mode), int(AllFiles), int(SpecifiedOnly)); err != nil {
		return err
	}
	if ft.Mode == SpecifiedOnly {
		return validation.Var("extensions", ft.Extensions, "min=3")
	}
	return nil
}

// Action is a detection response.
type Action int

const (
	ActionClean    Action = 1
	ActionDelete   Action = 2
	ActionDeny     Action = 3
	ActionAllow    Action = 4
	ActionContinue Action = 6
)

func (a Action) String() string {
	switch a {
	case ActionClean:
		return "Clean files"
	case ActionDelete:
		return "Delete files"
	case ActionDeny:
		return "Deny access to files"
	case ActionAllow:
		return "Allow access to files"
	case ActionContinue:
		return "Continue scanning"
	}
	return "Action(" + strconv.Itoa(int(a)) + ")"
}

// Response is a first action and the action taken when it fails. A zero
// Second means no secondary action.
type Response struct {
	First  Action
	Second Action
}

func (r Response) validate(field string, firsts, seconds []Action) error {
	if err := oneOf(field+" first response", r.First, firsts); err != nil {
		return err
	}
	if r.Second == 0 {
		return nil
	}
	if err := oneOf(field+" second response", r.Second, seconds); err != nil {
		return err
	}
	if r.Second <= r.First {
		return &validation.Error{Field: field + " second response", Value: int(r.Second), Message: "must be greater than the first response"}
	}
	return nil
}

func oneOf(field string, a Action, allowed []Action) error {
	for _, x := range allowed {
		if a == x {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, x := range allowed {
		names[i] = strconv.Itoa(int(x))
	}
	return validation.ValidateAllowlist(field, strconv.Itoa(int(a)), names)
}

// readResponse reads an action pair. A missing second action reads as zero.
func readResponse(p *policy.Policy, section, first, second string) (Response, error) {
	f, err := p.Int(section, first)
	if err != nil {
		return Response{}, err
	}
	r := Response{First: Action(f)}
	if _, ok := p.Get(section, second); ok {
		s, err := p.Int(section, second)
		if err != nil {
			return Response{}, err
		}
		r.Second = Action(s)
	}
	return r, nil
}

func writeResponse(p *policy.Policy, section, first, second string, r Response) error {
	if err := p.Set(section, first, strconv.Itoa(int(r.First)), false); err != nil {
		return err
	}
	if r.Second == 0 {
		return nil
	}
	return p.Set(section, second, strconv.Itoa(int(r.Second)), false)
}

func readGTI(p *policy.Policy, section string) (GTILevel, error) {
	n, err := p.Int(section, "GTISensitivityLevel")
	return GTILevel(n), err
}

func writeGTI(p *policy.Policy, section string, l GTILevel) error {
	if err := validation.Range("GTI level", int(l), int(GTIDisabled), int(GTIVeryHigh)); err != nil {
		return err
	}
	return p.Set(section, "GTISensitivityLevel", strconv.Itoa(int(l)), false)
}

func readFileTypes(p *policy.Policy, section, modeSetting string) (FileTypes, error) {
	mode, err := p.Int(section, modeSetting)
	if err != nil {
		return FileTypes{}, err
	}
	ext, err := p.MustGet(section, "szProgExts")
	if err != nil {
		return FileTypes{}, err
	}
	return FileTypes{Mode: ExtensionMode(mode), Extensions: ext}, nil
}

func writeFileTypes(p *policy.Policy, section, modeSetting string, ft FileTypes) error {
	if err := ft.validate(); err != nil {
		return err
	}
	if err := p.Set(section, modeSetting, strconv.Itoa(int(ft.Mode)), false); err != nil {
		return err
	}
	return p.Set(section, "szProgExts", ft.Extensions, false)
}

// readExclusions decodes a dwExclusionCount/ExcludedItem_i table.
func readExclusions(p *policy.Policy, section string) (*ExclusionList, error) {
	rows, err := p.List(section, "dwExclusionCount", "ExcludedItem_", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclusions: %w", err)
	}
	l := NewExclusionList()
	for _, row := range rows {
		e, err := DecodeExclusion(row)
		if err != nil {
			return nil, fmt.Errorf("failed to read exclusions in %s: %w", section, err)
		}
		l.items = append(l.items, e)
	}
	return l, nil
}

func writeExclusions(p *policy.Policy, section string, l *ExclusionList) error {
	return p.SetList(section, "dwExclusionCount", "ExcludedItem_", 0, l.encode())
}
