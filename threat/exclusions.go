package threat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"grimm.is/epolicy/internal/validation"
	"grimm.is/epolicy/policy"
)

// What is the kind of an exclusion.
type What string

const (
	WhatModified What = "0"
	WhatCreated  What = "2"
	WhatPath     What = "3"
	WhatFileType What = "4"
)

func (w What) valid() bool {
	switch w {
	case WhatModified, WhatCreated, WhatPath, WhatFileType:
		return true
	}
	return false
}

// Rights is the bit set controlling when an exclusion applies.
type Rights uint8

const (
	RightWrite Rights = 1 << iota
	RightRead
	RightSubfolders
)

// EncodeRights builds a Rights value.
func EncodeRights(write, read, subfolders bool) Rights {
	var r Rights
	if write {
		r |= RightWrite
	}
	if read {
		r |= RightRead
	}
	if subfolders {
		r |= RightSubfolders
	}
	return r
}

// Decode splits r into its three flags.
func (r Rights) Decode() (write, read, subfolders bool) {
	return r&RightWrite != 0, r&RightRead != 0, r&RightSubfolders != 0
}

// When describes the file operations the exclusion applies to.
func (r Rights) When() string {
	write, read, _ := r.Decode()
	switch {
	case read && write:
		return "Read & Write"
	case write:
		return "Write"
	}
	return "Read"
}

// Exclusion is one row of an exclusion list.
type Exclusion struct {
	What   What
	Rights Rights
	// Value is a path, a file type or a number of days.
	Value string
	Notes string
}

// Item describes what the exclusion covers.
func (e Exclusion) Item() string {
	switch e.What {
	case WhatModified:
		return "Modified " + e.Value + " or more days ago"
	case WhatCreated:
		return "Created " + e.Value + " or more days ago"
	case WhatPath:
		return e.Value
	case WhatFileType:
		return "All files of type " + e.Value
	}
	return "Unknown item"
}

// Subfolders is "Yes" or "No" for path exclusions and "--" otherwise.
func (e Exclusion) Subfolders() string {
	if e.What != WhatPath {
		return "--"
	}
	if e.Rights&RightSubfolders != 0 {
		return "Yes"
	}
	return "No"
}

// Encode returns the stored form "what|rights|value|notes".
func (e Exclusion) Encode() string {
	return strings.Join([]string{string(e.What), strconv.Itoa(int(e.Rights)), e.Value, e.Notes}, "|")
}

// DecodeExclusion parses the stored form. Notes may contain '|'.
func DecodeExclusion(s string) (Exclusion, error) {
	parts := strings.SplitN(s, "|", 4)
	if len(parts) != 4 {
		return Exclusion{}, fmt.Errorf("%w: exclusion %q has %d fields, want 4", policy.ErrMalformed, s, len(parts))
	}
	e := Exclusion{What: What(parts[0]), Value: parts[2], Notes: parts[3]}
	if !e.What.valid() {
		return Exclusion{}, fmt.Errorf("%w: exclusion %q has unknown kind %q", policy.ErrMalformed, s, parts[0])
	}
	r, err := strconv.Atoi(parts[1])
	if err != nil || r < 0 || r > 7 {
		return Exclusion{}, fmt.Errorf("%w: exclusion %q has bad rights %q", policy.ErrMalformed, s, parts[1])
	}
	e.Rights = Rights(r)
	return e, nil
}

// ExclusionList is an ordered list of exclusions. The same item may be
// listed more than once; Remove drops every copy.
type ExclusionList struct {
	items []Exclusion
}

// NewExclusionList returns a list holding items.
func NewExclusionList(items ...Exclusion) *ExclusionList {
	return &ExclusionList{items: append([]Exclusion(nil), items...)}
}

// Items returns a copy of the rows.
func (l *ExclusionList) Items() []Exclusion { return append([]Exclusion(nil), l.items...) }

// Len returns the number of rows.
func (l *ExclusionList) Len() int { return len(l.items) }

func (l *ExclusionList) add(e Exclusion) error {
	if !e.What.valid() {
		return &validation.Error{Field: "exclusion kind", Value: string(e.What), Message: "must be one of: 0, 2, 3, 4"}
	}
	if err := validation.Range("exclusion rights", int(e.Rights), 0, 7); err != nil {
		return err
	}
	l.items = append(l.items, e)
	return nil
}

// AddFolder excludes a folder. The path must end with a backslash.
func (l *ExclusionList) AddFolder(path string, write, read, subfolders bool, notes string) error {
	if err := validation.WindowsFolder("folder", path); err != nil {
		return err
	}
	return l.add(Exclusion{What: WhatPath, Rights: EncodeRights(write, read, subfolders), Value: path, Notes: notes})
}

// AddFileName excludes a file name or path, which may hold * and ?
// wildcards.
func (l *ExclusionList) AddFileName(name string, write, read bool, notes string) error {
	if err := validation.WindowsFile("file name", name); err != nil {
		return err
	}
	return l.add(Exclusion{What: WhatPath, Rights: EncodeRights(write, read, false), Value: name, Notes: notes})
}

// AddFileType excludes an extension, which may hold the ? wildcard.
func (l *ExclusionList) AddFileType(ext string, write, read bool, notes string) error {
	if err := validation.Var("file type", ext, "required"); err != nil {
		return err
	}
	return l.add(Exclusion{What: WhatFileType, Rights: EncodeRights(write, read, false), Value: ext, Notes: notes})
}

// AddModifiedAge excludes files last modified days or more ago.
func (l *ExclusionList) AddModifiedAge(days int, write, read bool, notes string) error {
	if err := validation.Min("days", days, 1); err != nil {
		return err
	}
	return l.add(Exclusion{What: WhatModified, Rights: EncodeRights(write, read, false), Value: strconv.Itoa(days), Notes: notes})
}

// AddCreatedAge excludes files created days or more ago.
func (l *ExclusionList) AddCreatedAge(days int, write, read bool, notes string) error {
	if err := validation.Min("days", days, 1); err != nil {
		return err
	}
	return l.add(Exclusion{What: WhatCreated, Rights: EncodeRights(write, read, false), Value: strconv.Itoa(days), Notes: notes})
}

func (l *ExclusionList) contains(what What, value string) bool {
	for _, e := range l.items {
		if e.What == what && e.Value == value {
			return true
		}
	}
	return false
}

func (l *ExclusionList) remove(what What, value string) error {
	kept := l.items[:0]
	for _, e := range l.items {
		if e.What == what && e.Value == value {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(l.items) {
		return fmt.Errorf("%w: exclusion %q", ErrNotFound, value)
	}
	l.items = kept
	return nil
}

// ContainsFolder reports whether path is excluded.
func (l *ExclusionList) ContainsFolder(path string) bool { return l.contains(WhatPath, path) }

// ContainsFileName reports whether the file name is excluded.
func (l *ExclusionList) ContainsFileName(name string) bool { return l.contains(WhatPath, name) }

// ContainsFileType reports whether the file type is excluded.
func (l *ExclusionList) ContainsFileType(ext string) bool { return l.contains(WhatFileType, ext) }

// ContainsModifiedAge reports whether files modified within days are excluded.
func (l *ExclusionList) ContainsModifiedAge(days int) bool {
	return l.contains(WhatModified, strconv.Itoa(days))
}

// ContainsCreatedAge reports whether files created within days are excluded.
func (l *ExclusionList) ContainsCreatedAge(days int) bool {
	return l.contains(WhatCreated, strconv.Itoa(days))
}

// RemoveFolder drops every exclusion of path.
func (l *ExclusionList) RemoveFolder(path string) error { return l.remove(WhatPath, path) }

// RemoveFileName drops every exclusion of the file name.
func (l *ExclusionList) RemoveFileName(name string) error { return l.remove(WhatPath, name) }

// RemoveFileType drops every exclusion of the file type.
func (l *ExclusionList) RemoveFileType(ext string) error { return l.remove(WhatFileType, ext) }

// RemoveModifiedAge drops every modified-age exclusion of days.
func (l *ExclusionList) RemoveModifiedAge(days int) error {
	return l.remove(WhatModified, strconv.Itoa(days))
}

// RemoveCreatedAge drops every created-age exclusion of days.
func (l *ExclusionList) RemoveCreatedAge(days int) error {
	return l.remove(WhatCreated, strconv.Itoa(days))
}

// Markdown renders the list as a table.
func (l *ExclusionList) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "| %-70s| %-12s| %-13s| %-30s|\n", "Item:", "Subfolders:", "When:", "Notes:")
	b.WriteString("|:" + strings.Repeat("-", 70) + "|:" + strings.Repeat("-", 12) +
		"|:" + strings.Repeat("-", 13) + "|:" + strings.Repeat("-", 30) + "|")
	for _, e := range l.items {
		fmt.Fprintf(&b, "\n| %-70s| %-12s| %-13s| %-30s|", e.Item(), e.Subfolders(), e.Rights.When(), e.Notes)
	}
	return b.String()
}

// Match returns the first path or file type exclusion covering path.
// Matching ignores case. A folder covers the files directly inside it, or
// the whole tree when subfolders are included. A file name without a
// backslash is matched against the last path element. Age exclusions never
// match. Patterns that do not compile are skipped.
func (l *ExclusionList) Match(path string) (Exclusion, bool) {
	path = strings.ToLower(path)
	base := path
	if i := strings.LastIndexByte(path, '\\'); i >= 0 {
		base = path[i+1:]
	}
	ext := ""
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		ext = base[i+1:]
	}

	for _, e := range l.items {
		var pattern, subject string
		switch e.What {
		case WhatPath:
			pattern, subject = strings.ToLower(e.Value), path
			switch {
			case strings.HasSuffix(pattern, `\`) && e.Rights&RightSubfolders != 0:
				pattern += "**"
			case strings.HasSuffix(pattern, `\`):
				pattern += "*"
			case !strings.Contains(pattern, `\`):
				subject = base
			}
		case WhatFileType:
			if ext == "" {
				continue
			}
			pattern, subject = strings.ToLower(e.Value), ext
		default:
			continue
		}

		g, err := glob.Compile(strings.ReplaceAll(pattern, `\`, `\\`), '\\')
		if err != nil {
			continue
		}
		if g.Match(subject) {
			return e, true
		}
	}
	return Exclusion{}, false
}

func (l *ExclusionList) encode() []string {
	out := make([]string, len(l.items))
	for i, e := range l.items {
		out[i] = e.Encode()
	}
	return out
}
