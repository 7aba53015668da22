package policy

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Flatten lists every setting as "Section/Setting = value", one per line,
// in document order.
func Flatten(p *Policy) string {
	var sb strings.Builder
	for _, s := range p.Sections() {
		for _, st := range s.Settings {
			fmt.Fprintf(&sb, "%s/%s = %s\n", s.Name, st.Name, st.Value)
		}
	}
	return sb.String()
}

// Diff returns a unified diff of the settings of two policies. It is empty
// when the settings are identical.
func Diff(a, b *Policy) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(Flatten(a)),
		B:        difflib.SplitLines(Flatten(b)),
		FromFile: a.Name(),
		ToFile:   b.Name(),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to diff policies: %w", err)
	}
	return text, nil
}
