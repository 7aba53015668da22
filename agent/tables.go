package agent

import (
	"fmt"
	"strconv"
	"strings"

	"grimm.is/epolicy/internal/validation"
	"grimm.is/epolicy/policy"
)

// RelayHost is one entry of the relay server list.
type RelayHost struct {
	Selected bool
	Address  string
	Port     int
}

var relayColumns = []string{"relayselect_", "relayip_", "relayport_"}

// RelayHosts reads the relay servers configured for relay clients.
func (g *General) RelayHosts() ([]RelayHost, error) {
	rows, err := g.p.Table("RelayService", "RelayServerCount", 1, relayColumns...)
	if err != nil {
		return nil, fmt.Errorf("failed to read relay servers: %w", err)
	}
	out := make([]RelayHost, len(rows))
	for i, r := range rows {
		port, err := strconv.Atoi(r[2])
		if err != nil {
			return nil, fmt.Errorf("%w: relay server %d port %q", policy.ErrMalformed, i+1, r[2])
		}
		out[i] = RelayHost{Selected: r[0] == string(policy.Enabled), Address: r[1], Port: port}
	}
	return out, nil
}

// SetRelayHosts replaces the relay server list. Other RelayService
// settings are kept.
func (g *General) SetRelayHosts(hosts []RelayHost) error {
	rows := make([][]string, len(hosts))
	for i, h := range hosts {
		if err := validation.Var("relay server address", h.Address, "required"); err != nil {
			return err
		}
		if err := validation.ValidatePortNumber("relay server port", h.Port); err != nil {
			return err
		}
		rows[i] = []string{string(policy.StateOf(h.Selected)), h.Address, strconv.Itoa(h.Port)}
	}
	return g.p.SetTable("RelayService", "RelayServerCount", 1, relayColumns, rows)
}

// Branch selects the repository branch used for one update type.
type Branch struct {
	Type       string
	OneClick   policy.State
	SoftwareID string
}

var branchColumns = []string{"BranchType_", "OneClickEnabled_", "SoftwareID_"}

func (g *General) BranchSelection() ([]Branch, error) {
	rows, err := g.p.Table("BranchSelection", "NumberOfItems", 0, branchColumns...)
	if err != nil {
		return nil, fmt.Errorf("failed to read branch selection: %w", err)
	}
	out := make([]Branch, len(rows))
	for i, r := range rows {
		out[i] = Branch{Type: r[0], OneClick: policy.State(r[1]), SoftwareID: r[2]}
	}
	return out, nil
}

func (g *General) SetBranchSelection(branches []Branch) error {
	rows := make([][]string, len(branches))
	for i, b := range branches {
		if err := validation.Var("branch type", b.Type, "required"); err != nil {
			return err
		}
		if err := validation.State("one-click", string(b.OneClick)); err != nil {
			return err
		}
		rows[i] = []string{b.Type, string(b.OneClick), b.SoftwareID}
	}
	return g.p.SetTable("BranchSelection", "NumberOfItems", 0, branchColumns, rows)
}

// RelayMarkdown renders hosts as a table.
func RelayMarkdown(hosts []RelayHost) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| %-8s | %-30s | %-5s |\n", "Selected", "Address", "Port")
	b.WriteString("|:---------|:-------------------------------|------:|")
	for _, h := range hosts {
		sel := "No"
		if h.Selected {
			sel = "Yes"
		}
		fmt.Fprintf(&b, "\n| %-8s | %-30s | %5d |", sel, h.Address, h.Port)
	}
	return b.String()
}
