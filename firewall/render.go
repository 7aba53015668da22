package firewall

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"grimm.is/epolicy/internal/config"
)

const crlf = "\r\n"

// continuation indents the extra lines of multi-line names and notes so they
// never read back as a heading or an anchor.
const continuation = "  "

func multiline(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", crlf+continuation)
}

// Render formats, as recorded in metrics.
const (
	FormatOutline  = "outline"
	FormatTOC      = "toc"
	FormatDocument = "markdown"
	FormatReport   = "report"
)

var (
	outlineFolder   = fasttemplate.New("{{h}}+-- {{name}}/\n", "{{", "}}")
	outlineLocation = fasttemplate.New("{{h}}|   --> Name: {{location}}, Direction: {{direction}}, Interfaces: {{interfaces}}\n", "{{", "}}")
	outlineRule     = fasttemplate.New("{{h}}+-- {{name}}\n", "{{", "}}")
	outlineAction   = fasttemplate.New("{{h}}|   --> Action: {{action}}, Direction: {{direction}}\n", "{{", "}}")
	outlineProtocol = fasttemplate.New("{{h}}|   --> Interfaces: {{interfaces}} Protocol: {{protocol}}\n", "{{", "}}")
	tocEntry        = fasttemplate.New("{{indent}}- [{{name}}](#{{id}}){{folder}}\r\n", "{{", "}}")
)

// Outline writes the rule tree as an indented text outline. A folder shows
// its location profile, a rule its action, direction, interfaces and
// transport protocol.
func (g *Graph) Outline(w io.Writer) error {
	var b strings.Builder
	err := g.Walk(RootKey, func(v Visit) error {
		r := v.Rule
		h := strings.Repeat("|   ", v.Depth)
		intf := InterfaceSummary(r.Props)
		if r.IsFolder() {
			outlineFolder.ExecuteFunc(&b, vars(map[string]string{"h": h, "name": r.Name()}))
			if aggs := g.Aggregates(r); len(aggs) > 0 {
				outlineLocation.ExecuteFunc(&b, vars(map[string]string{
					"h":          h,
					"location":   aggs[0].Name(),
					"direction":  r.Props.Value("Direction"),
					"interfaces": intf,
				}))
			}
			return nil
		}
		protocol := "Any"
		if ref, ok := r.Props.Get("TransportProtocol"); ok {
			protocol = InternetProtocols.NameOrUnknown(ref)
		}
		outlineRule.ExecuteFunc(&b, vars(map[string]string{"h": h, "name": r.Name()}))
		outlineAction.ExecuteFunc(&b, vars(map[string]string{
			"h":         h,
			"action":    r.Action(),
			"direction": r.Props.Value("Direction"),
		}))
		outlineProtocol.ExecuteFunc(&b, vars(map[string]string{
			"h":          h,
			"interfaces": intf,
			"protocol":   protocol,
		}))
		return nil
	})
	if err != nil {
		return err
	}
	return g.flush(w, FormatOutline, b.String())
}

// TableOfContents writes a Markdown list linking every rule to its anchor
// in Document. Folder names end with a slash.
func (g *Graph) TableOfContents(w io.Writer) error {
	toc, err := g.toc()
	if err != nil {
		return err
	}
	return g.flush(w, FormatTOC, toc)
}

func (g *Graph) toc() (string, error) {
	var b strings.Builder
	err := g.Walk(RootKey, func(v Visit) error {
		folder := ""
		if v.Rule.IsFolder() {
			folder = "/"
		}
		tocEntry.ExecuteFunc(&b, vars(map[string]string{
			"indent": strings.Repeat("  ", v.Depth),
			"name":   multiline(v.Rule.Name()),
			"id":     v.Rule.ID,
			"folder": folder,
		}))
		return nil
	})
	return b.String(), err
}

// Document writes every rule as a Markdown section with CRLF line endings.
// Heading depth follows folder nesting. With anchors set, each heading is
// preceded by a <div id="GUID" /> tag that TableOfContents links to.
func (g *Graph) Document(w io.Writer, anchors bool) error {
	doc, err := g.document(anchors, 1)
	if err != nil {
		return err
	}
	return g.flush(w, FormatDocument, doc)
}

// document renders every rule with top-level headings at level top.
func (g *Graph) document(anchors bool, top int) (string, error) {
	var b strings.Builder
	err := g.Walk(RootKey, func(v Visit) error {
		g.writeRule(&b, v, top+v.Depth, anchors)
		return nil
	})
	return b.String(), err
}

// ReportOptions controls Report.
type ReportOptions struct {
	// Title defaults to the policy name.
	Title   string
	Anchors bool
}

// ReportFromConfig returns the report options described by cfg.
func ReportFromConfig(cfg *config.Config) ReportOptions {
	opts := ReportOptions{Anchors: cfg.Anchors()}
	if cfg.Report != nil {
		opts.Title = cfg.Report.Title
	}
	return opts
}

// Report writes a titled Markdown report: the table of contents followed by
// the full document.
func (g *Graph) Report(w io.Writer, opts ReportOptions) error {
	title := opts.Title
	if title == "" {
		title = g.name
	}
	toc, err := g.toc()
	if err != nil {
		return err
	}
	// Rule headings start one level below the title.
	doc, err := g.document(opts.Anchors, 2)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("# " + multiline(title) + crlf + crlf)
	if toc != "" {
		b.WriteString(toc + crlf)
	}
	b.WriteString(doc)
	return g.flush(w, FormatReport, b.String())
}

func (g *Graph) flush(w io.Writer, format, out string) error {
	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("failed to write %s: %w", format, err)
	}
	if g.metrics != nil {
		g.metrics.RecordRender(format)
	}
	if g.log != nil {
		g.log.Debug("rendered firewall policy", "policy", g.name, "format", format, "bytes", len(out))
	}
	return nil
}

func vars(m map[string]string) fasttemplate.TagFunc {
	return func(w io.Writer, tag string) (int, error) {
		return io.WriteString(w, m[tag])
	}
}

func (g *Graph) writeRule(b *strings.Builder, v Visit, level int, anchors bool) {
	r := v.Rule
	p := r.Props
	line := func(s string) { b.WriteString(s + crlf) }

	if anchors {
		line(`<div id="` + r.ID + `" />`)
	}
	b.WriteString(strings.Repeat("#", level) + " " + multiline(r.Name()))
	if r.IsFolder() {
		b.WriteString("/" + crlf + crlf)
	} else {
		b.WriteString(crlf + crlf)
		status := "Disabled"
		if p.Value("Enabled") == "1" {
			status = "Enabled"
		}
		line("Status: " + status)
		line("Action: " + r.Action())
		line("Treat match as intrusion: " + yesNo(p.Value("Intrusion")))
		line("Log matching traffic: " + yesNo(p.Value("Logged")))
	}

	line("Direction: " + p.Value("Direction"))
	line("Connection type: " + ConnectionType(p))
	line("Protocol: " + ProtocolSummary(p))

	aggs := g.Aggregates(r)
	if r.IsFolder() {
		if len(aggs) > 0 {
			line("Location:")
			writeLocation(b, aggs[0])
		}
	} else {
		writeNetworks(b, "Local networks:", "LocalAddress", aggs)
		writePort(b, "Local port: ", p, "LocalPort")
		writeNetworks(b, "Remote networks:", "RemoteAddress", aggs)
		writePort(b, "Remote port: ", p, "RemotePort")
		writeSchedule(b, p)
	}

	line("Note: " + multiline(p.Value("Note")))
	line("Last Changed: " + LastChanged(p))
	b.WriteString(crlf)
}

// Location profile lists in rendering order. Raw lists hold names rather
// than addresses.
var locationLists = []struct {
	prop  string
	label string
	raw   bool
}{
	{"DefaultGateway", "Default Gateway", false},
	{"DhcpServer", "DHCP Server", false},
	{"DnsServer", "DNS Server", false},
	{"DnsSuffix", "DNS Suffix", true},
	{"PrimaryWINS", "Primary WINS Server", false},
	{"SecondaryWINS", "Secondary WINS Server", false},
	{"DomainReachable", "Domain reachability (HTTPS)", true},
}

func writeLocation(b *strings.Builder, a *Aggregate) {
	p := a.Props
	b.WriteString("  - Name: " + a.Name() + crlf)
	b.WriteString("  - Isolated: " + yesNo(p.Value("Isolated")) + crlf)
	b.WriteString("  - Require ePO Reachability: " + yesNo(p.Value("RequireEpoReachable")) + crlf)
	for _, l := range locationLists {
		items, ok := p.List(l.prop)
		if !ok {
			continue
		}
		b.WriteString("  - " + l.label + ":" + crlf)
		for _, it := range items {
			if !l.raw {
				it = FormatAddress(it)
			}
			b.WriteString("    - " + it + crlf)
		}
	}
	if key, ok := p.Get("RegKey"); ok {
		b.WriteString("  - Registry Key: " + key + crlf)
	}
}

func writeNetworks(b *strings.Builder, title, prop string, aggs []*Aggregate) {
	var body strings.Builder
	for _, a := range aggs {
		addrs, ok := a.Props.List(prop)
		if !ok {
			continue
		}
		body.WriteString("  - " + a.Name() + ":" + crlf)
		for _, addr := range addrs {
			body.WriteString("    - " + FormatAddress(addr) + crlf)
		}
	}
	if body.Len() == 0 {
		return
	}
	b.WriteString(title + crlf + body.String())
}

func writePort(b *strings.Builder, label string, p Properties, prop string) {
	if port, ok := p.Get(prop); ok {
		b.WriteString(label + port + crlf)
	}
}

func writeSchedule(b *strings.Builder, p Properties) {
	if p.Value("ScheduleEnabled") != "1" {
		return
	}
	mask, _ := strconv.Atoi(p.Value("WeekMask"))
	b.WriteString("Scheduled status: Enabled" + crlf)
	b.WriteString("Scheduled days: " + strings.Join(ScheduleDays(mask), ", ") + crlf)
	b.WriteString("Start time: " + p.Value("StartTime") + crlf)
	b.WriteString("End time: " + p.Value("EndTime") + crlf)
}

// Heading is a rule heading read back from a rendered document.
type Heading struct {
	// ID is the anchor preceding the heading, if any.
	ID     string
	Depth  int
	Name   string
	Folder bool
	// Action is read from the rule's Action line; folders report JUMP.
	Action string
}

// ParseDocument reads the rule headings of a document written by Document.
// A heading whose body has a Status line is a rule; one with a Direction
// line and no Status line is a folder. On a Report the title comes back as
// the first heading, with neither Folder nor Action set, and rule headings
// are one level deeper.
func ParseDocument(r io.Reader) ([]Heading, error) {
	var (
		out    []Heading
		anchor string
		inName bool
		leaf   bool
		folder bool
	)
	finish := func() {
		if len(out) == 0 {
			return
		}
		h := &out[len(out)-1]
		if folder && !leaf {
			h.Folder = true
			h.Name = strings.TrimSuffix(h.Name, "/")
			h.Action = ActionJump
		}
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if inName {
			if rest, ok := strings.CutPrefix(line, continuation); ok {
				out[len(out)-1].Name += "\n" + rest
				continue
			}
			inName = false
		}
		switch {
		case strings.HasPrefix(line, `<div id="`) && strings.HasSuffix(line, `" />`):
			if anchor != "" {
				return nil, fmt.Errorf("%w: anchor %q is not followed by a heading", ErrMalformed, anchor)
			}
			anchor = strings.TrimSuffix(strings.TrimPrefix(line, `<div id="`), `" />`)
		case strings.HasPrefix(line, "#"):
			level := len(line) - len(strings.TrimLeft(line, "#"))
			name, ok := strings.CutPrefix(line[level:], " ")
			if !ok {
				continue
			}
			finish()
			out = append(out, Heading{ID: anchor, Depth: level - 1, Name: name})
			anchor = ""
			inName, leaf, folder = true, false, false
		case len(out) == 0:
		case strings.HasPrefix(line, "Status: "):
			leaf = true
		case strings.HasPrefix(line, "Action: ") && leaf && out[len(out)-1].Action == "":
			out[len(out)-1].Action = strings.TrimPrefix(line, "Action: ")
		case strings.HasPrefix(line, "Direction: "):
			folder = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	finish()
	return out, nil
}
