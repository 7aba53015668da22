package firewall

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/epolicy/internal/config"
	"grimm.is/epolicy/internal/logging"
	"grimm.is/epolicy/internal/metrics"
	"grimm.is/epolicy/internal/testutil"
)

func TestOutline(t *testing.T) {
	g := load(t, nil, folderPolicy()...)

	var buf bytes.Buffer
	require.NoError(t, g.Outline(&buf))
	assert.Equal(t, ""+
		"+-- Folder/\n"+
		"|   +-- Allow DNS\n"+
		"|   |   --> Action: ALLOW, Direction: In\n"+
		"|   |   --> Interfaces: All Protocol: Any\n",
		buf.String())
}

func TestOutline_Location(t *testing.T) {
	g := load(t, nil,
		seq("", "F1", "R1"),
		rule("F1", "Name", "Office", "Action", "JUMP", "Direction", "Either",
			"PhysicalMedium", []string{"WIRED"}, "AggRef", []string{"A1"}),
		seq("F1"),
		rule("R1", "Name", "Web", "Action", "ALLOW", "Direction", "Out",
			"TransportProtocol", []string{"6"}, "PhysicalMedium", []string{"WIRED", "WIRELESS"}),
		aggregate("A1", "Name", "Office LAN"),
	)

	var buf bytes.Buffer
	require.NoError(t, g.Outline(&buf))
	assert.Equal(t, ""+
		"+-- Office/\n"+
		"|   --> Name: Office LAN, Direction: Either, Interfaces: WIRED\n"+
		"+-- Web\n"+
		"|   --> Action: ALLOW, Direction: Out\n"+
		"|   --> Interfaces: WIRED,WIRELESS Protocol: TCP\n",
		buf.String())
}

func TestTableOfContents(t *testing.T) {
	g := load(t, nil, folderPolicy()...)

	var buf bytes.Buffer
	require.NoError(t, g.TableOfContents(&buf))
	assert.Equal(t, "- [Folder](#R1)/\r\n  - [Allow DNS](#R2)\r\n", buf.String())
}

func dnsPolicy() []testutil.Block {
	return []testutil.Block{
		seq("", "R2"),
		rule("R2",
			"Name", "Allow DNS",
			"Action", "ALLOW",
			"Direction", "Either",
			"Enabled", "1",
			"Intrusion", "0",
			"Logged", "1",
			"TransportProtocol", []string{"17"},
			"NetworkProtocol", []string{"2048", "34525"},
			"PhysicalMedium", []string{"WIRED", "WIRELESS"},
			"RemotePort", []string{"53"},
			"AggRef", []string{"A1"},
			"ScheduleEnabled", "1",
			"WeekMask", "6",
			"StartTime", "08:00",
			"EndTime", "18:00",
			"Note", "dns",
			"LastModified", "2020-03-11T10:22:33.123Z",
			"LastModifyingUsername", "admin",
		),
		aggregate("A1", "Name", "DNS servers", "RemoteAddress", []string{"::ffff:a00:1", "[trusted]"}),
	}
}

func TestDocument_Rule(t *testing.T) {
	g := load(t, nil, dnsPolicy()...)

	var buf bytes.Buffer
	require.NoError(t, g.Document(&buf, true))
	assert.Equal(t, strings.Join([]string{
		`<div id="R2" />`,
		"# Allow DNS",
		"",
		"Status: Enabled",
		"Action: ALLOW",
		"Treat match as intrusion: No",
		"Log matching traffic: Yes",
		"Direction: Either",
		"Connection type: WIRED or WIRELESS",
		"Protocol: UDP/IPv4, UDP/IPv6",
		"Remote networks:",
		"  - DNS servers:",
		"    - 10.0.0.1",
		"    - Defined Networks (trusted)",
		"Remote port: 53",
		"Scheduled status: Enabled",
		"Scheduled days: Monday, Tuesday",
		"Start time: 08:00",
		"End time: 18:00",
		"Note: dns",
		"Last Changed: By admin on 2020/03/11 at 10:22:33 UTC.",
		"",
		"",
	}, "\r\n"), buf.String())
}

func TestDocument_FolderLocation(t *testing.T) {
	g := load(t, nil,
		seq("", "F1"),
		rule("F1", "Name", "Office", "Action", "JUMP", "Direction", "Either",
			"AggRef", []string{"A1"}, "Note", "", "LastModifyingUsername", "admin",
			"LastModified", "2020-01-02T03:04:05Z"),
		seq("F1"),
		aggregate("A1",
			"Name", "Office LAN",
			"Isolated", "1",
			"RequireEpoReachable", "0",
			"DefaultGateway", []string{"::ffff:a00:fe"},
			"DnsSuffix", []string{"corp.example.com"},
			"DomainReachable", []string{"intranet.example.com"},
			"RegKey", []string{`HKLM\Software\Office`},
		),
	)

	var buf bytes.Buffer
	require.NoError(t, g.Document(&buf, false))
	assert.Equal(t, strings.Join([]string{
		"# Office/",
		"",
		"Direction: Either",
		"Connection type: All types (Wired, Wireless, Virtual)",
		"Protocol: All Protocols/Any",
		"Location:",
		"  - Name: Office LAN",
		"  - Isolated: Yes",
		"  - Require ePO Reachability: No",
		"  - Default Gateway:",
		"    - 10.0.0.254",
		"  - DNS Suffix:",
		"    - corp.example.com",
		"  - Domain reachability (HTTPS):",
		"    - intranet.example.com",
		`  - Registry Key: HKLM\Software\Office`,
		"Note: ",
		"Last Changed: By admin on 2020/01/02 at 03:04:05 UTC.",
		"",
		"",
	}, "\r\n"), buf.String())
}

func TestDocument_RoundTrip(t *testing.T) {
	g := load(t, nil,
		seq("", "F1", "R3", "R4"),
		rule("F1", "Name", "Servers", "Action", "JUMP", "Note", "Folder note\r\n## not a heading"),
		seq("F1", "R1", "F2"),
		rule("R1", "Name", "SSH", "Action", "ALLOW", "TransportProtocol", []string{"1"}, "MessageType", []string{""}),
		rule("F2", "Name", "Nested", "Action", "JUMP"),
		seq("F2", "R2"),
		rule("R2", "Name", "Block\ntelnet", "Action", "BLOCK"),
		rule("R3", "Name", "TCP/UDP/", "Action", "ALLOW",
			"Note", "first line\r\n# injected\r\n<div id=\"X\" />\r\nAction: BLOCK"),
		rule("R4", "Name", "No action"),
	)

	var want []Heading
	require.NoError(t, g.Walk(RootKey, func(v Visit) error {
		want = append(want, Heading{
			ID:     v.Rule.ID,
			Depth:  v.Depth,
			Name:   v.Rule.Name(),
			Folder: v.Rule.IsFolder(),
			Action: v.Rule.Action(),
		})
		return nil
	}))
	require.Len(t, want, 6)

	t.Run("document", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, g.Document(&buf, true))
		headings, err := ParseDocument(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, headings)
	})

	t.Run("report", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, g.Report(&buf, ReportOptions{Anchors: true}))
		assert.NotContains(t, buf.String(), "\r\n## injected")
		assert.Contains(t, buf.String(), "\r\n  # injected\r\n")

		headings, err := ParseDocument(&buf)
		require.NoError(t, err)
		require.Len(t, headings, len(want)+1)
		assert.Equal(t, Heading{Name: "My Rules"}, headings[0])
		for i, h := range headings[1:] {
			h.Depth--
			assert.Equal(t, want[i], h)
		}
	})
}

func TestParseDocument_DanglingAnchor(t *testing.T) {
	_, err := ParseDocument(strings.NewReader("<div id=\"A\" />\r\n<div id=\"B\" />\r\n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReport(t *testing.T) {
	cfg, err := config.Parse("epolicy.hcl", []byte(`
report {
  anchors = false
  title   = "Firewall rules"
}
`))
	require.NoError(t, err)

	reg := metrics.New(prometheus.NewRegistry())
	var logs bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LevelDebug, Output: &logs, JSON: true})

	g := load(t, []Option{WithMetrics(reg), WithLogger(log)}, folderPolicy()...)

	var buf bytes.Buffer
	require.NoError(t, g.Report(&buf, ReportFromConfig(cfg)))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Firewall rules\r\n\r\n- [Folder](#R1)/\r\n  - [Allow DNS](#R2)\r\n\r\n## Folder/\r\n"), out)
	assert.Contains(t, out, "\r\n### Allow DNS\r\n")
	assert.NotContains(t, out, "<div")

	headings, err := ParseDocument(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, headings, 3)
	assert.Equal(t, "Firewall rules", headings[0].Name)
	assert.Equal(t, 1, headings[1].Depth)

	assert.Equal(t, 1.0, promtest.ToFloat64(reg.Renders.WithLabelValues(FormatReport)))
	assert.Contains(t, logs.String(), "rendered firewall policy")
	assert.Contains(t, logs.String(), "loaded firewall policy")
}

func TestReport_DefaultTitle(t *testing.T) {
	g := load(t, nil, folderPolicy()...)
	var buf bytes.Buffer
	require.NoError(t, g.Report(&buf, ReportOptions{Anchors: true}))
	assert.True(t, strings.HasPrefix(buf.String(), "# My Rules\r\n"))
	assert.Contains(t, buf.String(), `<div id="R1" />`+"\r\n## Folder/")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRender_WriteError(t *testing.T) {
	g := load(t, nil, folderPolicy()...)
	err := g.Document(failingWriter{}, false)
	assert.ErrorContains(t, err, "disk full")
}
