package firewall

import (
	"net/netip"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// TrustedLabel replaces the [trusted] address token.
const TrustedLabel = "Defined Networks (trusted)"

const trustedToken = "[trusted]"

// FormatAddress makes an address token from a rule or location readable.
// Hostnames and domains are returned as is; IPv4 addresses that the policy
// stores IPv4-mapped (::ffff:a.b.c.d) are unmapped, including the prefix
// of a subnet and both ends of a range. Tokens that do not parse are
// returned unchanged.
func FormatAddress(s string) string {
	switch {
	case isAlnum(s):
		return s
	case strings.Contains(s, "."):
		return s
	case s == trustedToken:
		return TrustedLabel
	case strings.Contains(s, "/"):
		addr, bits, _ := strings.Cut(s, "/")
		a, err := netip.ParseAddr(addr)
		if err != nil || !a.Is4In6() {
			return s
		}
		// Mapped prefixes shorter than /96 have no IPv4 form.
		n, err := strconv.Atoi(bits)
		if err != nil || n < 96 || n > 128 {
			return s
		}
		return a.Unmap().String() + "/" + strconv.Itoa(n-96)
	case strings.Contains(s, "-"):
		lo, hi, _ := strings.Cut(s, "-")
		return unmap(lo) + "-" + unmap(hi)
	default:
		return unmap(s)
	}
}

func unmap(s string) string {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4In6() {
		return s
	}
	return a.Unmap().String()
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var weekdays = []struct {
	weight int
	name   string
}{
	{2, "Monday"},
	{4, "Tuesday"},
	{8, "Wednesday"},
	{16, "Thursday"},
	{32, "Friday"},
	{64, "Saturday"},
	{128, "Sunday"},
}

// ScheduleDays decodes a rule's WeekMask. Bit 1 is unused.
func ScheduleDays(mask int) []string {
	days := []string{}
	for _, d := range weekdays {
		if mask&d.weight != 0 {
			days = append(days, d.name)
		}
	}
	return days
}

// InterfaceSummary is the short PhysicalMedium form used by the outline.
func InterfaceSummary(props Properties) string {
	media, ok := props.List("PhysicalMedium")
	if !ok || len(media) == 3 {
		return "All"
	}
	return strings.Join(media, ",")
}

// ConnectionType describes the PhysicalMedium a rule applies to.
func ConnectionType(props Properties) string {
	media, ok := props.List("PhysicalMedium")
	switch {
	case !ok || len(media) == 3:
		return "All types (Wired, Wireless, Virtual)"
	case len(media) == 2:
		return media[0] + " or " + media[1]
	default:
		return strings.Join(media, " or ")
	}
}

// ProtocolSummary describes the transport and network protocols of a rule,
// e.g. "TCP/IPv4, TCP/IPv6". ICMP rules get a second line naming the
// message type.
func ProtocolSummary(props Properties) string {
	tp := "All Protocols"
	if ref, ok := props.Get("TransportProtocol"); ok {
		tp = InternetProtocols.NameOrUnknown(ref)
	}

	var b strings.Builder
	if nps, ok := props.List("NetworkProtocol"); ok && len(nps) > 0 {
		b.WriteString(tp + "/" + EtherTypes.NameOrUnknown(nps[0]))
		if len(nps) == 2 {
			b.WriteString(", " + tp + "/" + EtherTypes.NameOrUnknown(nps[1]))
		}
	} else {
		b.WriteString(tp + "/Any")
	}

	if tp == "ICMP" || tp == "ICMPv6" {
		b.WriteString(crlf + "Message Type: ")
		mt := props.Value("MessageType")
		switch {
		case mt == "":
			b.WriteString("All")
		case tp == "ICMP":
			b.WriteString(ICMPTypes.NameOrUnknown(mt))
		default:
			b.WriteString(ICMPv6Types.NameOrUnknown(mt))
		}
	}
	return b.String()
}

// Layouts accepted for LastModified. Fractional seconds are optional.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
}

// FormatTimestamp renders a LastModified value as
// "2020/03/11 at 10:22:33 +0100.". Values that do not parse are returned
// unchanged.
func FormatTimestamp(s string) string {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006/01/02 at 15:04:05 MST.")
		}
	}
	return s
}

// LastChanged is the "By user on date" line of a rule.
func LastChanged(props Properties) string {
	return "By " + props.Value("LastModifyingUsername") + " on " + FormatTimestamp(props.Value("LastModified"))
}

func yesNo(v string) string {
	if v == "1" {
		return "Yes"
	}
	return "No"
}
