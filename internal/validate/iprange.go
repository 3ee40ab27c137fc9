// Package validate provides the syntax validators used by the rule
// validator: IP ranges, agent item keys and port lists. Each is a pure
// function of its input.
package validate

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// CIDR mask bounds. Narrower blocks exceed any sane scan and are refused
// before the address limit is even considered.
const (
	minIPv4Mask = 16
	maxIPv4Mask = 32
	minIPv6Mask = 112
	maxIPv6Mask = 128
)

// IPRangeValidator accepts a comma separated list of addresses, CIDR blocks
// and dash ranges, e.g. "192.168.1.1-254,10.0.0.0/24,fe80::1-ff".
// Limit caps the total number of addresses across the list; 0 disables it.
type IPRangeValidator struct {
	Limit uint64
}

// Validate returns nil when s is acceptable. The error message is meant for
// the API caller as-is.
func (v IPRangeValidator) Validate(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("Invalid IP address range \"%s\".", s)
	}

	var total uint64
	for _, r := range strings.Split(s, ",") {
		r = strings.TrimSpace(r)
		n, ok := countRange(r)
		if !ok {
			return fmt.Errorf("Invalid IP address range \"%s\".", r)
		}
		total += n
		if v.Limit != 0 && total > v.Limit {
			return fmt.Errorf("IP range \"%s\" exceeds \"%d\" address limit.", r, v.Limit)
		}
	}
	return nil
}

// Count returns the number of addresses s describes, or false if invalid.
func Count(s string) (uint64, bool) {
	var total uint64
	for _, r := range strings.Split(s, ",") {
		n, ok := countRange(strings.TrimSpace(r))
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

// countRange validates one list element and returns its address count.
func countRange(r string) (uint64, bool) {
	if r == "" {
		return 0, false
	}
	switch {
	case strings.Contains(r, "/"):
		return countCIDR(r)
	case strings.Contains(r, "-"):
		if strings.Contains(r, ":") {
			return countIPv6Range(r)
		}
		return countIPv4Range(r)
	default:
		addr, err := netip.ParseAddr(r)
		if err != nil || addr.Zone() != "" {
			return 0, false
		}
		return 1, true
	}
}

func countCIDR(r string) (uint64, bool) {
	prefix, err := netip.ParsePrefix(r)
	if err != nil {
		return 0, false
	}
	bits := prefix.Bits()
	if prefix.Addr().Is4() {
		if bits < minIPv4Mask || bits > maxIPv4Mask {
			return 0, false
		}
		return 1 << uint(maxIPv4Mask-bits), true
	}
	if bits < minIPv6Mask || bits > maxIPv6Mask {
		return 0, false
	}
	return 1 << uint(maxIPv6Mask-bits), true
}

// countIPv4Range handles per-octet ranges such as 192.168.1-2.1-254.
func countIPv4Range(r string) (uint64, bool) {
	octets := strings.Split(r, ".")
	if len(octets) != 4 {
		return 0, false
	}
	var count uint64 = 1
	for _, octet := range octets {
		from, to, ok := parseBounds(octet, 10, 255)
		if !ok {
			return 0, false
		}
		count *= to - from + 1
	}
	return count, true
}

// countIPv6Range handles a range in the last group, e.g. fe80::1-ff.
func countIPv6Range(r string) (uint64, bool) {
	i := strings.LastIndex(r, ":")
	head, last := r[:i+1], r[i+1:]
	if strings.Contains(head, "-") {
		return 0, false
	}
	from, to, ok := parseBounds(last, 16, 0xffff)
	if !ok {
		return 0, false
	}
	first := head + strconv.FormatUint(from, 16)
	addr, err := netip.ParseAddr(first)
	if err != nil || !addr.Is6() || addr.Zone() != "" {
		return 0, false
	}
	return to - from + 1, true
}

// parseBounds parses "n" or "a-b" in the given base with a <= b <= max.
func parseBounds(s string, base int, max uint64) (uint64, uint64, bool) {
	lo, hi, isRange := strings.Cut(s, "-")
	from, err := strconv.ParseUint(lo, base, 32)
	if err != nil || lo == "" || from > max {
		return 0, 0, false
	}
	if !isRange {
		return from, from, true
	}
	to, err := strconv.ParseUint(hi, base, 32)
	if err != nil || hi == "" || to > max || to < from {
		return 0, 0, false
	}
	return from, to, true
}
