package validate

import (
	"strconv"
	"strings"
)

const maxPort = 65535

// ValidPortList reports whether s is a comma separated list of ports and
// ascending port ranges, e.g. "22,80-90,443". Port 0 is accepted because it
// is the stored default for checks that do not use a port.
func ValidPortList(s string) bool {
	if s == "" {
		return false
	}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		lo, hi, isRange := strings.Cut(item, "-")
		from, ok := parsePort(lo)
		if !ok {
			return false
		}
		if !isRange {
			continue
		}
		to, ok := parsePort(hi)
		if !ok || to < from {
			return false
		}
	}
	return true
}

func parsePort(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > maxPort {
		return 0, false
	}
	return n, true
}
