package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestIPRangeValidator(t *testing.T) {
	v := IPRangeValidator{Limit: 65536}

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "single IPv4", input: "192.168.1.1"},
		{name: "single IPv6", input: "fe80::1"},
		{name: "last octet range", input: "192.168.1.1-254"},
		{name: "multi octet range", input: "10.0.1-2.1-254"},
		{name: "CIDR /24", input: "192.168.3.0/24"},
		{name: "CIDR /16 at limit", input: "10.10.0.0/16"},
		{name: "IPv6 CIDR", input: "fe80::/120"},
		{name: "IPv6 last group range", input: "fe80::1-ff"},
		{name: "list with spaces", input: "192.168.1.1, 192.168.2.0/24"},
		{
			name:    "empty",
			input:   "",
			wantErr: `Invalid IP address range "".`,
		},
		{
			name:    "garbage",
			input:   "not-an-ip",
			wantErr: `Invalid IP address range "not-an-ip".`,
		},
		{
			name:    "descending range",
			input:   "192.168.1.200-100",
			wantErr: `Invalid IP address range "192.168.1.200-100".`,
		},
		{
			name:    "octet out of range",
			input:   "192.168.1.1-300",
			wantErr: `Invalid IP address range "192.168.1.1-300".`,
		},
		{
			name:    "CIDR mask too wide",
			input:   "10.0.0.0/8",
			wantErr: `Invalid IP address range "10.0.0.0/8".`,
		},
		{
			name:    "empty element",
			input:   "192.168.1.1,",
			wantErr: `Invalid IP address range "".`,
		},
		{
			name:    "sum over limit",
			input:   "10.10.0.0/16,192.168.1.1",
			wantErr: `IP range "192.168.1.1" exceeds "65536" address limit.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate(%q) error = %v, want nil", tt.input, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate(%q) = nil, want %q", tt.input, tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("Validate(%q) error = %q, want %q", tt.input, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIPRangeValidator_NoLimit(t *testing.T) {
	v := IPRangeValidator{}
	if err := v.Validate("10.0.0.0/16,10.1.0.0/16"); err != nil {
		t.Fatalf("Validate() error = %v, want nil without limit", err)
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
	}{
		{"192.168.1.1", 1},
		{"192.168.1.1-10", 10},
		{"192.168.1-2.1-10", 20},
		{"192.168.1.0/24", 256},
		{"fe80::/120", 256},
		{"fe80::10-1f", 16},
		{"192.168.1.1,192.168.1.2", 2},
	}

	for _, tt := range tests {
		got, ok := Count(tt.input)
		if !ok {
			t.Errorf("Count(%q) invalid, want %d", tt.input, tt.want)
			continue
		}
		if got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseItemKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr string
	}{
		{key: "system.uname"},
		{key: "agent.ping"},
		{key: "vfs.fs.size[/,free]"},
		{key: "net.if.in[eth0]"},
		{key: "key[]"},
		{key: `key["quoted, with comma",second]`},
		{key: `key["escaped \" quote"]`},
		{key: "key[[a,b],c]"},
		{key: `key[ "spaced" , x ]`},
		{key: "", wantErr: "key is empty"},
		{key: "[a]", wantErr: `incorrect syntax near "[a]"`},
		{key: "key[a]b", wantErr: `incorrect syntax near "b"`},
		{key: "key[a", wantErr: "unexpected end of key"},
		{key: `key["open`, wantErr: "unexpected end of key"},
		{key: `key["a"b]`, wantErr: `incorrect syntax near "b]"`},
		{key: "key[[[a]]]", wantErr: `incorrect syntax near "[a]]]"`},
		{key: "bad key", wantErr: `incorrect syntax near " key"`},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ParseItemKey(tt.key)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseItemKey(%q) error = %v, want nil", tt.key, err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("ParseItemKey(%q) error = %v, want %q", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestValidPortList(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"22", true},
		{"0", true},
		{"22,80,443", true},
		{"1-65535", true},
		{"22, 80-90", true},
		{"", false},
		{"65536", false},
		{"90-80", false},
		{"22,", false},
		{"-1", false},
		{"abc", false},
		{"1-2-3", false},
		{"+22", false},
	}

	for _, tt := range tests {
		if got := ValidPortList(tt.input); got != tt.want {
			t.Errorf("ValidPortList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// Property-based test: any ascending in-range list is accepted
func TestValidPortList_PropertyAscendingRanges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("ascending port ranges are accepted", prop.ForAll(
		func(a, b, single int) bool {
			if a > b {
				a, b = b, a
			}
			list := fmt.Sprintf("%d-%d,%d", a, b, single)
			return ValidPortList(list)
		},
		gen.IntRange(0, maxPort),
		gen.IntRange(0, maxPort),
		gen.IntRange(0, maxPort),
	))

	properties.Property("ports above 65535 are rejected", prop.ForAll(
		func(p int) bool {
			return !ValidPortList(strings.Join([]string{"22", fmt.Sprint(p)}, ","))
		},
		gen.IntRange(maxPort+1, 1_000_000),
	))

	properties.TestingRun(t)
}
