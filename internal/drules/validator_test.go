package drules

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/solatis/netkeeper/internal/types"
)

func icmpRule(name string) types.Object {
	return types.Object{
		"name":    name,
		"iprange": "192.168.1.1-254",
		"dchecks": []any{map[string]any{"type": 12}},
	}
}

func with(o types.Object, kv ...any) types.Object {
	c := o.Clone()
	for i := 0; i+1 < len(kv); i += 2 {
		c[kv[i].(string)] = kv[i+1]
	}
	return c
}

func without(o types.Object, keys ...string) types.Object {
	c := o.Clone()
	for _, k := range keys {
		delete(c, k)
	}
	return c
}

func seededLookup() *memStore {
	m := newMemStore()
	m.state.proxies["proxy-1"] = true
	m.state.rules = append(m.state.rules,
		types.Rule{ID: "rule-a", Name: "A", IPRange: "10.0.0.1", Delay: 3600},
		types.Rule{ID: "rule-b", Name: "B", IPRange: "10.0.0.2", Delay: 3600},
	)
	m.state.checks = append(m.state.checks,
		types.Check{ID: "check-a1", RuleID: "rule-a", Type: types.CheckICMPPing, Ports: "0"},
		types.Check{ID: "check-b1", RuleID: "rule-b", Type: types.CheckICMPPing, Ports: "0"},
	)
	return m
}

func TestValidateCreate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		capability types.Capability
		rules      []types.Object
		wantErr    error
		wantMsg    string
	}{
		{
			name:  "valid batch",
			rules: []types.Object{icmpRule("net-1"), with(icmpRule("net-2"), "proxy_hostid", "proxy-1", "delay", "600")},
		},
		{
			name:  "proxy zero means none",
			rules: []types.Object{with(icmpRule("net-1"), "proxy_hostid", "0")},
		},
		{
			name:       "read only user",
			capability: types.ReadOnlyUser,
			rules:      []types.Object{icmpRule("net-1")},
			wantErr:    types.ErrNoPermissions,
		},
		{
			name:       "permission before empty input",
			capability: types.ReadOnlyUser,
			wantErr:    types.ErrNoPermissions,
		},
		{
			name:    "empty batch",
			wantErr: types.ErrEmptyInput,
		},
		{
			name:    "name missing",
			rules:   []types.Object{without(icmpRule("x"), "name")},
			wantMsg: `Field "name" is required.`,
		},
		{
			name:    "name is a list",
			rules:   []types.Object{with(icmpRule("x"), "name", []any{"a"})},
			wantErr: types.ErrIncorrectArguments,
		},
		{
			name:    "name empty",
			rules:   []types.Object{with(icmpRule("x"), "name", "")},
			wantMsg: `Incorrect value for field "name": cannot be empty.`,
		},
		{
			name:    "iprange missing",
			rules:   []types.Object{without(icmpRule("x"), "iprange")},
			wantMsg: `Incorrect value for field "iprange": cannot be empty.`,
		},
		{
			name:    "iprange invalid",
			rules:   []types.Object{with(icmpRule("x"), "iprange", "10.0.0.300")},
			wantMsg: `Invalid IP address range "10.0.0.300".`,
		},
		{
			name:    "iprange over limit",
			rules:   []types.Object{with(icmpRule("x"), "iprange", "10.0.0.0/16,10.1.0.1")},
			wantMsg: `IP range "10.1.0.1" exceeds "65536" address limit.`,
		},
		{
			name:    "delay too small",
			rules:   []types.Object{with(icmpRule("x"), "delay", 0)},
			wantMsg: `Incorrect value "0" for "delay" field.`,
		},
		{
			name:    "delay over a week",
			rules:   []types.Object{with(icmpRule("x"), "delay", 604801)},
			wantMsg: `Incorrect value "604801" for "delay" field.`,
		},
		{
			name:    "delay not a number",
			rules:   []types.Object{with(icmpRule("x"), "delay", "hourly")},
			wantMsg: `Incorrect value "hourly" for "delay" field.`,
		},
		{
			name:    "status unknown",
			rules:   []types.Object{with(icmpRule("x"), "status", 2)},
			wantMsg: `Incorrect value "2" for "status" field.`,
		},
		{
			name:    "checks missing",
			rules:   []types.Object{without(icmpRule("x"), "dchecks")},
			wantErr: types.ErrRuleWithoutChecks,
		},
		{
			name:    "checks empty",
			rules:   []types.Object{with(icmpRule("x"), "dchecks", []any{})},
			wantErr: types.ErrRuleWithoutChecks,
		},
		{
			name:    "checks not a list",
			rules:   []types.Object{with(icmpRule("x"), "dchecks", "icmp")},
			wantErr: types.ErrIncorrectArguments,
		},
		{
			name:    "invalid check",
			rules:   []types.Object{with(icmpRule("x"), "dchecks", []any{map[string]any{"type": 9}})},
			wantErr: types.ErrIncorrectKey,
		},
		{
			name:    "duplicate names in batch",
			rules:   []types.Object{icmpRule("net"), icmpRule("net")},
			wantMsg: `Discovery rule "net" already exists.`,
		},
		{
			name: "field errors win over duplicate names",
			rules: []types.Object{
				icmpRule("net"),
				icmpRule("net"),
				with(icmpRule("z"), "iprange", "nope"),
			},
			wantMsg: `Invalid IP address range "nope".`,
		},
		{
			name:    "proxy is an object",
			rules:   []types.Object{with(icmpRule("x"), "proxy_hostid", map[string]any{"id": "proxy-1"})},
			wantErr: types.ErrIncorrectArguments,
		},
		{
			name:    "name already stored",
			rules:   []types.Object{icmpRule("B")},
			wantMsg: `Discovery rule "B" already exists.`,
		},
		{
			name:    "unknown proxy",
			rules:   []types.Object{with(icmpRule("x"), "proxy_hostid", "proxy-404")},
			wantErr: types.ErrIncorrectProxy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capability := tt.capability
			if capability == 0 {
				capability = types.Admin
			}
			v := NewValidator(capability, seededLookup(), DefaultConfig())
			err := v.ValidateCreate(ctx, tt.rules)
			assertValidation(t, err, tt.wantErr, tt.wantMsg)
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		rules   []types.Object
		wantErr error
		wantMsg string
	}{
		{
			name:  "patch delay only",
			rules: []types.Object{{"druleid": "rule-a", "delay": 60}},
		},
		{
			name:  "keep own name",
			rules: []types.Object{{"druleid": "rule-a", "name": "A"}},
		},
		{
			name:  "rename to free name",
			rules: []types.Object{{"druleid": "rule-a", "name": "C"}},
		},
		{
			name: "resubmit own check and add one",
			rules: []types.Object{{"druleid": "rule-a", "dchecks": []any{
				map[string]any{"dcheckid": "check-a1", "type": 12},
				map[string]any{"type": 8, "ports": "80"},
			}}},
		},
		{
			name:    "id missing",
			rules:   []types.Object{{"name": "A"}},
			wantMsg: `Field "druleid" is required.`,
		},
		{
			name:    "id unknown",
			rules:   []types.Object{{"druleid": "rule-zzz"}},
			wantErr: types.ErrNoPermissions,
		},
		{
			name:    "same rule twice",
			rules:   []types.Object{{"druleid": "rule-a"}, {"druleid": "rule-a"}},
			wantMsg: `Incorrect value "rule-a" for "druleid" field.`,
		},
		{
			name:    "rename to taken name",
			rules:   []types.Object{{"druleid": "rule-a", "name": "B"}},
			wantMsg: `Discovery rule "B" already exists.`,
		},
		{
			name:    "two renames to one name",
			rules:   []types.Object{{"druleid": "rule-a", "name": "C"}, {"druleid": "rule-b", "name": "C"}},
			wantMsg: `Discovery rule "C" already exists.`,
		},
		{
			name:    "empty name",
			rules:   []types.Object{{"druleid": "rule-a", "name": ""}},
			wantMsg: `Incorrect value for field "name": cannot be empty.`,
		},
		{
			name:    "empty check list",
			rules:   []types.Object{{"druleid": "rule-a", "dchecks": []any{}}},
			wantErr: types.ErrRuleWithoutChecks,
		},
		{
			name:    "check of another rule",
			rules:   []types.Object{{"druleid": "rule-a", "dchecks": []any{map[string]any{"dcheckid": "check-b1", "type": 12}}}},
			wantErr: types.ErrNoPermissions,
		},
		{
			name:    "bad iprange",
			rules:   []types.Object{{"druleid": "rule-a", "iprange": "nope"}},
			wantMsg: `Invalid IP address range "nope".`,
		},
		{
			name: "rename clash reported after field errors",
			rules: []types.Object{
				{"druleid": "rule-a", "name": "C"},
				{"druleid": "rule-b", "name": "C", "delay": 0},
			},
			wantMsg: `Incorrect value "0" for "delay" field.`,
		},
		{
			name:    "proxy is a list",
			rules:   []types.Object{{"druleid": "rule-a", "proxy_hostid": []any{"proxy-1"}}},
			wantErr: types.ErrIncorrectArguments,
		},
		{
			name:    "unknown proxy",
			rules:   []types.Object{{"druleid": "rule-a", "proxy_hostid": "proxy-404"}},
			wantErr: types.ErrIncorrectProxy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededLookup()
			existing, err := store.RulesByIDs(ctx, types.RuleQuery{Capability: types.Admin, Editable: true}, true)
			if err != nil {
				t.Fatalf("RulesByIDs() error = %v", err)
			}
			v := NewValidator(types.Admin, store, DefaultConfig())
			err = v.ValidateUpdate(ctx, tt.rules, existing)
			assertValidation(t, err, tt.wantErr, tt.wantMsg)
		})
	}
}

func TestValidateUpdate_ReadOnly(t *testing.T) {
	v := NewValidator(types.ReadOnlyUser, seededLookup(), DefaultConfig())
	err := v.ValidateUpdate(context.Background(), []types.Object{{"druleid": "rule-a"}}, map[types.RuleID]*types.Rule{
		"rule-a": {ID: "rule-a", Name: "A", ProxyID: sql.NullString{}},
	})
	if !errors.Is(err, types.ErrNoPermissions) {
		t.Errorf("ValidateUpdate() error = %v, want %v", err, types.ErrNoPermissions)
	}
}

func assertValidation(t *testing.T, err, wantErr error, wantMsg string) {
	t.Helper()
	switch {
	case wantErr != nil:
		if !errors.Is(err, wantErr) {
			t.Errorf("error = %v, want %v", err, wantErr)
		}
	case wantMsg != "":
		if err == nil || err.Error() != wantMsg {
			t.Errorf("error = %v, want %q", err, wantMsg)
		}
	default:
		if err != nil {
			t.Errorf("error = %v, want nil", err)
		}
	}
}
