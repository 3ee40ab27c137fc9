package drules

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/solatis/netkeeper/internal/types"
)

var errInjected = errors.New("injected failure")

type auditEntry struct {
	actor string
	rule  types.RuleID
}

// memState is the full content of the fake store. Transactions work on a
// deep copy and swap it in on commit.
type memState struct {
	rules      []types.Rule // insertion order, no checks attached
	checks     []types.Check
	proxies    map[types.ProxyID]bool
	actions    map[types.ActionID]types.ActionStatus
	conditions []types.Condition
	hosts      []types.Host
	audit      []auditEntry
}

func (s *memState) clone() *memState {
	c := &memState{
		rules:      slices.Clone(s.rules),
		checks:     slices.Clone(s.checks),
		proxies:    make(map[types.ProxyID]bool, len(s.proxies)),
		actions:    make(map[types.ActionID]types.ActionStatus, len(s.actions)),
		conditions: slices.Clone(s.conditions),
		hosts:      slices.Clone(s.hosts),
		audit:      slices.Clone(s.audit),
	}
	for k, v := range s.proxies {
		c.proxies[k] = v
	}
	for k, v := range s.actions {
		c.actions[k] = v
	}
	return c
}

// memStore implements Store in memory. failOn names a Tx method that fails
// when reached, to exercise rollback.
type memStore struct {
	state  *memState
	failOn string
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		proxies: map[types.ProxyID]bool{},
		actions: map[types.ActionID]types.ActionStatus{},
	}}
}

func (m *memStore) CheckDefaults() types.Object {
	return types.Object{
		types.FieldType:           0,
		types.FieldKey:            "",
		types.FieldSNMPCommunity:  "",
		types.FieldPorts:          "0",
		types.FieldSecurityName:   "",
		types.FieldSecurityLevel:  0,
		types.FieldAuthPassphrase: "",
		types.FieldPrivPassphrase: "",
		types.FieldUniq:           0,
		types.FieldAuthProtocol:   0,
		types.FieldPrivProtocol:   0,
		types.FieldContextName:    "",
	}
}

func (m *memStore) matches(r types.Rule, q types.RuleQuery) bool {
	if len(q.RuleIDs) > 0 && !slices.Contains(q.RuleIDs, r.ID) {
		return false
	}
	if len(q.Names) > 0 && !slices.Contains(q.Names, r.Name) {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, r.Status) {
		return false
	}
	if len(q.IPRanges) > 0 && !slices.Contains(q.IPRanges, r.IPRange) {
		return false
	}
	if len(q.ProxyIDs) > 0 && (!r.ProxyID.Valid || !slices.Contains(q.ProxyIDs, types.ProxyID(r.ProxyID.String))) {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(q.Search)) {
		return false
	}
	if len(q.HostIDs) > 0 {
		found := false
		for _, h := range m.state.hosts {
			if h.RuleID == r.ID && slices.Contains(q.HostIDs, h.ID) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *memStore) checksOf(id types.RuleID) []types.Check {
	var out []types.Check
	for _, c := range m.state.checks {
		if c.RuleID == id {
			out = append(out, c)
		}
	}
	return out
}

func (m *memStore) RulesByIDs(_ context.Context, q types.RuleQuery, withChecks bool) (map[types.RuleID]*types.Rule, error) {
	out := map[types.RuleID]*types.Rule{}
	if !q.Visible() {
		return out, nil
	}
	for _, r := range m.state.rules {
		if !m.matches(r, q) {
			continue
		}
		r := r
		if withChecks {
			r.Checks = m.checksOf(r.ID)
		}
		out[r.ID] = &r
	}
	return out, nil
}

func (m *memStore) RulesByName(_ context.Context, names []string) ([]types.Rule, error) {
	var out []types.Rule
	for _, r := range m.state.rules {
		if slices.Contains(names, r.Name) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ExistingProxies(_ context.Context, ids []types.ProxyID) (map[types.ProxyID]bool, error) {
	out := map[types.ProxyID]bool{}
	for _, id := range ids {
		if m.state.proxies[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) CountRules(ctx context.Context, q types.RuleQuery) (int, error) {
	if !q.Visible() {
		return 0, nil
	}
	n := 0
	for _, r := range m.state.rules {
		if m.matches(r, q) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) SelectRules(_ context.Context, q types.RuleQuery) ([]types.Rule, error) {
	var out []types.Rule
	for _, r := range m.state.rules {
		if m.matches(r, q) {
			out = append(out, r)
		}
	}
	if q.SortField == types.FieldName {
		slices.SortStableFunc(out, func(a, b types.Rule) int { return strings.Compare(a.Name, b.Name) })
	}
	if q.SortDesc {
		slices.Reverse(out)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) ChecksOfRules(_ context.Context, ids []types.RuleID) ([]types.Check, error) {
	var out []types.Check
	for _, c := range m.state.checks {
		if slices.Contains(ids, c.RuleID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) HostsOfRules(_ context.Context, ids []types.RuleID) ([]types.Host, error) {
	var out []types.Host
	for _, h := range m.state.hosts {
		if slices.Contains(ids, h.RuleID) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memStore) CountChecksByRule(ctx context.Context, ids []types.RuleID) (map[types.RuleID]int, error) {
	checks, _ := m.ChecksOfRules(ctx, ids)
	out := map[types.RuleID]int{}
	for _, c := range checks {
		out[c.RuleID]++
	}
	return out, nil
}

func (m *memStore) CountHostsByRule(ctx context.Context, ids []types.RuleID) (map[types.RuleID]int, error) {
	hosts, _ := m.HostsOfRules(ctx, ids)
	out := map[types.RuleID]int{}
	for _, h := range hosts {
		out[h.RuleID]++
	}
	return out, nil
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{state: m.state.clone(), failOn: m.failOn}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

type memTx struct {
	state  *memState
	failOn string
}

func (t *memTx) fail(op string) error {
	if t.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) InsertRule(_ context.Context, r *types.Rule) error {
	if err := t.fail("InsertRule"); err != nil {
		return err
	}
	r.ID = types.NewRuleID()
	row := *r
	row.Checks = nil
	t.state.rules = append(t.state.rules, row)
	return nil
}

func (t *memTx) InsertChecks(_ context.Context, checks []types.Check) error {
	if err := t.fail("InsertChecks"); err != nil {
		return err
	}
	for i := range checks {
		checks[i].ID = types.NewCheckID()
		t.state.checks = append(t.state.checks, checks[i])
	}
	return nil
}

func (t *memTx) UpdateRule(_ context.Context, r types.Rule) error {
	if err := t.fail("UpdateRule"); err != nil {
		return err
	}
	for i := range t.state.rules {
		if t.state.rules[i].ID == r.ID {
			r.Checks = nil
			t.state.rules[i] = r
			return nil
		}
	}
	return errors.New("rule not found")
}

func (t *memTx) ReplaceChecks(ctx context.Context, ruleID types.RuleID, old, desired []types.Check) error {
	if err := t.fail("ReplaceChecks"); err != nil {
		return err
	}
	keep := map[types.CheckID]types.Check{}
	var inserts []types.Check
	for _, c := range desired {
		if c.ID == "" {
			inserts = append(inserts, c)
			continue
		}
		keep[c.ID] = c
	}
	t.state.checks = slices.DeleteFunc(t.state.checks, func(c types.Check) bool {
		_, kept := keep[c.ID]
		return c.RuleID == ruleID && !kept
	})
	for i, c := range t.state.checks {
		if updated, ok := keep[c.ID]; ok {
			t.state.checks[i] = updated
		}
	}
	for i := range inserts {
		inserts[i].RuleID = ruleID
		inserts[i].ID = types.NewCheckID()
		t.state.checks = append(t.state.checks, inserts[i])
	}
	return nil
}

func (t *memTx) CheckIDsOfRules(_ context.Context, ids []types.RuleID) ([]types.CheckID, error) {
	var out []types.CheckID
	for _, c := range t.state.checks {
		if slices.Contains(ids, c.RuleID) {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func (t *memTx) DeleteRules(_ context.Context, ids []types.RuleID) error {
	if err := t.fail("DeleteRules"); err != nil {
		return err
	}
	t.state.rules = slices.DeleteFunc(t.state.rules, func(r types.Rule) bool { return slices.Contains(ids, r.ID) })
	t.state.checks = slices.DeleteFunc(t.state.checks, func(c types.Check) bool { return slices.Contains(ids, c.RuleID) })
	return nil
}

func (t *memTx) Cleanup() ReferenceCleanup { return t }
func (t *memTx) Audit() Auditor            { return t }

func (t *memTx) PruneCheckConditions(ctx context.Context, checkIDs []types.CheckID) (Pruned, error) {
	return t.prune(func(c types.Condition) bool {
		return c.Type == types.ConditionDiscoveryCheck && slices.Contains(checkIDs, types.CheckID(c.Value))
	})
}

func (t *memTx) PruneRuleConditions(ctx context.Context, ruleIDs []types.RuleID, checkIDs []types.CheckID) (Pruned, error) {
	return t.prune(func(c types.Condition) bool {
		switch c.Type {
		case types.ConditionDiscoveryRule:
			return slices.Contains(ruleIDs, types.RuleID(c.Value))
		case types.ConditionDiscoveryCheck:
			return slices.Contains(checkIDs, types.CheckID(c.Value))
		}
		return false
	})
}

func (t *memTx) prune(match func(types.Condition) bool) (Pruned, error) {
	if err := t.fail("Prune"); err != nil {
		return Pruned{}, err
	}
	var p Pruned
	disabled := map[types.ActionID]bool{}
	for _, c := range t.state.conditions {
		if match(c) && !disabled[c.ActionID] {
			disabled[c.ActionID] = true
			t.state.actions[c.ActionID] = types.ActionDisabled
			p.Actions++
		}
	}
	before := len(t.state.conditions)
	t.state.conditions = slices.DeleteFunc(t.state.conditions, match)
	p.Conditions = before - len(t.state.conditions)
	return p, nil
}

func (t *memTx) RecordDelete(_ context.Context, actor types.Actor, id types.RuleID) error {
	if err := t.fail("RecordDelete"); err != nil {
		return err
	}
	t.state.audit = append(t.state.audit, auditEntry{actor: actor.ID, rule: id})
	return nil
}
