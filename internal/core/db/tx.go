package db

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/netkeeper/internal/drules"
	"github.com/solatis/netkeeper/internal/types"
)

// storeTx implements drules.Tx together with the cleanup and audit ports,
// all bound to one sqlx transaction.
type storeTx struct {
	q *Queries
}

func (t *storeTx) Cleanup() drules.ReferenceCleanup { return t }
func (t *storeTx) Audit() drules.Auditor            { return t }

func (t *storeTx) InsertRule(ctx context.Context, r *types.Rule) error {
	r.ID = types.NewRuleID()
	_, err := t.q.Exec(ctx, "insert-rule",
		string(r.ID), r.ProxyID, r.Name, r.IPRange, r.Delay, r.NextCheck, int(r.Status))
	return err
}

func (t *storeTx) InsertChecks(ctx context.Context, checks []types.Check) error {
	for i := range checks {
		checks[i].ID = types.NewCheckID()
		if err := t.insertCheck(ctx, checks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *storeTx) insertCheck(ctx context.Context, c types.Check) error {
	_, err := t.q.Exec(ctx, "insert-check",
		string(c.ID), string(c.RuleID), int(c.Type), c.Key, c.SNMPCommunity, c.Ports,
		c.SecurityName, int(c.SecurityLevel),
		c.AuthPassphrase, c.PrivPassphrase,
		int(c.AuthProtocol), int(c.PrivProtocol), c.ContextName, c.Uniq)
	return err
}

func (t *storeTx) UpdateRule(ctx context.Context, r types.Rule) error {
	res, err := t.q.Exec(ctx, "update-rule",
		r.ProxyID, r.Name, r.IPRange, r.Delay, int(r.Status), string(r.ID))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("rule %s vanished during update", r.ID)
	}
	return nil
}

func (t *storeTx) ReplaceChecks(ctx context.Context, ruleID types.RuleID, old, desired []types.Check) error {
	keep := make(map[types.CheckID]bool, len(desired))
	for _, c := range desired {
		if c.ID != "" {
			keep[c.ID] = true
		}
	}

	var stale []string
	for _, c := range old {
		if !keep[c.ID] {
			stale = append(stale, string(c.ID))
		}
	}
	if len(stale) > 0 {
		if _, err := t.q.Exec(ctx, "delete-checks", stale); err != nil {
			return err
		}
	}

	for _, c := range desired {
		c.RuleID = ruleID
		if c.ID == "" {
			c.ID = types.NewCheckID()
			if err := t.insertCheck(ctx, c); err != nil {
				return err
			}
			continue
		}
		_, err := t.q.Exec(ctx, "update-check",
			int(c.Type), c.Key, c.SNMPCommunity, c.Ports,
			c.SecurityName, int(c.SecurityLevel),
			c.AuthPassphrase, c.PrivPassphrase,
			int(c.AuthProtocol), int(c.PrivProtocol),
			c.ContextName, c.Uniq,
			string(c.ID), string(ruleID))
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *storeTx) CheckIDsOfRules(ctx context.Context, ids []types.RuleID) ([]types.CheckID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var checkIDs []types.CheckID
	if err := t.q.Select(ctx, "select-check-ids-of-rules", &checkIDs, strs(ids)); err != nil {
		return nil, err
	}
	return checkIDs, nil
}

// DeleteRules removes checks and hosts explicitly so the result does not
// depend on the database enforcing ON DELETE CASCADE.
func (t *storeTx) DeleteRules(ctx context.Context, ids []types.RuleID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, name := range []string{"delete-checks-of-rules", "delete-hosts-of-rules", "delete-rules"} {
		if _, err := t.q.Exec(ctx, name, strs(ids)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// PruneCheckConditions implements drules.ReferenceCleanup.
func (t *storeTx) PruneCheckConditions(ctx context.Context, checkIDs []types.CheckID) (drules.Pruned, error) {
	return t.prune(ctx, []conditionRefs{
		{types.ConditionDiscoveryCheck, strs(checkIDs)},
	})
}

// PruneRuleConditions implements drules.ReferenceCleanup.
func (t *storeTx) PruneRuleConditions(ctx context.Context, ruleIDs []types.RuleID, checkIDs []types.CheckID) (drules.Pruned, error) {
	return t.prune(ctx, []conditionRefs{
		{types.ConditionDiscoveryRule, strs(ruleIDs)},
		{types.ConditionDiscoveryCheck, strs(checkIDs)},
	})
}

type conditionRefs struct {
	typ    types.ConditionType
	values []string
}

// prune disables every action owning a matching condition, then deletes
// the conditions. An action referenced by several conditions is disabled
// once.
func (t *storeTx) prune(ctx context.Context, refs []conditionRefs) (drules.Pruned, error) {
	var pruned drules.Pruned

	seen := make(map[string]bool)
	var actionIDs []string
	for _, ref := range refs {
		if len(ref.values) == 0 {
			continue
		}
		var ids []string
		if err := t.q.Select(ctx, "select-actions-by-condition", &ids, int(ref.typ), ref.values); err != nil {
			return pruned, fmt.Errorf("failed to find actions: %w", err)
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				actionIDs = append(actionIDs, id)
			}
		}
	}

	if len(actionIDs) > 0 {
		if _, err := t.q.Exec(ctx, "set-actions-status", int(types.ActionDisabled), actionIDs); err != nil {
			return pruned, fmt.Errorf("failed to disable actions: %w", err)
		}
		pruned.Actions = len(actionIDs)
	}

	for _, ref := range refs {
		if len(ref.values) == 0 {
			continue
		}
		res, err := t.q.Exec(ctx, "delete-conditions", int(ref.typ), ref.values)
		if err != nil {
			return pruned, fmt.Errorf("failed to delete conditions: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			pruned.Conditions += int(n)
		}
	}
	return pruned, nil
}

// RecordDelete implements drules.Auditor.
func (t *storeTx) RecordDelete(ctx context.Context, actor types.Actor, id types.RuleID) error {
	_, err := t.q.Exec(ctx, "insert-audit",
		types.NewAuditID(), actor.ID, "delete", "drule", string(id), "", time.Now().Unix())
	return err
}
