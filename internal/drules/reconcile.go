package drules

import (
	"fmt"

	"github.com/solatis/netkeeper/internal/payload"
	"github.com/solatis/netkeeper/internal/types"
)

// Plan is the outcome of reconciling a rule's persisted checks with a
// submitted check list.
type Plan struct {
	// Existing are persisted checks that were resubmitted, with the
	// submitted fields applied on top.
	Existing []types.Check

	// New are submitted checks without an id, defaults filled in.
	New []types.Check

	// Deleted are persisted checks that were not resubmitted.
	Deleted []types.CheckID
}

// Desired returns the full check set the rule should have afterwards.
func (p Plan) Desired() []types.Check {
	out := make([]types.Check, 0, len(p.Existing)+len(p.New))
	out = append(out, p.Existing...)
	return append(out, p.New...)
}

// Reconcile partitions submitted checks against the persisted ones of rule.
// Submitted ids must already be known to belong to the rule.
func Reconcile(rule types.Rule, submitted []types.Object, defaults types.Object) (Plan, error) {
	persisted := make(map[types.CheckID]types.Check, len(rule.Checks))
	for _, c := range rule.Checks {
		persisted[c.ID] = c
	}

	var plan Plan
	kept := make(map[types.CheckID]bool, len(submitted))
	for i, o := range submitted {
		if id, ok := payload.CheckID(o); ok {
			c, found := persisted[id]
			if !found {
				return Plan{}, fmt.Errorf("check %d: %q does not belong to rule %q", i, id, rule.ID)
			}
			if err := payload.ApplyCheckPatch(&c, o); err != nil {
				return Plan{}, fmt.Errorf("check %d: %w", i, err)
			}
			c.ID = id
			c.RuleID = rule.ID
			plan.Existing = append(plan.Existing, c)
			kept[id] = true
			continue
		}

		c, err := payload.BuildCheck(o, defaults)
		if err != nil {
			return Plan{}, fmt.Errorf("check %d: %w", i, err)
		}
		c.ID = ""
		c.RuleID = rule.ID
		plan.New = append(plan.New, c)
	}

	for _, c := range rule.Checks {
		if !kept[c.ID] {
			plan.Deleted = append(plan.Deleted, c.ID)
		}
	}
	return plan, nil
}
