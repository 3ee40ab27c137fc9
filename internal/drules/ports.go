// Package drules validates, persists and tears down discovery rules.
//
// The package owns the rules themselves: the rule and check validators, the
// duplicate detector, the reconciliation of a rule's check set on update and
// the deletion cascade. Persistence, cleanup of dependent action conditions
// and auditing are reached only through the ports declared in this file, so
// the whole package runs against an in-memory fake in tests.
package drules

import (
	"context"

	"github.com/solatis/netkeeper/internal/types"
)

// Lookup is the read side the validator needs.
type Lookup interface {
	// RulesByIDs returns the visible rules among ids keyed by id, with their
	// checks attached when withChecks is set.
	RulesByIDs(ctx context.Context, q types.RuleQuery, withChecks bool) (map[types.RuleID]*types.Rule, error)

	// RulesByName returns persisted rules whose name is one of names.
	RulesByName(ctx context.Context, names []string) ([]types.Rule, error)

	// ExistingProxies returns the subset of ids that exist.
	ExistingProxies(ctx context.Context, ids []types.ProxyID) (map[types.ProxyID]bool, error)

	// CountRules counts rules matching q. Used for permission checks.
	CountRules(ctx context.Context, q types.RuleQuery) (int, error)

	// CheckDefaults returns the column defaults of the dchecks table,
	// excluding identity columns.
	CheckDefaults() types.Object
}

// Reader is the read path used by Get.
type Reader interface {
	SelectRules(ctx context.Context, q types.RuleQuery) ([]types.Rule, error)
	ChecksOfRules(ctx context.Context, ids []types.RuleID) ([]types.Check, error)
	HostsOfRules(ctx context.Context, ids []types.RuleID) ([]types.Host, error)
	CountChecksByRule(ctx context.Context, ids []types.RuleID) (map[types.RuleID]int, error)
	CountHostsByRule(ctx context.Context, ids []types.RuleID) (map[types.RuleID]int, error)
}

// Store is everything the service needs from persistence.
type Store interface {
	Lookup
	Reader

	// InTx runs fn inside one transaction. fn returning an error rolls
	// everything back, including cleanup and audit writes.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side, valid only inside Store.InTx.
type Tx interface {
	// InsertRule stores r and assigns r.ID.
	InsertRule(ctx context.Context, r *types.Rule) error

	// InsertChecks stores checks and assigns their IDs.
	InsertChecks(ctx context.Context, checks []types.Check) error

	// UpdateRule overwrites the scalar columns of r.
	UpdateRule(ctx context.Context, r types.Rule) error

	// ReplaceChecks makes the rule's check set equal to desired: rows of old
	// missing from desired are deleted, rows with an ID are updated and rows
	// without one are inserted.
	ReplaceChecks(ctx context.Context, ruleID types.RuleID, old, desired []types.Check) error

	// CheckIDsOfRules lists the checks owned by the given rules.
	CheckIDsOfRules(ctx context.Context, ids []types.RuleID) ([]types.CheckID, error)

	// DeleteRules removes the rules and their checks.
	DeleteRules(ctx context.Context, ids []types.RuleID) error

	Cleanup() ReferenceCleanup
	Audit() Auditor
}

// Pruned reports what a cleanup touched.
type Pruned struct {
	Actions    int
	Conditions int
}

// ReferenceCleanup removes action conditions that would dangle after a rule
// or check is deleted, disabling the actions that owned them.
type ReferenceCleanup interface {
	// PruneCheckConditions handles checks removed from a rule on update.
	PruneCheckConditions(ctx context.Context, checkIDs []types.CheckID) (Pruned, error)

	// PruneRuleConditions handles whole rules being deleted together with
	// their checks.
	PruneRuleConditions(ctx context.Context, ruleIDs []types.RuleID, checkIDs []types.CheckID) (Pruned, error)
}

// Auditor records completed deletions.
type Auditor interface {
	RecordDelete(ctx context.Context, actor types.Actor, id types.RuleID) error
}
