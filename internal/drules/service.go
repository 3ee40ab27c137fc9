package drules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/solatis/netkeeper/internal/payload"
	"github.com/solatis/netkeeper/internal/types"
)

// Service runs the batch operations on discovery rules. Every batch is
// validated in full before the first write, and all writes of a batch share
// one transaction: a batch either applies completely or not at all.
type Service struct {
	store  Store
	cfg    Config
	logger zerolog.Logger
}

// NewService creates a service over store.
func NewService(store Store, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "drules").Logger(),
	}
}

// Create validates and inserts a batch of rules with their checks and
// returns the new ids in input order.
func (s *Service) Create(ctx context.Context, actor types.Actor, rules []types.Object) ([]types.RuleID, error) {
	v := NewValidator(actor.Capability, s.store, s.cfg)
	if err := v.ValidateCreate(ctx, rules); err != nil {
		return nil, err
	}

	defaults := s.store.CheckDefaults()
	ids := make([]types.RuleID, 0, len(rules))

	err := s.store.InTx(ctx, func(tx Tx) error {
		for i, o := range rules {
			rule, err := payload.BuildRule(o)
			if err != nil {
				return fmt.Errorf("rule %d: %w", i, err)
			}
			if err := tx.InsertRule(ctx, &rule); err != nil {
				return fmt.Errorf("failed to insert rule %q: %w", rule.Name, err)
			}

			submitted, _ := submittedChecks(o)
			checks := make([]types.Check, 0, len(submitted))
			for j, c := range submitted {
				check, err := payload.BuildCheck(c, defaults)
				if err != nil {
					return fmt.Errorf("rule %d check %d: %w", i, j, err)
				}
				check.ID = ""
				check.RuleID = rule.ID
				checks = append(checks, check)
			}
			if err := tx.InsertChecks(ctx, checks); err != nil {
				return fmt.Errorf("failed to insert checks of rule %q: %w", rule.Name, err)
			}
			ids = append(ids, rule.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor", actor.ID).
		Int("count", len(ids)).
		Msg("discovery rules created")
	return ids, nil
}

// Update applies a batch of partial patches. A patch carrying dchecks
// replaces the rule's check set: omitted checks are deleted together with
// the action conditions that referenced them.
func (s *Service) Update(ctx context.Context, actor types.Actor, rules []types.Object) ([]types.RuleID, error) {
	var ids []types.RuleID
	for _, o := range rules {
		if id, ok := payload.RuleID(o); ok {
			ids = append(ids, id)
		}
	}

	existing := map[types.RuleID]*types.Rule{}
	if actor.Capability.CanWrite() && len(ids) > 0 {
		var err error
		existing, err = s.store.RulesByIDs(ctx, s.scope(actor, types.UniqueRuleIDs(ids), true), true)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
	}

	v := NewValidator(actor.Capability, s.store, s.cfg)
	if err := v.ValidateUpdate(ctx, rules, existing); err != nil {
		return nil, err
	}

	defaults := s.store.CheckDefaults()
	var removedChecks int

	err := s.store.InTx(ctx, func(tx Tx) error {
		for _, o := range rules {
			id, _ := payload.RuleID(o)
			rule := *existing[id]

			if o.Has(types.FieldChecks) {
				submitted, _ := submittedChecks(o)
				plan, err := Reconcile(rule, submitted, defaults)
				if err != nil {
					return err
				}
				if len(plan.Deleted) > 0 {
					pruned, err := tx.Cleanup().PruneCheckConditions(ctx, plan.Deleted)
					if err != nil {
						return fmt.Errorf("failed to prune conditions of rule %q: %w", id, err)
					}
					s.logPruned(id, pruned)
					removedChecks += len(plan.Deleted)
				}
				if err := tx.ReplaceChecks(ctx, id, rule.Checks, plan.Desired()); err != nil {
					return fmt.Errorf("failed to replace checks of rule %q: %w", id, err)
				}
			}

			if err := payload.ApplyRulePatch(&rule, o); err != nil {
				return fmt.Errorf("rule %q: %w", id, err)
			}
			if err := tx.UpdateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to update rule %q: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor", actor.ID).
		Int("count", len(ids)).
		Int("removed_checks", removedChecks).
		Msg("discovery rules updated")
	return ids, nil
}

// Delete removes rules, their checks and every action condition that
// referenced either, disabling the owning actions. One audit record is
// written per rule. Repeated ids are collapsed.
func (s *Service) Delete(ctx context.Context, actor types.Actor, ids []types.RuleID) ([]types.RuleID, error) {
	if len(ids) == 0 {
		return nil, types.ErrEmptyInput
	}
	ids = types.UniqueRuleIDs(ids)

	writable, err := s.IsWritable(ctx, actor, ids)
	if err != nil {
		return nil, err
	}
	if !writable {
		return nil, types.ErrNoPermissions
	}

	var checkIDs []types.CheckID
	var pruned Pruned

	err = s.store.InTx(ctx, func(tx Tx) error {
		var err error
		checkIDs, err = tx.CheckIDsOfRules(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to list checks: %w", err)
		}

		pruned, err = tx.Cleanup().PruneRuleConditions(ctx, ids, checkIDs)
		if err != nil {
			return fmt.Errorf("failed to prune conditions: %w", err)
		}

		if err := tx.DeleteRules(ctx, ids); err != nil {
			return fmt.Errorf("failed to delete rules: %w", err)
		}

		for _, id := range ids {
			if err := tx.Audit().RecordDelete(ctx, actor, id); err != nil {
				return fmt.Errorf("failed to audit deletion of rule %q: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("actor", actor.ID).
		Int("count", len(ids)).
		Int("checks", len(checkIDs)).
		Int("disabled_actions", pruned.Actions).
		Int("removed_conditions", pruned.Conditions).
		Msg("discovery rules deleted")
	return ids, nil
}

// IsReadable reports whether every id refers to a rule the actor can see.
// An empty list is trivially readable.
func (s *Service) IsReadable(ctx context.Context, actor types.Actor, ids []types.RuleID) (bool, error) {
	return s.allVisible(ctx, actor, ids, false)
}

// IsWritable reports whether every id refers to a rule the actor can edit.
// An empty list is trivially writable.
func (s *Service) IsWritable(ctx context.Context, actor types.Actor, ids []types.RuleID) (bool, error) {
	return s.allVisible(ctx, actor, ids, true)
}

func (s *Service) allVisible(ctx context.Context, actor types.Actor, ids []types.RuleID, editable bool) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	ids = types.UniqueRuleIDs(ids)

	q := s.scope(actor, ids, editable)
	if !q.Visible() {
		return false, nil
	}
	n, err := s.store.CountRules(ctx, q)
	if err != nil {
		return false, fmt.Errorf("failed to count rules: %w", err)
	}
	return n == len(ids), nil
}

func (s *Service) scope(actor types.Actor, ids []types.RuleID, editable bool) types.RuleQuery {
	return types.RuleQuery{
		RuleIDs:    ids,
		Capability: actor.Capability,
		Editable:   editable,
	}
}

func (s *Service) logPruned(id types.RuleID, pruned Pruned) {
	if pruned.Conditions == 0 {
		return
	}
	s.logger.Debug().
		Str("rule", string(id)).
		Int("disabled_actions", pruned.Actions).
		Int("removed_conditions", pruned.Conditions).
		Msg("pruned conditions of removed checks")
}
