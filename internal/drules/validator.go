package drules

import (
	"context"
	"fmt"

	"github.com/solatis/netkeeper/internal/payload"
	"github.com/solatis/netkeeper/internal/types"
	"github.com/solatis/netkeeper/internal/validate"
)

// Config tunes validation.
type Config struct {
	// IPRangeLimit caps the addresses one rule may scan. Zero disables the cap.
	IPRangeLimit uint64
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{IPRangeLimit: types.DefaultIPRangeLimit}
}

// Validator checks create and update batches before anything is written.
// It is built per request with the actor's capability.
type Validator struct {
	capability types.Capability
	lookup     Lookup
	ipRange    validate.IPRangeValidator
}

// NewValidator returns a validator for one actor.
func NewValidator(capability types.Capability, lookup Lookup, cfg Config) *Validator {
	return &Validator{
		capability: capability,
		lookup:     lookup,
		ipRange:    validate.IPRangeValidator{Limit: cfg.IPRangeLimit},
	}
}

// ValidateCreate checks a batch of new rules. The first failure is returned.
func (v *Validator) ValidateCreate(ctx context.Context, rules []types.Object) error {
	if !v.capability.CanWrite() {
		return types.ErrNoPermissions
	}
	if len(rules) == 0 {
		return types.ErrEmptyInput
	}

	defaults := v.lookup.CheckDefaults()
	names := make([]string, 0, len(rules))
	var proxies []types.ProxyID

	for _, r := range rules {
		name, err := v.requireName(r)
		if err != nil {
			return err
		}

		ipRange, ok := r.Lookup(types.FieldIPRange)
		if !ok || payload.IsBlank(ipRange) {
			return types.ParameterError(types.MsgCannotBeEmpty, types.FieldIPRange)
		}
		if err := v.checkIPRange(ipRange); err != nil {
			return err
		}
		if err := checkScalars(r); err != nil {
			return err
		}

		checks, err := submittedChecks(r)
		if err != nil {
			return err
		}
		if len(checks) == 0 {
			return types.ErrRuleWithoutChecks
		}
		if err := ValidateChecks(checks, defaults); err != nil {
			return err
		}

		if id, ok := proxyRef(r); ok {
			proxies = append(proxies, id)
		}
		names = append(names, name)
	}

	// Names are compared only once every rule passed its field checks.
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return types.ParameterError(types.MsgRuleExists, name)
		}
		seen[name] = true
	}

	taken, err := v.lookup.RulesByName(ctx, names)
	if err != nil {
		return fmt.Errorf("failed to look up rule names: %w", err)
	}
	if len(taken) > 0 {
		return types.ParameterError(types.MsgRuleExists, taken[0].Name)
	}

	return v.checkProxies(ctx, proxies)
}

// ValidateUpdate checks a batch of patches against the persisted rules they
// target. existing must hold every rule the actor may edit among the
// patched ids, with checks attached.
func (v *Validator) ValidateUpdate(ctx context.Context, rules []types.Object, existing map[types.RuleID]*types.Rule) error {
	if !v.capability.CanWrite() {
		return types.ErrNoPermissions
	}
	if len(rules) == 0 {
		return types.ErrEmptyInput
	}

	defaults := v.lookup.CheckDefaults()
	patched := make(map[types.RuleID]bool, len(rules))
	var names []string
	var renames []types.RuleID
	var proxies []types.ProxyID

	for _, r := range rules {
		if !r.Has(types.FieldRuleID) {
			return types.ParameterError(types.MsgFieldRequired, types.FieldRuleID)
		}
		id, ok := payload.RuleID(r)
		if !ok {
			return types.ErrNoPermissions
		}
		current, ok := existing[id]
		if !ok {
			return types.ErrNoPermissions
		}
		if patched[id] {
			return types.ParameterError(types.MsgIncorrectValue, id, types.FieldRuleID)
		}
		patched[id] = true

		if r.Has(types.FieldName) {
			name, err := v.requireName(r)
			if err != nil {
				return err
			}
			if name != current.Name {
				names = append(names, name)
				renames = append(renames, id)
			}
		}

		if ipRange, ok := r.Lookup(types.FieldIPRange); ok {
			if err := v.checkIPRange(ipRange); err != nil {
				return err
			}
		}
		if err := checkScalars(r); err != nil {
			return err
		}

		if r.Has(types.FieldChecks) {
			checks, err := submittedChecks(r)
			if err != nil {
				return err
			}
			if len(checks) == 0 {
				return types.ErrRuleWithoutChecks
			}
			if err := checkOwnership(checks, current); err != nil {
				return err
			}
			if err := ValidateChecks(checks, defaults); err != nil {
				return err
			}
		}

		if id, ok := proxyRef(r); ok {
			proxies = append(proxies, id)
		}
	}

	renamed := make(map[string]types.RuleID, len(names))
	for i, name := range names {
		if _, dup := renamed[name]; dup {
			return types.ParameterError(types.MsgRuleExists, name)
		}
		renamed[name] = renames[i]
	}

	if len(names) > 0 {
		taken, err := v.lookup.RulesByName(ctx, names)
		if err != nil {
			return fmt.Errorf("failed to look up rule names: %w", err)
		}
		for _, t := range taken {
			if owner, ok := renamed[t.Name]; ok && owner != t.ID {
				return types.ParameterError(types.MsgRuleExists, t.Name)
			}
		}
	}

	return v.checkProxies(ctx, proxies)
}

// requireName returns the rule name or the error for a missing, malformed
// or empty one.
func (v *Validator) requireName(r types.Object) (string, error) {
	raw, ok := r.Lookup(types.FieldName)
	if !ok {
		return "", types.ParameterError(types.MsgFieldRequired, types.FieldName)
	}
	if payload.IsComposite(raw) {
		return "", types.ErrIncorrectArguments
	}
	if payload.IsBlank(raw) {
		return "", types.ParameterError(types.MsgCannotBeEmpty, types.FieldName)
	}
	name, err := payload.Text(raw)
	if err != nil {
		return "", types.ErrIncorrectArguments
	}
	return name, nil
}

func (v *Validator) checkIPRange(raw any) error {
	if payload.IsComposite(raw) {
		return types.ErrIncorrectArguments
	}
	s, err := payload.Text(raw)
	if err != nil {
		return types.ErrIncorrectArguments
	}
	if err := v.ipRange.Validate(s); err != nil {
		return types.ParameterError("%s", err.Error())
	}
	return nil
}

func (v *Validator) checkProxies(ctx context.Context, ids []types.ProxyID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := v.lookup.ExistingProxies(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to look up proxies: %w", err)
	}
	for _, id := range ids {
		if !found[id] {
			return types.ErrIncorrectProxy
		}
	}
	return nil
}

// checkScalars validates delay, status and proxy_hostid when present.
func checkScalars(r types.Object) error {
	if raw, ok := r.Lookup(types.FieldProxyID); ok {
		if _, err := payload.Text(raw); err != nil {
			return types.ErrIncorrectArguments
		}
	}
	if raw, ok := r.Lookup(types.FieldDelay); ok {
		if payload.IsComposite(raw) {
			return types.ErrIncorrectArguments
		}
		n, err := payload.Int(raw)
		if err != nil || n < types.MinDelay || n > types.MaxDelay {
			return types.ParameterError(types.MsgIncorrectValue, payload.Canonical(raw), types.FieldDelay)
		}
	}
	if raw, ok := r.Lookup(types.FieldStatus); ok {
		if payload.IsComposite(raw) {
			return types.ErrIncorrectArguments
		}
		n, err := payload.Int(raw)
		if err != nil || !types.RuleStatus(n).Valid() {
			return types.ParameterError(types.MsgIncorrectValue, payload.Canonical(raw), types.FieldStatus)
		}
	}
	return nil
}

// submittedChecks extracts the dchecks list. A present but non-list value
// is malformed input.
func submittedChecks(r types.Object) ([]types.Object, error) {
	raw, ok := r.Lookup(types.FieldChecks)
	if !ok {
		return nil, nil
	}
	checks, err := payload.Objects(raw)
	if err != nil {
		return nil, types.ErrIncorrectArguments
	}
	return checks, nil
}

// checkOwnership makes sure every submitted dcheckid belongs to the rule
// being updated and appears at most once.
func checkOwnership(checks []types.Object, rule *types.Rule) error {
	owned := make(map[types.CheckID]bool, len(rule.Checks))
	for _, c := range rule.Checks {
		owned[c.ID] = true
	}
	seen := make(map[types.CheckID]bool, len(checks))
	for _, c := range checks {
		id, ok := payload.CheckID(c)
		if !ok {
			continue
		}
		if !owned[id] {
			return types.ErrNoPermissions
		}
		if seen[id] {
			return types.ParameterError(types.MsgIncorrectValue, id, types.FieldCheckID)
		}
		seen[id] = true
	}
	return nil
}

// proxyRef returns the delegated agent a rule refers to. Blank and "0"
// mean "scan from the server itself".
func proxyRef(r types.Object) (types.ProxyID, bool) {
	raw, ok := r.Lookup(types.FieldProxyID)
	if !ok || payload.IsBlank(raw) || payload.IsComposite(raw) {
		return "", false
	}
	s := payload.Canonical(raw)
	if s == "" || s == "0" {
		return "", false
	}
	return types.ProxyID(s), true
}
