// Package payload converts loosely typed submitted records into typed rows.
package payload

import (
	"database/sql"
	"fmt"

	"github.com/solatis/netkeeper/internal/types"
)

// Objects converts a decoded list into payload objects. Accepts the shapes
// produced by encoding/json, structpb.AsMap and yaml.v3. A non-list or a
// list element that is not an object fails.
func Objects(v any) ([]types.Object, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []types.Object:
		return list, nil
	case []map[string]any:
		out := make([]types.Object, len(list))
		for i, m := range list {
			out[i] = types.Object(m)
		}
		return out, nil
	case []any:
		out := make([]types.Object, 0, len(list))
		for i, item := range list {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, types.Object(m))
			case types.Object:
				out = append(out, m)
			default:
				return nil, fmt.Errorf("element %d: %w", i, ErrCoercionFailed)
			}
		}
		return out, nil
	default:
		return nil, ErrCoercionFailed
	}
}

// MergeDefaults returns a copy of o with every absent field taken from defaults.
func MergeDefaults(o, defaults types.Object) types.Object {
	merged := o.Clone()
	for k, v := range defaults {
		if !merged.Has(k) {
			merged[k] = v
		}
	}
	return merged
}

// BuildRule converts a validated rule payload into a typed row. Absent
// fields keep the column defaults (delay 3600, status active, no proxy).
func BuildRule(o types.Object) (types.Rule, error) {
	r := types.Rule{
		Delay:  types.DefaultDelay,
		Status: types.RuleActive,
	}
	if err := ApplyRulePatch(&r, o); err != nil {
		return types.Rule{}, err
	}
	return r, nil
}

// ApplyRulePatch overwrites the columns present in o. Unknown keys, the id
// and the checks list are ignored.
func ApplyRulePatch(r *types.Rule, o types.Object) error {
	var err error
	if v, ok := o.Lookup(types.FieldName); ok {
		if r.Name, err = Text(v); err != nil {
			return fieldError(types.FieldName, err)
		}
	}
	if v, ok := o.Lookup(types.FieldIPRange); ok {
		if r.IPRange, err = Text(v); err != nil {
			return fieldError(types.FieldIPRange, err)
		}
	}
	if v, ok := o.Lookup(types.FieldDelay); ok {
		n, err := Int(v)
		if err != nil {
			return fieldError(types.FieldDelay, err)
		}
		r.Delay = int(n)
	}
	if v, ok := o.Lookup(types.FieldStatus); ok {
		n, err := Int(v)
		if err != nil {
			return fieldError(types.FieldStatus, err)
		}
		r.Status = types.RuleStatus(n)
	}
	if v, ok := o.Lookup(types.FieldProxyID); ok {
		if IsBlank(v) || Canonical(v) == "0" {
			r.ProxyID = sql.NullString{}
		} else {
			id, err := Text(v)
			if err != nil {
				return fieldError(types.FieldProxyID, err)
			}
			r.ProxyID = sql.NullString{String: id, Valid: true}
		}
	}
	return nil
}

// BuildCheck converts a validated check payload into a typed row, filling
// absent fields from defaults first.
func BuildCheck(o, defaults types.Object) (types.Check, error) {
	var c types.Check
	if err := ApplyCheckPatch(&c, MergeDefaults(o, defaults)); err != nil {
		return types.Check{}, err
	}
	return c, nil
}

// ApplyCheckPatch overwrites the check columns present in o.
func ApplyCheckPatch(c *types.Check, o types.Object) error {
	text := []struct {
		field string
		dest  *string
	}{
		{types.FieldKey, &c.Key},
		{types.FieldSNMPCommunity, &c.SNMPCommunity},
		{types.FieldPorts, &c.Ports},
		{types.FieldSecurityName, &c.SecurityName},
		{types.FieldAuthPassphrase, &c.AuthPassphrase},
		{types.FieldPrivPassphrase, &c.PrivPassphrase},
		{types.FieldContextName, &c.ContextName},
	}
	for _, f := range text {
		v, ok := o.Lookup(f.field)
		if !ok {
			continue
		}
		s, err := Text(v)
		if err != nil {
			return fieldError(f.field, err)
		}
		*f.dest = s
	}

	ints := []struct {
		field string
		set   func(int64)
	}{
		{types.FieldType, func(n int64) { c.Type = types.CheckType(n) }},
		{types.FieldSecurityLevel, func(n int64) { c.SecurityLevel = types.SecurityLevel(n) }},
		{types.FieldAuthProtocol, func(n int64) { c.AuthProtocol = types.AuthProtocol(n) }},
		{types.FieldPrivProtocol, func(n int64) { c.PrivProtocol = types.PrivProtocol(n) }},
		{types.FieldUniq, func(n int64) { c.Uniq = int(n) }},
	}
	for _, f := range ints {
		v, ok := o.Lookup(f.field)
		if !ok || v == nil {
			continue
		}
		n, err := Int(v)
		if err != nil {
			return fieldError(f.field, err)
		}
		f.set(n)
	}

	if v, ok := o.Lookup(types.FieldCheckID); ok && !IsBlank(v) {
		id, err := Text(v)
		if err != nil {
			return fieldError(types.FieldCheckID, err)
		}
		c.ID = types.CheckID(id)
	}
	return nil
}

// CheckID returns the persisted id a submitted check refers to, if any.
func CheckID(o types.Object) (types.CheckID, bool) {
	v, ok := o.Lookup(types.FieldCheckID)
	if !ok || IsBlank(v) {
		return "", false
	}
	s, err := Text(v)
	if err != nil || s == "" {
		return "", false
	}
	return types.CheckID(s), true
}

// RuleID returns the rule id a patch refers to, if any.
func RuleID(o types.Object) (types.RuleID, bool) {
	v, ok := o.Lookup(types.FieldRuleID)
	if !ok || IsBlank(v) {
		return "", false
	}
	s, err := Text(v)
	if err != nil || s == "" {
		return "", false
	}
	return types.RuleID(s), true
}

func fieldError(field string, err error) error {
	return fmt.Errorf("field %q: %w", field, err)
}
