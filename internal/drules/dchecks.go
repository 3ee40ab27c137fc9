package drules

import (
	"github.com/solatis/netkeeper/internal/payload"
	"github.com/solatis/netkeeper/internal/types"
	"github.com/solatis/netkeeper/internal/validate"
)

// ValidateChecks validates the check set of one rule. Checks are examined in
// order and the first failure is returned. Once every check passes on its
// own, the set is checked for duplicates and for more than one unique check.
func ValidateChecks(checks []types.Object, defaults types.Object) error {
	uniq := 0
	for _, c := range checks {
		if isUnique(c) {
			if !checkType(c).CanBeUnique() {
				return types.ErrUniqueCheckType
			}
			uniq++
		}
		if err := validateCheck(c); err != nil {
			return err
		}
	}

	if err := RejectDuplicates(checks, defaults); err != nil {
		return err
	}
	if uniq > 1 {
		return types.ErrTooManyUnique
	}
	return nil
}

func validateCheck(c types.Object) error {
	if v, ok := c.Lookup(types.FieldPorts); ok {
		s, err := payload.Text(v)
		if err != nil || !validate.ValidPortList(s) {
			return types.ErrIncorrectPortRange
		}
	}

	v, ok := c.Lookup(types.FieldType)
	if !ok {
		return types.ParameterError(types.MsgFieldMandatory, types.FieldType)
	}
	n, err := payload.Int(v)
	if err != nil || !types.CheckType(n).Valid() {
		return types.ParameterError(types.MsgIncorrectField, types.FieldType)
	}

	switch typ := types.CheckType(n); typ {
	case types.CheckAgent:
		if err := validateAgentKey(c); err != nil {
			return err
		}
	case types.CheckSNMPv1, types.CheckSNMPv2c:
		if isBlankField(c, types.FieldSNMPCommunity) {
			return types.ErrIncorrectCommunity
		}
		if isBlankField(c, types.FieldKey) {
			return types.ErrIncorrectOID
		}
	case types.CheckSNMPv3:
		if isBlankField(c, types.FieldKey) {
			return types.ErrIncorrectOID
		}
	}

	if err := validateSecurity(c); err != nil {
		return err
	}
	return checkFieldTypes(c)
}

// Text columns a check may carry. ports is parsed on its own.
var checkTextFields = []string{
	types.FieldCheckID,
	types.FieldKey,
	types.FieldSNMPCommunity,
	types.FieldSecurityName,
	types.FieldAuthPassphrase,
	types.FieldPrivPassphrase,
	types.FieldContextName,
}

// Integer columns not already covered by the type and level checks.
var checkIntFields = []string{
	types.FieldUniq,
	types.FieldAuthProtocol,
	types.FieldPrivProtocol,
}

// checkFieldTypes rejects values that cannot be stored in their column,
// including fields the check type or security level otherwise ignores.
func checkFieldTypes(c types.Object) error {
	for _, f := range checkTextFields {
		v, ok := c.Lookup(f)
		if !ok {
			continue
		}
		if _, err := payload.Text(v); err != nil {
			return types.ErrIncorrectArguments
		}
	}
	for _, f := range checkIntFields {
		v, ok := c.Lookup(f)
		if !ok || v == nil {
			continue
		}
		if payload.IsComposite(v) {
			return types.ErrIncorrectArguments
		}
		if _, err := payload.Int(v); err != nil {
			return types.ParameterError(types.MsgIncorrectValue, payload.Canonical(v), f)
		}
	}
	return nil
}

func validateAgentKey(c types.Object) error {
	v, ok := c.Lookup(types.FieldKey)
	if !ok || v == nil || payload.IsComposite(v) {
		return types.ErrIncorrectKey
	}
	key, err := payload.Text(v)
	if err != nil {
		return types.ErrIncorrectKey
	}
	if err := validate.ParseItemKey(key); err != nil {
		return types.ParameterError(types.MsgInvalidItemKey, key, err.Error())
	}
	return nil
}

// validateSecurity checks the SNMPv3 protocol fields required by the
// declared security level. The level is validated whenever it is present,
// whatever the check type.
func validateSecurity(c types.Object) error {
	v, ok := c.Lookup(types.FieldSecurityLevel)
	if !ok || v == nil {
		return nil
	}
	n, err := payload.Int(v)
	if err != nil {
		return types.ParameterError(types.MsgIncorrectValue, payload.Canonical(v), types.FieldSecurityLevel)
	}

	switch level := types.SecurityLevel(n); level {
	case types.NoAuthNoPriv:
		return nil
	case types.AuthNoPriv, types.AuthPriv:
		p, ok := protocolField(c, types.FieldAuthProtocol)
		if !ok || !types.AuthProtocol(p).Valid() {
			return types.ParameterError(types.MsgIncorrectValue, payload.Canonical(c[types.FieldAuthProtocol]), types.FieldAuthProtocol)
		}
		if level == types.AuthNoPriv {
			return nil
		}
		p, ok = protocolField(c, types.FieldPrivProtocol)
		if !ok || !types.PrivProtocol(p).Valid() {
			return types.ParameterError(types.MsgIncorrectValue, payload.Canonical(c[types.FieldPrivProtocol]), types.FieldPrivProtocol)
		}
		return nil
	default:
		return types.ParameterError(types.MsgIncorrectValue, n, types.FieldSecurityLevel)
	}
}

func protocolField(c types.Object, field string) (int64, bool) {
	v, ok := c.Lookup(field)
	if !ok {
		return 0, false
	}
	n, err := payload.Int(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isUnique(c types.Object) bool {
	v, ok := c.Lookup(types.FieldUniq)
	if !ok {
		return false
	}
	n, err := payload.Int(v)
	return err == nil && n == 1
}

// checkType returns the declared type, or -1 when absent or malformed so the
// result never passes CanBeUnique.
func checkType(c types.Object) types.CheckType {
	v, ok := c.Lookup(types.FieldType)
	if !ok {
		return -1
	}
	n, err := payload.Int(v)
	if err != nil {
		return -1
	}
	return types.CheckType(n)
}

func isBlankField(c types.Object, field string) bool {
	v, ok := c.Lookup(field)
	return !ok || payload.IsBlank(v) || payload.IsComposite(v)
}
