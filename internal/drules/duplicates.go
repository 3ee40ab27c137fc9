package drules

import (
	"github.com/solatis/netkeeper/internal/payload"
	"github.com/solatis/netkeeper/internal/types"
)

// ignoredFields never take part in duplicate comparison. Two checks that
// differ only in the unique flag probe the same thing. dcheckid stays: two
// resubmitted checks with different ids are distinct rows, and a new check
// without an id is compared on its other fields only.
var ignoredFields = []string{
	types.FieldRuleID,
	types.FieldUniq,
}

// NormalizeCheck returns the comparable form of a submitted check.
//
// A missing security level means no-auth/no-priv. Fields that the level
// makes irrelevant are forced to their defaults so that two checks which
// only differ in ignored credentials compare equal. Absent fields are then
// filled from defaults.
func NormalizeCheck(o, defaults types.Object) types.Object {
	c := o.Clone()

	level, ok := c.Lookup(types.FieldSecurityLevel)
	if !ok || level == nil {
		c[types.FieldSecurityLevel] = int(types.NoAuthNoPriv)
	}

	switch payload.Canonical(c[types.FieldSecurityLevel]) {
	case "0":
		c[types.FieldAuthProtocol] = int(types.AuthMD5)
		c[types.FieldPrivProtocol] = int(types.PrivDES)
		c[types.FieldAuthPassphrase] = ""
		c[types.FieldPrivPassphrase] = ""
	case "1":
		c[types.FieldPrivProtocol] = int(types.PrivDES)
		c[types.FieldPrivPassphrase] = ""
	}

	c = payload.MergeDefaults(c, defaults)
	for _, f := range ignoredFields {
		delete(c, f)
	}
	return c
}

// SameCheck reports whether two normalised checks agree on every field
// present in both.
func SameCheck(a, b types.Object) bool {
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		if payload.Canonical(av) != payload.Canonical(bv) {
			return false
		}
	}
	return true
}

// RejectDuplicates fails with ErrDuplicateChecks when any two checks of the
// set are equal after normalisation. Rules carry a handful of checks, so the
// pairwise scan is fine.
func RejectDuplicates(checks []types.Object, defaults types.Object) error {
	normalized := make([]types.Object, len(checks))
	for i, c := range checks {
		normalized[i] = NormalizeCheck(c, defaults)
	}

	for i := 1; i < len(normalized); i++ {
		for j := 0; j < i; j++ {
			if SameCheck(normalized[i], normalized[j]) {
				return types.ErrDuplicateChecks
			}
		}
	}
	return nil
}
