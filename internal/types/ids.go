package types

import (
	"github.com/google/uuid"
)

// newID generates a UUIDv7 string.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewRuleID generates a UUIDv7 discovery rule identifier.
func NewRuleID() RuleID {
	return RuleID(newID())
}

// NewCheckID generates a UUIDv7 discovery check identifier.
func NewCheckID() CheckID {
	return CheckID(newID())
}

// NewProxyID generates a UUIDv7 proxy identifier.
func NewProxyID() ProxyID {
	return ProxyID(newID())
}

// NewActionID generates a UUIDv7 action identifier.
func NewActionID() ActionID {
	return ActionID(newID())
}

// NewConditionID generates a UUIDv7 condition identifier.
func NewConditionID() ConditionID {
	return ConditionID(newID())
}

// NewAuditID generates a UUIDv7 audit record identifier.
func NewAuditID() string {
	return newID()
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// ParseCheckID validates and converts a string to CheckID.
func ParseCheckID(s string) (CheckID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return CheckID(s), nil
}

// UniqueRuleIDs drops repeated ids while keeping first-seen order.
func UniqueRuleIDs(ids []RuleID) []RuleID {
	seen := make(map[RuleID]struct{}, len(ids))
	out := make([]RuleID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
