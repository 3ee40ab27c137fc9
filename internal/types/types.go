// Package types provides domain models shared across netkeeper components.
//
// Two shapes exist for every entity. Object is the loosely typed record a
// caller submits (key presence matters: an absent key and a zero value are
// different things during validation). Rule, Check and friends are the typed
// rows the store reads and writes. Conversion from Object to typed rows
// happens only after a batch has passed validation.
package types

// RuleID identifies a discovery rule (UUIDv7 string).
type RuleID string

// CheckID identifies a discovery check (UUIDv7 string).
type CheckID string

// ProxyID identifies a delegated scanning agent.
type ProxyID string

// ActionID identifies an action of the dependent rule engine.
type ActionID string

// ConditionID identifies a single action condition.
type ConditionID string

// HostID identifies a host found by a discovery rule.
type HostID string

// Object is one submitted record (a rule or a check) keyed by field name.
// Values are whatever the decoder produced: float64 from JSON and structpb,
// int from YAML, strings, bools, nested maps and slices.
type Object map[string]any

// Has reports whether key is present, regardless of its value.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Lookup returns the value stored under key and whether it was present.
func (o Object) Lookup(key string) (any, bool) {
	v, ok := o[key]
	return v, ok
}

// Clone returns a shallow copy so normalisation never mutates caller input.
func (o Object) Clone() Object {
	c := make(Object, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Field names shared between payloads, rows and SQL columns.
const (
	FieldRuleID    = "druleid"
	FieldProxyID   = "proxy_hostid"
	FieldName      = "name"
	FieldIPRange   = "iprange"
	FieldDelay     = "delay"
	FieldNextCheck = "nextcheck"
	FieldStatus    = "status"
	FieldChecks    = "dchecks"

	FieldCheckID        = "dcheckid"
	FieldType           = "type"
	FieldKey            = "key_"
	FieldSNMPCommunity  = "snmp_community"
	FieldPorts          = "ports"
	FieldSecurityName   = "snmpv3_securityname"
	FieldSecurityLevel  = "snmpv3_securitylevel"
	FieldAuthPassphrase = "snmpv3_authpassphrase"
	FieldPrivPassphrase = "snmpv3_privpassphrase"
	FieldAuthProtocol   = "snmpv3_authprotocol"
	FieldPrivProtocol   = "snmpv3_privprotocol"
	FieldContextName    = "snmpv3_contextname"
	FieldUniq           = "uniq"
)

// Limits applied by the rule validator.
const (
	// MinDelay and MaxDelay bound the scan interval in seconds (one week max).
	MinDelay = 1
	MaxDelay = 7 * 24 * 60 * 60

	// DefaultIPRangeLimit caps the number of addresses a single rule may scan.
	DefaultIPRangeLimit = 65536

	// DefaultDelay is the scan interval assigned when none is submitted.
	DefaultDelay = 3600
)
