// internal/types/rules.go
package types

import "database/sql"

/*
 * Persisted discovery records.
 *
 * Rule and Check mirror the drules and dchecks tables column for column so
 * sqlx can scan and bind them directly. Action, Condition and Host belong to
 * neighbouring domains; this service only reads hosts and prunes conditions.
 *
 * Checks carry their owning rule id. A check is never shared between rules.
 */

// Rule is one row of the drules table, optionally with its checks attached.
type Rule struct {
	ID        RuleID         `db:"druleid"`
	ProxyID   sql.NullString `db:"proxy_hostid"`
	Name      string         `db:"name"`
	IPRange   string         `db:"iprange"`
	Delay     int            `db:"delay"`
	NextCheck int64          `db:"nextcheck"`
	Status    RuleStatus     `db:"status"`

	Checks []Check `db:"-"`
}

// Check is one row of the dchecks table.
type Check struct {
	ID             CheckID       `db:"dcheckid"`
	RuleID         RuleID        `db:"druleid"`
	Type           CheckType     `db:"type"`
	Key            string        `db:"key_"`
	SNMPCommunity  string        `db:"snmp_community"`
	Ports          string        `db:"ports"`
	SecurityName   string        `db:"snmpv3_securityname"`
	SecurityLevel  SecurityLevel `db:"snmpv3_securitylevel"`
	AuthPassphrase string        `db:"snmpv3_authpassphrase"`
	PrivPassphrase string        `db:"snmpv3_privpassphrase"`
	AuthProtocol   AuthProtocol  `db:"snmpv3_authprotocol"`
	PrivProtocol   PrivProtocol  `db:"snmpv3_privprotocol"`
	ContextName    string        `db:"snmpv3_contextname"`
	Uniq           int           `db:"uniq"`
}

// Object renders the check as a payload record, used when a persisted check
// is compared with submitted ones.
func (c Check) Object() Object {
	return Object{
		FieldCheckID:        string(c.ID),
		FieldRuleID:         string(c.RuleID),
		FieldType:           int(c.Type),
		FieldKey:            c.Key,
		FieldSNMPCommunity:  c.SNMPCommunity,
		FieldPorts:          c.Ports,
		FieldSecurityName:   c.SecurityName,
		FieldSecurityLevel:  int(c.SecurityLevel),
		FieldAuthPassphrase: c.AuthPassphrase,
		FieldPrivPassphrase: c.PrivPassphrase,
		FieldAuthProtocol:   int(c.AuthProtocol),
		FieldPrivProtocol:   int(c.PrivProtocol),
		FieldContextName:    c.ContextName,
		FieldUniq:           c.Uniq,
	}
}

// Object renders the rule's scalar columns as a payload record.
func (r Rule) Object() Object {
	o := Object{
		FieldRuleID:    string(r.ID),
		FieldName:      r.Name,
		FieldIPRange:   r.IPRange,
		FieldDelay:     r.Delay,
		FieldNextCheck: r.NextCheck,
		FieldStatus:    int(r.Status),
		FieldProxyID:   nil,
	}
	if r.ProxyID.Valid {
		o[FieldProxyID] = r.ProxyID.String
	}
	return o
}

// Proxy is a delegated scanning agent a rule may be bound to.
type Proxy struct {
	ID   ProxyID `db:"proxyid"`
	Host string  `db:"host"`
}

// Action is an automation rule whose conditions may reference drules/dchecks.
type Action struct {
	ID     ActionID     `db:"actionid"`
	Name   string       `db:"name"`
	Status ActionStatus `db:"status"`
}

// Condition is one predicate of an action. Value holds a referenced id as a
// string when Type is ConditionDiscoveryRule or ConditionDiscoveryCheck.
type Condition struct {
	ID       ConditionID   `db:"conditionid"`
	ActionID ActionID      `db:"actionid"`
	Type     ConditionType `db:"conditiontype"`
	Operator int           `db:"operator"`
	Value    string        `db:"value"`
}

// Host is a host found by a discovery rule. Written by the scanner, read here.
type Host struct {
	ID       HostID `db:"dhostid"`
	RuleID   RuleID `db:"druleid"`
	Status   int    `db:"status"`
	LastUp   int64  `db:"lastup"`
	LastDown int64  `db:"lastdown"`
}
