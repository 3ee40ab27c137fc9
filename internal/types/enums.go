package types

// CheckType is the probe a discovery check performs. Values are part of the
// stored schema and must not be renumbered.
type CheckType int

const (
	CheckSSH      CheckType = 0
	CheckLDAP     CheckType = 1
	CheckSMTP     CheckType = 2
	CheckFTP      CheckType = 3
	CheckHTTP     CheckType = 4
	CheckPOP      CheckType = 5
	CheckNNTP     CheckType = 6
	CheckIMAP     CheckType = 7
	CheckTCP      CheckType = 8
	CheckAgent    CheckType = 9
	CheckSNMPv1   CheckType = 10
	CheckSNMPv2c  CheckType = 11
	CheckICMPPing CheckType = 12
	CheckSNMPv3   CheckType = 13
	CheckHTTPS    CheckType = 14
	CheckTelnet   CheckType = 15
)

var checkTypeNames = map[CheckType]string{
	CheckSSH:      "ssh",
	CheckLDAP:     "ldap",
	CheckSMTP:     "smtp",
	CheckFTP:      "ftp",
	CheckHTTP:     "http",
	CheckPOP:      "pop",
	CheckNNTP:     "nntp",
	CheckIMAP:     "imap",
	CheckTCP:      "tcp",
	CheckAgent:    "agent",
	CheckSNMPv1:   "snmpv1",
	CheckSNMPv2c:  "snmpv2c",
	CheckICMPPing: "icmpping",
	CheckSNMPv3:   "snmpv3",
	CheckHTTPS:    "https",
	CheckTelnet:   "telnet",
}

// Valid reports whether t is a member of the probe enumeration.
func (t CheckType) Valid() bool {
	_, ok := checkTypeNames[t]
	return ok
}

// CanBeUnique reports whether checks of this type may carry the uniqueness flag.
func (t CheckType) CanBeUnique() bool {
	switch t {
	case CheckAgent, CheckSNMPv1, CheckSNMPv2c, CheckSNMPv3:
		return true
	}
	return false
}

func (t CheckType) String() string {
	if name, ok := checkTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// RuleStatus is the enabled/disabled state of a discovery rule.
type RuleStatus int

const (
	RuleActive   RuleStatus = 0
	RuleDisabled RuleStatus = 1
)

// Valid reports whether s is a known rule status.
func (s RuleStatus) Valid() bool {
	return s == RuleActive || s == RuleDisabled
}

// SecurityLevel is the SNMPv3 security level of a check.
type SecurityLevel int

const (
	NoAuthNoPriv SecurityLevel = 0
	AuthNoPriv   SecurityLevel = 1
	AuthPriv     SecurityLevel = 2
)

// AuthProtocol is the SNMPv3 authentication protocol.
type AuthProtocol int

const (
	AuthMD5 AuthProtocol = 0
	AuthSHA AuthProtocol = 1
)

// Valid reports whether p is MD5 or SHA.
func (p AuthProtocol) Valid() bool {
	return p == AuthMD5 || p == AuthSHA
}

// PrivProtocol is the SNMPv3 privacy protocol.
type PrivProtocol int

const (
	PrivDES PrivProtocol = 0
	PrivAES PrivProtocol = 1
)

// Valid reports whether p is DES or AES.
func (p PrivProtocol) Valid() bool {
	return p == PrivDES || p == PrivAES
}

// ConditionType tells what an action condition's value refers to.
type ConditionType int

const (
	ConditionDiscoveryRule  ConditionType = 18
	ConditionDiscoveryCheck ConditionType = 19
)

// ActionStatus is the enabled/disabled state of an action.
type ActionStatus int

const (
	ActionEnabled  ActionStatus = 0
	ActionDisabled ActionStatus = 1
)

// Capability is what the current actor may do with discovery rules.
// Values match the stored api_keys.user_type column.
type Capability int

const (
	ReadOnlyUser Capability = 1
	Admin        Capability = 2
	SuperAdmin   Capability = 3
)

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	return c >= ReadOnlyUser && c <= SuperAdmin
}

// CanRead reports whether rules are visible to the actor at all.
func (c Capability) CanRead() bool {
	return c >= Admin
}

// CanWrite reports whether the actor may create, update or delete rules.
func (c Capability) CanWrite() bool {
	return c >= Admin
}

func (c Capability) String() string {
	switch c {
	case ReadOnlyUser:
		return "user"
	case Admin:
		return "admin"
	case SuperAdmin:
		return "super-admin"
	default:
		return "none"
	}
}
