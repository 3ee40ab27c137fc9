package types

// Actor is the caller of a batch operation as established by authentication.
type Actor struct {
	ID         string
	Capability Capability
}

// RuleQuery selects discovery rules on the read path and for permission
// counts. Empty slices mean "no restriction". Capability and Editable scope
// the query the same way for every caller, so a count computed with the
// same scope doubles as an existence and permission check.
type RuleQuery struct {
	RuleIDs  []RuleID
	HostIDs  []HostID
	Names    []string
	Statuses []RuleStatus
	ProxyIDs []ProxyID
	IPRanges []string

	// Search is a case-insensitive substring match on name.
	Search string

	SortField string // "druleid" or "name"
	SortDesc  bool
	Limit     int

	Capability Capability
	Editable   bool
}

// Visible reports whether the scope admits any rule at all.
func (q RuleQuery) Visible() bool {
	if q.Editable {
		return q.Capability.CanWrite()
	}
	return q.Capability.CanRead()
}
