package drules

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/solatis/netkeeper/internal/types"
)

// OutputMode controls how related records are attached to Get results.
type OutputMode int

const (
	OutputNone   OutputMode = iota
	OutputExtend            // attach the related records
	OutputCount             // attach only the number of related records
)

// ParseOutputMode maps the wire values "", "extend" and "count".
func ParseOutputMode(param, s string) (OutputMode, error) {
	switch strings.ToLower(s) {
	case "":
		return OutputNone, nil
	case "extend":
		return OutputExtend, nil
	case "count":
		return OutputCount, nil
	default:
		return OutputNone, types.ParameterError(types.MsgUnknownOutputMode, s, param)
	}
}

// GetOptions selects rules and the related records to expand.
type GetOptions struct {
	RuleIDs []types.RuleID
	HostIDs []types.HostID

	// Filter matches columns exactly. Supported keys: name, status,
	// proxy_hostid, iprange. Any other key is a parameter error.
	Filter map[string][]string

	// Search matches name as a case-insensitive substring.
	Search string

	Editable     bool
	SelectChecks OutputMode
	SelectHosts  OutputMode

	SortField string
	SortOrder string // "ASC" or "DESC"
	Limit     int

	// LimitSelects caps how many related records are attached per rule.
	LimitSelects int

	// CountOutput returns only the number of matching rules.
	CountOutput bool
}

// RuleView is one Get result row.
type RuleView struct {
	types.Rule
	Hosts      []types.Host
	CheckCount int
	HostCount  int
}

// GetResult holds either Count or Rules, depending on CountOutput.
type GetResult struct {
	Count int
	Rules []RuleView
}

var sortFields = map[string]bool{
	types.FieldRuleID: true,
	types.FieldName:   true,
}

// Get reads rules visible to the actor. A read-only actor gets an empty
// result rather than an error.
func (s *Service) Get(ctx context.Context, actor types.Actor, opts GetOptions) (*GetResult, error) {
	q, err := buildQuery(actor, opts)
	if err != nil {
		return nil, err
	}
	if !q.Visible() {
		return &GetResult{}, nil
	}

	if opts.CountOutput {
		n, err := s.store.CountRules(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to count rules: %w", err)
		}
		return &GetResult{Count: n}, nil
	}

	rules, err := s.store.SelectRules(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to select rules: %w", err)
	}
	views := make([]RuleView, len(rules))
	ids := make([]types.RuleID, len(rules))
	index := make(map[types.RuleID]int, len(rules))
	for i, r := range rules {
		views[i] = RuleView{Rule: r}
		ids[i] = r.ID
		index[r.ID] = i
	}
	if len(ids) == 0 {
		return &GetResult{Rules: views}, nil
	}

	switch opts.SelectChecks {
	case OutputExtend:
		checks, err := s.store.ChecksOfRules(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to select checks: %w", err)
		}
		for _, c := range checks {
			v := &views[index[c.RuleID]]
			if opts.LimitSelects > 0 && len(v.Checks) >= opts.LimitSelects {
				continue
			}
			v.Checks = append(v.Checks, c)
		}
	case OutputCount:
		counts, err := s.store.CountChecksByRule(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to count checks: %w", err)
		}
		for id, n := range counts {
			if i, ok := index[id]; ok {
				views[i].CheckCount = n
			}
		}
	}

	switch opts.SelectHosts {
	case OutputExtend:
		hosts, err := s.store.HostsOfRules(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to select hosts: %w", err)
		}
		for _, h := range hosts {
			v := &views[index[h.RuleID]]
			if opts.LimitSelects > 0 && len(v.Hosts) >= opts.LimitSelects {
				continue
			}
			v.Hosts = append(v.Hosts, h)
		}
	case OutputCount:
		counts, err := s.store.CountHostsByRule(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to count hosts: %w", err)
		}
		for id, n := range counts {
			if i, ok := index[id]; ok {
				views[i].HostCount = n
			}
		}
	}

	return &GetResult{Rules: views}, nil
}

func buildQuery(actor types.Actor, opts GetOptions) (types.RuleQuery, error) {
	q := types.RuleQuery{
		RuleIDs:    opts.RuleIDs,
		HostIDs:    opts.HostIDs,
		Search:     opts.Search,
		Limit:      opts.Limit,
		Capability: actor.Capability,
		Editable:   opts.Editable,
	}

	if opts.SortField != "" {
		if !sortFields[opts.SortField] {
			return q, types.ParameterError(types.MsgUnknownSortField, opts.SortField)
		}
		q.SortField = opts.SortField
	}
	switch strings.ToUpper(opts.SortOrder) {
	case "", "ASC":
	case "DESC":
		q.SortDesc = true
	default:
		return q, types.ParameterError(types.MsgUnknownOutputMode, opts.SortOrder, "sortorder")
	}

	for _, key := range slices.Sorted(maps.Keys(opts.Filter)) {
		values := opts.Filter[key]
		switch key {
		case types.FieldName:
			q.Names = append(q.Names, values...)
		case types.FieldIPRange:
			q.IPRanges = append(q.IPRanges, values...)
		case types.FieldProxyID:
			for _, v := range values {
				q.ProxyIDs = append(q.ProxyIDs, types.ProxyID(v))
			}
		case types.FieldStatus:
			for _, v := range values {
				switch v {
				case "0":
					q.Statuses = append(q.Statuses, types.RuleActive)
				case "1":
					q.Statuses = append(q.Statuses, types.RuleDisabled)
				default:
					return q, types.ParameterError(types.MsgIncorrectValue, v, types.FieldStatus)
				}
			}
		default:
			return q, types.ParameterError(types.MsgUnknownOutputMode, key, "filter")
		}
	}
	return q, nil
}
