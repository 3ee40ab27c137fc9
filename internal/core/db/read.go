package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/netkeeper/internal/types"
)

const ruleColumns = "r.druleid, r.proxy_hostid, r.name, r.iprange, r.delay, r.nextcheck, r.status"

// sortColumns whitelists the columns rules may be ordered by.
var sortColumns = map[string]string{
	types.FieldRuleID: "r.druleid",
	types.FieldName:   "r.name",
}

// SelectRules implements drules.Reader. The capability scope is applied
// before any SQL runs: a scope that admits nothing returns no rows.
func (s *Store) SelectRules(ctx context.Context, q types.RuleQuery) ([]types.Rule, error) {
	if !q.Visible() {
		return nil, nil
	}

	where, args := ruleFilter(q)
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(ruleColumns)
	b.WriteString(" FROM drules r")
	b.WriteString(where)

	order := "r.druleid"
	if col, ok := sortColumns[q.SortField]; ok {
		order = col
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(order)
	if q.SortDesc {
		b.WriteString(" DESC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}

	query, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule query: %w", err)
	}

	var rules []types.Rule
	if err := s.db.SelectContext(ctx, &rules, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select rules: %w", err)
	}
	return rules, nil
}

// CountRules implements drules.Lookup.
func (s *Store) CountRules(ctx context.Context, q types.RuleQuery) (int, error) {
	if !q.Visible() {
		return 0, nil
	}

	where, args := ruleFilter(q)
	query, args, err := sqlx.In("SELECT COUNT(*) FROM drules r"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return n, nil
}

// ruleFilter renders the WHERE clause of q with ? placeholders. Slice
// arguments are left for sqlx.In to expand.
func ruleFilter(q types.RuleQuery) (string, []any) {
	var conds []string
	var args []any

	if len(q.RuleIDs) > 0 {
		conds = append(conds, "r.druleid IN (?)")
		args = append(args, strs(q.RuleIDs))
	}
	if len(q.HostIDs) > 0 {
		conds = append(conds, "r.druleid IN (SELECT h.druleid FROM dhosts h WHERE h.dhostid IN (?))")
		args = append(args, strs(q.HostIDs))
	}
	if len(q.Names) > 0 {
		conds = append(conds, "r.name IN (?)")
		args = append(args, q.Names)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]int, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = int(st)
		}
		conds = append(conds, "r.status IN (?)")
		args = append(args, statuses)
	}
	if len(q.ProxyIDs) > 0 {
		conds = append(conds, "r.proxy_hostid IN (?)")
		args = append(args, strs(q.ProxyIDs))
	}
	if len(q.IPRanges) > 0 {
		conds = append(conds, "r.iprange IN (?)")
		args = append(args, q.IPRanges)
	}
	if q.Search != "" {
		conds = append(conds, `LOWER(r.name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Search))+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
