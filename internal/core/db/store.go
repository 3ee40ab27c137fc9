package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/netkeeper/internal/drules"
	"github.com/solatis/netkeeper/internal/types"
)

// checkDefaults mirrors the column defaults of the dchecks table in
// migrations/*/001_initial_schema.sql.
var checkDefaults = types.Object{
	types.FieldType:           int(types.CheckSSH),
	types.FieldKey:            "",
	types.FieldSNMPCommunity:  "",
	types.FieldPorts:          "0",
	types.FieldSecurityName:   "",
	types.FieldSecurityLevel:  int(types.NoAuthNoPriv),
	types.FieldAuthPassphrase: "",
	types.FieldPrivPassphrase: "",
	types.FieldUniq:           0,
	types.FieldAuthProtocol:   int(types.AuthMD5),
	types.FieldPrivProtocol:   int(types.PrivDES),
	types.FieldContextName:    "",
}

// Store is the SQL implementation of drules.Store.
type Store struct {
	db      *sqlx.DB
	queries *Queries
}

var _ drules.Store = (*Store)(nil)

// NewStore wraps an open, migrated database.
func NewStore(db *sqlx.DB) (*Store, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, queries: queries}, nil
}

// Queries exposes the named queries, used by the authenticator.
func (s *Store) Queries() *Queries {
	return s.queries
}

// CheckDefaults returns a copy of the dchecks column defaults.
func (s *Store) CheckDefaults() types.Object {
	return checkDefaults.Clone()
}

// RulesByIDs implements drules.Lookup.
func (s *Store) RulesByIDs(ctx context.Context, q types.RuleQuery, withChecks bool) (map[types.RuleID]*types.Rule, error) {
	rules, err := s.SelectRules(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make(map[types.RuleID]*types.Rule, len(rules))
	ids := make([]types.RuleID, 0, len(rules))
	for i := range rules {
		out[rules[i].ID] = &rules[i]
		ids = append(ids, rules[i].ID)
	}

	if withChecks && len(ids) > 0 {
		checks, err := s.ChecksOfRules(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, c := range checks {
			if r, ok := out[c.RuleID]; ok {
				r.Checks = append(r.Checks, c)
			}
		}
	}
	return out, nil
}

// RulesByName implements drules.Lookup.
func (s *Store) RulesByName(ctx context.Context, names []string) ([]types.Rule, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var rules []types.Rule
	if err := s.queries.Select(ctx, "select-rules-by-name", &rules, names); err != nil {
		return nil, fmt.Errorf("failed to select rules by name: %w", err)
	}
	return rules, nil
}

// ExistingProxies implements drules.Lookup.
func (s *Store) ExistingProxies(ctx context.Context, ids []types.ProxyID) (map[types.ProxyID]bool, error) {
	found := make(map[types.ProxyID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []string
	if err := s.queries.Select(ctx, "select-existing-proxies", &rows, strs(ids)); err != nil {
		return nil, fmt.Errorf("failed to select proxies: %w", err)
	}
	for _, id := range rows {
		found[types.ProxyID(id)] = true
	}
	return found, nil
}

// ChecksOfRules implements drules.Reader.
func (s *Store) ChecksOfRules(ctx context.Context, ids []types.RuleID) ([]types.Check, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var checks []types.Check
	if err := s.queries.Select(ctx, "select-checks-of-rules", &checks, strs(ids)); err != nil {
		return nil, fmt.Errorf("failed to select checks: %w", err)
	}
	return checks, nil
}

// HostsOfRules implements drules.Reader.
func (s *Store) HostsOfRules(ctx context.Context, ids []types.RuleID) ([]types.Host, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var hosts []types.Host
	if err := s.queries.Select(ctx, "select-hosts-of-rules", &hosts, strs(ids)); err != nil {
		return nil, fmt.Errorf("failed to select hosts: %w", err)
	}
	return hosts, nil
}

// CountChecksByRule implements drules.Reader.
func (s *Store) CountChecksByRule(ctx context.Context, ids []types.RuleID) (map[types.RuleID]int, error) {
	return s.countByRule(ctx, "count-checks-by-rule", ids)
}

// CountHostsByRule implements drules.Reader.
func (s *Store) CountHostsByRule(ctx context.Context, ids []types.RuleID) (map[types.RuleID]int, error) {
	return s.countByRule(ctx, "count-hosts-by-rule", ids)
}

func (s *Store) countByRule(ctx context.Context, query string, ids []types.RuleID) (map[types.RuleID]int, error) {
	out := make(map[types.RuleID]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		RuleID types.RuleID `db:"druleid"`
		N      int          `db:"n"`
	}
	if err := s.queries.Select(ctx, query, &rows, strs(ids)); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", query, err)
	}
	for _, r := range rows {
		out[r.RuleID] = r.N
	}
	return out, nil
}

// InTx implements drules.Store. The transaction is rolled back when fn
// fails or panics.
func (s *Store) InTx(ctx context.Context, fn func(tx drules.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&storeTx{q: s.queries.WithTx(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// strs converts typed ids for driver binding.
func strs[T ~string](ids []T) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
