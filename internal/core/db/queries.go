package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// Queries runs named SQL queries loaded from the embedded .sql files against
// a database or a transaction.
//
// Queries are written with ? placeholders. Slice arguments expand through
// sqlx.In, so "WHERE id IN (?)" takes a whole id list, and the result is
// rebound for the driver ($1, $2 on PostgreSQL).
type Queries struct {
	dot *dotsql.DotSql
	ext sqlx.ExtContext
}

// LoadQueries parses every embedded query file. Names are unique across
// files (e.g. "insert-rule", "get-api-key-by-hash").
func LoadQueries(ext sqlx.ExtContext) (*Queries, error) {
	var combined strings.Builder

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		combined.Write(content)
		combined.WriteString("\n")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combined.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}

	return &Queries{dot: dot, ext: ext}, nil
}

// WithTx returns a copy running against tx.
func (q *Queries) WithTx(tx *sqlx.Tx) *Queries {
	return &Queries{dot: q.dot, ext: tx}
}

// prepare looks up a named query, expands slice arguments and rebinds.
func (q *Queries) prepare(name string, args []any) (string, []any, error) {
	raw, err := q.dot.Raw(name)
	if err != nil {
		return "", nil, fmt.Errorf("query not found: %s", name)
	}
	query, args, err := sqlx.In(raw, args...)
	if err != nil {
		return "", nil, fmt.Errorf("query %s: %w", name, err)
	}
	return q.ext.Rebind(query), args, nil
}

// Exec executes a named statement.
func (q *Queries) Exec(ctx context.Context, name string, args ...any) (sql.Result, error) {
	query, args, err := q.prepare(name, args)
	if err != nil {
		return nil, err
	}
	return q.ext.ExecContext(ctx, query, args...)
}

// Get retrieves a single row into dest using a named query.
func (q *Queries) Get(ctx context.Context, name string, dest any, args ...any) error {
	query, args, err := q.prepare(name, args)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, q.ext, dest, query, args...)
}

// Select retrieves multiple rows into dest using a named query.
func (q *Queries) Select(ctx context.Context, name string, dest any, args ...any) error {
	query, args, err := q.prepare(name, args)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, q.ext, dest, query, args...)
}
