package db

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows into a (possibly schema-qualified) table using the
// PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}

	return n, nil
}

// EnsureTextTable creates the schema (when qualified) and a table whose
// columns are all TEXT, unless they already exist. Extra typed columns may be
// prepended through leading.
func EnsureTextTable(ctx context.Context, pool Pool, table string, leading map[string]string, columns []string) error {
	id := Identifier(table)
	if len(id) == 2 {
		if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{id[0]}.Sanitize())); err != nil {
			return eris.Wrapf(err, "db: create schema %s", id[0])
		}
	}

	defs := make([]string, 0, len(leading)+len(columns))
	for _, name := range slices.Sorted(maps.Keys(leading)) {
		defs = append(defs, pgx.Identifier{name}.Sanitize()+" "+leading[name])
	}
	for _, c := range columns {
		defs = append(defs, pgx.Identifier{c}.Sanitize()+" TEXT")
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", id.Sanitize(), strings.Join(defs, ", "))
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return eris.Wrapf(err, "db: create table %s", table)
	}
	return nil
}
