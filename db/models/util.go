package models

import (
	"context"
	"database/sql"
	"fmt"

	"go.hackfix.me/curfew/db/types"
)

func filterCount(ctx context.Context, d types.Querier, table string, filter *types.Filter) (int, error) {
	where, args := filter.Clause()
	countQ := fmt.Sprintf(`SELECT COUNT(*) FROM "%s" %s`, table, where)
	var count int
	err := d.QueryRowContext(ctx, countQ, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed scanning %s count query: %w", table, err)
	}

	return count, nil
}

func lastInsertID(result sql.Result) (uint64, error) {
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	if id < 0 {
		return 0, fmt.Errorf("invalid negative ID from database: %d", id)
	}

	return uint64(id), nil
}

func nullString(s string) sql.Null[string] {
	return sql.Null[string]{V: s, Valid: s != ""}
}
