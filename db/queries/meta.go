package queries

import (
	"context"
	"database/sql"
	"errors"

	"go.hackfix.me/curfew/db/types"
)

// Version returns the application version the database was initialized
// with. If the returned sql.Null value is invalid, it indicates that the
// database hasn't been initialized.
func Version(ctx context.Context, d types.Querier) (sql.Null[string], error) {
	var version sql.Null[string]
	err := d.QueryRowContext(ctx, `SELECT version FROM _meta LIMIT 1`).
		Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return version, err
	}

	return version, nil
}
