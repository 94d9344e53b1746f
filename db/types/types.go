package types

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// Querier exposes only methods for running SQL queries, and some helper functions.
type Querier interface {
	TimeNow() time.Time
	ExecContext(ctx context.Context, sql string, arguments ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Filter is used to dynamically modify queries.
type Filter struct {
	Where string
	Args  []any
	// Limit is the maximum number of results. 0 means no limit.
	Limit int
}

// NewFilter creates a new query filter.
func NewFilter(where string, args []any) *Filter {
	return &Filter{Where: where, Args: args}
}

// And joins f2 with f1 using an AND condition. The limit of f1 is kept.
func (f1 *Filter) And(f2 *Filter) *Filter {
	if f1 == nil {
		return f2
	}
	if f2 == nil {
		return f1
	}
	return &Filter{
		Where: fmt.Sprintf("(%s) AND (%s)", f1.Where, f2.Where),
		Args:  slices.Concat(f1.Args, f2.Args),
		Limit: f1.Limit,
	}
}

// Clause returns the WHERE clause of the filter and its arguments. A nil or
// empty filter matches everything.
func (f1 *Filter) Clause() (string, []any) {
	if f1 == nil || f1.Where == "" {
		return "WHERE 1=1", nil
	}
	return "WHERE " + f1.Where, f1.Args
}
