package db

import (
	"context"

	"go.hackfix.me/curfew/access"
	"go.hackfix.me/curfew/db/models"
	"go.hackfix.me/curfew/db/types"
)

// History stores access window events in the database.
type History struct {
	d       types.Querier
	uuidGen func() string
}

var _ access.History = (*History)(nil)

// NewHistory returns a new History that uses d for storage, and uuidGen to
// generate event UUIDs.
func NewHistory(d types.Querier, uuidGen func() string) *History {
	return &History{d: d, uuidGen: uuidGen}
}

// Record implements the access.History interface.
func (h *History) Record(ctx context.Context, ev *access.Event) error {
	return models.NewEvent(ev, h.uuidGen).Save(ctx, h.d)
}
