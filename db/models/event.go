package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nrednav/cuid2"

	"go.hackfix.me/curfew/access"
	"go.hackfix.me/curfew/db/types"
)

// Event is the recorded outcome of a change to the access window of an
// address. Events are never updated.
type Event struct {
	ID           uint64
	UUID         string
	CreatedAt    time.Time
	Op           access.Operation
	IP           string
	Tag          string
	Change       access.Change
	Start        sql.Null[string]
	End          sql.Null[string]
	Days         sql.Null[string]
	Timezone     sql.Null[string]
	RulesRemoved int
	TasksRemoved int
	// Objects are the router objects that were created.
	Objects []access.ObjectRef
	// Missing are the router objects that should have been created but
	// weren't.
	Missing []access.ObjectRef
	Error   sql.Null[string]
}

// NewEvent converts an operation outcome into an Event record.
func NewEvent(ev *access.Event, uuidGen func() string) *Event {
	e := &Event{
		UUID:      uuidGen(),
		CreatedAt: ev.Time,
		Op:        ev.Op,
		Objects:   []access.ObjectRef{},
		Missing:   []access.ObjectRef{},
	}

	if req := ev.Request; req != nil {
		e.IP = req.IP
		e.Start = nullString(req.Start.String())
		e.End = nullString(req.End.String())
		e.Days = nullString(req.Days.String())
		e.Timezone = nullString(req.Timezone)
	}

	if res := ev.Result; res != nil {
		if res.IP != "" {
			e.IP = res.IP
		}
		if res.Tag.IP != "" {
			e.Tag = res.Tag.String()
		}
		e.Change = res.Change
		e.RulesRemoved = res.RulesRemoved
		e.TasksRemoved = res.TasksRemoved
		if res.Window != nil {
			e.Objects = res.Window.Refs()
		}
		if res.Missing != nil {
			e.Missing = res.Missing
		}
		if ev.Err == nil && res.CleanupErr != nil {
			e.Error = nullString(res.CleanupErr.Error())
		}
	}

	if ev.Err != nil {
		e.Error = nullString(ev.Err.Error())
	}

	return e
}

// Save stores the event in the database.
func (e *Event) Save(ctx context.Context, d types.Querier) error {
	if e.UUID == "" {
		return types.InvalidInputError{Msg: "event UUID must be set"}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = d.TimeNow()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	objects, err := json.Marshal(e.Objects)
	if err != nil {
		return fmt.Errorf("failed serializing event objects: %w", err)
	}
	missing, err := json.Marshal(e.Missing)
	if err != nil {
		return fmt.Errorf("failed serializing missing event objects: %w", err)
	}

	stmt := `INSERT INTO events
		(id, uuid, created_at, op, ip, tag, outcome, start_time, end_time, days, timezone,
		 rules_removed, tasks_removed, objects, missing, error)
		VALUES (NULL, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := d.ExecContext(ctx, stmt,
		e.UUID, e.CreatedAt, e.Op, e.IP, e.Tag, e.Change, e.Start, e.End, e.Days, e.Timezone,
		e.RulesRemoved, e.TasksRemoved, string(objects), string(missing), e.Error)
	if err != nil {
		return types.Err("event", fmt.Sprintf("UUID '%s'", e.UUID), err)
	}

	e.ID, err = lastInsertID(res)
	return err
}

// Load the event data from the database. Either the event ID or UUID must be
// set for the lookup. The UUID may be a prefix, as long as it matches exactly
// one record.
func (e *Event) Load(ctx context.Context, d types.Querier) error {
	var (
		filter    *types.Filter
		filterStr string
	)
	switch {
	case e.ID != 0:
		filter = types.NewFilter("id = ?", []any{e.ID})
		filterStr = fmt.Sprintf("ID %d", e.ID)
	case e.UUID != "":
		if !cuid2.IsCuid(e.UUID) {
			return types.InvalidInputError{Msg: fmt.Sprintf("invalid event UUID: '%s'", e.UUID)}
		}
		filter = types.NewFilter("uuid LIKE ?", []any{e.UUID + "%"})
		filterStr = fmt.Sprintf("UUID '%s'", e.UUID)
	default:
		return types.InvalidInputError{Msg: "either event ID or UUID must be set"}
	}

	count, err := filterCount(ctx, d, "events", filter)
	if err != nil {
		return err
	}
	switch {
	case count == 0:
		return types.NoResultError{ModelName: "event", ID: filterStr}
	case count > 1:
		return types.AmbiguousError{ModelName: "event", ID: filterStr, Count: count}
	}

	filter.Limit = 1
	events, err := Events(ctx, d, filter)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return types.NoResultError{ModelName: "event", ID: filterStr}
	}
	*e = *events[0]

	return nil
}

// Events returns events from the database, most recent first. An optional
// filter can be passed to limit the results.
func Events(ctx context.Context, d types.Querier, filter *types.Filter) (events []*Event, rerr error) {
	where, args := filter.Clause()
	query := fmt.Sprintf(`SELECT
			id, uuid, created_at, op, ip, tag, outcome,
			start_time, end_time, days, timezone,
			rules_removed, tasks_removed, objects, missing, error
		FROM events %s
		ORDER BY created_at DESC, id DESC`, where)
	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(append([]any{}, args...), filter.Limit)
	}

	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.LoadError{ModelName: "events", Err: err}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			rerr = errors.Join(rerr, fmt.Errorf("failed closing events rows: %w", err))
		}
	}()

	events = make([]*Event, 0)
	for rows.Next() {
		var (
			e                Event
			objects, missing string
		)
		err = rows.Scan(&e.ID, &e.UUID, &e.CreatedAt, &e.Op, &e.IP, &e.Tag, &e.Change,
			&e.Start, &e.End, &e.Days, &e.Timezone,
			&e.RulesRemoved, &e.TasksRemoved, &objects, &missing, &e.Error)
		if err != nil {
			return nil, types.ScanError{ModelName: "event", Err: err}
		}
		if err = json.Unmarshal([]byte(objects), &e.Objects); err != nil {
			return nil, types.ScanError{ModelName: "event", Err: err}
		}
		if err = json.Unmarshal([]byte(missing), &e.Missing); err != nil {
			return nil, types.ScanError{ModelName: "event", Err: err}
		}
		events = append(events, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating over events rows: %w", err)
	}

	return events, nil
}

// EventsFor returns the most recent events of an address. A limit of 0 returns
// all of them.
func EventsFor(ctx context.Context, d types.Querier, ip string, limit int) ([]*Event, error) {
	var filter *types.Filter
	if ip != "" {
		filter = types.NewFilter("ip = ?", []any{ip})
	} else {
		filter = &types.Filter{}
	}
	filter.Limit = limit

	return Events(ctx, d, filter)
}
