package db_test

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/nrednav/cuid2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/curfew/access"
	"go.hackfix.me/curfew/db"
	"go.hackfix.me/curfew/db/models"
	"go.hackfix.me/curfew/db/queries"
	"go.hackfix.me/curfew/db/types"
	"go.hackfix.me/curfew/xtime"
)

var timeNow = time.Date(2026, time.October, 19, 7, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	name := make([]byte, 8)
	_, err := rand.Read(name)
	require.NoError(t, err)

	d, err := db.Open(fmt.Sprintf("file:curfew-%x?mode=memory&cache=shared", name),
		func() time.Time { return timeNow })
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, d.Init(context.Background(), "v0.1.0", slog.New(slog.DiscardHandler)))

	return d
}

func TestDB_Init(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()

	version, err := queries.Version(ctx, d)
	require.NoError(t, err)
	assert.True(t, version.Valid)
	assert.Equal(t, "v0.1.0", version.V)

	// Initializing again is a no-op.
	require.NoError(t, d.Init(ctx, "v0.2.0", slog.New(slog.DiscardHandler)))
	version, err = queries.Version(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0", version.V)
}

func TestHistory_Record(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	hist := db.NewHistory(d, cuid2.Generate)

	tag := access.TagFor("10.0.0.5")
	req := &access.Request{
		IP:       "10.0.0.5",
		Start:    xtime.TimeOfDay{Hour: 8},
		End:      xtime.TimeOfDay{Hour: 18},
		Days:     xtime.Monday | xtime.Friday,
		Timezone: "UTC",
	}
	created := []access.ObjectRef{
		{Kind: access.KindRule, Role: access.RoleBlock, Name: tag.RuleName(access.RoleBlock), ID: "*1"},
		{Kind: access.KindRule, Role: access.RoleAllow, Name: tag.RuleName(access.RoleAllow), ID: "*2"},
		{Kind: access.KindTask, Role: access.RoleEnable, Name: tag.TaskName(access.RoleEnable), ID: "*3"},
	}
	missing := []access.ObjectRef{
		{Kind: access.KindTask, Role: access.RoleDisable, Name: tag.TaskName(access.RoleDisable)},
	}

	events := []*access.Event{
		{
			Op: access.OpSchedule, Time: timeNow, Request: req,
			Result: &access.Result{IP: "10.0.0.5", Tag: tag, Change: access.ChangeComplete, RulesRemoved: 2, TasksRemoved: 2},
		},
		{
			Op: access.OpSchedule, Time: timeNow.Add(time.Minute), Request: req,
			Result: &access.Result{IP: "10.0.0.5", Tag: tag, Change: access.ChangePartial, Missing: missing},
			Err:    &access.PartialCreationError{Created: created, Missing: missing, Err: errors.New("boom")},
		},
		{
			Op: access.OpUnschedule, Time: timeNow.Add(2 * time.Minute),
			Result: &access.Result{IP: "10.0.0.50", Tag: access.TagFor("10.0.0.50"), Change: access.ChangeComplete},
		},
	}
	for _, ev := range events {
		require.NoError(t, hist.Record(ctx, ev))
	}

	all, err := models.EventsFor(ctx, d, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "10.0.0.50", all[0].IP)
	assert.Equal(t, access.OpUnschedule, all[0].Op)
	assert.False(t, all[0].Start.Valid)

	got, err := models.EventsFor(ctx, d, "10.0.0.5", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	ev := got[0]
	assert.Equal(t, access.OpSchedule, ev.Op)
	assert.Equal(t, access.ChangePartial, ev.Change)
	assert.Equal(t, "scheduled-access-10.0.0.5", ev.Tag)
	assert.Equal(t, "08:00:00", ev.Start.V)
	assert.Equal(t, "18:00:00", ev.End.V)
	assert.Equal(t, "mon,fri", ev.Days.V)
	assert.Equal(t, "UTC", ev.Timezone.V)
	assert.Equal(t, missing, ev.Missing)
	assert.Empty(t, ev.Objects)
	assert.True(t, ev.Error.Valid)
	assert.Contains(t, ev.Error.V, "created 3 of 4 objects")
	assert.True(t, ev.CreatedAt.Equal(timeNow.Add(time.Minute)))

	loaded := &models.Event{UUID: ev.UUID[:10]}
	require.NoError(t, loaded.Load(ctx, d))
	assert.Equal(t, ev.ID, loaded.ID)

	loaded = &models.Event{ID: all[2].ID}
	require.NoError(t, loaded.Load(ctx, d))
	assert.Equal(t, 2, loaded.RulesRemoved)
	assert.False(t, loaded.Error.Valid)
}

func TestEvent_Load(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		event  *models.Event
		expErr string
	}{
		{name: "err/empty", event: &models.Event{}, expErr: "either event ID or UUID must be set"},
		{name: "err/invalid_uuid", event: &models.Event{UUID: "NOT-A-CUID"}, expErr: "invalid event UUID"},
		{name: "err/missing_id", event: &models.Event{ID: 42}, expErr: "event with ID 42 doesn't exist"},
		{name: "err/missing_uuid", event: &models.Event{UUID: cuid2.Generate()}, expErr: "doesn't exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.event.Load(ctx, d)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.expErr)
		})
	}
}

func TestEvent_Save(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()

	err := (&models.Event{}).Save(ctx, d)
	assert.ErrorContains(t, err, "event UUID must be set")

	uuid := cuid2.Generate()
	ev := &models.Event{UUID: uuid, Op: access.OpUnschedule, IP: "10.0.0.5", Change: access.ChangeNone}
	require.NoError(t, ev.Save(ctx, d))
	assert.NotZero(t, ev.ID)
	assert.True(t, ev.CreatedAt.Equal(timeNow))

	err = (&models.Event{UUID: uuid, Op: access.OpUnschedule}).Save(ctx, d)
	var dupErr types.DuplicateError
	require.ErrorAs(t, err, &dupErr)
}
