package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.hackfix.me/curfew/access"
	actx "go.hackfix.me/curfew/app/context"
	aerrors "go.hackfix.me/curfew/app/errors"
	"go.hackfix.me/curfew/db/models"
)

// History shows recorded changes to access windows.
type History struct {
	ID    string `arg:"" optional:"" help:"Show the details of a single event by its ID or an unambiguous prefix of it."`
	IP    string `help:"Only show events of this client IP address."`
	Limit int    `default:"20" help:"Maximum number of events to show."`
}

// Run the history command.
func (c *History) Run(appCtx *actx.Context) error {
	if appCtx.DB == nil {
		return errors.New("history store is not available")
	}

	if c.ID != "" {
		ev := &models.Event{UUID: c.ID}
		if err := ev.Load(appCtx.Ctx, appCtx.DB); err != nil {
			return aerrors.NewWithCause("failed loading event", err, "id", c.ID)
		}
		return c.printEvent(appCtx, ev)
	}

	ip := c.IP
	if ip != "" {
		var err error
		if ip, err = access.ParseAddress(ip); err != nil {
			return err
		}
	}
	if c.Limit <= 0 {
		return aerrors.NewWith("invalid limit", "limit", c.Limit, "hint", "The limit must be greater than 0.")
	}

	events, err := models.EventsFor(appCtx.Ctx, appCtx.DB, ip, c.Limit)
	if err != nil {
		return aerrors.NewWithCause("failed loading events", err)
	}

	tbl := newTable("ID", "Time", "Op", "IP", "Window", "Change", "Error")
	for _, ev := range events {
		window := ""
		if ev.Start.Valid {
			window = fmt.Sprintf("%s-%s %s", ev.Start.V, ev.End.V, ev.Days.V)
		}
		tbl.row(shortID(ev.UUID), ev.CreatedAt.Local().Format(time.DateTime), string(ev.Op), ev.IP,
			window, string(ev.Change), ev.Error.V)
	}

	return tbl.render(appCtx.Stdout)
}

func (c *History) printEvent(appCtx *actx.Context, ev *models.Event) error {
	tbl := newTable("Field", "Value")
	tbl.row("ID", ev.UUID)
	tbl.row("Time", ev.CreatedAt.Local().Format(time.RFC3339))
	tbl.row("Operation", string(ev.Op))
	tbl.row("IP", ev.IP)
	tbl.row("Tag", ev.Tag)
	tbl.row("Change", string(ev.Change))
	if ev.Start.Valid {
		tbl.row("Window", fmt.Sprintf("%s-%s", ev.Start.V, ev.End.V))
		tbl.row("Days", ev.Days.V)
	}
	if ev.Timezone.Valid {
		tbl.row("Timezone", ev.Timezone.V)
	}
	tbl.row("Rules removed", strconv.Itoa(ev.RulesRemoved))
	tbl.row("Tasks removed", strconv.Itoa(ev.TasksRemoved))
	for _, o := range ev.Objects {
		tbl.row("Created", o.String())
	}
	for _, o := range ev.Missing {
		tbl.row("Missing", o.String())
	}
	if ev.Error.Valid {
		tbl.row("Error", ev.Error.V)
	}

	return tbl.render(appCtx.Stdout)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
