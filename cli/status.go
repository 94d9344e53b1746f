package cli

import (
	"fmt"
	"strconv"

	"go.hackfix.me/curfew/access"
	actx "go.hackfix.me/curfew/app/context"
	aerrors "go.hackfix.me/curfew/app/errors"
)

// Status shows the access windows on the router.
type Status struct {
	IP string `arg:"" optional:"" help:"Client IP address. If omitted, all windows are listed."`
}

// Run the status command.
func (c *Status) Run(appCtx *actx.Context) error {
	mgr, err := newManager(appCtx)
	if err != nil {
		return err
	}

	if c.IP == "" {
		states, err := mgr.List(appCtx.Ctx)
		if err != nil {
			return aerrors.NewWithCause("failed listing access windows", err)
		}

		tbl := newTable("IP", "State", "Start", "End", "Rules", "Tasks")
		for _, ws := range states {
			tbl.row(ws.IP, string(ws.State), ws.Start, ws.End,
				strconv.Itoa(len(ws.Rules)), strconv.Itoa(len(ws.Tasks)))
		}

		return tbl.render(appCtx.Stdout)
	}

	ws, err := mgr.Inspect(appCtx.Ctx, c.IP)
	if err != nil {
		return aerrors.NewWithCause("failed inspecting access window", err, "ip", c.IP)
	}

	_, err = fmt.Fprintf(appCtx.Stdout, "%s: %s\n", ws.IP, ws.State)
	if err != nil {
		return aerrors.NewWithCause("failed writing to stdout", err)
	}
	if ws.State == access.StateUnscheduled {
		return nil
	}

	tbl := newTable("Kind", "Name", "ID", "Status", "Detail")
	for _, r := range ws.Rules {
		tbl.row(string(access.KindRule), r.Comment, r.ID, enabledStr(!r.Disabled), string(r.Action))
	}
	for _, t := range ws.Tasks {
		tbl.row(string(access.KindTask), t.Name, t.ID, enabledStr(!t.Disabled), t.StartTime)
	}

	return tbl.render(appCtx.Stdout)
}

func enabledStr(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
