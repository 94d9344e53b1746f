package cli

import (
	"fmt"
	"strings"

	"go.hackfix.me/curfew/access"
	actx "go.hackfix.me/curfew/app/context"
	aerrors "go.hackfix.me/curfew/app/errors"
)

// Schedule restricts a client address to a daily access window.
//
//nolint:lll // Long struct tags are unavoidable.
type Schedule struct {
	IP       string   `arg:"" help:"Client IP address in plain, CIDR or range notation. \n Examples: 10.0.0.10, 192.168.1.0/24, 172.16.1.10-172.16.1.100"`
	Start    string   `arg:"" help:"Start of the daily window in HH:MM[:SS] format."`
	End      string   `arg:"" help:"End of the daily window in HH:MM[:SS] format. If it's earlier than the start, the window spans midnight."`
	Days     []string `arg:"" help:"Weekdays on which access is allowed, either as separate arguments or comma-separated. \n Examples: mon wed fri, sat,sun, monday"`
	Timezone string   `help:"Timezone label stored with the window, for reference only. The router's clock is authoritative."`
}

// Run the schedule command.
func (c *Schedule) Run(appCtx *actx.Context) error {
	req, err := access.NewRequest(c.IP, c.Start, c.End, c.Days, c.Timezone)
	if err != nil {
		return err
	}

	mgr, err := newManager(appCtx)
	if err != nil {
		return err
	}

	res, err := mgr.Schedule(appCtx.Ctx, req)
	if err != nil {
		return resultError("failed scheduling access window", res, err)
	}

	_, err = fmt.Fprintf(appCtx.Stdout, "Scheduled access window %s: allowed %s-%s on %s\n",
		res.Tag, req.Start, req.End, req.Days)
	if err != nil {
		return aerrors.NewWithCause("failed writing to stdout", err)
	}

	return printCleanupErrors(appCtx, res)
}

// Unschedule removes the access window of a client address.
type Unschedule struct {
	IP string `arg:"" help:"Client IP address, as it was given when scheduling."`
}

// Run the unschedule command.
func (c *Unschedule) Run(appCtx *actx.Context) error {
	mgr, err := newManager(appCtx)
	if err != nil {
		return err
	}

	res, err := mgr.Unschedule(appCtx.Ctx, c.IP)
	if err != nil {
		return resultError("failed removing access window", res, err)
	}

	_, err = fmt.Fprintf(appCtx.Stdout, "Removed %d rule(s) and %d task(s) of %s\n",
		res.RulesRemoved, res.TasksRemoved, res.IP)
	if err != nil {
		return aerrors.NewWithCause("failed writing to stdout", err)
	}

	return nil
}

// resultError annotates an operation error with what was changed on the
// router, so that the user can clean up manually if needed.
func resultError(msg string, res *access.Result, err error) error {
	fields := []any{"change", res.Change}
	if res.IP != "" {
		fields = append(fields, "ip", res.IP)
	}
	if len(res.Missing) > 0 {
		missing := make([]string, 0, len(res.Missing))
		for _, m := range res.Missing {
			missing = append(missing, m.String())
		}
		fields = append(fields, "missing", strings.Join(missing, ", "))
	}
	if res.Change == access.ChangePartial {
		fields = append(fields, "hint", "Run the command again to replace the remaining objects.")
	}

	return aerrors.NewWithCause(msg, err, fields...)
}

func printCleanupErrors(appCtx *actx.Context, res *access.Result) error {
	if res.CleanupErr == nil {
		return nil
	}

	tbl := newTable("Kind", "Name", "ID", "Error")
	for _, f := range res.CleanupErr.Failures {
		tbl.row(string(f.Object.Kind), f.Object.Name, f.Object.ID, f.Err.Error())
	}

	if _, err := fmt.Fprintln(appCtx.Stdout, "\nStale objects that couldn't be removed:"); err != nil {
		return aerrors.NewWithCause("failed writing to stdout", err)
	}
	return tbl.render(appCtx.Stdout)
}
