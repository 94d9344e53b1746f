package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.hackfix.me/curfew/gateway/types"
)

const (
	// DefaultTaskPolicy is the set of permissions scheduled tasks run with.
	DefaultTaskPolicy = "read,write,policy,test"

	taskInterval   = "1d"
	taskDateFormat = "Jan/02/2006"
)

// Window is the set of router objects that implement an access window.
type Window struct {
	Tag   Tag                   `json:"tag"`
	Rules []types.FirewallRule  `json:"rules"`
	Tasks []types.ScheduledTask `json:"tasks"`
}

// Refs returns references to all objects in the window.
func (w *Window) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(w.Rules)+len(w.Tasks))
	for _, r := range w.Rules {
		_, role, _ := ParseName(r.Comment)
		refs = append(refs, ObjectRef{Kind: KindRule, Role: role, Name: r.Comment, ID: r.ID})
	}
	for _, t := range w.Tasks {
		_, role, _ := ParseName(t.Name)
		refs = append(refs, ObjectRef{Kind: KindTask, Role: role, Name: t.Name, ID: t.ID})
	}
	return refs
}

// plan returns the four objects of the window for req, in creation order. The
// block rule is created enabled and the allow rule disabled, so the address
// is blocked until the enable task first fires.
func plan(req *Request, tag Tag, now time.Time, policy string) ([]types.FirewallRule, []types.ScheduledTask) {
	rules := []types.FirewallRule{
		{
			Chain:      types.ChainForward,
			SrcAddress: req.IP,
			Action:     types.ActionDrop,
			Comment:    tag.RuleName(RoleBlock),
			Disabled:   false,
		},
		{
			Chain:      types.ChainForward,
			SrcAddress: req.IP,
			Action:     types.ActionAccept,
			Comment:    tag.RuleName(RoleAllow),
			Disabled:   true,
		},
	}

	comment := fmt.Sprintf("%s %s-%s %s", tag, req.Start, req.End, req.Days)
	if req.Timezone != "" {
		comment += " " + req.Timezone
	}
	startDate := now.Format(taskDateFormat)
	tasks := []types.ScheduledTask{
		{
			Name:      tag.TaskName(RoleEnable),
			StartTime: req.Start.String(),
			StartDate: startDate,
			Interval:  taskInterval,
			OnEvent:   enableScript(tag, req.Days),
			Policy:    policy,
			Comment:   comment,
		},
		{
			Name:      tag.TaskName(RoleDisable),
			StartTime: req.End.String(),
			StartDate: startDate,
			Interval:  taskInterval,
			OnEvent:   disableScript(tag),
			Policy:    policy,
			Comment:   comment,
		},
	}

	return rules, tasks
}

// Materialize creates the firewall rules and scheduled tasks of the window
// for req. Rules are created before the tasks that reference them. If any
// creation fails, the remaining objects are not attempted, and a
// *PartialCreationError is returned along with the window of the objects that
// were created. Created objects are not rolled back.
func Materialize(
	ctx context.Context, conn types.Conn, req *Request, tag Tag,
	now time.Time, policy string, logger *slog.Logger,
) (*Window, error) {
	if policy == "" {
		policy = DefaultTaskPolicy
	}
	rules, tasks := plan(req, tag, now, policy)
	win := &Window{Tag: tag}

	pending := func(fromRule, fromTask int) []ObjectRef {
		var refs []ObjectRef
		for _, r := range rules[fromRule:] {
			_, role, _ := ParseName(r.Comment)
			refs = append(refs, ObjectRef{Kind: KindRule, Role: role, Name: r.Comment})
		}
		for _, t := range tasks[fromTask:] {
			_, role, _ := ParseName(t.Name)
			refs = append(refs, ObjectRef{Kind: KindTask, Role: role, Name: t.Name})
		}
		return refs
	}

	for i, rule := range rules {
		id, err := conn.CreateFirewallRule(ctx, rule)
		if err != nil {
			logger.Error("failed creating firewall rule", "rule", rule.Comment, "error", err.Error())
			return win, &PartialCreationError{
				Created: win.Refs(), Missing: pending(i, 0),
				Err: fmt.Errorf("failed creating firewall rule '%s': %w", rule.Comment, err),
			}
		}
		rule.ID = id
		win.Rules = append(win.Rules, rule)
		logger.Debug("created firewall rule", "rule", rule.Comment, "rule_id", id)
	}

	for i, task := range tasks {
		id, err := conn.CreateScheduledTask(ctx, task)
		if err != nil {
			logger.Error("failed creating scheduled task", "task", task.Name, "error", err.Error())
			return win, &PartialCreationError{
				Created: win.Refs(), Missing: pending(len(rules), i),
				Err: fmt.Errorf("failed creating scheduled task '%s': %w", task.Name, err),
			}
		}
		task.ID = id
		win.Tasks = append(win.Tasks, task)
		logger.Debug("created scheduled task", "task", task.Name, "task_id", id)
	}

	return win, nil
}
