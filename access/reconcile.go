package access

import (
	"context"
	"fmt"
	"log/slog"

	"go.hackfix.me/curfew/gateway/types"
)

// ReconcileResult is the outcome of removing the router objects of an
// address.
type ReconcileResult struct {
	RulesRemoved int
	TasksRemoved int
	// Err is set if some objects couldn't be deleted. The remaining objects
	// were still attempted.
	Err *PartialCleanupError
}

// Removed returns the total number of deleted objects.
func (r ReconcileResult) Removed() int {
	return r.RulesRemoved + r.TasksRemoved
}

// Reconcile deletes every firewall rule and scheduled task that belongs to a
// window of ip. Objects of other addresses are never touched. Deletion
// failures are collected in the result, while a failure to list the objects
// is returned as an error, in which case nothing was deleted.
//
// Tasks are deleted before rules, so that a task can't fire against a rule
// set that's been partially removed.
func Reconcile(ctx context.Context, conn types.Conn, ip string, logger *slog.Logger) (ReconcileResult, error) {
	var res ReconcileResult

	rules, err := conn.ListFirewallRules(ctx)
	if err != nil {
		return res, fmt.Errorf("failed listing firewall rules: %w", err)
	}
	tasks, err := conn.ListScheduledTasks(ctx)
	if err != nil {
		return res, fmt.Errorf("failed listing scheduled tasks: %w", err)
	}

	var failures []ObjectFailure
	for _, task := range tasks {
		if !Matches(ip, task.Name) {
			continue
		}
		ref := ObjectRef{Kind: KindTask, Name: task.Name, ID: task.ID}
		_, ref.Role, _ = parseAnyName(task.Name)
		if err := conn.DeleteScheduledTask(ctx, task.ID); err != nil {
			logger.Warn("failed deleting scheduled task",
				"task", task.Name, "task_id", task.ID, "error", err.Error())
			failures = append(failures, ObjectFailure{Object: ref, Err: err})
			continue
		}
		logger.Debug("deleted scheduled task", "task", task.Name, "task_id", task.ID)
		res.TasksRemoved++
	}

	for _, rule := range rules {
		if !Matches(ip, rule.Comment) {
			continue
		}
		ref := ObjectRef{Kind: KindRule, Name: rule.Comment, ID: rule.ID}
		_, ref.Role, _ = parseAnyName(rule.Comment)
		if err := conn.DeleteFirewallRule(ctx, rule.ID); err != nil {
			logger.Warn("failed deleting firewall rule",
				"rule", rule.Comment, "rule_id", rule.ID, "error", err.Error())
			failures = append(failures, ObjectFailure{Object: ref, Err: err})
			continue
		}
		logger.Debug("deleted firewall rule", "rule", rule.Comment, "rule_id", rule.ID)
		res.RulesRemoved++
	}

	if len(failures) > 0 {
		res.Err = &PartialCleanupError{Failures: failures}
	}

	return res, nil
}
