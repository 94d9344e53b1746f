// Package mock provides an in-memory router that understands just enough of
// the scheduler script syntax to simulate tasks firing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.hackfix.me/curfew/gateway/types"
	"go.hackfix.me/curfew/xtime"
)

// Op identifies a router operation, used to inject failures.
type Op string

// Router operations.
const (
	OpConnect    Op = "connect"
	OpListRules  Op = "list_rules"
	OpCreateRule Op = "create_rule"
	OpDeleteRule Op = "delete_rule"
	OpListTasks  Op = "list_tasks"
	OpCreateTask Op = "create_task"
	OpDeleteTask Op = "delete_task"
)

// Router is an in-memory router. It is safe for concurrent use.
type Router struct {
	mx     sync.Mutex
	rules  []types.FirewallRule
	tasks  []types.ScheduledTask
	nextID int
	open   int
	// failFn is consulted before every operation to simulate errors. The name
	// is the rule comment or task name the operation applies to, if any.
	failFn func(op Op, name string) error
}

var _ types.Gateway = (*Router)(nil)

// New returns a new empty Router.
func New() *Router {
	return &Router{}
}

// Connect implements the types.Gateway interface.
//
//nolint:ireturn // Required by the interface.
func (r *Router) Connect(_ context.Context) (types.Conn, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if err := r.fail(OpConnect, ""); err != nil {
		return nil, err
	}
	r.open++
	return &conn{router: r}, nil
}

// SetFailError makes every subsequent operation fail with err. Passing nil
// clears it.
func (r *Router) SetFailError(err error) {
	r.FailWhen(func(Op, string) error { return err })
}

// FailWhen sets a function that decides whether an operation should fail.
func (r *Router) FailWhen(fn func(op Op, name string) error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.failFn = fn
}

// OpenConns returns the number of connections that weren't closed yet.
func (r *Router) OpenConns() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.open
}

// Rules returns a copy of all firewall rules.
func (r *Router) Rules() []types.FirewallRule {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]types.FirewallRule(nil), r.rules...)
}

// Tasks returns a copy of all scheduled tasks.
func (r *Router) Tasks() []types.ScheduledTask {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]types.ScheduledTask(nil), r.tasks...)
}

// AddRule stores a rule directly, bypassing failure injection.
func (r *Router) AddRule(rule types.FirewallRule) string {
	r.mx.Lock()
	defer r.mx.Unlock()
	rule.ID = r.newID()
	r.rules = append(r.rules, rule)
	return rule.ID
}

// AddTask stores a task directly, bypassing failure injection.
func (r *Router) AddTask(task types.ScheduledTask) string {
	r.mx.Lock()
	defer r.mx.Unlock()
	task.ID = r.newID()
	r.tasks = append(r.tasks, task)
	return task.ID
}

var (
	toggleRx   = regexp.MustCompile(`/ip(?:v6)? firewall filter (enable|disable) \[find comment="([^"]*)"\]`)
	dayGuardRx = regexp.MustCompile(`\[:find "([a-z,]+)"`)
)

// Fire runs the script of the named task as if the scheduler triggered it on
// the given weekday. Only firewall filter toggles and the weekday guard are
// interpreted.
func (r *Router) Fire(name string, day time.Weekday) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	var script string
	found := false
	for _, t := range r.tasks {
		if t.Name == name {
			script, found = t.OnEvent, true
			break
		}
	}
	if !found {
		return fmt.Errorf("no such item: task '%s'", name)
	}

	if m := dayGuardRx.FindStringSubmatch(script); m != nil {
		days, err := xtime.ParseDays(m[1])
		if err != nil {
			return fmt.Errorf("invalid weekday guard in task '%s': %w", name, err)
		}
		if !days.Contains(day) {
			return nil
		}
	}

	for _, m := range toggleRx.FindAllStringSubmatch(script, -1) {
		for i := range r.rules {
			if r.rules[i].Comment == m[2] {
				r.rules[i].Disabled = m[1] == "disable"
			}
		}
	}

	return nil
}

func (r *Router) newID() string {
	r.nextID++
	return fmt.Sprintf("*%X", r.nextID)
}

func (r *Router) fail(op Op, name string) error {
	if r.failFn == nil {
		return nil
	}
	return r.failFn(op, name)
}

type conn struct {
	router *Router
	closed bool
}

var _ types.Conn = (*conn)(nil)

func (c *conn) ListFirewallRules(_ context.Context) ([]types.FirewallRule, error) {
	r := c.router
	r.mx.Lock()
	defer r.mx.Unlock()
	if err := r.fail(OpListRules, ""); err != nil {
		return nil, err
	}
	return append([]types.FirewallRule(nil), r.rules...), nil
}

func (c *conn) CreateFirewallRule(_ context.Context, rule types.FirewallRule) (string, error) {
	r := c.router
	r.mx.Lock()
	defer r.mx.Unlock()
	if err := r.fail(OpCreateRule, rule.Comment); err != nil {
		return "", err
	}
	rule.ID = r.newID()
	r.rules = append(r.rules, rule)
	return rule.ID, nil
}

func (c *conn) DeleteFirewallRule(_ context.Context, id string) error {
	r := c.router
	r.mx.Lock()
	defer r.mx.Unlock()
	for i, rule := range r.rules {
		if rule.ID != id {
			continue
		}
		if err := r.fail(OpDeleteRule, rule.Comment); err != nil {
			return err
		}
		r.rules = append(r.rules[:i], r.rules[i+1:]...)
		return nil
	}
	return &types.RemoteError{StatusCode: 404, Message: "Not Found", Detail: "no such item"}
}

func (c *conn) ListScheduledTasks(_ context.Context) ([]types.ScheduledTask, error) {
	r := c.router
	r.mx.Lock()
	defer r.mx.Unlock()
	if err := r.fail(OpListTasks, ""); err != nil {
		return nil, err
	}
	return append([]types.ScheduledTask(nil), r.tasks...), nil
}

func (c *conn) CreateScheduledTask(_ context.Context, task types.ScheduledTask) (string, error) {
	r := c.router
	r.mx.Lock()
	defer r.mx.Unlock()
	if err := r.fail(OpCreateTask, task.Name); err != nil {
		return "", err
	}
	for _, t := range r.tasks {
		if t.Name == task.Name {
			return "", &types.RemoteError{
				StatusCode: 400, Message: "Bad Request",
				Detail: "failure: item with such name already exists",
			}
		}
	}
	task.ID = r.newID()
	r.tasks = append(r.tasks, task)
	return task.ID, nil
}

func (c *conn) DeleteScheduledTask(_ context.Context, id string) error {
	r := c.router
	r.mx.Lock()
	defer r.mx.Unlock()
	for i, task := range r.tasks {
		if task.ID != id {
			continue
		}
		if err := r.fail(OpDeleteTask, task.Name); err != nil {
			return err
		}
		r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
		return nil
	}
	return &types.RemoteError{StatusCode: 404, Message: "Not Found", Detail: "no such item"}
}

func (c *conn) Close() error {
	r := c.router
	r.mx.Lock()
	defer r.mx.Unlock()
	if c.closed {
		return errors.New("connection already closed")
	}
	c.closed = true
	r.open--
	return nil
}
