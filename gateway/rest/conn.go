package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.hackfix.me/curfew/gateway/types"
)

// RouterOS returns every value as a string, and uses dashed field names.
type ruleData struct {
	ID         string `json:".id,omitempty"`
	Chain      string `json:"chain"`
	SrcAddress string `json:"src-address,omitempty"`
	Action     string `json:"action"`
	Comment    string `json:"comment,omitempty"`
	Disabled   string `json:"disabled"`
}

type taskData struct {
	ID        string `json:".id,omitempty"`
	Name      string `json:"name"`
	StartTime string `json:"start-time,omitempty"`
	StartDate string `json:"start-date,omitempty"`
	Interval  string `json:"interval,omitempty"`
	OnEvent   string `json:"on-event,omitempty"`
	Policy    string `json:"policy,omitempty"`
	Comment   string `json:"comment,omitempty"`
	Disabled  string `json:"disabled"`
}

// IPv4 and IPv6 rules live in separate menus whose IDs may overlap, so IPv6
// rule IDs are prefixed to keep them unique and routable.
const v6IDPrefix = "v6/"

type conn struct {
	client *Client
	closed bool
}

var _ types.Conn = (*conn)(nil)

var errClosed = errors.New("connection is closed")

func (c *conn) ListFirewallRules(ctx context.Context) ([]types.FirewallRule, error) {
	if c.closed {
		return nil, errClosed
	}

	var rules []types.FirewallRule
	for _, path := range []string{filterPath, filter6Path} {
		var data []ruleData
		if err := c.client.do(ctx, http.MethodGet, path, nil, &data); err != nil {
			// Routers without the ipv6 package reject the menu. Their IPv4
			// rules are still usable.
			var rerr *types.RemoteError
			if path == filter6Path && errors.As(err, &rerr) {
				c.client.logger.Warn("skipping IPv6 firewall rules", "error", err.Error())
				continue
			}
			return nil, fmt.Errorf("failed listing firewall rules: %w", err)
		}

		for _, d := range data {
			id := d.ID
			if path == filter6Path {
				id = v6IDPrefix + id
			}
			rules = append(rules, types.FirewallRule{
				ID:         id,
				Chain:      d.Chain,
				SrcAddress: d.SrcAddress,
				Action:     types.Action(d.Action),
				Comment:    d.Comment,
				Disabled:   parseBool(d.Disabled),
			})
		}
	}

	return rules, nil
}

func (c *conn) CreateFirewallRule(ctx context.Context, rule types.FirewallRule) (string, error) {
	if c.closed {
		return "", errClosed
	}

	in := ruleData{
		Chain:      rule.Chain,
		SrcAddress: rule.SrcAddress,
		Action:     string(rule.Action),
		Comment:    rule.Comment,
		Disabled:   formatBool(rule.Disabled),
	}
	path := filterPath
	if isIPv6(rule.SrcAddress) {
		path = filter6Path
	}

	var out ruleData
	if err := c.client.do(ctx, http.MethodPut, path, in, &out); err != nil {
		return "", fmt.Errorf("failed creating firewall rule '%s': %w", rule.Comment, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("router returned no ID for firewall rule '%s'", rule.Comment)
	}
	if path == filter6Path {
		return v6IDPrefix + out.ID, nil
	}

	return out.ID, nil
}

func (c *conn) DeleteFirewallRule(ctx context.Context, id string) error {
	if c.closed {
		return errClosed
	}

	path := filterPath + "/" + id
	if v6ID, ok := strings.CutPrefix(id, v6IDPrefix); ok {
		path = filter6Path + "/" + v6ID
	}
	if err := c.client.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed deleting firewall rule %s: %w", id, err)
	}

	return nil
}

func (c *conn) ListScheduledTasks(ctx context.Context) ([]types.ScheduledTask, error) {
	if c.closed {
		return nil, errClosed
	}

	var data []taskData
	if err := c.client.do(ctx, http.MethodGet, schedulerPath, nil, &data); err != nil {
		return nil, fmt.Errorf("failed listing scheduled tasks: %w", err)
	}

	tasks := make([]types.ScheduledTask, 0, len(data))
	for _, d := range data {
		tasks = append(tasks, types.ScheduledTask{
			ID:        d.ID,
			Name:      d.Name,
			StartTime: d.StartTime,
			StartDate: d.StartDate,
			Interval:  d.Interval,
			OnEvent:   d.OnEvent,
			Policy:    d.Policy,
			Comment:   d.Comment,
			Disabled:  parseBool(d.Disabled),
		})
	}

	return tasks, nil
}

func (c *conn) CreateScheduledTask(ctx context.Context, task types.ScheduledTask) (string, error) {
	if c.closed {
		return "", errClosed
	}

	in := taskData{
		Name:      task.Name,
		StartTime: task.StartTime,
		StartDate: task.StartDate,
		Interval:  task.Interval,
		OnEvent:   task.OnEvent,
		Policy:    task.Policy,
		Comment:   task.Comment,
		Disabled:  formatBool(task.Disabled),
	}
	var out taskData
	if err := c.client.do(ctx, http.MethodPut, schedulerPath, in, &out); err != nil {
		return "", fmt.Errorf("failed creating scheduled task '%s': %w", task.Name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("router returned no ID for scheduled task '%s'", task.Name)
	}

	return out.ID, nil
}

func (c *conn) DeleteScheduledTask(ctx context.Context, id string) error {
	if c.closed {
		return errClosed
	}

	path := schedulerPath + "/" + id
	if err := c.client.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed deleting scheduled task %s: %w", id, err)
	}

	return nil
}

// Close marks the session as closed. The underlying HTTP client is shared, so
// idle connections are left to the transport.
func (c *conn) Close() error {
	if c.closed {
		return errClosed
	}
	c.closed = true
	return nil
}

func isIPv6(addr string) bool {
	return strings.Contains(addr, ":")
}

func parseBool(s string) bool {
	return s == "true" || s == "yes"
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
