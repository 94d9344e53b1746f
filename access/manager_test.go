package access_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/curfew/access"
	"go.hackfix.me/curfew/gateway/mock"
	"go.hackfix.me/curfew/gateway/types"
)

var timeNow = time.Date(2026, time.October, 19, 7, 30, 0, 0, time.UTC)

func timeNowFn() time.Time { return timeNow }

func newManager(t *testing.T, router *mock.Router, opts ...access.Option) *access.Manager {
	t.Helper()
	opts = append([]access.Option{
		access.WithLogger(slog.New(slog.DiscardHandler)),
		access.WithTimeNow(timeNowFn),
		access.WithRegisterer(prometheus.NewRegistry()),
	}, opts...)
	m, err := access.NewManager(router, opts...)
	require.NoError(t, err)
	return m
}

func newRequest(t *testing.T, ip, start, end string, days ...string) *access.Request {
	t.Helper()
	req, err := access.NewRequest(ip, start, end, days, "")
	require.NoError(t, err)
	return req
}

// objectsFor returns the rules and tasks on the router that belong to ip.
func objectsFor(router *mock.Router, ip string) ([]types.FirewallRule, []types.ScheduledTask) {
	var (
		rules []types.FirewallRule
		tasks []types.ScheduledTask
	)
	for _, r := range router.Rules() {
		if access.Matches(ip, r.Comment) {
			rules = append(rules, r)
		}
	}
	for _, t := range router.Tasks() {
		if access.Matches(ip, t.Name) {
			tasks = append(tasks, t)
		}
	}
	return rules, tasks
}

func ruleByName(t *testing.T, rules []types.FirewallRule, name string) types.FirewallRule {
	t.Helper()
	for _, r := range rules {
		if r.Comment == name {
			return r
		}
	}
	t.Fatalf("rule '%s' not found", name)
	return types.FirewallRule{}
}

func taskByName(t *testing.T, tasks []types.ScheduledTask, name string) types.ScheduledTask {
	t.Helper()
	for _, task := range tasks {
		if task.Name == name {
			return task
		}
	}
	t.Fatalf("task '%s' not found", name)
	return types.ScheduledTask{}
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		gateway types.Gateway
		expErr  string
	}{
		{name: "ok/valid", gateway: mock.New()},
		{name: "err/nil_gateway", gateway: nil, expErr: "gateway implementation is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			manager, err := access.NewManager(tt.gateway, access.WithRegisterer(prometheus.NewRegistry()))
			if tt.expErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expErr)
				assert.Nil(t, manager)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, manager)
			}
		})
	}
}

func TestManager_Schedule(t *testing.T) {
	t.Parallel()

	t.Run("ok/new_window", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)

		res, err := m.Schedule(context.Background(), newRequest(t, "10.0.0.5", "08:00:00", "18:00:00", "mon", "wed", "fri"))
		require.NoError(t, err)

		assert.Equal(t, access.ChangeComplete, res.Change)
		assert.Equal(t, "10.0.0.5", res.IP)
		assert.Equal(t, "scheduled-access-10.0.0.5", res.Tag.String())
		assert.Zero(t, res.RulesRemoved)
		assert.Zero(t, res.TasksRemoved)
		assert.Nil(t, res.CleanupErr)
		assert.Empty(t, res.Missing)

		require.NotNil(t, res.Window)
		require.Len(t, res.Window.Rules, 2)
		require.Len(t, res.Window.Tasks, 2)
		for _, r := range res.Window.Rules {
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, types.ChainForward, r.Chain)
			assert.Equal(t, "10.0.0.5", r.SrcAddress)
		}
		for _, task := range res.Window.Tasks {
			assert.NotEmpty(t, task.ID)
		}

		rules, tasks := objectsFor(router, "10.0.0.5")
		require.Len(t, rules, 2)
		require.Len(t, tasks, 2)

		block := ruleByName(t, rules, "scheduled-access-10.0.0.5-block")
		assert.Equal(t, types.ActionDrop, block.Action)
		assert.False(t, block.Disabled)
		allow := ruleByName(t, rules, "scheduled-access-10.0.0.5-allow")
		assert.Equal(t, types.ActionAccept, allow.Action)
		assert.True(t, allow.Disabled)

		enable := taskByName(t, tasks, "scheduled-access-10.0.0.5-enable")
		assert.Equal(t, "08:00:00", enable.StartTime)
		assert.Equal(t, "Oct/19/2026", enable.StartDate)
		assert.Equal(t, "1d", enable.Interval)
		assert.Equal(t, access.DefaultTaskPolicy, enable.Policy)
		assert.Contains(t, enable.OnEvent, `enable [find comment="scheduled-access-10.0.0.5-allow"]`)
		assert.Contains(t, enable.OnEvent, `disable [find comment="scheduled-access-10.0.0.5-block"]`)
		assert.Contains(t, enable.OnEvent, `"mon,wed,fri"`)
		assert.False(t, enable.Disabled)

		disable := taskByName(t, tasks, "scheduled-access-10.0.0.5-disable")
		assert.Equal(t, "18:00:00", disable.StartTime)
		assert.Contains(t, disable.OnEvent, `enable [find comment="scheduled-access-10.0.0.5-block"]`)
		assert.Contains(t, disable.OnEvent, `disable [find comment="scheduled-access-10.0.0.5-allow"]`)

		assert.Equal(t, 0, router.OpenConns())
	})

	t.Run("ok/replaces_window", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()

		first, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00:00", "18:00:00", "mon", "wed", "fri"))
		require.NoError(t, err)
		oldIDs := map[string]bool{}
		for _, ref := range first.Window.Refs() {
			oldIDs[ref.ID] = true
		}

		res, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00:00", "18:00:00", "mon", "wed", "fri"))
		require.NoError(t, err)
		assert.Equal(t, access.ChangeComplete, res.Change)
		assert.Equal(t, 2, res.RulesRemoved)
		assert.Equal(t, 2, res.TasksRemoved)

		rules, tasks := objectsFor(router, "10.0.0.5")
		require.Len(t, rules, 2)
		require.Len(t, tasks, 2)
		for _, r := range rules {
			assert.False(t, oldIDs[r.ID], "old rule %s still present", r.ID)
		}
		for _, task := range tasks {
			assert.False(t, oldIDs[task.ID], "old task %s still present", task.ID)
		}
		assert.Equal(t, "09:00:00", taskByName(t, tasks, "scheduled-access-10.0.0.5-enable").StartTime)
	})

	t.Run("ok/idempotent", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()
		req := newRequest(t, "10.0.0.5", "08:00:00", "18:00:00", "mon")

		for range 3 {
			_, err := m.Schedule(ctx, req)
			require.NoError(t, err)
		}

		assert.Len(t, router.Rules(), 2)
		assert.Len(t, router.Tasks(), 2)
	})

	t.Run("ok/other_ips_untouched", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()

		for _, ip := range []string{"10.0.0.50", "10.0.0.1-10.0.0.9", "2001:db8::5"} {
			_, err := m.Schedule(ctx, newRequest(t, ip, "08:00", "18:00", "tue"))
			require.NoError(t, err)
		}
		router.AddRule(types.FirewallRule{Chain: "input", Action: types.ActionDrop, Comment: "defconf: drop invalid"})
		router.AddTask(types.ScheduledTask{Name: "backup"})

		res, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "tue"))
		require.NoError(t, err)
		assert.Zero(t, res.RulesRemoved)
		assert.Zero(t, res.TasksRemoved)

		_, err = m.Schedule(ctx, newRequest(t, "10.0.0.1", "08:00", "18:00", "tue"))
		require.NoError(t, err)

		assert.Len(t, router.Rules(), 2*5+1)
		assert.Len(t, router.Tasks(), 2*5+1)
		for _, ip := range []string{"10.0.0.50", "10.0.0.1-10.0.0.9", "2001:db8::5", "10.0.0.5", "10.0.0.1"} {
			rules, tasks := objectsFor(router, ip)
			assert.Len(t, rules, 2, ip)
			assert.Len(t, tasks, 2, ip)
		}
	})

	t.Run("ok/removes_legacy", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)

		router.AddRule(types.FirewallRule{SrcAddress: "10.0.0.5", Action: types.ActionDrop, Comment: "Programado-10.0.0.5-bloqueo"})
		router.AddRule(types.FirewallRule{SrcAddress: "10.0.0.5", Action: types.ActionAccept, Comment: "Programado-10.0.0.5-acceso"})
		router.AddTask(types.ScheduledTask{Name: "activar-10.0.0.5"})
		router.AddTask(types.ScheduledTask{Name: "desactivar-10.0.0.5"})
		router.AddTask(types.ScheduledTask{Name: "activar-10.0.0.50"})

		res, err := m.Schedule(context.Background(), newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		require.NoError(t, err)
		assert.Equal(t, 2, res.RulesRemoved)
		assert.Equal(t, 2, res.TasksRemoved)
		assert.Len(t, router.Rules(), 2)
		assert.Len(t, router.Tasks(), 3)
	})

	t.Run("ok/salted_tags", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router, access.WithSaltedTags(true), access.WithTaskPolicy("read,write"))
		ctx := context.Background()

		_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		require.NoError(t, err)
		res, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00", "18:00", "mon"))
		require.NoError(t, err)

		assert.Equal(t, "scheduled-access-10.0.0.5@20261019T073000", res.Tag.String())
		assert.Equal(t, 2, res.RulesRemoved)
		assert.Equal(t, 2, res.TasksRemoved)
		_, tasks := objectsFor(router, "10.0.0.5")
		require.Len(t, tasks, 2)
		assert.Equal(t, "read,write", tasks[0].Policy)
	})

	t.Run("ok/timezone_in_comment", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)

		req, err := access.NewRequest("10.0.0.5", "22:00", "06:00", []string{"fri"}, "Europe/Madrid")
		require.NoError(t, err)
		_, err = m.Schedule(context.Background(), req)
		require.NoError(t, err)

		for _, task := range router.Tasks() {
			assert.Equal(t, "scheduled-access-10.0.0.5 22:00:00-06:00:00 fri Europe/Madrid", task.Comment)
		}
	})

	t.Run("err/validation", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		router.SetFailError(errors.New("router must not be called"))
		m := newManager(t, router)

		res, err := m.Schedule(context.Background(), &access.Request{IP: "bogus"})
		require.Error(t, err)
		var vErr *access.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "ip_address", vErr.Field)
		assert.Equal(t, access.ChangeNone, res.Change)

		res, err = m.Schedule(context.Background(), nil)
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, access.ChangeNone, res.Change)
	})

	t.Run("err/connectivity", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		router.FailWhen(func(op mock.Op, _ string) error {
			if op == mock.OpConnect {
				return errors.New("connection refused")
			}
			return nil
		})
		m := newManager(t, router)

		res, err := m.Schedule(context.Background(), newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		var cErr *access.ConnectivityError
		require.ErrorAs(t, err, &cErr)
		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, access.ChangeNone, res.Change)
		assert.Empty(t, router.Rules())
		assert.Empty(t, router.Tasks())
	})

	t.Run("err/list_failure", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()

		_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		require.NoError(t, err)
		before := router.Rules()

		router.FailWhen(func(op mock.Op, _ string) error {
			if op == mock.OpListTasks {
				return &types.RemoteError{StatusCode: 500, Message: "Internal Server Error", Detail: "timeout"}
			}
			return nil
		})
		res, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00", "18:00", "mon"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "failed listing scheduled tasks: router error 500: Internal Server Error: timeout")
		assert.Equal(t, access.ChangeNone, res.Change)
		assert.Equal(t, before, router.Rules())
		assert.Len(t, router.Tasks(), 2)
		assert.Equal(t, 0, router.OpenConns())
	})

	t.Run("err/disable_task_creation", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		router.FailWhen(func(op mock.Op, name string) error {
			if op == mock.OpCreateTask && name == "scheduled-access-10.0.0.5-disable" {
				return &types.RemoteError{StatusCode: 400, Message: "Bad Request", Detail: "invalid time"}
			}
			return nil
		})
		m := newManager(t, router)

		res, err := m.Schedule(context.Background(), newRequest(t, "10.0.0.5", "08:00:00", "18:00:00", "mon", "wed", "fri"))
		require.Error(t, err)

		var pcErr *access.PartialCreationError
		require.ErrorAs(t, err, &pcErr)
		assert.Len(t, pcErr.Created, 3)
		require.Len(t, pcErr.Missing, 1)
		assert.Equal(t, "scheduled-access-10.0.0.5-disable", pcErr.Failed().Name)
		assert.Equal(t, access.KindTask, pcErr.Failed().Kind)
		assert.Equal(t, access.RoleDisable, pcErr.Failed().Role)

		var rErr *types.RemoteError
		require.ErrorAs(t, err, &rErr)
		assert.Equal(t, "invalid time", rErr.Detail)

		assert.Equal(t, access.ChangePartial, res.Change)
		assert.Equal(t, pcErr.Missing, res.Missing)
		require.NotNil(t, res.Window)
		assert.Len(t, res.Window.Rules, 2)
		assert.Len(t, res.Window.Tasks, 1)

		// No rollback
		assert.Len(t, router.Rules(), 2)
		assert.Len(t, router.Tasks(), 1)
		assert.Equal(t, 0, router.OpenConns())
	})

	t.Run("err/first_rule_creation", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		router.FailWhen(func(op mock.Op, _ string) error {
			if op == mock.OpCreateRule {
				return errors.New("no space left")
			}
			return nil
		})
		m := newManager(t, router)

		res, err := m.Schedule(context.Background(), newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		var pcErr *access.PartialCreationError
		require.ErrorAs(t, err, &pcErr)
		assert.Empty(t, pcErr.Created)
		assert.Len(t, pcErr.Missing, 4)
		assert.Equal(t, access.ChangeNone, res.Change)
	})

	t.Run("ok/partial_cleanup", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()

		_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		require.NoError(t, err)

		router.FailWhen(func(op mock.Op, name string) error {
			if op == mock.OpDeleteRule && name == "scheduled-access-10.0.0.5-block" {
				return errors.New("item is locked")
			}
			return nil
		})
		res, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00", "18:00", "mon"))
		require.NoError(t, err)

		assert.Equal(t, access.ChangePartial, res.Change)
		assert.Equal(t, 1, res.RulesRemoved)
		assert.Equal(t, 2, res.TasksRemoved)
		require.NotNil(t, res.CleanupErr)
		require.Len(t, res.CleanupErr.Failures, 1)
		assert.Equal(t, "scheduled-access-10.0.0.5-block", res.CleanupErr.Failures[0].Object.Name)
		assert.Equal(t, access.KindRule, res.CleanupErr.Failures[0].Object.Kind)
		assert.ErrorContains(t, res.CleanupErr, "item is locked")
		assert.Equal(t, "scheduled-access-10.0.0.5@20261019T073000", res.Tag.String())
		require.NotNil(t, res.Window)
		assert.Len(t, res.Window.Rules, 2)
		assert.Len(t, res.Window.Tasks, 2)

		router.FailWhen(nil)
		ws, err := m.Inspect(ctx, "10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, access.StateInconsistent, ws.State)

		// Scheduling again heals the window.
		_, err = m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00", "18:00", "mon"))
		require.NoError(t, err)
		ws, err = m.Inspect(ctx, "10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, access.StateBlocked, ws.State)
	})

	t.Run("ok/stale_task_salts_new_window", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()

		_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		require.NoError(t, err)

		router.FailWhen(func(op mock.Op, name string) error {
			if op == mock.OpDeleteTask && name == "scheduled-access-10.0.0.5-enable" {
				return errors.New("item is locked")
			}
			return nil
		})
		res, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00", "17:00", "mon"))
		require.NoError(t, err)

		assert.Equal(t, "scheduled-access-10.0.0.5@20261019T073000", res.Tag.String())
		assert.Equal(t, access.ChangePartial, res.Change)
		require.NotNil(t, res.CleanupErr)
		require.Len(t, res.CleanupErr.Failures, 1)
		assert.Equal(t, "scheduled-access-10.0.0.5-enable", res.CleanupErr.Failures[0].Object.Name)
		require.NotNil(t, res.Window)
		assert.Len(t, res.Window.Rules, 2)
		assert.Len(t, res.Window.Tasks, 2)
		assert.Empty(t, res.Missing)
		assert.Len(t, router.Tasks(), 3)

		// The leftover task no longer reaches any rule.
		router.FailWhen(nil)
		require.NoError(t, router.Fire("scheduled-access-10.0.0.5-enable", time.Monday))
		for _, r := range router.Rules() {
			_, role, ok := access.ParseName(r.Comment)
			require.True(t, ok)
			assert.Equal(t, role == access.RoleAllow, r.Disabled, r.Comment)
		}

		// The new window still opens and closes on its own.
		require.NoError(t, router.Fire("scheduled-access-10.0.0.5@20261019T073000-enable", time.Monday))
		for _, r := range router.Rules() {
			_, role, _ := access.ParseName(r.Comment)
			assert.Equal(t, role == access.RoleBlock, r.Disabled, r.Comment)
		}
		require.NoError(t, router.Fire("scheduled-access-10.0.0.5@20261019T073000-disable", time.Monday))

		// Once the leftover can be removed, the unsalted tag is used again.
		res, err = m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00", "17:00", "mon"))
		require.NoError(t, err)
		assert.Equal(t, "scheduled-access-10.0.0.5", res.Tag.String())
		assert.Equal(t, 2, res.RulesRemoved)
		assert.Equal(t, 3, res.TasksRemoved)
		assert.Nil(t, res.CleanupErr)
		ws, err := m.Inspect(ctx, "10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, access.StateBlocked, ws.State)
	})

	t.Run("ok/concurrent_same_ip", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)

		reqs := make([]*access.Request, 8)
		for i := range reqs {
			reqs[i] = newRequest(t, "10.0.0.5", fmt.Sprintf("%02d:00", i+1), "18:00", "mon")
		}

		var wg sync.WaitGroup
		for _, req := range reqs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.Schedule(context.Background(), req)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Len(t, router.Rules(), 2)
		assert.Len(t, router.Tasks(), 2)
		assert.Equal(t, 0, router.OpenConns())
	})
}

func TestManager_WindowToggle(t *testing.T) {
	t.Parallel()

	router := mock.New()
	m := newManager(t, router)
	ctx := context.Background()

	_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00:00", "18:00:00", "mon", "wed", "fri"))
	require.NoError(t, err)

	state := func() access.State {
		ws, err := m.Inspect(ctx, "10.0.0.5")
		require.NoError(t, err)
		return ws.State
	}
	assert.Equal(t, access.StateBlocked, state())

	enable, disable := "scheduled-access-10.0.0.5-enable", "scheduled-access-10.0.0.5-disable"

	// The window doesn't open on unselected days.
	require.NoError(t, router.Fire(enable, time.Tuesday))
	assert.Equal(t, access.StateBlocked, state())

	require.NoError(t, router.Fire(enable, time.Wednesday))
	assert.Equal(t, access.StateAllowed, state())

	require.NoError(t, router.Fire(disable, time.Wednesday))
	assert.Equal(t, access.StateBlocked, state())

	// Closing an already closed window changes nothing.
	require.NoError(t, router.Fire(disable, time.Thursday))
	assert.Equal(t, access.StateBlocked, state())
}

func TestManager_Unschedule(t *testing.T) {
	t.Parallel()

	t.Run("ok/removes_window", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()

		_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		require.NoError(t, err)
		_, err = m.Schedule(ctx, newRequest(t, "10.0.0.50", "08:00", "18:00", "mon"))
		require.NoError(t, err)

		res, err := m.Unschedule(ctx, "10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, access.ChangeComplete, res.Change)
		assert.Equal(t, 2, res.RulesRemoved)
		assert.Equal(t, 2, res.TasksRemoved)

		rules, tasks := objectsFor(router, "10.0.0.5")
		assert.Empty(t, rules)
		assert.Empty(t, tasks)
		assert.Len(t, router.Rules(), 2)
		assert.Len(t, router.Tasks(), 2)
	})

	t.Run("ok/nothing_scheduled", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, mock.New())

		res, err := m.Unschedule(context.Background(), "10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, access.ChangeComplete, res.Change)
		assert.Zero(t, res.RulesRemoved+res.TasksRemoved)
	})

	t.Run("err/invalid_ip", func(t *testing.T) {
		t.Parallel()
		m := newManager(t, mock.New())

		res, err := m.Unschedule(context.Background(), "nope")
		var vErr *access.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, access.ChangeNone, res.Change)
	})

	t.Run("err/partial_cleanup", func(t *testing.T) {
		t.Parallel()
		router := mock.New()
		m := newManager(t, router)
		ctx := context.Background()

		_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
		require.NoError(t, err)

		router.FailWhen(func(op mock.Op, _ string) error {
			if op == mock.OpDeleteTask {
				return errors.New("item is locked")
			}
			return nil
		})
		res, err := m.Unschedule(ctx, "10.0.0.5")
		var pcErr *access.PartialCleanupError
		require.ErrorAs(t, err, &pcErr)
		assert.Len(t, pcErr.Failures, 2)
		assert.Equal(t, access.ChangePartial, res.Change)
		assert.Equal(t, 2, res.RulesRemoved)
		assert.Zero(t, res.TasksRemoved)
	})
}

func TestManager_List(t *testing.T) {
	t.Parallel()

	router := mock.New()
	m := newManager(t, router)
	ctx := context.Background()

	for _, ip := range []string{"10.0.0.50", "10.0.0.5"} {
		_, err := m.Schedule(ctx, newRequest(t, ip, "08:00", "18:00", "mon"))
		require.NoError(t, err)
	}
	router.AddRule(types.FirewallRule{Comment: "Programado-192.168.1.10-bloqueo"})
	router.AddRule(types.FirewallRule{Comment: "defconf: drop invalid"})
	require.NoError(t, router.Fire("scheduled-access-10.0.0.50-enable", time.Monday))

	states, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 3)

	got := make([]string, 0, len(states))
	for _, ws := range states {
		got = append(got, fmt.Sprintf("%s=%s", ws.IP, ws.State))
	}
	assert.Equal(t, []string{
		"10.0.0.5=blocked",
		"10.0.0.50=allowed",
		"192.168.1.10=inconsistent",
	}, got)
	assert.Equal(t, "08:00:00", states[0].Start)
	assert.Equal(t, "18:00:00", states[0].End)

	ws, err := m.Inspect(ctx, "10.0.0.99")
	require.NoError(t, err)
	assert.Equal(t, access.StateUnscheduled, ws.State)
	assert.Equal(t, "10.0.0.99", ws.IP)
}

type fakeHistory struct {
	mx     sync.Mutex
	events []*access.Event
	err    error
}

func (h *fakeHistory) Record(_ context.Context, ev *access.Event) error {
	h.mx.Lock()
	defer h.mx.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func TestManager_History(t *testing.T) {
	t.Parallel()

	router := mock.New()
	hist := &fakeHistory{}
	m := newManager(t, router, access.WithHistory(hist))
	ctx := context.Background()

	_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
	require.NoError(t, err)
	_, err = m.Unschedule(ctx, "10.0.0.5")
	require.NoError(t, err)
	_, err = m.Schedule(ctx, &access.Request{})
	require.Error(t, err)

	// Failing to record doesn't fail the operation.
	hist.err = errors.New("disk full")
	_, err = m.Unschedule(ctx, "10.0.0.5")
	require.NoError(t, err)

	require.Len(t, hist.events, 4)
	assert.Equal(t, access.OpSchedule, hist.events[0].Op)
	assert.Equal(t, access.ChangeComplete, hist.events[0].Result.Change)
	assert.Equal(t, "10.0.0.5", hist.events[0].Request.IP)
	assert.Equal(t, timeNow, hist.events[0].Time)
	assert.NoError(t, hist.events[0].Err)

	assert.Equal(t, access.OpUnschedule, hist.events[1].Op)
	assert.Nil(t, hist.events[1].Request)
	assert.Equal(t, 2, hist.events[1].Result.RulesRemoved)

	assert.Equal(t, access.ChangeNone, hist.events[2].Result.Change)
	assert.Error(t, hist.events[2].Err)
}

func TestManager_Metrics(t *testing.T) {
	t.Parallel()

	router := mock.New()
	reg := prometheus.NewRegistry()
	m := newManager(t, router, access.WithRegisterer(reg))
	ctx := context.Background()

	_, err := m.Schedule(ctx, newRequest(t, "10.0.0.5", "08:00", "18:00", "mon"))
	require.NoError(t, err)
	_, err = m.Schedule(ctx, newRequest(t, "10.0.0.5", "09:00", "18:00", "mon"))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	sums := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			sums[mf.GetName()] += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, sums["curfew_operations_total"])
	assert.Equal(t, 8.0, sums["curfew_objects_created_total"])
	assert.Equal(t, 4.0, sums["curfew_objects_removed_total"])
}
