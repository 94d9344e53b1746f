package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go.hackfix.me/curfew/gateway/types"
)

// Operation is a change made to the windows of an address.
type Operation string

// Supported operations.
const (
	OpSchedule   Operation = "schedule"
	OpUnschedule Operation = "unschedule"
)

// Change describes how much of the router state was changed by an operation.
type Change string

// Possible changes.
const (
	// ChangeNone means the router state wasn't touched.
	ChangeNone Change = "none"
	// ChangePartial means some objects were changed, but the operation
	// failed before completing, and may need manual cleanup.
	ChangePartial Change = "partial"
	// ChangeComplete means the operation fully succeeded.
	ChangeComplete Change = "complete"
)

// Result is the outcome of an operation. It is returned even if the
// operation failed.
type Result struct {
	IP     string `json:"ip"`
	Tag    Tag    `json:"tag"`
	Change Change `json:"change"`
	// Window holds the objects that were created.
	Window *Window `json:"window,omitempty"`
	// Missing holds the objects that should have been created but weren't.
	Missing      []ObjectRef          `json:"missing,omitempty"`
	RulesRemoved int                  `json:"rules_removed"`
	TasksRemoved int                  `json:"tasks_removed"`
	CleanupErr   *PartialCleanupError `json:"-"`
}

// Event is a recorded operation outcome.
type Event struct {
	Op      Operation
	Time    time.Time
	Request *Request
	Result  *Result
	Err     error
}

// History stores the outcome of operations.
type History interface {
	Record(ctx context.Context, ev *Event) error
}

// Manager schedules access windows of client addresses on a router.
type Manager struct {
	gateway    types.Gateway
	locks      *keyLock
	metrics    *managerMetrics
	history    History
	registerer prometheus.Registerer
	timeNow    func() time.Time
	saltTags   bool
	taskPolicy string
	logger     *slog.Logger
}

// NewManager returns a new Manager instance.
func NewManager(gateway types.Gateway, opts ...Option) (*Manager, error) {
	if gateway == nil {
		return nil, errors.New("gateway implementation is required")
	}

	m := &Manager{gateway: gateway, locks: newKeyLock()}

	opts = append(DefaultOptions(), opts...)
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.metrics = newManagerMetrics(m.registerer)

	return m, nil
}

// Schedule replaces any window of req.IP on the router with a new one. The
// address is blocked immediately, and allowed only between req.Start and
// req.End on req.Days.
//
// Failures to remove stale objects are reported in Result.CleanupErr, but
// don't prevent the new window from being created. The new window then gets a
// salted tag, so it stays independent of the leftovers. Any other failure is
// returned as an error, and Result.Change tells whether the router was left
// untouched or partially changed.
func (m *Manager) Schedule(ctx context.Context, req *Request) (res *Result, err error) {
	res = &Result{Change: ChangeNone}
	defer func() { m.finish(ctx, OpSchedule, req, res, err) }()

	if req == nil {
		return res, &ValidationError{Field: "request", Msg: "must not be empty"}
	}
	if err = req.Validate(); err != nil {
		return res, err
	}

	res.IP = req.IP
	now := m.timeNow()
	res.Tag = TagFor(req.IP)
	if m.saltTags {
		res.Tag = SaltedTagFor(req.IP, now)
	}
	logger := m.logger.With("ip", req.IP, "tag", res.Tag.String())

	conn, err := m.connect(ctx)
	if err != nil {
		return res, err
	}
	defer m.closeConn(conn, logger)

	unlock, err := m.locks.Lock(ctx, req.IP)
	if err != nil {
		return res, fmt.Errorf("failed acquiring lock for '%s': %w", req.IP, err)
	}
	defer unlock()

	rec, err := Reconcile(ctx, conn, req.IP, logger)
	if err != nil {
		return res, err
	}
	res.RulesRemoved, res.TasksRemoved, res.CleanupErr = rec.RulesRemoved, rec.TasksRemoved, rec.Err
	if rec.Removed() > 0 {
		res.Change = ChangePartial
	}
	if rec.Err != nil && !m.saltTags {
		// Leftover tasks would clash with the new task names, and leftover
		// scripts would toggle the new rules by comment.
		res.Tag = SaltedTagFor(req.IP, now)
		logger = m.logger.With("ip", req.IP, "tag", res.Tag.String())
		logger.Warn("stale objects remain, using a salted tag for the new window")
	}

	res.Window, err = Materialize(ctx, conn, req, res.Tag, now, m.taskPolicy, logger)
	if err != nil {
		var pcErr *PartialCreationError
		if errors.As(err, &pcErr) {
			res.Missing = pcErr.Missing
			if len(pcErr.Created) > 0 {
				res.Change = ChangePartial
			}
			m.metrics.creationFailures.Inc()
		}
		return res, err
	}

	res.Change = ChangeComplete
	if res.CleanupErr != nil {
		res.Change = ChangePartial
	}

	logger.Info("scheduled access window",
		"start", req.Start.String(), "end", req.End.String(), "days", req.Days.String(),
		"overnight", req.IsOvernight(),
		"rules_removed", res.RulesRemoved, "tasks_removed", res.TasksRemoved,
		"change", res.Change)

	return res, nil
}

// Unschedule removes every window of ip from the router. If some objects
// couldn't be removed, a *PartialCleanupError is returned.
func (m *Manager) Unschedule(ctx context.Context, ip string) (res *Result, err error) {
	res = &Result{Change: ChangeNone}
	defer func() { m.finish(ctx, OpUnschedule, nil, res, err) }()

	canonIP, err := ParseAddress(ip)
	if err != nil {
		return res, &ValidationError{Field: "ip_address", Msg: err.Error()}
	}
	res.IP = canonIP
	res.Tag = TagFor(canonIP)
	logger := m.logger.With("ip", canonIP)

	conn, err := m.connect(ctx)
	if err != nil {
		return res, err
	}
	defer m.closeConn(conn, logger)

	unlock, err := m.locks.Lock(ctx, canonIP)
	if err != nil {
		return res, fmt.Errorf("failed acquiring lock for '%s': %w", canonIP, err)
	}
	defer unlock()

	rec, err := Reconcile(ctx, conn, canonIP, logger)
	if err != nil {
		return res, err
	}
	res.RulesRemoved, res.TasksRemoved, res.CleanupErr = rec.RulesRemoved, rec.TasksRemoved, rec.Err

	if rec.Err != nil {
		if rec.Removed() > 0 {
			res.Change = ChangePartial
		}
		return res, rec.Err
	}
	res.Change = ChangeComplete

	logger.Info("unscheduled access window",
		"rules_removed", res.RulesRemoved, "tasks_removed", res.TasksRemoved)

	return res, nil
}

// Inspect returns the current state of the window of ip on the router.
func (m *Manager) Inspect(ctx context.Context, ip string) (*WindowState, error) {
	canonIP, err := ParseAddress(ip)
	if err != nil {
		return nil, &ValidationError{Field: "ip_address", Msg: err.Error()}
	}

	states, err := m.states(ctx, func(name string) (string, bool) {
		return canonIP, Matches(canonIP, name)
	})
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return &WindowState{IP: canonIP, State: StateUnscheduled}, nil
	}

	return states[0], nil
}

// List returns the state of every window on the router, sorted by address.
func (m *Manager) List(ctx context.Context) ([]*WindowState, error) {
	return m.states(ctx, func(name string) (string, bool) {
		ip, _, ok := parseAnyName(name)
		return ip, ok
	})
}

// states groups the router objects selected by match by address, and derives
// the state of each group.
func (m *Manager) states(ctx context.Context, match func(name string) (ip string, ok bool)) ([]*WindowState, error) {
	conn, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.closeConn(conn, m.logger)

	rules, err := conn.ListFirewallRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed listing firewall rules: %w", err)
	}
	tasks, err := conn.ListScheduledTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed listing scheduled tasks: %w", err)
	}

	byIP := make(map[string]*WindowState)
	get := func(ip string) *WindowState {
		ws, ok := byIP[ip]
		if !ok {
			ws = &WindowState{IP: ip}
			byIP[ip] = ws
		}
		return ws
	}
	for _, r := range rules {
		if ip, ok := match(r.Comment); ok {
			ws := get(ip)
			ws.Rules = append(ws.Rules, r)
		}
	}
	for _, t := range tasks {
		if ip, ok := match(t.Name); ok {
			ws := get(ip)
			ws.Tasks = append(ws.Tasks, t)
		}
	}

	states := make([]*WindowState, 0, len(byIP))
	for _, ws := range byIP {
		ws.derive()
		states = append(states, ws)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].IP < states[j].IP })

	return states, nil
}

func (m *Manager) connect(ctx context.Context) (types.Conn, error) {
	conn, err := m.gateway.Connect(ctx)
	if err != nil {
		return nil, &ConnectivityError{Err: err}
	}
	return conn, nil
}

func (m *Manager) closeConn(conn types.Conn, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Warn("failed closing router connection", "error", err.Error())
	}
}

// finish records the outcome of an operation in metrics and history.
func (m *Manager) finish(ctx context.Context, op Operation, req *Request, res *Result, err error) {
	m.metrics.observe(op, res)

	if err != nil {
		m.logger.Error(fmt.Sprintf("failed to %s access window", op),
			"ip", res.IP, "change", res.Change, "error", err.Error())
	}

	if m.history == nil {
		return
	}
	ev := &Event{Op: op, Time: m.timeNow(), Request: req, Result: res, Err: err}
	if herr := m.history.Record(context.WithoutCancel(ctx), ev); herr != nil {
		m.logger.Warn("failed recording history", "op", op, "ip", res.IP, "error", herr.Error())
	}
}
