package types

import (
	"context"
	"fmt"
)

// GatewayType are the supported gateway implementations.
type GatewayType string

// All supported gateway implementations.
const (
	GatewayMock GatewayType = "mock"
	GatewayREST GatewayType = "rest"
)

// GatewayTypeFromString returns a valid GatewayType for the given string, or
// an error if the value is invalid.
func GatewayTypeFromString(val string) (GatewayType, error) {
	switch GatewayType(val) {
	case GatewayMock:
		return GatewayMock, nil
	case GatewayREST:
		return GatewayREST, nil
	}
	return "", fmt.Errorf("unsupported gateway type '%s'", val)
}

// Gateway is the entry point to a router's control interface.
type Gateway interface {
	// Connect opens a session with the router. Implementations should verify
	// that the router is reachable and that the credentials are accepted, so
	// that connectivity problems surface before any change is attempted.
	Connect(ctx context.Context) (Conn, error)
}

// Conn is a session with a router. It must be closed after use.
type Conn interface {
	ListFirewallRules(ctx context.Context) ([]FirewallRule, error)
	CreateFirewallRule(ctx context.Context, rule FirewallRule) (id string, err error)
	DeleteFirewallRule(ctx context.Context, id string) error

	ListScheduledTasks(ctx context.Context) ([]ScheduledTask, error)
	CreateScheduledTask(ctx context.Context, task ScheduledTask) (id string, err error)
	DeleteScheduledTask(ctx context.Context, id string) error

	Close() error
}

// Action is the verdict of a firewall rule.
type Action string

// Supported firewall rule actions.
const (
	ActionDrop   Action = "drop"
	ActionAccept Action = "accept"
)

// ChainForward is the chain traversed by routed traffic.
const ChainForward = "forward"

// FirewallRule is a filter rule on the router. The Comment is the only
// stable handle to a rule, since IDs are assigned by the router.
type FirewallRule struct {
	ID         string `json:"id,omitempty"`
	Chain      string `json:"chain"`
	SrcAddress string `json:"src_address"`
	Action     Action `json:"action"`
	Comment    string `json:"comment"`
	Disabled   bool   `json:"disabled"`
}

// ScheduledTask is an entry in the router's scheduler. OnEvent is the script
// the router runs each time the task fires.
type ScheduledTask struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	StartDate string `json:"start_date"`
	Interval  string `json:"interval"`
	OnEvent   string `json:"on_event"`
	Policy    string `json:"policy"`
	Comment   string `json:"comment"`
	Disabled  bool   `json:"disabled"`
}

// RemoteError is an error reported by the router. The message and detail are
// kept verbatim.
type RemoteError struct {
	StatusCode int
	Message    string
	Detail     string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("router error %d", e.StatusCode)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return msg
}
