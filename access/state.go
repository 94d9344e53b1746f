package access

import "go.hackfix.me/curfew/gateway/types"

// State is the access state of an address as enforced by the router.
type State string

// Window states.
const (
	// StateUnscheduled means there are no objects for the address.
	StateUnscheduled State = "unscheduled"
	// StateBlocked means the block rule is enabled and the allow rule
	// disabled, i.e. the address is outside its window.
	StateBlocked State = "blocked"
	// StateAllowed means the allow rule is enabled and the block rule
	// disabled, i.e. the address is inside its window.
	StateAllowed State = "allowed"
	// StateInconsistent means the objects of the window are incomplete,
	// duplicated, or the rules are toggled in a way that the tasks never
	// produce. Scheduling the address again repairs it.
	StateInconsistent State = "inconsistent"
)

// WindowState is the live state of the window of an address.
type WindowState struct {
	IP    string                `json:"ip"`
	State State                 `json:"state"`
	Start string                `json:"start_time,omitempty"`
	End   string                `json:"end_time,omitempty"`
	Rules []types.FirewallRule  `json:"rules"`
	Tasks []types.ScheduledTask `json:"tasks"`
}

// derive sets the state and window times from the objects.
func (ws *WindowState) derive() {
	ws.State = StateUnscheduled
	if len(ws.Rules) == 0 && len(ws.Tasks) == 0 {
		return
	}

	var block, allow []types.FirewallRule
	for _, r := range ws.Rules {
		_, role, _ := parseAnyName(r.Comment)
		switch role {
		case RoleBlock:
			block = append(block, r)
		case RoleAllow:
			allow = append(allow, r)
		}
	}

	var enable, disable int
	for _, t := range ws.Tasks {
		_, role, _ := parseAnyName(t.Name)
		switch role {
		case RoleEnable:
			enable++
			ws.Start = t.StartTime
		case RoleDisable:
			disable++
			ws.End = t.StartTime
		}
	}

	ws.State = StateInconsistent
	if len(block) != 1 || len(allow) != 1 || enable != 1 || disable != 1 {
		return
	}
	switch {
	case !block[0].Disabled && allow[0].Disabled:
		ws.State = StateBlocked
	case block[0].Disabled && !allow[0].Disabled:
		ws.State = StateAllowed
	}
}
