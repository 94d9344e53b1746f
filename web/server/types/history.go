package types

import (
	"net/http"
	"strconv"
	"time"

	"go.hackfix.me/curfew/access"
	"go.hackfix.me/curfew/db/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// HistoryRequest is the request to list recorded operation outcomes. The
// address and limit are read from the query string.
type HistoryRequest struct {
	BaseRequest `json:"-"`

	ip    string
	limit int
}

// Validate parses the query parameters.
func (r *HistoryRequest) Validate() error {
	q := r.URL.Query()

	if ip := q.Get("ip"); ip != "" {
		canon, err := access.ParseAddress(ip)
		if err != nil {
			return NewError(http.StatusBadRequest, err.Error())
		}
		r.ip = canon
	}

	r.limit = defaultHistoryLimit
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 || limit > maxHistoryLimit {
			return NewError(http.StatusBadRequest,
				"limit must be a number between 1 and "+strconv.Itoa(maxHistoryLimit))
		}
		r.limit = limit
	}

	return nil
}

// IP returns the address to filter by. It's empty if all events are requested.
func (r *HistoryRequest) IP() string {
	return r.ip
}

// Limit returns the maximum number of events to return.
func (r *HistoryRequest) Limit() int {
	return r.limit
}

// EventData is a recorded operation outcome.
type EventData struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"created_at"`
	Op           access.Operation   `json:"op"`
	IP           string             `json:"ip"`
	Tag          string             `json:"tag,omitempty"`
	Change       access.Change      `json:"change"`
	Start        string             `json:"start_time,omitempty"`
	End          string             `json:"end_time,omitempty"`
	Days         string             `json:"days,omitempty"`
	Timezone     string             `json:"timezone,omitempty"`
	RulesRemoved int                `json:"rules_removed"`
	TasksRemoved int                `json:"tasks_removed"`
	Objects      []access.ObjectRef `json:"objects"`
	Missing      []access.ObjectRef `json:"missing,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// NewEventData converts an event record.
func NewEventData(ev *models.Event) EventData {
	return EventData{
		ID:           ev.UUID,
		CreatedAt:    ev.CreatedAt,
		Op:           ev.Op,
		IP:           ev.IP,
		Tag:          ev.Tag,
		Change:       ev.Change,
		Start:        ev.Start.V,
		End:          ev.End.V,
		Days:         ev.Days.V,
		Timezone:     ev.Timezone.V,
		RulesRemoved: ev.RulesRemoved,
		TasksRemoved: ev.TasksRemoved,
		Objects:      ev.Objects,
		Missing:      ev.Missing,
		Error:        ev.Error.V,
	}
}

// HistoryResponse is the response to a history request.
type HistoryResponse struct {
	BaseResponse
	Data []EventData `json:"data"`
}
