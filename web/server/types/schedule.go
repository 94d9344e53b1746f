package types

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.hackfix.me/curfew/access"
	gtypes "go.hackfix.me/curfew/gateway/types"
)

// DayList is a list of weekdays. In JSON it may be given either as an array
// of strings, or as a single comma-separated string.
type DayList []string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *DayList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*d = list
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("days must be an array of strings or a comma-separated string")
	}
	*d = strings.Split(s, ",")

	return nil
}

// SchedulePostRequest is the request to replace the access window of an
// address.
type SchedulePostRequest struct {
	BaseRequest `json:"-"`
	IPAddress   string  `json:"ip_address"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Days        DayList `json:"days"`
	Timezone    string  `json:"timezone,omitempty"`

	parsed *access.Request
}

// Validate parses the request values. It must be called before AccessRequest.
func (r *SchedulePostRequest) Validate() error {
	req, err := access.NewRequest(r.IPAddress, r.StartTime, r.EndTime, r.Days, r.Timezone)
	if err != nil {
		return NewError(http.StatusBadRequest, err.Error())
	}
	r.parsed = req

	return nil
}

// AccessRequest returns the parsed request.
func (r *SchedulePostRequest) AccessRequest() *access.Request {
	return r.parsed
}

// ScheduleRequest is a request that targets the window of a single address,
// given in the URL path.
type ScheduleRequest struct {
	BaseRequest `json:"-"`

	ip string
}

// Validate checks that the address in the path is valid.
func (r *ScheduleRequest) Validate() error {
	ip, err := access.ParseAddress(r.PathValue("ip"))
	if err != nil {
		return NewError(http.StatusBadRequest, err.Error())
	}
	r.ip = ip

	return nil
}

// IP returns the canonical address from the path.
func (r *ScheduleRequest) IP() string {
	return r.ip
}

// ScheduleListRequest is the request to list all windows.
type ScheduleListRequest struct {
	BaseRequest `json:"-"`
}

// CleanupError is a stale object that couldn't be removed.
type CleanupError struct {
	Object access.ObjectRef `json:"object"`
	Error  string           `json:"error"`
}

// ScheduleResponseData is the outcome of a schedule or unschedule operation.
type ScheduleResponseData struct {
	IP            string                 `json:"ip"`
	Tag           string                 `json:"tag,omitempty"`
	Change        access.Change          `json:"change"`
	Rules         []gtypes.FirewallRule  `json:"rules"`
	Tasks         []gtypes.ScheduledTask `json:"tasks"`
	Missing       []access.ObjectRef     `json:"missing,omitempty"`
	RulesRemoved  int                    `json:"rules_removed"`
	TasksRemoved  int                    `json:"tasks_removed"`
	CleanupErrors []CleanupError         `json:"cleanup_errors,omitempty"`
}

// ScheduleResponse is the response to a schedule or unschedule request. The
// data is sent even if the operation failed, so that clients can see what
// was changed on the router.
type ScheduleResponse struct {
	BaseResponse
	Data *ScheduleResponseData `json:"data,omitempty"`
}

// NewScheduleResponse converts an operation result into a response.
func NewScheduleResponse(statusCode int, res *access.Result) *ScheduleResponse {
	resp := &ScheduleResponse{BaseResponse: NewBaseResponse(statusCode, nil)}
	if res == nil {
		return resp
	}

	data := &ScheduleResponseData{
		IP:           res.IP,
		Change:       res.Change,
		Rules:        []gtypes.FirewallRule{},
		Tasks:        []gtypes.ScheduledTask{},
		Missing:      res.Missing,
		RulesRemoved: res.RulesRemoved,
		TasksRemoved: res.TasksRemoved,
	}
	if res.Tag.IP != "" {
		data.Tag = res.Tag.String()
	}
	if res.Window != nil {
		data.Rules = res.Window.Rules
		data.Tasks = res.Window.Tasks
	}
	if res.CleanupErr != nil {
		for _, f := range res.CleanupErr.Failures {
			data.CleanupErrors = append(data.CleanupErrors, CleanupError{
				Object: f.Object, Error: f.Err.Error(),
			})
		}
	}
	resp.Data = data

	return resp
}

// WindowResponse is the response to a request to inspect a single window.
type WindowResponse struct {
	BaseResponse
	Data *access.WindowState `json:"data,omitempty"`
}

// WindowListResponse is the response to a request to list all windows.
type WindowListResponse struct {
	BaseResponse
	Data []*access.WindowState `json:"data"`
}

// StatusCode returns the HTTP status code that corresponds to an access error.
func StatusCode(err error) int {
	var (
		valErr      *access.ValidationError
		connErr     *access.ConnectivityError
		creationErr *access.PartialCreationError
		cleanupErr  *access.PartialCleanupError
		remoteErr   *gtypes.RemoteError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &creationErr), errors.As(err, &cleanupErr), errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewAccessError converts an access error into an HTTP error.
func NewAccessError(err error) *Error {
	terr := NewError(StatusCode(err), err.Error())

	var creationErr *access.PartialCreationError
	if errors.As(err, &creationErr) {
		terr.Details = map[string]any{
			"created": creationErr.Created,
			"missing": creationErr.Missing,
		}
	}

	return terr
}
