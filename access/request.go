package access

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"go.hackfix.me/curfew/xtime"
)

// Request is a request to allow access from a client address only within a
// daily time window. End may be earlier than Start, in which case the window
// spans midnight.
type Request struct {
	IP    string
	Start xtime.TimeOfDay
	End   xtime.TimeOfDay
	Days  xtime.Days
	// Timezone is an informational label of the timezone Start and End are
	// expressed in. The router's clock is authoritative.
	Timezone string
}

// NewRequest parses and validates raw request values. It returns a
// *ValidationError if any value is missing or malformed.
func NewRequest(ip, start, end string, days []string, timezone string) (*Request, error) {
	var err error
	req := &Request{Timezone: strings.TrimSpace(timezone)}

	if strings.TrimSpace(ip) == "" {
		return nil, &ValidationError{Field: "ip_address", Msg: "must not be empty"}
	}
	if req.IP, err = ParseAddress(ip); err != nil {
		return nil, &ValidationError{Field: "ip_address", Msg: err.Error()}
	}

	if strings.TrimSpace(start) == "" {
		return nil, &ValidationError{Field: "start_time", Msg: "must not be empty"}
	}
	if req.Start, err = xtime.ParseTimeOfDay(start); err != nil {
		return nil, &ValidationError{Field: "start_time", Msg: err.Error()}
	}

	if strings.TrimSpace(end) == "" {
		return nil, &ValidationError{Field: "end_time", Msg: "must not be empty"}
	}
	if req.End, err = xtime.ParseTimeOfDay(end); err != nil {
		return nil, &ValidationError{Field: "end_time", Msg: err.Error()}
	}

	if req.Days, err = xtime.ParseDays(days...); err != nil {
		return nil, &ValidationError{Field: "days", Msg: err.Error()}
	}

	if err = req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks that the request is ready for processing.
func (r *Request) Validate() error {
	if r.IP == "" {
		return &ValidationError{Field: "ip_address", Msg: "must not be empty"}
	}
	if ip, err := ParseAddress(r.IP); err != nil {
		return &ValidationError{Field: "ip_address", Msg: err.Error()}
	} else if ip != r.IP {
		return &ValidationError{Field: "ip_address", Msg: "must be in canonical form '" + ip + "'"}
	}
	if r.Days.IsEmpty() {
		return &ValidationError{Field: "days", Msg: "must contain at least one weekday"}
	}
	return nil
}

// IsOvernight reports whether the window spans midnight. A window whose start
// and end are equal is considered overnight.
func (r *Request) IsOvernight() bool {
	return !r.Start.Before(r.End)
}

// ParseAddress parses an IP address string in plain, CIDR or range notation,
// and returns it in canonical form. CIDR prefixes are masked, so that
// "10.0.0.5/24" becomes "10.0.0.0/24", and single address ranges and
// full-length prefixes collapse to the plain address.
func ParseAddress(ip string) (string, error) {
	ip = strings.TrimSpace(ip)

	// Try a plain address first
	if addr, err := netip.ParseAddr(ip); err == nil {
		if addr.Zone() != "" {
			return "", fmt.Errorf("failed parsing IP address '%s': zoned addresses are not supported", ip)
		}
		return addr.Unmap().String(), nil
	}

	// Try a prefix (CIDR) next
	if prefix, err := netip.ParsePrefix(ip); err == nil {
		prefix = prefix.Masked()
		if prefix.IsSingleIP() {
			return prefix.Addr().String(), nil
		}
		return prefix.String(), nil
	}

	// Finally try a range
	ipRange, err := netipx.ParseIPRange(ip)
	if err != nil {
		return "", fmt.Errorf("failed parsing IP address '%s': %w", ip, err)
	}
	if ipRange.From() == ipRange.To() {
		return ipRange.From().String(), nil
	}
	if prefix, ok := ipRange.Prefix(); ok {
		return prefix.String(), nil
	}

	return ipRange.String(), nil
}
