package types

import (
	"errors"
	"net/http"
)

// Response defines the interface for HTTP response wrappers.
type Response interface {
	GetStatusCode() int
	SetStatusCode(int)
	GetError() error
	SetError(*Error)
	GetHeader() http.Header
	SetHeader(http.Header)
}

// BaseResponse provides a base implementation for HTTP responses. The status
// code is only sent in the HTTP status line.
type BaseResponse struct {
	StatusCode int    `json:"-"`
	Error      *Error `json:"error,omitempty"`
	header     http.Header
}

var _ Response = (*BaseResponse)(nil)

// NewBaseResponse returns a new response with the specified status code and
// optional error.
func NewBaseResponse(statusCode int, err error) BaseResponse {
	resp := BaseResponse{StatusCode: statusCode}
	if err != nil {
		var terr *Error
		if !errors.As(err, &terr) {
			terr = NewError(statusCode, err.Error())
		}
		resp.Error = terr
	}

	return resp
}

// GetStatusCode returns the HTTP status code for the response.
func (r *BaseResponse) GetStatusCode() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

// SetStatusCode sets the HTTP status code for the response.
func (r *BaseResponse) SetStatusCode(code int) {
	r.StatusCode = code
}

// GetError returns the response error, if any.
func (r *BaseResponse) GetError() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// SetError sets the response error.
func (r *BaseResponse) SetError(err *Error) {
	r.Error = err
}

// GetHeader returns the headers that will be written with the response.
func (r *BaseResponse) GetHeader() http.Header {
	if r.header == nil {
		r.header = http.Header{}
	}
	return r.header
}

// SetHeader copies the response headers into h.
func (r *BaseResponse) SetHeader(h http.Header) {
	for k, v := range r.header {
		h[k] = v
	}
	r.header = h
}
