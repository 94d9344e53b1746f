package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"go.hackfix.me/curfew/web/server/types"
)

// Handle returns an HTTP handler that runs handlerFn through the stages of
// pipeline p: request decoding, validation, request processors, the handler
// itself, response encoding, response processors and finally writing.
//
// Req and Resp must be pointers to concrete types. A fresh value of each is
// created per request, so handlers can return a nil response on error and
// still get an error body.
func Handle[Req types.Request, Resp types.Response](
	handlerFn func(context.Context, Req) (Resp, error),
	p *Pipeline,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := &call{ctx: r.Context(), p: p, resp: newValue[Resp]()}
		defer c.respond(w)

		req := newValue[Req]()
		req.SetHTTPRequest(r)

		if c.fail(c.decode(req)) || c.fail(validate(req)) {
			return
		}

		var err error
		for _, process := range p.requestProcessors {
			if c.ctx, err = process(c.ctx, req); c.fail(err) {
				return
			}
		}

		resp, err := handlerFn(c.ctx, req)
		if !isNil(resp) {
			c.resp = resp
		}
		c.fail(err)
	}
}

// call holds the state of a single request as it moves through a pipeline.
type call struct {
	ctx  context.Context //nolint:containedctx // Scoped to one request.
	p    *Pipeline
	resp types.Response
}

func (c *call) decode(req types.Request) error {
	if c.p.serializer == nil {
		return nil
	}
	var err error
	c.ctx, err = c.p.serializer.Deserialize(c.ctx, req)
	return err
}

func validate(req any) error {
	if v, ok := req.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// fail sets err on the response and reports whether err was non-nil. Errors
// that aren't *types.Error are treated as internal server errors. Server
// errors are logged with their full message, since clients may only see a
// sanitized version of it.
func (c *call) fail(err error) bool {
	if err == nil {
		return false
	}

	var terr *types.Error
	if !errors.As(err, &terr) || terr == nil {
		terr = types.NewError(http.StatusInternalServerError, err.Error())
	} else if terr.StatusCode == 0 {
		terr.StatusCode = http.StatusInternalServerError
	}

	if terr.StatusCode >= http.StatusInternalServerError {
		c.p.logger.Error("request failed", "status_code", terr.StatusCode, "error", err.Error())
	}

	c.resp.SetStatusCode(terr.StatusCode)
	c.resp.SetError(terr.Sanitize(c.p.errorLevel))

	return true
}

// respond encodes and writes the response. It runs deferred, so it also
// turns a handler panic into a 500 response.
func (c *call) respond(w http.ResponseWriter) {
	if rec := recover(); rec != nil {
		if rec == http.ErrAbortHandler { //nolint:errorlint,err113 // Sentinel panic value.
			panic(rec)
		}
		c.fail(fmt.Errorf("handler panic: %v", rec))
	}

	c.resp.SetHeader(w.Header())

	var err error
	if s := c.p.serializer; s != nil {
		if c.ctx, err = s.Serialize(c.ctx, c.resp); c.fail(err) {
			// Try once more, so that at least the error is encoded.
			c.ctx, _ = s.Serialize(c.ctx, c.resp)
		}
	}

	for _, process := range c.p.responseProcessors {
		if c.ctx, err = process(c.ctx, c.resp); c.fail(err) {
			break
		}
	}

	if err = writeResponse(c.ctx, w, c.resp); err != nil {
		c.p.logger.Warn("failed writing response", "error", err.Error())
	}
}

// newValue returns a pointer to a new zero value of the type T points to.
//
//nolint:ireturn // Required for generic functionality.
func newValue[T any]() T {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("handler type %s must be a pointer", typ))
	}
	return reflect.New(typ.Elem()).Interface().(T) //nolint:forcetypeassert // Checked above.
}

func isNil(resp types.Response) bool {
	if resp == nil {
		return true
	}
	v := reflect.ValueOf(resp)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
