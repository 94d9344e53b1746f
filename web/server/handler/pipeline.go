package handler

import (
	"log/slog"

	"go.hackfix.me/curfew/web/server/types"
)

// Pipeline defines the processing stages for HTTP requests and responses.
// It provides a fluent interface for configuring serialization and processors.
type Pipeline struct {
	serializer         Serializer
	errorLevel         types.ErrorLevel
	logger             *slog.Logger
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewPipeline creates a new empty pipeline for configuring request/response
// processing. Error messages are returned intact by default, and server errors
// are logged with the default logger.
func NewPipeline() *Pipeline {
	return &Pipeline{errorLevel: types.ErrorLevelFull, logger: slog.Default()}
}

// Logger sets the logger used for server errors and failed writes.
func (p *Pipeline) Logger(l *slog.Logger) *Pipeline {
	p.logger = l
	return p
}

// Serializer sets the request and response serializer for this pipeline.
func (p *Pipeline) Serializer(s Serializer) *Pipeline {
	p.serializer = s
	return p
}

// ErrorLevel sets the detail level of error messages returned to clients.
func (p *Pipeline) ErrorLevel(lvl types.ErrorLevel) *Pipeline {
	p.errorLevel = lvl
	return p
}

// ProcessRequest adds one or more request processors to the pipeline.
func (p *Pipeline) ProcessRequest(processor ...RequestProcessor) *Pipeline {
	p.requestProcessors = append(p.requestProcessors, processor...)
	return p
}

// ProcessResponse adds one or more response processors to the pipeline.
func (p *Pipeline) ProcessResponse(processor ...ResponseProcessor) *Pipeline {
	p.responseProcessors = append(p.responseProcessors, processor...)
	return p
}
