package context

import (
	stdcontext "context"

	"github.com/google/uuid"
)

// TraceContext carries only cross-cutting concerns needed for observability.
type TraceContext struct {
	TraceID string            // Globally unique ID for logs and spans
	SpanID  string            // Current span identifier
	Baggage map[string]string // Optional key-value flags (e.g., correlation data)
	stdCtx  stdcontext.Context
}

// NewTraceContext creates a new TraceContext with a unique TraceID and an initial SpanID.
// A nil parent is replaced with context.Background().
func NewTraceContext(parent stdcontext.Context) TraceContext {
	return NewTraceContextWithIDs(parent, uuid.NewString(), uuid.NewString())
}

// NewTraceContextWithIDs keeps an existing trace id, e.g. when a span was opened
// on the underlying context.
func NewTraceContextWithIDs(parent stdcontext.Context, traceID, spanID string) TraceContext {
	if parent == nil {
		parent = stdcontext.Background()
	}
	return TraceContext{
		TraceID: traceID,
		SpanID:  spanID,
		Baggage: make(map[string]string),
		stdCtx:  parent,
	}
}

// Context returns the standard context the trace is bound to.
func (tc TraceContext) Context() stdcontext.Context {
	if tc.stdCtx == nil {
		return stdcontext.Background()
	}
	return tc.stdCtx
}

// WithContext rebinds the trace to ctx, keeping ids and baggage.
func (tc TraceContext) WithContext(ctx stdcontext.Context) TraceContext {
	tc.stdCtx = ctx
	return tc
}

// GetTraceID returns the trace id.
func (tc TraceContext) GetTraceID() string {
	return tc.TraceID
}

// NewSpan generates a new SpanID for a child operation within the same trace.
func (tc *TraceContext) NewSpan() string {
	tc.SpanID = uuid.NewString()
	return tc.SpanID
}
