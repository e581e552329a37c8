package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrVersion = "version"
	attrEnv     = "env"
	attrJob     = "job"
	attrItem    = "item"
)

type itemKey struct{}

// WithItem marks ctx as belonging to one work item of a job: a profile
// handle or a project key. Records logged with the returned context carry
// it as the item attribute.
func WithItem(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, itemKey{}, id)
}

// ItemFromContext returns the work item set by [WithItem].
func ItemFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(itemKey{}).(string)

	return id, ok && id != ""
}

// TracingHandler is an [slog.Handler] stamping every record with the job
// identity, the current work item and the active span.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner. The service, version, env and job
// attributes from cfg are attached once, outside any group opened later.
func NewTracingHandler(inner slog.Handler, cfg Config) *TracingHandler {
	attrs := []slog.Attr{slog.String(attrService, cfg.ServiceName)}

	for _, a := range []slog.Attr{
		slog.String(attrVersion, cfg.ServiceVersion),
		slog.String(attrEnv, cfg.Environment),
		slog.String(attrJob, string(cfg.Job)),
	} {
		if a.Value.String() != "" {
			attrs = append(attrs, a)
		}
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds the item and span attributes found in ctx.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if id, ok := ItemFromContext(ctx); ok {
		record.AddAttrs(slog.String(attrItem, id))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	return th.inner.Handle(ctx, record)
}

// WithAttrs implements [slog.Handler].
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

// Discard returns a logger that drops every record. Jobs fall back to it when
// no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
