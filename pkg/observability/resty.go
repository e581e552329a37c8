package observability

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const statusTransportError = "error"

// InstrumentResty opens a client span per request, counts requests in
// metrics and logs failures. tracer, metrics and logger may be nil.
func InstrumentResty(client *resty.Client, tracer trace.Tracer, metrics *PipelineMetrics, logger *slog.Logger) {
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}

	if logger == nil {
		logger = Discard()
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), "http "+req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(semconv.HTTPRequestMethodKey.String(req.Method)),
		)
		req.SetContext(ctx)

		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		ctx := res.Request.Context()
		span := trace.SpanFromContext(ctx)
		defer span.End()

		span.SetAttributes(
			semconv.URLFull(res.Request.URL),
			semconv.HTTPResponseStatusCode(res.StatusCode()),
		)

		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
		}

		metrics.RecordHTTP(ctx, hostOf(res.Request.URL), statusClass(res.StatusCode()))
		logger.DebugContext(ctx, "http request",
			"method", res.Request.Method, "url", res.Request.URL,
			"status", res.StatusCode(), "duration", res.Time())

		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		ctx := req.Context()
		span := trace.SpanFromContext(ctx)
		defer span.End()

		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")

		metrics.RecordHTTP(ctx, hostOf(req.URL), statusTransportError)
		logger.WarnContext(ctx, "http request failed", "method", req.Method, "url", req.URL, "error", err)
	})
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}

	return parsed.Host
}
