package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/freelaudit/pkg/observability"
)

func TestInstrumentResty_RecordsSpanAndMetric(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	pm, reader := setupTestMeter(t)

	client := resty.New().SetBaseURL(srv.URL)
	observability.InstrumentResty(client, tp.Tracer("test"), pm, nil)

	_, err := client.R().SetContext(context.Background()).Get("/ok")
	require.NoError(t, err)

	res, err := client.R().Get("/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode())

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "http GET", spans[0].Name())

	requests := findMetric(collectMetrics(t, reader), "freelaudit.http.requests.total")
	require.NotNil(t, requests)
	assert.Equal(t, int64(2), sumValue(t, requests))
}
