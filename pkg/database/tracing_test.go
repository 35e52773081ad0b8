package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestTraceQuery_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), Op{Backend: "sqlite", Name: "kv.get", Statement: "SELECT value FROM kv WHERE key = ?"})
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "storage.kv.get", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "sqlite", attrs["db.system"])
	assert.Equal(t, "kv.get", attrs["db.operation"])
}

func TestTraceQuery_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), Op{Backend: "redis", Name: "kv.set", Statement: "SET"})
	end(errors.New("READONLY"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Error", spans[0].Status.Code.String())
	assert.Len(t, spans[0].Events, 1)
}

func TestTraceQuery_NotFoundIsNotAnError(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), Op{Backend: "redis", Name: "kv.get", Statement: "GET"})
	end(apperrors.NotFound("key", "cart"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Unset", spans[0].Status.Code.String())
	assert.Empty(t, spans[0].Events)
}

func TestTraceQuery_SlowQueryLogged(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), Op{Backend: "sqlite", Name: "kv.set", Statement: "INSERT INTO kv"})
	time.Sleep(time.Millisecond)
	end(nil)

	assert.Contains(t, buf.String(), "slow storage operation")
	assert.Contains(t, buf.String(), "kv.set")
}

func TestTraceQuery_SlowQueryDisabled(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowQueryLogging(0, slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), Op{Backend: "sqlite", Name: "kv.get", Statement: "SELECT"})
	end(nil)

	assert.Zero(t, buf.Len())
}

func TestTraceQuery_ObservesDuration(t *testing.T) {
	setupTestTracer(t)

	_, end := TraceQuery(context.Background(), Op{Backend: "memtest", Name: "kv.delete", Statement: "DEL"})
	end(errors.New("boom"))

	assert.Equal(t, 1, testutil.CollectAndCount(opDuration.WithLabelValues("memtest", "kv.delete", "error").(prometheus.Histogram)))
}
