package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const tracerName = "github.com/utafrali/storefront/pkg/database"

var opDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "storefront_storage_operation_duration_seconds",
		Help:    "Duration of local storage operations",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	},
	[]string{"backend", "operation", "outcome"},
)

type slowOpLogger struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowOps atomic.Pointer[slowOpLogger]

// SetSlowQueryLogging logs storage operations slower than threshold as
// warnings. A zero threshold or nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowOps.Store(nil)
		return
	}
	slowOps.Store(&slowOpLogger{threshold: threshold, logger: logger})
}

// Op names one storage round trip.
type Op struct {
	Backend   string // sqlite, redis
	Name      string // kv.get, kv.set, kv.delete
	Statement string // SQL text or redis command
}

// TraceQuery starts a span for op and returns the function that ends it:
//
//	ctx, end := database.TraceQuery(ctx, database.Op{Backend: "sqlite", Name: "kv.get", Statement: getQuery})
//	defer func() { end(err) }()
//
// Ending the span also records the duration histogram and, when enabled,
// the slow operation warning.
func TraceQuery(ctx context.Context, op Op) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "storage."+op.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", op.Backend),
			attribute.String("db.operation", op.Name),
			attribute.String("db.statement", op.Statement),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		outcome := "ok"
		if err != nil && !apperrors.IsNotFound(err) {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		opDuration.WithLabelValues(op.Backend, op.Name, outcome).Observe(elapsed.Seconds())

		slow := slowOps.Load()
		if slow == nil || elapsed < slow.threshold {
			return
		}
		attrs := []any{
			slog.String("backend", op.Backend),
			slog.String("operation", op.Name),
			slog.String("statement", op.Statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		slow.logger.WarnContext(ctx, "slow storage operation", attrs...)
	}
}
