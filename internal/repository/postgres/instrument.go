package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/honeynil/ShopBotLedger/internal/infrastructure/observability"
)

const uniqueViolation = "23505"

// instrument opens a span for a repository method and returns the closer that
// records metrics. Call it as `defer done(&err)` with a named error result.
func instrument(ctx context.Context, tracerName, method string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method)
	span.SetAttributes(attrs...)
	start := time.Now()

	return ctx, func(errp *error) {
		status := "success"
		if errp != nil && *errp != nil {
			status = "error"
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}

// uniqueConstraint returns the violated constraint name, or "" when err is not
// a unique violation.
func uniqueConstraint(err error) string {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if pqErr.Constraint == "" {
			return "unknown"
		}
		return pqErr.Constraint
	}
	return ""
}
