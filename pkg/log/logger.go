package log

import (
	"context"

	"github.com/smallbiznis/dataverse/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithContext adds the non-empty scope and trace identifiers of ctx to base.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}
	fields := Fields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

func Fields(ctx context.Context) []zap.Field {
	scope := correlation.FromContext(ctx)
	fields := make([]zap.Field, 0, 6)
	add := func(key, value string) {
		if value != "" {
			fields = append(fields, zap.String(key, value))
		}
	}
	add("correlation_id", scope.CorrelationID)
	add("request_id", scope.RequestID)
	add("dataset_id", scope.DatasetID)
	add("buyer_address", scope.Buyer)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		add("trace_id", sc.TraceID().String())
		add("span_id", sc.SpanID().String())
	}
	return fields
}
