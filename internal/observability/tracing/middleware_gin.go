package tracing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dataverse/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dataverse/http"

// GinMiddleware opens a server span per request, continuing any inbound W3C trace.
// It runs after the logging middleware so the request id is already in the context.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := correlation.FromContext(ctx).RequestID; requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.FromContext(ctx).SetMember(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.String("dataset_id", c.GetString("dataset_id")),
		)...)

		if status < http.StatusInternalServerError {
			return
		}
		if last := c.Errors.Last(); last != nil {
			if err := SafeError(last.Err); err != nil {
				span.RecordError(err)
			}
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// Keys that can identify a buyer or leak a gateway secret never reach span attributes.
var redactedKeys = map[attribute.Key]bool{
	"buyer_address":      true,
	"razorpay_signature": true,
	"key_secret":         true,
	"tx_hash":            true,
}

// SafeAttributes drops redacted keys and empty strings.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, kv := range attrs {
		if redactedKeys[kv.Key] {
			continue
		}
		if kv.Value.Type() == attribute.STRING && strings.TrimSpace(kv.Value.AsString()) == "" {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// SafeError keeps only the rendered message so wrapped causes are not exported.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return errors.New(msg)
	}
	return nil
}
