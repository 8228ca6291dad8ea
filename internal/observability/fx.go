package observability

import (
	"github.com/smallbiznis/dataverse/internal/observability/logger"
	"github.com/smallbiznis/dataverse/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the process logger, the tracer provider and the prometheus metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(c Config) logger.Config {
			return logger.Config{
				ServiceName: c.ServiceName,
				Environment: c.Environment,
				Version:     c.Version,
				Level:       c.LogLevel,
				Format:      c.LogFormat,
				Debug:       c.Debug(),
			}
		},
		logger.New,
		func(c Config) telemetry.TracingConfig {
			return telemetry.TracingConfig{
				Enabled:          c.TracingEnabled,
				ServiceName:      c.ServiceName,
				ServiceVersion:   c.Version,
				Environment:      c.Environment,
				ExporterEndpoint: c.OTLPEndpoint,
				SamplingRatio:    c.SampleRatio,
			}
		},
		telemetry.NewTracerProvider,
		telemetry.NewMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
