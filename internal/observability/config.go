package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/dataverse/internal/config"
)

// Config is the logging and tracing view of the process configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	TracingEnabled bool
	OTLPEndpoint   string
	SampleRatio    float64
}

var devEnvironments = map[string]bool{"dev": true, "development": true, "local": true, "test": true}

// LoadConfig derives the observability settings; OTEL_* and LOG_FORMAT override the base config.
func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:    strings.TrimSpace(cfg.AppName),
		Environment:    strings.TrimSpace(cfg.Environment),
		Version:        strings.TrimSpace(cfg.AppVersion),
		LogLevel:       strings.ToLower(strings.TrimSpace(cfg.LogLevel)),
		LogFormat:      "json",
		TracingEnabled: cfg.OtelEnabled,
		OTLPEndpoint:   strings.TrimSpace(cfg.OTLPEndpoint),
		SampleRatio:    0.1,
	}
	if out.ServiceName == "" {
		out.ServiceName = "dataverse"
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		out.LogFormat = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		out.OTLPEndpoint = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("OTEL_SAMPLING_RATIO")), 64); err == nil && v >= 0 && v <= 1 {
		out.SampleRatio = v
	}
	return out
}

// Debug is true for LOG_LEVEL=debug and for development environments.
func (c Config) Debug() bool {
	return c.LogLevel == "debug" || devEnvironments[strings.ToLower(c.Environment)]
}
