package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	pkglog "github.com/smallbiznis/dataverse/pkg/log"
	"github.com/smallbiznis/dataverse/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps the last handler error to the logged error type and code.
	ErrorClassifier func(err error) (string, string)
	Logger          *zap.Logger
}

// GinMiddleware tags the request context with a request and correlation id and logs one line per request.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		ctx, _ := correlation.Ensure(correlation.WithRequestID(c.Request.Context(), requestID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		ctx = correlation.WithPurchase(c.Request.Context(), c.GetString("dataset_id"), "")
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
			zap.String("client_ip", c.ClientIP()),
		}
		if last := c.Errors.Last(); last != nil && cfg.ErrorClassifier != nil {
			errType, errCode := cfg.ErrorClassifier(last.Err)
			fields = append(fields, zap.String("error_type", errType))
			if errCode != "" {
				fields = append(fields, zap.String("error_code", errCode))
			}
			if cfg.Debug {
				fields = append(fields, zap.String("error", last.Err.Error()))
			}
		}

		base := cfg.Logger
		if base == nil {
			base = zap.L()
		}
		if ce := pkglog.WithContext(ctx, base).Check(requestLevel(route, status), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestLevel(route string, status int) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
