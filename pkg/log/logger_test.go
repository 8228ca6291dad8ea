package log

import (
	"context"
	"testing"

	"github.com/smallbiznis/dataverse/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsScope(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := correlation.WithScope(context.Background(), correlation.Scope{CorrelationID: "01HX", DatasetID: "7"})

	WithContext(ctx, zap.New(core)).Info("purchase recorded")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "01HX", fields["correlation_id"])
		assert.Equal(t, "7", fields["dataset_id"])
		assert.NotContains(t, fields, "buyer_address")
		assert.NotContains(t, fields, "trace_id")
	}
}
