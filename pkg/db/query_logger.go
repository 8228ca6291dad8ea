package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkglog "github.com/smallbiznis/dataverse/pkg/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLogger writes gorm statements through zap with the request scope of the query context.
// Statements are logged at debug level, slow ones at warn and failures at error.
type QueryLogger struct {
	base  *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func NewQueryLogger(base *zap.Logger, level gormlogger.LogLevel, slow time.Duration) *QueryLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &QueryLogger{base: base.Named("db"), level: level, slow: slow}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, args)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, args)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, args)
}

func (l *QueryLogger) message(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, args []interface{}) {
	if l.level < min {
		return
	}
	if ce := pkglog.WithContext(ctx, l.base).Check(lvl, fmt.Sprintf(msg, args...)); ce != nil {
		ce.Write()
	}
}

func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var lvl zapcore.Level
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		lvl = zapcore.ErrorLevel
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		lvl = zapcore.WarnLevel
	case l.level >= gormlogger.Info:
		lvl = zapcore.DebugLevel
	default:
		return
	}

	ce := pkglog.WithContext(ctx, l.base).Check(lvl, "db.query")
	if ce == nil {
		return
	}
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter keeps bound values out of the logged SQL.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}
