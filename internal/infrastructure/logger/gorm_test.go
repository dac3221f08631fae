package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*GormLogger)(nil)

func TestGormLogger_LogMode(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info, 0)
	switched, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gormLog.level)
	assert.Equal(t, gormlogger.Warn, switched.level)
	assert.Equal(t, DefaultSlowQuery, switched.slowOver)
}

func TestGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return `UPDATE "products" SET "stock"=stock - 1`, 1 }

	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		begin     time.Time
		err       error
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{"sql error", gormlogger.Error, time.Now(), errors.New("deadlock"), "SQL error", zapcore.ErrorLevel},
		{"record not found is dropped", gormlogger.Error, time.Now(), gormlogger.ErrRecordNotFound, "", 0},
		{"slow query", gormlogger.Warn, time.Now().Add(-time.Second), nil, "Slow SQL", zapcore.WarnLevel},
		{"normal query at info", gormlogger.Info, time.Now(), nil, "SQL query", zapcore.DebugLevel},
		{"normal query at warn is dropped", gormlogger.Warn, time.Now(), nil, "", 0},
		{"silent", gormlogger.Silent, time.Now(), errors.New("boom"), "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gormLog := NewGormLogger(zap.New(core), tt.level, 100*time.Millisecond)

			gormLog.Trace(context.Background(), tt.begin, sql, tt.err)

			if tt.wantMsg == "" {
				assert.Zero(t, recorded.Len())
				return
			}
			require.Equal(t, 1, recorded.Len())
			entry := recorded.All()[0]
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, "gorm", entry.LoggerName)
		})
	}
}

func TestGormLogger_TraceCarriesRequestAndTenant(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info, 0)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-9")
	ctx, _ = WithTenantID(ctx, zap.NewNop(), "tenant-9")
	gormLog.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "tenant-9", fields["tenant_id"])
	assert.Equal(t, int64(1), fields["rows"])
	assert.Equal(t, "SELECT", fields["op"])
}

func TestStatementVerb(t *testing.T) {
	tests := map[string]string{
		`UPDATE "products" SET "stock"=stock - 1`: "UPDATE",
		"  select 1":                              "SELECT",
		"INSERT(":                                 "INSERT",
		"":                                        "",
	}
	for sql, want := range tests {
		assert.Equal(t, want, statementVerb(sql), sql)
	}
}

func TestGormLogger_Messages(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Warn, 0)
	ctx := context.Background()

	gormLog.Info(ctx, "suppressed %d", 1)
	gormLog.Warn(ctx, "warned %d", 2)
	gormLog.Error(ctx, "failed %d", 3)

	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "warned 2", recorded.All()[0].Message)
	assert.Equal(t, "failed 3", recorded.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent":  gormlogger.Silent,
		"error":   gormlogger.Error,
		"warn":    gormlogger.Warn,
		"info":    gormlogger.Info,
		"debug":   gormlogger.Info,
		"unknown": gormlogger.Warn,
		"INFO":    gormlogger.Info,
	}
	for input, want := range tests {
		assert.Equal(t, want, MapGormLogLevel(input), input)
	}
}
