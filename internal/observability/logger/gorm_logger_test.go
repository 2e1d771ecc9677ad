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

func newObservedGormLogger(cfg GormLoggerConfig) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg.Base = zap.New(core)
	return NewGormLogger(cfg), logs
}

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestDescribeStatement(t *testing.T) {
	stmt := describeStatement("SELECT * FROM `rfid_tags_current` WHERE tag_id = ? LIMIT 1 FOR UPDATE")
	assert.Equal(t, "SELECT", stmt.operation)
	assert.Equal(t, "rfid_tags_current", stmt.table)
	assert.True(t, stmt.locking)

	stmt = describeStatement(`INSERT INTO "rfid_tags_log" ("id") VALUES ($1)`)
	assert.Equal(t, "INSERT", stmt.operation)
	assert.Equal(t, "rfid_tags_log", stmt.table)
	assert.False(t, stmt.locking)

	stmt = describeStatement("UPDATE rfid_tag_audits SET printed = true")
	assert.Equal(t, "UPDATE", stmt.operation)
	assert.Equal(t, "rfid_tag_audits", stmt.table)

	assert.Equal(t, "UNKNOWN", describeStatement("").operation)
}

func TestTrace_SlowQueryWarns(t *testing.T) {
	l, logs := newObservedGormLogger(GormLoggerConfig{
		Level:             gormlogger.Warn,
		SlowThreshold:     100 * time.Millisecond,
		LockSlowThreshold: time.Second,
	})

	l.Trace(context.Background(), time.Now().Add(-300*time.Millisecond), sqlFunc("SELECT * FROM bom", 2), nil)
	// A locking read under its own threshold stays quiet.
	l.Trace(context.Background(), time.Now().Add(-300*time.Millisecond), sqlFunc("SELECT * FROM rfid_tags_current FOR UPDATE", 1), nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "gorm.slow_query", entries[0].Message)
	assert.Equal(t, "bom", entries[0].ContextMap()["table"])
}

func TestTrace_Errors(t *testing.T) {
	l, logs := newObservedGormLogger(DefaultGormLoggerConfig())

	l.Trace(context.Background(), time.Now(), sqlFunc("SELECT * FROM rfid_tags_current", 0), gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), sqlFunc("INSERT INTO rfid_tags_current", 0), errors.New("duplicate key"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestTrace_Silent(t *testing.T) {
	l, logs := newObservedGormLogger(DefaultGormLoggerConfig())
	silent := l.LogMode(gormlogger.Silent)

	silent.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 1), errors.New("boom"))
	assert.Zero(t, logs.Len())
}
