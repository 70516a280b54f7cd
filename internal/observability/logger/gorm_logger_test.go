package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("select * from users"))
	assert.Equal(t, "UPDATE", operationFromSQL("WITH x AS (SELECT 1) UPDATE invoices SET status='paid'"))
	assert.Equal(t, "UNKNOWN", operationFromSQL("  "))
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "claimed_transactions", tableFromSQL(`INSERT INTO "claimed_transactions" ("tx_id") VALUES ($1)`))
	assert.Equal(t, "invoices", tableFromSQL(`SELECT * FROM invoices WHERE status = 'pending'`))
	assert.Equal(t, "ledgers", tableFromSQL(`UPDATE ledgers SET free_taps_remaining = 1`))
	assert.Equal(t, "other", tableFromSQL(`SELECT 1`))
}

func TestGormLoggerLevels(t *testing.T) {
	l := NewGormLogger(DefaultGormLoggerConfig())

	level, ok := l.levelFor(query{sql: "SELECT 1", elapsed: time.Millisecond, err: gormlogger.ErrRecordNotFound})
	assert.False(t, ok)
	assert.Equal(t, zapcore.DebugLevel, level)

	level, ok = l.levelFor(query{sql: "UPDATE ledgers SET balance = 1", err: errors.New("boom")})
	assert.True(t, ok)
	assert.Equal(t, zapcore.ErrorLevel, level)

	level, ok = l.levelFor(query{sql: `SELECT * FROM "ledgers" WHERE user_id = 1 FOR UPDATE`, elapsed: 80 * time.Millisecond})
	assert.True(t, ok)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, ok = l.levelFor(query{sql: `SELECT * FROM "ledgers" WHERE user_id = 1`, elapsed: 80 * time.Millisecond})
	assert.False(t, ok)

	verbose := l.LogMode(gormlogger.Info).(*GormLogger)
	_, ok = verbose.levelFor(query{sql: "SELECT 1"})
	assert.True(t, ok)
}
