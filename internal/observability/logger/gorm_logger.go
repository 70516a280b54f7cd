package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// LockWaitThreshold flags row-lock statements (ledger and invoice
	// FOR UPDATE) that waited longer than this. Zero disables it.
	LockWaitThreshold time.Duration
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:             gormlogger.Warn,
		SlowThreshold:     200 * time.Millisecond,
		LockWaitThreshold: 50 * time.Millisecond,
	}
}

// GormLogger routes GORM output through zap. Bound parameters are never
// logged; record-not-found is an expected outcome and stays quiet.
type GormLogger struct {
	cfg GormLoggerConfig
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []any) {
	if l.cfg.Level < min {
		return
	}
	fields := []zap.Field{zap.String("component", "gorm")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	FromContext(ctx).Log(level, msg, fields...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	q := query{sql: strings.TrimSpace(sql), rows: rows, elapsed: elapsed, err: err}
	level, ok := l.levelFor(q)
	if !ok {
		return
	}
	FromContext(ctx).Log(level, "db.query", q.fields()...)
}

// ParamsFilter drops bound values; user ids and amounts stay out of logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func (l *GormLogger) levelFor(q query) (zapcore.Level, bool) {
	switch {
	case q.err != nil && !errors.Is(q.err, gormlogger.ErrRecordNotFound):
		return zapcore.ErrorLevel, l.cfg.Level >= gormlogger.Error
	case l.cfg.SlowThreshold > 0 && q.elapsed > l.cfg.SlowThreshold:
		return zapcore.WarnLevel, l.cfg.Level >= gormlogger.Warn
	case l.cfg.LockWaitThreshold > 0 && q.locking() && q.elapsed > l.cfg.LockWaitThreshold:
		return zapcore.WarnLevel, l.cfg.Level >= gormlogger.Warn
	default:
		return zapcore.DebugLevel, l.cfg.Level >= gormlogger.Info
	}
}

type query struct {
	sql     string
	rows    int64
	elapsed time.Duration
	err     error
}

func (q query) locking() bool {
	return strings.Contains(strings.ToUpper(q.sql), "FOR UPDATE")
}

func (q query) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", q.sql),
		zap.String("operation", operationFromSQL(q.sql)),
		zap.String("table", tableFromSQL(q.sql)),
		zap.Int64("duration_ms", q.elapsed.Milliseconds()),
	}
	if q.locking() {
		fields = append(fields, zap.Bool("row_lock", true))
	}
	if q.rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", q.rows))
	}
	if q.err != nil {
		fields = append(fields, zap.Error(q.err))
	}
	return fields
}

// operationFromSQL returns the first top-level DML keyword, so a CTE's inner
// SELECT does not hide the UPDATE it feeds.
func operationFromSQL(sql string) string {
	depth := 0
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		word := strings.Trim(token, "();,")
		if depth == 0 {
			switch word {
			case "SELECT", "INSERT", "UPDATE", "DELETE":
				if !strings.HasPrefix(token, "(") {
					return word
				}
			}
		}
		depth += strings.Count(token, "(") - strings.Count(token, ")")
		if depth < 0 {
			depth = 0
		}
	}
	return "UNKNOWN"
}

// tableFromSQL picks the first tapcoin table named in the statement.
func tableFromSQL(sql string) string {
	normalized := strings.ToLower(sql)
	for _, table := range knownTables {
		if strings.Contains(normalized, table) {
			return table
		}
	}
	return "other"
}

var knownTables = []string{"claimed_transactions", "invoices", "ledgers"}

var _ gormlogger.Interface = (*GormLogger)(nil)
