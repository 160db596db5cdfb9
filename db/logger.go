package db

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger routes gorm output through logrus
type GormLogger struct {
	log   *logrus.Entry
	level gormlogger.LogLevel
}

// NewGormLogger maps the logrus level of log onto a gorm log level
func NewGormLogger(log *logrus.Entry) gormlogger.Interface {
	level := gormlogger.Warn
	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	return &GormLogger{log: log, level: level}
}

// LogMode returns a copy of the logger at the given level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	copied := *l
	copied.level = level
	return &copied
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Errorf(msg, data...)
	}
}

// Trace logs failed and slow statements, and every statement at Info level
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := logrus.Fields{
		"elapsed": elapsed.String(),
		"rows":    rows,
		"sql":     sql,
	}
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		fields["err"] = err.Error()
		l.log.WithFields(fields).Error("Query failed")
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		l.log.WithFields(fields).Warn("Slow query")
	case l.level >= gormlogger.Info:
		l.log.WithFields(fields).Debug("Query")
	}
}
