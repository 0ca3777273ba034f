package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"wikiguard/src/process"
)

type GormLoggerConfig struct {
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
}

// GormLogger raises driver warnings and failed queries on the host, where the
// installed error handler classifies and logs them like any other runtime
// error. Informational output goes to logrus.
type GormLogger struct {
	host   *process.Host
	config GormLoggerConfig
}

var _ logger.Interface = (*GormLogger)(nil)

func NewGormLogger(host *process.Host, config GormLoggerConfig) *GormLogger {
	return &GormLogger{host: host, config: config}
}

func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.config.LogLevel = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.config.LogLevel >= logger.Info {
		logrus.WithField("component", "gorm").Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.config.LogLevel >= logger.Warn {
		l.raise(process.SeverityUserNotice, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.config.LogLevel >= logger.Error {
		l.raise(process.SeverityUserWarning, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.config.LogLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, _ := fc()
		l.raise(process.SeverityUserWarning, fmt.Sprintf("query failed: %v (%s)", err, sql))
	case l.config.SlowThreshold > 0 && elapsed > l.config.SlowThreshold && l.config.LogLevel >= logger.Warn:
		sql, rows := fc()
		l.raise(process.SeverityUserNotice,
			fmt.Sprintf("slow query %s (threshold %s, rows %d): %s", elapsed, l.config.SlowThreshold, rows, sql))
	case l.config.LogLevel >= logger.Info:
		sql, rows := fc()
		logrus.WithFields(logrus.Fields{
			"component": "gorm",
			"elapsed":   elapsed,
			"rows":      rows,
		}).Debug(sql)
	}
}

func (l *GormLogger) raise(level process.Severity, message string) {
	if l.host == nil {
		logrus.WithField("component", "gorm").Warn(message)
		return
	}
	file, line := splitFileLine(utils.FileWithLineNum())
	l.host.Raise(level, message, file, line)
}

func splitFileLine(location string) (string, int) {
	i := strings.LastIndexByte(location, ':')
	if i < 0 {
		return location, 0
	}
	line, err := strconv.Atoi(location[i+1:])
	if err != nil {
		return location, 0
	}
	return location[:i], line
}
