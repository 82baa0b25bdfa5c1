// Package logx provides structured logging for the apscout daemon
package logx

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides structured JSON logging backed by logrus
type Logger struct {
	level     LogLevel
	backend   *logrus.Logger
	syslogger syslogWriter
}

// syslogWriter is the minimal syslog surface used on Unix; a nil value
// disables syslog passthrough (Windows, or syslog unavailable).
type syslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
}

// New creates a new structured logger
func New(levelStr string) *Logger {
	level := parseLevel(levelStr)

	backend := logrus.New()
	backend.SetOutput(os.Stdout)
	backend.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	})
	backend.SetLevel(logrusLevel(level))

	l := &Logger{
		level:   level,
		backend: backend,
	}
	l.initSyslog()
	return l
}

// parseLevel converts string to LogLevel
func parseLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// logrusLevel maps a LogLevel onto the logrus level scale
func logrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// levelString converts LogLevel to string
func levelString(level LogLevel) string {
	switch level {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// fields converts key-value pairs into logrus fields. Odd trailing keys
// are dropped rather than panicking on caller mistakes.
func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		f[key] = keysAndValues[i+1]
	}
	return f
}

// log outputs a structured log entry
func (l *Logger) log(level LogLevel, msg string, keysAndValues ...interface{}) {
	if level < l.level {
		return
	}

	entry := l.backend.WithFields(fields(keysAndValues))
	switch level {
	case DebugLevel:
		entry.Debug(msg)
	case InfoLevel:
		entry.Info(msg)
	case WarnLevel:
		entry.Warn(msg)
	case ErrorLevel:
		entry.Error(msg)
	}

	l.logToSyslog(level, msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(DebugLevel, msg, keysAndValues...)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(InfoLevel, msg, keysAndValues...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(WarnLevel, msg, keysAndValues...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(ErrorLevel, msg, keysAndValues...)
}

// LogVerbose logs a named event with structured fields at debug level
func (l *Logger) LogVerbose(event string, data map[string]interface{}) {
	if DebugLevel < l.level {
		return
	}
	l.backend.WithFields(logrus.Fields(data)).WithField("event", event).Debug(event)
}

// LogStateChange logs a component transitioning between states
func (l *Logger) LogStateChange(component, from, to, event string, data map[string]interface{}) {
	if InfoLevel < l.level {
		return
	}
	entry := l.backend.WithFields(logrus.Fields(data)).WithFields(logrus.Fields{
		"component": component,
		"from":      from,
		"to":        to,
	})
	entry.Info(event)
	l.logToSyslog(InfoLevel, event)
}

// LogDataFlow logs data moving through a component at debug level
func (l *Logger) LogDataFlow(component, source, unit string, count int, data map[string]interface{}) {
	if DebugLevel < l.level {
		return
	}
	entry := l.backend.WithFields(logrus.Fields(data)).WithFields(logrus.Fields{
		"component": component,
		"source":    source,
		"unit":      unit,
		"count":     count,
	})
	entry.Debug("data_flow")
}
