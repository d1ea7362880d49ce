package planlog

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Level names a minimum severity for a Logger.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Config controls how NewLogger builds a logrus.Logger.
type Config struct {
	Level      Level
	Format     string // "json" or "text"
	Component  string // e.g. "cache", "optimizer", "planner"
	AddCaller  bool
	TimeFormat string
}

// DefaultConfig returns sensible defaults: info level, text format.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     "text",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds a logrus.Logger configured per cfg, with output already
// routed through OutputSplitter.
func NewLogger(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	case LevelFatal:
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: cfg.TimeFormat})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: cfg.TimeFormat, FullTimestamp: true})
	}

	logger.SetReportCaller(cfg.AddCaller)
	logger.SetOutput(&OutputSplitter{})
	return logger
}

// ContextLogger carries a fixed set of structured fields through a call
// chain, re-derived with WithField/WithFields rather than mutated in place.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger wraps logger (or the package Logger if nil) with base fields.
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	if logger == nil {
		logger = Logger
	}
	base := make(logrus.Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

// WithField returns a derived logger with an additional field.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	return cl.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a derived logger with additional fields merged in.
func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	merged := make(logrus.Fields, len(cl.fields)+len(fields))
	for k, v := range cl.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: merged}
}

// WithError attaches err.Error() as a field.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.WithField("error", err.Error())
}

// WithContext pulls a request/trace id out of ctx if the caller set one.
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	fields := map[string]interface{}{}
	if v := ctx.Value(requestIDKey{}); v != nil {
		fields["request_id"] = v
	}
	if v := ctx.Value(traceIDKey{}); v != nil {
		fields["trace_id"] = v
	}
	return cl.WithFields(fields)
}

type requestIDKey struct{}
type traceIDKey struct{}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }
func (cl *ContextLogger) Fatal(msg string) { cl.logger.WithFields(cl.fields).Fatal(msg) }

// LogOperation runs fn, logging its start, duration, and outcome.
func LogOperation(logger *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	logger.WithField("operation", operation).Info("operation started")

	err := fn()

	entry := logger.WithFields(map[string]interface{}{
		"operation":   operation,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return err
	}
	entry.Info("operation completed")
	return nil
}

// LogDuration returns a func to be deferred at the start of an operation; it
// logs elapsed time when called.
func LogDuration(logger *ContextLogger, operation string) func() {
	start := time.Now()
	return func() {
		logger.WithFields(map[string]interface{}{
			"operation":   operation,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("operation completed")
	}
}

// LogPanic recovers a panic and logs it with a stack trace. Call via defer.
func LogPanic(logger *ContextLogger) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		logger.WithFields(map[string]interface{}{
			"panic":      fmt.Sprintf("%v", r),
			"stacktrace": string(buf[:n]),
		}).Error("panic recovered")
	}
}

// CacheFields returns standard fields for cache tier operations (get/put/
// invalidate against bbolt or the Redis L1 tier).
func CacheFields(tier, operation, key string, hit bool, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"cache_tier":      tier,
		"cache_operation": operation,
		"cache_key":       key,
		"cache_hit":       hit,
		"duration_ms":     duration.Milliseconds(),
	}
}

// ErrorFields returns standard fields for error logging.
func ErrorFields(err error, context string) map[string]interface{} {
	return map[string]interface{}{
		"error":      err.Error(),
		"error_type": fmt.Sprintf("%T", err),
		"context":    context,
	}
}

// StructuredLog is a builder for one-off structured log entries.
type StructuredLog struct {
	logger *logrus.Logger
	fields logrus.Fields
	level  logrus.Level
}

// NewStructuredLog starts a builder against logger (or the package Logger).
func NewStructuredLog(logger *logrus.Logger) *StructuredLog {
	if logger == nil {
		logger = Logger
	}
	return &StructuredLog{logger: logger, fields: make(logrus.Fields), level: logrus.InfoLevel}
}

func (sl *StructuredLog) WithField(key string, value interface{}) *StructuredLog {
	sl.fields[key] = value
	return sl
}

func (sl *StructuredLog) WithFields(fields map[string]interface{}) *StructuredLog {
	for k, v := range fields {
		sl.fields[k] = v
	}
	return sl
}

func (sl *StructuredLog) WithError(err error) *StructuredLog {
	sl.fields["error"] = err.Error()
	sl.fields["error_type"] = fmt.Sprintf("%T", err)
	return sl
}

func (sl *StructuredLog) Level(level Level) *StructuredLog {
	switch level {
	case LevelDebug:
		sl.level = logrus.DebugLevel
	case LevelWarn:
		sl.level = logrus.WarnLevel
	case LevelError:
		sl.level = logrus.ErrorLevel
	case LevelFatal:
		sl.level = logrus.FatalLevel
	default:
		sl.level = logrus.InfoLevel
	}
	return sl
}

func (sl *StructuredLog) Log(msg string) {
	sl.logger.WithFields(sl.fields).Log(sl.level, msg)
}
