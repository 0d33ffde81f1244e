package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logging contract used across the service
type Logger interface {
	Info(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Debug(ctx context.Context, message string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// structuredLogger implements Logger on top of logrus
type structuredLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
}

// LoggerConfig configures the logger
type LoggerConfig struct {
	Level       string
	Format      string
	ServiceName string
	Output      io.Writer
}

type correlationIDKey struct{}

// WithCorrelationID stores the request correlation id in ctx
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id stored in ctx, if any
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// NewStructuredLogger creates a logrus-backed Logger
func NewStructuredLogger(config LoggerConfig) Logger {
	logrusLogger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrusLogger.SetLevel(level)

	if config.Format == "json" {
		logrusLogger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logrusLogger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	logrusLogger.SetOutput(out)

	return &structuredLogger{
		logger: logrusLogger,
		fields: map[string]interface{}{
			"service": config.ServiceName,
		},
	}
}

// NewNopLogger returns a Logger that discards everything. Used in tests.
func NewNopLogger() Logger {
	return NewStructuredLogger(LoggerConfig{Level: "panic", Output: io.Discard})
}

func (l *structuredLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(ctx, logrus.InfoLevel, message, nil, fields)
}

func (l *structuredLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	l.log(ctx, logrus.ErrorLevel, message, err, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(ctx, logrus.WarnLevel, message, nil, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(ctx, logrus.DebugLevel, message, nil, fields)
}

// WithFields returns a child logger carrying additional base fields
func (l *structuredLogger) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &structuredLogger{
		logger: l.logger,
		fields: newFields,
	}
}

func (l *structuredLogger) log(ctx context.Context, level logrus.Level, message string, err error, fields map[string]interface{}) {
	if !l.logger.IsLevelEnabled(level) {
		return
	}

	entry := logrus.Fields{}
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}

	if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
		entry["correlation_id"] = correlationID
	}
	if err != nil {
		entry[logrus.ErrorKey] = err.Error()
	}

	// skip log and the exported level method
	if pc, file, line, ok := runtime.Caller(2); ok {
		entry["caller"] = fmt.Sprintf("%s:%d %s", file, line, runtime.FuncForPC(pc).Name())
	}

	l.logger.WithFields(entry).Log(level, message)
}

// LogSecurityEvent records a security-relevant event at a level derived from severity
func LogSecurityEvent(ctx context.Context, logger Logger, event string, severity string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event_type"] = "security"
	fields["security_event"] = event
	fields["severity"] = severity

	message := fmt.Sprintf("Security event: %s", event)

	switch severity {
	case "HIGH":
		logger.Error(ctx, message, nil, fields)
	case "MEDIUM":
		logger.Warn(ctx, message, fields)
	default:
		logger.Info(ctx, message, fields)
	}
}

// LogPerformance records how long an operation took
func LogPerformance(ctx context.Context, logger Logger, operation string, duration time.Duration, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event_type"] = "performance"
	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()

	logger.Debug(ctx, fmt.Sprintf("Performance: %s took %s", operation, duration), fields)
}
