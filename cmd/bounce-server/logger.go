package main

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// parseLogLevel parses a string log level (case-insensitive)
func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Logger provides leveled logging on top of zap. It satisfies bounce.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewLogger creates a JSON logger writing to stderr at the given level
func NewLogger(level string) *Logger {
	atomic := zap.NewAtomicLevelAt(parseLogLevel(level))
	config := zap.Config{
		Level:            atomic,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	zapLogger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return &Logger{sugar: zapLogger.Sugar(), level: atomic}
}

// newLoggerFromZap wraps an existing zap logger.
func newLoggerFromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar(), level: zap.NewAtomicLevelAt(z.Level())}
}

// Enabled reports whether messages at level are written
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.level.Enabled(level)
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, v ...any) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info message
func (l *Logger) Infof(format string, v ...any) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning message
func (l *Logger) Warnf(format string, v ...any) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, v ...any) {
	l.sugar.Errorf(format, v...)
}

// Fatalf logs an error message and exits
func (l *Logger) Fatalf(format string, v ...any) {
	l.sugar.Fatalf(format, v...)
}

// Sync flushes buffered log entries
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
