package logger

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger to provide logging functionality
type Logger struct {
	*zap.SugaredLogger
}

// New builds a production logger, or a development one for level "debug".
func New(level string) (*Logger, error) {
	config := zap.NewProductionConfig()
	if level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop discards everything. For tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}

// WithContext tags the logger with the chi request id, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return l.With("request_id", reqID)
	}
	return l
}

// retryableHTTPLogger adapts our Logger to go-retryablehttp's LeveledLogger
type retryableHTTPLogger struct {
	logger *Logger
}

// RetryableHTTPLogger returns a go-retryablehttp compatible logger.
// Request attempts are logged at debug, retries and failures at warn/error.
func (l *Logger) RetryableHTTPLogger() *retryableHTTPLogger {
	return &retryableHTTPLogger{logger: l}
}

func (r *retryableHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	r.logger.Errorw(msg, keysAndValues...)
}

func (r *retryableHTTPLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.logger.Warnw(msg, keysAndValues...)
}

func (r *retryableHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	r.logger.Debugw(msg, keysAndValues...)
}

func (r *retryableHTTPLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.logger.Debugw(msg, keysAndValues...)
}
