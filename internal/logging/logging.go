package logging

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// New builds the process logger. format is "json" or "text"; unknown levels fall back to info.
func New(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(nopWriter{})
	return logger
}

// WithLogger stores an entry in ctx so downstream code logs with the same fields.
func WithLogger(ctx context.Context, entry logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// WithContext returns the entry stored in ctx, or the standard logger.
func WithContext(ctx context.Context) logrus.FieldLogger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(logrus.FieldLogger); ok {
			return entry
		}
	}
	return logrus.StandardLogger()
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
