package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Init configures the process-wide logrus logger.
func Init(level, format string) error {
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stdout)

	switch strings.ToLower(format) {
	case "", "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("log format %q not supported", format)
	}
	return nil
}

// WithFields returns a copy of ctx whose log entry carries fields.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return context.WithValue(ctx, ctxKey{}, WithContext(ctx).WithFields(fields))
}

// WithContext returns the entry stored on ctx, tagged with the chi request id when present.
func WithContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry)
	if !ok {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	if id := middleware.GetReqID(ctx); id != "" {
		if _, tagged := entry.Data["request_id"]; !tagged {
			entry = entry.WithField("request_id", id)
		}
	}
	return entry.WithContext(ctx)
}
