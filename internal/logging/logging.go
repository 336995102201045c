// Package logging builds the zerolog root logger and carries the request id
// through contexts so the remote client can forward it.
package logging

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a root logger writing to w. Format is "json" or "console".
func New(w io.Writer, level, format, version string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case "json", "":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: want json or console", format)
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "unitdesk").
		Str("version", version).
		Logger(), nil
}

type requestIDKey struct{}

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id carried by ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// For returns log with the request id from ctx attached, when there is one.
func For(ctx context.Context, log zerolog.Logger) *zerolog.Logger {
	if id := RequestID(ctx); id != "" {
		l := log.With().Str("request_id", id).Logger()
		return &l
	}
	return &log
}
