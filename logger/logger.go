// Package logger builds the zerolog loggers of the API server and finctl and
// carries them through request contexts.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

var fallback = sync.OnceValue(New)

// New returns the server logger: JSON lines in production, console output
// while developing.
func New() zerolog.Logger {
	if utils.IsProduction {
		return NewWithWriter(os.Stdout)
	}
	return NewConsole(os.Stdout)
}

// NewConsole writes human-readable lines to w. finctl points it at stderr so
// its tables on stdout stay clean.
func NewConsole(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewWithWriter emits JSON to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// SetLevel applies a LOG_LEVEL style string globally. Unknown values mean info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the request logger, or the process logger when the
// context carries none.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return fallback()
}

// WithUser tags every later line of the request with the signed-in user.
// The id is masked in production.
func WithUser(ctx context.Context, userID string) context.Context {
	log := FromContext(ctx).With().Str("user_id", utils.MaskID(userID)).Logger()
	return WithContext(ctx, log)
}
