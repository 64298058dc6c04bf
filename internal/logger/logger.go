// Package logger provides a thin wrapper around zerolog.Logger used by the
// secretfs command line tool.
//
// The Logger type embeds zerolog.Logger so all standard zerolog methods
// (Debug, Info, Warn, Error, etc.) are available directly on *Logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// NewLogger constructs a *Logger for the given role label writing to w.
//
// The logger is configured with:
//   - the minimum level parsed from level ("trace" … "error", "disabled");
//   - a "role" field set to role;
//   - a timestamp on every entry;
//   - a "func" caller field holding the fully-qualified function name.
//
// format "console" renders human-readable lines; anything else emits JSON.
func NewLogger(role string, level string, format string, w io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}

	logger := zerolog.New(w).Level(lvl).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{logger}, nil
}

// ParseLevel maps a configuration string onto a zerolog level
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Nop returns a *Logger that discards all log output.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Zerolog returns a pointer to the embedded zerolog.Logger, the form the
// secretfs library accepts in its Config.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.Logger
}

// GetChildLogger returns a new *Logger that inherits all fields of the
// receiver.
func (l *Logger) GetChildLogger() *Logger {
	return &Logger{l.With().Logger()}
}

// FromContext returns the logger attached to ctx by WithContext, or a
// disabled logger when there is none.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*zerolog.Ctx(ctx)}
}
