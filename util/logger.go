// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

type logField struct {
	key   string
	value interface{}
}

// Logger writes levelled messages through zerolog, either as human
// readable console lines or as JSON objects.  The printf-style API is
// kept so call sites read the same regardless of the output format.
type Logger struct {
	level      LogLevel
	output     io.Writer
	json       bool
	timestamps bool
	fields     []logField
	zl         zerolog.Logger
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug) to stderr.
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= int(LogDebug), // auto-enable timestamps in debug mode
	}
	l.rebuild()
	return l
}

// SetTimestamps enables or disables timestamps.
func (l *Logger) SetTimestamps(on bool) {
	l.timestamps = on
	l.rebuild()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.rebuild()
}

// SetJSON switches between console lines and JSON objects.
func (l *Logger) SetJSON(on bool) {
	l.json = on
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// With returns a derived Logger that attaches key=value to every entry.
// The receiver is unchanged.
func (l *Logger) With(key string, value interface{}) *Logger {
	child := *l
	child.fields = append(append([]logField(nil), l.fields...), logField{key, value})
	child.zl = l.zl.With().Interface(key, value).Logger()
	return &child
}

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.zl.Info().Msg(sprintf(format, args))
	}
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.zl.Warn().Msg(sprintf(format, args))
	}
}

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.zl.Debug().Msg(sprintf(format, args))
	}
}

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.zl.Debug().Msg(sprintf(format, args))
	}
}

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(sprintf(format, args))
}

func (l *Logger) rebuild() {
	var w io.Writer = l.output
	if !l.json {
		cw := zerolog.ConsoleWriter{Out: l.output, NoColor: true}
		if l.timestamps {
			cw.TimeFormat = "15:04:05.000"
		} else {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		w = cw
	}

	ctx := zerolog.New(w).Level(zerolog.DebugLevel).With()
	if l.timestamps || l.json {
		ctx = ctx.Timestamp()
	}
	for _, f := range l.fields {
		ctx = ctx.Interface(f.key, f.value)
	}
	l.zl = ctx.Logger()
}

func sprintf(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// OpenLogFile opens path for appending log output.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// Since formats the elapsed time for log lines.
func Since(start time.Time) string {
	return time.Since(start).Truncate(time.Millisecond).String()
}
