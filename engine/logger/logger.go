// Package logger provides the process-wide structured logger used by every engine package.
// It wraps a charmbracelet/log Logger behind a lazily-initialized singleton so packages can
// log without threading a logger through every constructor.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	once      sync.Once
	singleton *log.Logger
)

// get returns the shared logger, creating it on first use.
func get() *log.Logger {
	once.Do(func() {
		singleton = log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    false,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          "lumen",
		})
		singleton.SetLevel(log.InfoLevel)
	})
	return singleton
}

// SetLevel parses a level name ("debug", "info", "warn", "error", "fatal") and applies it
// to the shared logger. Unknown names leave the current level unchanged.
//
// Parameters:
//   - level: the textual log level
//
// Returns:
//   - error: an error if the level name could not be parsed
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	get().SetLevel(lvl)
	return nil
}

// SetOutput redirects the shared logger to w. Tests use this to silence output.
func SetOutput(w io.Writer) {
	get().SetOutput(w)
}

// With returns a child logger carrying the given key/value pairs on every record.
//
// Parameters:
//   - keyvals: alternating keys and values
//
// Returns:
//   - *log.Logger: the derived logger
func With(keyvals ...any) *log.Logger {
	return get().With(keyvals...)
}

func Debug(msg string, keyvals ...any) {
	get().Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...any) {
	get().Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...any) {
	get().Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...any) {
	get().Error(msg, keyvals...)
}

// Fatal logs at fatal level and exits the process.
func Fatal(msg string, keyvals ...any) {
	get().Fatal(msg, keyvals...)
}
