// Package logging provides the structured debug log for loadseq.
// Logging is only enabled when --debug (or the debug config key) is set.
// Logs are written to ~/.loadseq/debug.log, truncated on each launch.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// LogFileName is the name of the debug log file.
	LogFileName = "debug.log"
	// LogDirName is the name of the directory containing the log file.
	LogDirName = ".loadseq"
)

var (
	mu      sync.RWMutex
	enabled bool
	base    = zerolog.Nop()
	logFile *os.File

	// getLogPath is a function variable to allow overriding in tests.
	getLogPath = defaultGetLogPath
)

// Init initializes the debug log.
// If enable is false, every logger handed out is a no-op.
// If enable is true, the log file is created/truncated at ~/.loadseq/debug.log.
func Init(enable bool) error {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if !enable {
		base = zerolog.Nop()
		return nil
	}

	logPath, err := getLogPath()
	if err != nil {
		return fmt.Errorf("determine log path: %w", err)
	}

	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	//nolint:gosec // G304: Log path is computed from user home, not user input
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f

	base = New(f, zerolog.DebugLevel)
	base.Info().Str("started_at", time.Now().Format(time.RFC3339)).Msg("debug log started")
	return nil
}

// New builds a timestamped logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		return zerolog.Nop()
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Close closes the debug log file if open.
// Safe to call even if logging is disabled.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	base = zerolog.Nop()
}

// Logger returns the process-wide logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Component returns a logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Enabled returns whether debug logging is currently enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func defaultGetLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, LogDirName, LogFileName), nil
}

// GetLogPath returns the path to the debug log file.
func GetLogPath() (string, error) {
	return getLogPath()
}
