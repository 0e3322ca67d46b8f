package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging level
type Level int

const (
	// DEBUG level for detailed debugging information
	DEBUG Level = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel parses a level name such as "debug" or "WARN"
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %q", s)
	}
}

// filePrefix is the name prefix of rotated log files
const filePrefix = "voicememo-"

// core holds the state shared by a logger and its children
type core struct {
	mu            sync.RWMutex
	level         Level
	file          *os.File
	zl            zerolog.Logger
	console       io.Writer
	logDir        string
	currentDay    string
	retentionDays int
}

// Logger writes leveled JSON lines to a daily log file
type Logger struct {
	core      *core
	component string
}

// Config holds logger configuration
type Config struct {
	LogDir        string
	Level         Level
	RetentionDays int
	// Console, when set, mirrors every entry in human-readable form
	Console io.Writer
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}

	return Config{
		LogDir:        filepath.Join(dir, "voicememo", "logs"),
		Level:         INFO,
		RetentionDays: 7,
	}
}

// New creates a new logger
func New(config Config) (*Logger, error) {
	c := &core{
		level:         config.Level,
		console:       config.Console,
		logDir:        config.LogDir,
		retentionDays: config.RetentionDays,
	}

	if err := c.rotateLog(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &Logger{core: c}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{core: &core{level: ERROR + 1, zl: zerolog.Nop()}}
}

// With returns a child logger tagging entries with a component name
func (l *Logger) With(component string) *Logger {
	return &Logger{core: l.core, component: component}
}

// rotateLog rotates the log file if necessary
func (c *core) rotateLog() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := time.Now().Format("20060102")

	// Check if we need to rotate (new day)
	if c.currentDay == today && c.file != nil {
		return nil
	}

	if c.file != nil {
		c.file.Close()
	}

	if err := os.MkdirAll(c.logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s%s.log", filePrefix, today)
	filePath := filepath.Join(c.logDir, filename)

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	c.file = file
	c.currentDay = today

	var w io.Writer = file
	if c.console != nil {
		w = zerolog.MultiLevelWriter(file, zerolog.ConsoleWriter{
			Out:        c.console,
			NoColor:    true,
			TimeFormat: time.TimeOnly,
		})
	}
	c.zl = zerolog.New(w).With().Timestamp().Logger()

	if err := c.cleanOldLogs(); err != nil {
		c.zl.Warn().Msgf("Failed to clean old logs: %v", err)
	}

	return nil
}

// cleanOldLogs deletes log files older than retentionDays
func (c *core) cleanOldLogs() error {
	cutoffDate := time.Now().AddDate(0, 0, -c.retentionDays)

	entries, err := os.ReadDir(c.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffDate) {
			// Continue even if we can't delete a file
			_ = os.Remove(filepath.Join(c.logDir, entry.Name()))
		}
	}

	return nil
}

// checkRotation checks if log rotation is needed and performs it
func (c *core) checkRotation() {
	if c.logDir == "" {
		return
	}

	c.mu.RLock()
	currentDay := c.currentDay
	c.mu.RUnlock()

	if currentDay != time.Now().Format("20060102") {
		if err := c.rotateLog(); err != nil {
			// Can't log this error since logging is failing
			fmt.Fprintf(os.Stderr, "Failed to rotate log: %v\n", err)
		}
	}
}

func (l *Logger) log(level Level, format string, v ...interface{}) {
	c := l.core

	c.mu.RLock()
	enabled := level >= c.level
	c.mu.RUnlock()
	if !enabled {
		return
	}

	c.checkRotation()

	c.mu.RLock()
	zl := c.zl
	c.mu.RUnlock()

	ev := zl.WithLevel(level.zerolog())
	if l.component != "" {
		ev = ev.Str("component", l.component)
	}
	ev.Msgf(format, v...)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(DEBUG, format, v...)
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(INFO, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(WARN, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(ERROR, format, v...)
}

// Close closes the log file
func (l *Logger) Close() error {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file != nil {
		err := c.file.Close()
		c.file = nil
		c.zl = zerolog.Nop()
		return err
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	l.core.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	l.core.mu.RLock()
	defer l.core.mu.RUnlock()

	return l.core.level
}
