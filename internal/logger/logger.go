package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel defines log level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// filePrefix names the daily log files: teachmate-YYYY-MM-DD.log
const filePrefix = "teachmate"

func (l LogLevel) String() string {
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

// ParseLevel converts a config value such as "info" into a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is a leveled logger writing one file per day.
// A nil *Logger discards everything, so components may be built without one.
type Logger struct {
	mu          sync.Mutex
	level       LogLevel
	logDir      string
	maxDays     int
	currentFile *os.File
	currentDate string
	console     io.Writer
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Config logger configuration
type Config struct {
	LogDir     string    // Log directory
	Level      LogLevel  // Minimum level written
	MaxDays    int       // Max days to keep logs
	ConsoleOut bool      // Mirror lines to Console
	Console    io.Writer // Defaults to os.Stdout when ConsoleOut is set
}

// Init initializes the default logger
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(cfg)
	})
	return err
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 7
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		level:   cfg.Level,
		logDir:  cfg.LogDir,
		maxDays: cfg.MaxDays,
	}
	if cfg.ConsoleOut {
		l.console = cfg.Console
		if l.console == nil {
			l.console = os.Stdout
		}
	}

	if err := l.rotateIfNeeded(); err != nil {
		return nil, err
	}

	return l, nil
}

// rotateIfNeeded opens today's file when the date has changed
func (l *Logger) rotateIfNeeded() error {
	today := time.Now().Format("2006-01-02")
	if l.currentDate == today && l.currentFile != nil {
		return nil
	}

	if l.currentFile != nil {
		l.currentFile.Close()
	}

	filename := filepath.Join(l.logDir, fmt.Sprintf("%s-%s.log", filePrefix, today))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.currentFile = f
	l.currentDate = today

	go l.cleanOldLogs()

	return nil
}

// cleanOldLogs removes log files older than maxDays
func (l *Logger) cleanOldLogs() {
	files, err := filepath.Glob(filepath.Join(l.logDir, filePrefix+"-*.log"))
	if err != nil {
		return
	}

	if len(files) <= l.maxDays {
		return
	}

	// names sort by date
	sort.Strings(files)

	for i := 0; i < len(files)-l.maxDays; i++ {
		os.Remove(files[i])
	}
}

func (l *Logger) log(level LogLevel, prefix, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "Logger rotation error: %v\n", err)
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	if prefix != "" {
		message = prefix + " " + message
	}
	logLine := fmt.Sprintf("[%s] [%s] %s\n", timestamp, level.String(), message)

	if l.currentFile != nil {
		l.currentFile.WriteString(logLine)
	}
	if l.console != nil {
		io.WriteString(l.console, logLine)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, "", format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, "", format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, "", format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, "", format, args...)
}

// With returns an Entry whose lines carry key=value ahead of the message
func (l *Logger) With(key string, value interface{}) *Entry {
	return &Entry{logger: l, prefix: fmt.Sprintf("%s=%v", key, value)}
}

// Close closes the logger
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentFile != nil {
		err := l.currentFile.Close()
		l.currentFile = nil
		return err
	}
	return nil
}

// GetWriter returns an io.Writer for the logger at the specified level.
// The HTTP server uses it as its ErrorLog sink.
func (l *Logger) GetWriter(level LogLevel) io.Writer {
	return &logWriter{logger: l, level: level}
}

type logWriter struct {
	logger *Logger
	level  LogLevel
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.logger.log(w.level, "", "%s", msg)
	}
	return len(p), nil
}

// Entry is a Logger bound to a set of key=value fields
type Entry struct {
	logger *Logger
	prefix string
}

// With adds another field
func (e *Entry) With(key string, value interface{}) *Entry {
	return &Entry{logger: e.logger, prefix: fmt.Sprintf("%s %s=%v", e.prefix, key, value)}
}

func (e *Entry) Debug(format string, args ...interface{}) {
	e.logger.log(DEBUG, e.prefix, format, args...)
}

func (e *Entry) Info(format string, args ...interface{}) {
	e.logger.log(INFO, e.prefix, format, args...)
}

func (e *Entry) Warn(format string, args ...interface{}) {
	e.logger.log(WARN, e.prefix, format, args...)
}

func (e *Entry) Error(format string, args ...interface{}) {
	e.logger.log(ERROR, e.prefix, format, args...)
}

// Package-level functions using the default logger

// Debug logs a debug message using the default logger
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

// Info logs an info message using the default logger
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message using the default logger
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// Close closes the default logger
func Close() error {
	return defaultLogger.Close()
}

// GetDefault returns the default logger
func GetDefault() *Logger {
	return defaultLogger
}
