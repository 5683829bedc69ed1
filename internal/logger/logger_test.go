package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readTodayLog(t *testing.T, dir string) string {
	t.Helper()
	today := time.Now().Format("2006-01-02")
	content, err := os.ReadFile(filepath.Join(dir, "teachmate-"+today+".log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{" INFO ", INFO, false},
		{"", INFO, false},
		{"warning", WARN, false},
		{"error", ERROR, false},
		{"loud", INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(Config{LogDir: tmpDir, Level: INFO, MaxDays: 7})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.level != INFO {
		t.Errorf("Expected level INFO, got %v", logger.level)
	}
	if logger.maxDays != 7 {
		t.Errorf("Expected maxDays 7, got %d", logger.maxDays)
	}
	if logger.console != nil {
		t.Error("Console writer should be nil when ConsoleOut is false")
	}
}

func TestNewLogger_DefaultMaxDays(t *testing.T) {
	logger, err := NewLogger(Config{LogDir: t.TempDir(), Level: INFO})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.maxDays != 7 {
		t.Errorf("Expected default maxDays 7, got %d", logger.maxDays)
	}
}

func TestNewLogger_CreateLogDir(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs", "subdir")

	logger, err := NewLogger(Config{LogDir: logDir, Level: INFO})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Error("Log directory was not created")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(Config{LogDir: tmpDir, Level: WARN})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message %d", 1)
	logger.Error("error message")
	logger.Close()

	logContent := readTodayLog(t, tmpDir)
	if strings.Contains(logContent, "[DEBUG]") {
		t.Error("DEBUG messages should be filtered out")
	}
	if strings.Contains(logContent, "[INFO]") {
		t.Error("INFO messages should be filtered out")
	}
	if !strings.Contains(logContent, "[WARN] warn message 1") {
		t.Error("WARN messages should be logged")
	}
	if !strings.Contains(logContent, "[ERROR] error message") {
		t.Error("ERROR messages should be logged")
	}
}

func TestLogger_ConsoleMirror(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{LogDir: t.TempDir(), Level: DEBUG, ConsoleOut: true, Console: &buf})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Info("memory loaded: %d entries", 3)

	if !strings.Contains(buf.String(), "[INFO] memory loaded: 3 entries") {
		t.Errorf("Console output missing line, got %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewLogger(Config{LogDir: tmpDir, Level: DEBUG})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.With("req", "abc").With("path", "/ai").Info("served in %dms", 4)
	logger.Close()

	logContent := readTodayLog(t, tmpDir)
	if !strings.Contains(logContent, "[INFO] req=abc path=/ai served in 4ms") {
		t.Errorf("Expected prefixed line, got %q", logContent)
	}
}

func TestLogger_GetWriter(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewLogger(Config{LogDir: tmpDir, Level: INFO})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	writer := logger.GetWriter(WARN)
	n, err := writer.Write([]byte("http: TLS handshake error\n"))
	if err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if n != 26 {
		t.Errorf("Expected to write 26 bytes, wrote %d", n)
	}
	logger.Close()

	if !strings.Contains(readTodayLog(t, tmpDir), "[WARN] http: TLS handshake error") {
		t.Error("Writer output should be logged at WARN")
	}
}

func TestCleanOldLogs(t *testing.T) {
	tmpDir := t.TempDir()
	for _, day := range []string{"2020-01-01", "2020-01-02", "2020-01-03"} {
		path := filepath.Join(tmpDir, "teachmate-"+day+".log")
		if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	l := &Logger{logDir: tmpDir, maxDays: 2}
	l.cleanOldLogs()

	if _, err := os.Stat(filepath.Join(tmpDir, "teachmate-2020-01-01.log")); !os.IsNotExist(err) {
		t.Error("Oldest log should have been removed")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "teachmate-2020-01-03.log")); err != nil {
		t.Error("Newest log should be kept")
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger

	// none of these should panic
	l.Info("ignored")
	l.With("k", "v").Error("ignored")
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil logger returned error: %v", err)
	}
}

func TestPackageLevelFunctions_WithNilLogger(t *testing.T) {
	savedLogger := defaultLogger
	defaultLogger = nil
	defer func() { defaultLogger = savedLogger }()

	Debug("test")
	Info("test")
	Warn("test")
	Error("test")

	if err := Close(); err != nil {
		t.Errorf("Close with nil logger returned error: %v", err)
	}
	if GetDefault() != nil {
		t.Error("GetDefault should return nil when no logger is initialized")
	}
}
