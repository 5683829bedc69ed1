package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hession/teachmate/internal/config"
	"github.com/hession/teachmate/internal/logger"
)

func TestLogConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewLogger(logger.Config{
		LogDir:     t.TempDir(),
		Level:      logger.DEBUG,
		ConsoleOut: true,
		Console:    &buf,
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer log.Close()

	cfg := config.DefaultConfig()
	cfg.Remote.APIKey = "test-api-key-12345"
	logConfigInfo(log, cfg)

	out := buf.String()
	for _, want := range []string{"listen address: :3000", "backend=file path=teach.txt", "min_overlap=5", "api key: configured"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "test-api-key-12345") {
		t.Error("api key leaked into log output")
	}
}

func TestLogConfigInfo_NilLogger(t *testing.T) {
	// Should not panic
	logConfigInfo(nil, config.DefaultConfig())
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":3000", "http://localhost:3000"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"127.0.0.1:3000", "http://127.0.0.1:3000"},
		{"example.com:80", "http://example.com:80"},
	}
	for _, tt := range tests {
		if got := localURL(tt.addr); got != tt.want {
			t.Errorf("localURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestVersion(t *testing.T) {
	if version != "0.1.0" {
		t.Errorf("Expected version '0.1.0', got '%s'", version)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if out.String() != "TeachMate v0.1.0\n" {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestMemoryListCommand(t *testing.T) {
	dir := t.TempDir()
	memPath := filepath.Join(dir, "teach.txt")
	snapshot := "{\n  \"zeta\": \"last letter\",\n  \"alpha\": \"first letter\"\n}"
	if err := os.WriteFile(memPath, []byte(snapshot), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEACHMATE_MEMORY_PATH", memPath)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config-dir", filepath.Join(dir, "config"), "memory", "list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("memory list failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "2 learned prompts") {
		t.Errorf("missing count:\n%s", got)
	}
	if strings.Index(got, "zeta") > strings.Index(got, "alpha") {
		t.Errorf("entries not in insertion order:\n%s", got)
	}

	if _, err := os.Stat(filepath.Join(dir, "config", "config.yaml")); err != nil {
		t.Errorf("default config file not created: %v", err)
	}

	data, _ := os.ReadFile(memPath)
	if string(data) != snapshot {
		t.Error("listing rewrote the memory file")
	}
}
