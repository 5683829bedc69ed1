package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Memory backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Memory   MemoryConfig   `yaml:"memory"`
	Resolver ResolverConfig `yaml:"resolver"`
	Remote   RemoteConfig   `yaml:"remote"`
	History  HistoryConfig  `yaml:"history"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig HTTP listener configuration
type ServerConfig struct {
	Addr                   string `yaml:"addr"`
	StaticDir              string `yaml:"static_dir"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// MemoryConfig memory storage configuration
type MemoryConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ResolverConfig matching configuration
type ResolverConfig struct {
	MinOverlap     int  `yaml:"min_overlap"`
	DedupeInflight bool `yaml:"dedupe_inflight"`
}

// RemoteConfig completion endpoint configuration
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Path           string `yaml:"path"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// HistoryConfig chat history configuration
type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// LogConfig logging configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                   ":3000",
			StaticDir:              "public",
			ReadTimeoutSeconds:     15,
			WriteTimeoutSeconds:    60,
			ShutdownTimeoutSeconds: 10,
		},
		Memory: MemoryConfig{
			Backend: BackendFile,
			Path:    "teach.txt",
		},
		Resolver: ResolverConfig{
			MinOverlap:     5,
			DedupeInflight: true,
		},
		Remote: RemoteConfig{
			BaseURL:        "https://hassan-llama3-aipk.onrender.com",
			Path:           "/llama3",
			APIKey:         "",
			TimeoutSeconds: 30,
		},
		History: HistoryConfig{
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level:   "info",
			Dir:     "",
			MaxDays: 7,
			Console: true,
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func (c *Config) LogDir() string {
	if c.Log.Dir != "" {
		return c.Log.Dir
	}
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file, then applies secrets and environment overrides
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	// A missing .env is normal
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	secrets, _ := LoadSecrets()
	if cfg.Remote.APIKey == "" {
		cfg.Remote.APIKey = secrets.GetRemoteAPIKey()
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides file values with TEACHMATE_* variables and PORT
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup("PORT"); ok && strings.TrimSpace(port) != "" {
		if _, err := strconv.Atoi(strings.TrimSpace(port)); err != nil {
			return fmt.Errorf("config error: PORT must be numeric, got %q", port)
		}
		c.Server.Addr = ":" + strings.TrimSpace(port)
	}

	overrides := []struct {
		key    string
		target *string
	}{
		{"TEACHMATE_ADDR", &c.Server.Addr},
		{"TEACHMATE_REMOTE_URL", &c.Remote.BaseURL},
		{"TEACHMATE_MEMORY_BACKEND", &c.Memory.Backend},
		{"TEACHMATE_MEMORY_PATH", &c.Memory.Path},
		{"TEACHMATE_LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && strings.TrimSpace(v) != "" {
			*o.target = strings.TrimSpace(v)
		}
	}
	return nil
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Secrets stay in .secrets
	out := *cfg
	out.Remote.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# teachmate configuration file\n# Secrets belong in .secrets next to this file (REMOTE_API_KEY=...)\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("config error: server.addr cannot be empty")
	}
	if c.Server.ReadTimeoutSeconds <= 0 || c.Server.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: server timeouts must be greater than 0")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: server.shutdown_timeout_seconds must be greater than 0")
	}

	switch c.Memory.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("config error: memory.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Memory.Backend)
	}
	if strings.TrimSpace(c.Memory.Path) == "" {
		return fmt.Errorf("config error: memory.path cannot be empty")
	}

	if c.Resolver.MinOverlap < 1 {
		return fmt.Errorf("config error: resolver.min_overlap must be at least 1")
	}

	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		return fmt.Errorf("config error: remote.base_url cannot be empty")
	}
	if c.Remote.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: remote.timeout_seconds must be greater than 0")
	}

	if c.History.MaxEntries <= 0 {
		return fmt.Errorf("config error: history.max_entries must be greater than 0")
	}

	return nil
}

// RemoteTimeout returns the outbound call timeout
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`teachmate configuration:
  Server:
    Addr: %s
    Static Dir: %s
    Read/Write Timeout: %ds/%ds
    Shutdown Timeout: %ds
  Memory:
    Backend: %s
    Path: %s
  Resolver:
    Min Overlap: %d
    Dedupe In-flight: %v
  Remote:
    Base URL: %s
    Path: %s
    API Key: %s
    Timeout Seconds: %d
  History:
    Max Entries: %d
  Log:
    Level: %s
    Dir: %s
    Max Days: %d
    Console: %v`,
		c.Server.Addr,
		c.Server.StaticDir,
		c.Server.ReadTimeoutSeconds,
		c.Server.WriteTimeoutSeconds,
		c.Server.ShutdownTimeoutSeconds,
		c.Memory.Backend,
		c.Memory.Path,
		c.Resolver.MinOverlap,
		c.Resolver.DedupeInflight,
		c.Remote.BaseURL,
		c.Remote.Path,
		redactAPIKey(c.Remote.APIKey),
		c.Remote.TimeoutSeconds,
		c.History.MaxEntries,
		c.Log.Level,
		c.LogDir(),
		c.Log.MaxDays,
		c.Log.Console,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
