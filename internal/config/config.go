package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basket/a2a-agent/internal/otel"
)

// Config holds everything an agent needs to register with a directory,
// hold a connection open, and run its skills.
type Config struct {
	HomeDir string `yaml:"-"`

	AgentID     string `yaml:"agent_id"`
	DisplayName string `yaml:"display_name"`

	DirectoryHTTPURL string `yaml:"directory_http_url"`
	DirectoryWSURL   string `yaml:"directory_ws_url"`

	PingIntervalSeconds     int `yaml:"ping_interval_seconds"`
	MaxReconnectAttempts    int `yaml:"max_reconnect_attempts"`
	MaxRegistrationAttempts int `yaml:"max_registration_attempts"`

	BaseBackoffSeconds      float64 `yaml:"base_backoff_seconds"`
	MaxReconnectBackoffSeconds float64 `yaml:"max_reconnect_backoff_seconds"`
	HTTPTimeoutSeconds      int     `yaml:"http_timeout_seconds"`

	TaskTimeoutSeconds    int `yaml:"task_timeout_seconds"`
	MaxOutboxSize         int `yaml:"max_outbox_size"`
	TaskRetentionPerSkill int `yaml:"task_retention_per_skill"`
	TaskRetentionTTLSeconds int `yaml:"task_retention_ttl_seconds"`

	DefaultConfidence float64 `yaml:"default_confidence"`

	BindAddr       string `yaml:"bind_addr"`
	PublicEndpoint string `yaml:"public_endpoint"`
	LogLevel       string `yaml:"log_level"`

	AuthToken string `yaml:"-"` // env only, never persisted to disk

	OTel otel.Config `yaml:"otel"`
}

// PingInterval is the configured ping cadence as a time.Duration.
func (c Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

// BaseBackoff is the registration/reconnect backoff unit as a time.Duration.
func (c Config) BaseBackoff() time.Duration {
	return time.Duration(c.BaseBackoffSeconds * float64(time.Second))
}

// MaxReconnectBackoff caps the reconnect backoff growth.
func (c Config) MaxReconnectBackoff() time.Duration {
	return time.Duration(c.MaxReconnectBackoffSeconds * float64(time.Second))
}

// HTTPTimeout bounds registration/directory HTTP calls.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// TaskTimeout is the default wall-clock budget for a skill execution.
func (c Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// TaskRetentionTTL bounds how long a completed task stays in the tracker.
func (c Config) TaskRetentionTTL() time.Duration {
	return time.Duration(c.TaskRetentionTTLSeconds) * time.Second
}

func defaultConfig() Config {
	return Config{
		DirectoryHTTPURL:           "http://127.0.0.1:8080",
		DirectoryWSURL:             "ws://127.0.0.1:8080",
		PingIntervalSeconds:        25,
		MaxReconnectAttempts:       10,
		MaxRegistrationAttempts:    3,
		BaseBackoffSeconds:         2.0,
		MaxReconnectBackoffSeconds: 60.0,
		HTTPTimeoutSeconds:         10,
		TaskTimeoutSeconds:         30,
		MaxOutboxSize:              256,
		TaskRetentionPerSkill:      100,
		TaskRetentionTTLSeconds:    int((24 * time.Hour).Seconds()),
		DefaultConfidence:          0.9,
		BindAddr:                   "127.0.0.1:18790",
		LogLevel:                   "info",
		OTel: otel.Config{
			Exporter: "none",
		},
	}
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// HomeDir resolves the agent's state directory, honoring A2A_HOME.
func HomeDir() string {
	if override := os.Getenv("A2A_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".a2a-agent")
}

// Load reads config.yaml (if present), applies env var overrides, and
// normalizes defaults. It never fails because config.yaml is missing:
// an agent with no prior state starts from defaultConfig().
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create agent home: %w", err)
	}

	configPath := ConfigPath(cfg.HomeDir)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.AgentID == "" {
		cfg.AgentID = "agent-" + randSuffix()
	}
	if cfg.PingIntervalSeconds <= 0 {
		cfg.PingIntervalSeconds = 25
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	if cfg.MaxRegistrationAttempts <= 0 {
		cfg.MaxRegistrationAttempts = 3
	}
	if cfg.BaseBackoffSeconds <= 0 {
		cfg.BaseBackoffSeconds = 2.0
	}
	if cfg.MaxReconnectBackoffSeconds <= 0 {
		cfg.MaxReconnectBackoffSeconds = 60.0
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = 10
	}
	if cfg.TaskTimeoutSeconds <= 0 {
		cfg.TaskTimeoutSeconds = 30
	}
	if cfg.MaxOutboxSize <= 0 {
		cfg.MaxOutboxSize = 256
	}
	if cfg.TaskRetentionPerSkill <= 0 {
		cfg.TaskRetentionPerSkill = 100
	}
	if cfg.TaskRetentionTTLSeconds <= 0 {
		cfg.TaskRetentionTTLSeconds = int((24 * time.Hour).Seconds())
	}
	if cfg.DefaultConfidence <= 0 {
		cfg.DefaultConfidence = 0.9
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:18790"
	}
	if cfg.PublicEndpoint == "" {
		cfg.PublicEndpoint = "http://" + cfg.BindAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.OTel.Exporter == "" {
		cfg.OTel.Exporter = "none"
	}
	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = cfg.AgentID
	}
}

func randSuffix() string {
	return strconv.FormatInt(time.Now().UnixNano()%1_000_000, 36)
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("A2A_AGENT_ID"); raw != "" {
		cfg.AgentID = raw
	}
	if raw := os.Getenv("A2A_SERVER_URL"); raw != "" {
		cfg.DirectoryHTTPURL = raw
	}
	if raw := os.Getenv("A2A_WEBSOCKET_URL"); raw != "" {
		cfg.DirectoryWSURL = raw
	}
	if raw := os.Getenv("A2A_PING_INTERVAL_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.PingIntervalSeconds = v
		}
	}
	if raw := os.Getenv("A2A_MAX_RECONNECT_ATTEMPTS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.MaxReconnectAttempts = v
		}
	}
	if raw := os.Getenv("A2A_MAX_REGISTRATION_ATTEMPTS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.MaxRegistrationAttempts = v
		}
	}
	if raw := os.Getenv("A2A_BASE_BACKOFF_SECONDS"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.BaseBackoffSeconds = v
		}
	}
	if raw := os.Getenv("A2A_HTTP_TIMEOUT_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.HTTPTimeoutSeconds = v
		}
	}
	if raw := os.Getenv("A2A_TASK_TIMEOUT_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.TaskTimeoutSeconds = v
		}
	}
	if raw := os.Getenv("A2A_MAX_OUTBOX_SIZE"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.MaxOutboxSize = v
		}
	}
	if raw := os.Getenv("A2A_TASK_RETENTION_PER_SKILL"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.TaskRetentionPerSkill = v
		}
	}
	if raw := os.Getenv("A2A_BIND_ADDR"); raw != "" {
		cfg.BindAddr = raw
	}
	if raw := os.Getenv("A2A_PUBLIC_ENDPOINT"); raw != "" {
		cfg.PublicEndpoint = raw
	}
	if raw := os.Getenv("A2A_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("A2A_AUTH_TOKEN"); raw != "" {
		cfg.AuthToken = raw
	}
	if raw := os.Getenv("A2A_OTEL_EXPORTER"); raw != "" {
		cfg.OTel.Exporter = raw
	}
}
