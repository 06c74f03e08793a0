// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	DBPath         string
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	MaxRequestBody int64
	Agent          AgentConfig
	ExchangeLog    ExchangeLogConfig
	WebSocket      WebSocketConfig
}

// AgentConfig describes the backend agent service.
type AgentConfig struct {
	BaseURL string
	Timeout time.Duration // 0 = wait for the backend indefinitely
}

// ExchangeLogConfig controls the sqlite exchange audit trail.
type ExchangeLogConfig struct {
	Enabled bool
}

// WebSocketConfig tunes the chat socket transport.
type WebSocketConfig struct {
	SendQueue int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration through the given viper instance. Flags bound by
// the CLI take precedence over the environment.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("port"),
		FrontendURL:    v.GetString("frontend_url"),
		DBPath:         v.GetString("db_path"),
		SessionTTL:     v.GetDuration("session_ttl"),
		SweepInterval:  v.GetDuration("sweep_interval"),
		MaxRequestBody: v.GetInt64("max_request_body"),
		Agent: AgentConfig{
			BaseURL: strings.TrimRight(v.GetString("agent_base_url"), "/"),
			Timeout: v.GetDuration("agent_timeout"),
		},
		ExchangeLog: ExchangeLogConfig{
			Enabled: v.GetBool("exchange_log_enabled"),
		},
		WebSocket: WebSocketConfig{
			SendQueue: v.GetInt("ws_send_queue"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("frontend_url", "")
	v.SetDefault("db_path", "./data/healthguard.db")
	v.SetDefault("session_ttl", 60*time.Minute)
	v.SetDefault("sweep_interval", 5*time.Minute)
	v.SetDefault("max_request_body", 64<<10)
	v.SetDefault("agent_base_url", "http://localhost:8000")
	v.SetDefault("agent_timeout", time.Duration(0))
	v.SetDefault("exchange_log_enabled", true)
	v.SetDefault("ws_send_queue", 32)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Agent.BaseURL == "" {
		return fmt.Errorf("AGENT_BASE_URL cannot be empty")
	}
	if c.Agent.Timeout < 0 {
		return fmt.Errorf("AGENT_TIMEOUT must be >= 0")
	}
	if c.ExchangeLog.Enabled && c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when the exchange log is enabled")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.MaxRequestBody <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY must be > 0")
	}
	if c.WebSocket.SendQueue <= 0 {
		return fmt.Errorf("WS_SEND_QUEUE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
