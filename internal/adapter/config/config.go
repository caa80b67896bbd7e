package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration. Defaults come from
// DefaultConfig, then an optional JSON file (TWIN_CONFIG), then
// environment variables on top.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Twilio   TwilioConfig   `json:"twilio"`
	Cohere   CohereConfig   `json:"cohere"`
	Supabase SupabaseConfig `json:"supabase"`
	Analysis AnalysisConfig `json:"analysis"`
	Dispatch DispatchConfig `json:"dispatch"`
	Agent    AgentConfig    `json:"agent"`
	Log      LogConfig      `json:"log"`
}

type ServerConfig struct {
	Host string `json:"host" env:"TWIN_HOST"`
	Port int    `json:"port" env:"TWIN_PORT"`
}

type TwilioConfig struct {
	AccountSID  string `json:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken   string `json:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	PhoneNumber string `json:"phone_number" env:"TWILIO_PHONE_NUMBER"`
}

type CohereConfig struct {
	APIKey string `json:"api_key" env:"COHERE_API_KEY"`
	Model  string `json:"model" env:"COHERE_MODEL"`
}

type SupabaseConfig struct {
	URL    string `json:"url" env:"SUPABASE_URL"`
	APIKey string `json:"api_key" env:"SUPABASE_PUBLISHABLE_KEY"`
}

type AnalysisConfig struct {
	Workers       int           `json:"workers" env:"TWIN_ANALYSIS_WORKERS"`
	LaunchStagger time.Duration `json:"launch_stagger" env:"TWIN_LAUNCH_STAGGER"`
	SettleWindow  time.Duration `json:"settle_window" env:"TWIN_SETTLE_WINDOW"`
	Schedule      string        `json:"schedule" env:"TWIN_ANALYSIS_SCHEDULE"`
}

type DispatchConfig struct {
	Workers        int           `json:"workers" env:"TWIN_DISPATCH_WORKERS"`
	TrailingWindow time.Duration `json:"trailing_window" env:"TWIN_TRAILING_WINDOW"`
	HistoryLimit   int           `json:"history_limit" env:"TWIN_HISTORY_LIMIT"`
	Schedule       string        `json:"schedule" env:"TWIN_DISPATCH_SCHEDULE"`
}

type AgentConfig struct {
	MaxIterations int `json:"max_iterations" env:"TWIN_AGENT_MAX_ITERATIONS"`
}

type LogConfig struct {
	Level  string `json:"level" env:"TWIN_LOG_LEVEL"`
	Format string `json:"format" env:"TWIN_LOG_FORMAT"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Cohere: CohereConfig{
			Model: "command-a-03-2025",
		},
		Analysis: AnalysisConfig{
			Workers:       5,
			LaunchStagger: 500 * time.Millisecond,
			SettleWindow:  60 * time.Second,
			Schedule:      "* * * * *",
		},
		Dispatch: DispatchConfig{
			Workers:        3,
			TrailingWindow: 24 * time.Hour,
			HistoryLimit:   10,
			Schedule:       "*/5 * * * *",
		},
		Agent: AgentConfig{
			MaxIterations: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the JSON file named
// by TWIN_CONFIG (if any), then environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("TWIN_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.Supabase.APIKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.Cohere.APIKey == "" {
		return fmt.Errorf("COHERE_API_KEY is required")
	}
	if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
		return fmt.Errorf("Twilio credentials are required")
	}
	if c.Twilio.PhoneNumber == "" {
		return fmt.Errorf("TWILIO_PHONE_NUMBER is required")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
