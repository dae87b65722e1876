// Package config provides configuration for the travel backend.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the backend configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Search SearchConfig `yaml:"search"`
	Run    RunConfig    `yaml:"run"`

	// Database is the SQLite DSN for the booking archive.
	Database string `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// LLMConfig holds language model client settings.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig holds search provider settings.
type SearchConfig struct {
	FlightsURL string        `yaml:"flights_url"` // optional live endpoint
	HotelsURL  string        `yaml:"hotels_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RunConfig holds pipeline execution settings.
type RunConfig struct {
	// CancelWait bounds how long a new submission waits for a superseded
	// run to stop before proceeding on the commit-time guard alone.
	CancelWait time.Duration `yaml:"cancel_wait"`
	// RunTimeout bounds a single end-to-end pipeline run.
	RunTimeout time.Duration `yaml:"run_timeout"`

	// History compaction: summarize once history exceeds the threshold,
	// keeping the most recent turns unsummarized.
	HistoryThreshold int `yaml:"history_threshold"`
	HistoryKeep      int `yaml:"history_keep"`

	// MaxSteps caps graph execution to catch routing cycles.
	MaxSteps int `yaml:"max_steps"`
}

// Load loads configuration from an optional yaml file and env overrides.
// Defaults apply first, then the file, then environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 64 * 1024,
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:4000",
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Search: SearchConfig{
			Timeout: 5 * time.Second,
		},
		Run: RunConfig{
			CancelWait:       2 * time.Second,
			RunTimeout:       120 * time.Second,
			HistoryThreshold: 10,
			HistoryKeep:      6,
			MaxSteps:         8,
		},
		Database: "file:tripmind.db?cache=shared&mode=rwc",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("HTTP_PORT", cfg.Server.Port)
	cfg.Database = getEnv("DATABASE_URL", cfg.Database)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Timeout = getEnvDuration("LLM_TIMEOUT_MS", cfg.LLM.Timeout)
	cfg.Search.FlightsURL = getEnv("FLIGHTS_URL", cfg.Search.FlightsURL)
	cfg.Search.HotelsURL = getEnv("HOTELS_URL", cfg.Search.HotelsURL)
	cfg.Search.Timeout = getEnvDuration("SEARCH_TIMEOUT_MS", cfg.Search.Timeout)
	cfg.Run.CancelWait = getEnvDuration("CANCEL_WAIT_MS", cfg.Run.CancelWait)
	cfg.Run.RunTimeout = getEnvDuration("RUN_TIMEOUT_MS", cfg.Run.RunTimeout)

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return time.Duration(intVal) * time.Millisecond
		}
	}
	return defaultVal
}
