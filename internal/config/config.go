package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	Evaluator     EvaluatorConfig  `json:"evaluator"`
	Session       SessionConfig    `json:"session"`
	Transcript    TranscriptConfig `json:"transcript"`
	Properties    Properties       `json:"properties"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	RateLimitMs   int              `json:"rate_limit_ms"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type EvaluatorConfig struct {
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

type SessionConfig struct {
	Echo           *bool  `json:"echo"`
	ResultMode     string `json:"result_mode"`
	MaxSessions    int    `json:"max_sessions"`
	IdleTTLSeconds int    `json:"idle_ttl_seconds"`
	QueueSize      int    `json:"queue_size"`
	OutputLimit    int    `json:"output_limit"`
	SubmitTimeout  int    `json:"submit_timeout_seconds"`
}

func (s SessionConfig) EchoEnabled() bool {
	return s.Echo == nil || *s.Echo
}

type TranscriptConfig struct {
	Enabled        bool   `json:"enabled"`
	RetentionHours int    `json:"retention_hours"`
	CleanupSpec    string `json:"cleanup_spec"`
}

// Properties are handed to the page as-is.
type Properties struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	cfg.Evaluator.Name = strings.ToLower(strings.TrimSpace(cfg.Evaluator.Name))
	if cfg.Evaluator.Name == "" {
		return fmt.Errorf("evaluator.name is required")
	}
	if cfg.Session.ResultMode == "" {
		cfg.Session.ResultMode = "render"
	}
	switch cfg.Session.ResultMode {
	case "render", "log", "discard":
	default:
		return fmt.Errorf("session.result_mode must be render, log or discard")
	}
	if cfg.Session.MaxSessions <= 0 {
		cfg.Session.MaxSessions = 256
	}
	if cfg.Session.IdleTTLSeconds <= 0 {
		cfg.Session.IdleTTLSeconds = 1800
	}
	if cfg.Session.QueueSize < 0 {
		return fmt.Errorf("session.queue_size must not be negative")
	}
	if cfg.Session.QueueSize == 0 {
		cfg.Session.QueueSize = 64
	}
	if cfg.Session.OutputLimit <= 0 {
		cfg.Session.OutputLimit = 1000
	}
	if cfg.Session.SubmitTimeout <= 0 {
		cfg.Session.SubmitTimeout = 30
	}
	if cfg.Properties.Prompt == "" {
		cfg.Properties.Prompt = "=> "
	}
	if cfg.Properties.Title == "" {
		cfg.Properties.Title = "console"
	}
	if cfg.Transcript.Enabled {
		if cfg.Transcript.RetentionHours <= 0 {
			cfg.Transcript.RetentionHours = 24 * 7
		}
		if cfg.Transcript.CleanupSpec == "" {
			cfg.Transcript.CleanupSpec = "0 * * * *"
		}
		if err := cfg.Database.normalize(); err != nil {
			return err
		}
	}
	return nil
}

func (db *DatabaseConfig) normalize() error {
	if db.Driver == "" {
		db.Driver = "sqlite"
	}
	switch db.Driver {
	case "sqlite":
		if db.Path == "" && db.DSN == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if db.DSN == "" && (db.Host == "" || db.DBName == "") {
			return fmt.Errorf("database.dsn or host/dbname are required for postgres")
		}
		if db.Port == 0 {
			db.Port = 5432
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}
	return nil
}
