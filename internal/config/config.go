package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port             string        `yaml:"port"`
	Env              string        `yaml:"env"`
	StoreBackend     string        `yaml:"store_backend"`
	RedisURL         string        `yaml:"redis_url"`
	RedisKeyPrefix   string        `yaml:"redis_key_prefix"`
	DatabaseURL      string        `yaml:"database_url"`
	MaxEmails        int           `yaml:"max_emails"`
	SessionSecret    string        `yaml:"session_secret"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	WorkflowURL      string        `yaml:"workflow_url"`
	WorkflowTimeout  time.Duration `yaml:"workflow_timeout"`
	GmailAccessToken string        `yaml:"gmail_access_token"`
	GmailSender      string        `yaml:"gmail_sender"`
	HeartbeatPeriod  time.Duration `yaml:"heartbeat_period"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
}

// DevSessionSecret signs session cookies when SESSION_SECRET is unset. It is
// rejected in production.
const DevSessionSecret = "6f1d8e0b-3c47-4a8e-9a52-2b8f1f0c7d11"

func defaults() *Config {
	return &Config{
		Port:            "3000",
		Env:             "development",
		StoreBackend:    BackendMemory,
		RedisKeyPrefix:  "fsm-intake",
		MaxEmails:       100,
		SessionSecret:   DevSessionSecret,
		AllowedOrigins:  []string{"*"},
		WorkflowTimeout: 30 * time.Second,
		GmailSender:     "me",
		HeartbeatPeriod: 25 * time.Second,
		SessionTTL:      24 * time.Hour,
	}
}

// LoadConfig reads .env (if present), then the optional YAML file named by
// CONFIG_FILE (default config.yaml), then lets environment variables win.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	path := GetEnv("CONFIG_FILE", "config.yaml")
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}
	overrideFromEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	cfg.Port = GetEnv("PORT", cfg.Port)
	cfg.Env = GetEnv("ENV", cfg.Env)
	cfg.StoreBackend = strings.ToLower(GetEnv("STORE_BACKEND", cfg.StoreBackend))
	cfg.RedisURL = GetEnv("REDIS_URL", cfg.RedisURL)
	cfg.RedisKeyPrefix = GetEnv("REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)
	cfg.DatabaseURL = GetEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SessionSecret = GetEnv("SESSION_SECRET", cfg.SessionSecret)
	cfg.WorkflowURL = GetEnv("WORKFLOW_URL", cfg.WorkflowURL)
	cfg.GmailAccessToken = GetEnv("GMAIL_ACCESS_TOKEN", cfg.GmailAccessToken)
	cfg.GmailSender = GetEnv("GMAIL_SENDER", cfg.GmailSender)

	if origins := GetEnv("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if n, err := strconv.Atoi(GetEnv("MAX_EMAILS", "")); err == nil && n > 0 {
		cfg.MaxEmails = n
	}
	if d, err := time.ParseDuration(GetEnv("WORKFLOW_TIMEOUT", "")); err == nil && d > 0 {
		cfg.WorkflowTimeout = d
	}
	if d, err := time.ParseDuration(GetEnv("HEARTBEAT_PERIOD", "")); err == nil && d > 0 {
		cfg.HeartbeatPeriod = d
	}
	if d, err := time.ParseDuration(GetEnv("SESSION_TTL", "")); err == nil && d > 0 {
		cfg.SessionTTL = d
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MaxEmails <= 0 {
		return fmt.Errorf("MAX_EMAILS must be positive")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.Env == "production" && c.SessionSecret == DevSessionSecret {
		return fmt.Errorf("SESSION_SECRET must be set in production")
	}
	return nil
}

// ReplyEnabled reports whether outbound replies can be delivered.
func (c *Config) ReplyEnabled() bool {
	return c.GmailAccessToken != ""
}
