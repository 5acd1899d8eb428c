package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no model API key is present in the environment.
var ErrMissingAPIKey = errors.New("missing model API key: set GEMINI_API_KEY or OPENAI_API_KEY")

// Config stores runtime configuration loaded from the environment and an optional config file.
type Config struct {
	Env  string
	Port string

	AgentAPIKey   string
	AgentBaseURL  string
	AgentModel    string
	AgentTimeout  time.Duration
	AgentMaxTurns int

	Database    string
	ProfilePath string
	TempDir     string
	MaxUploadMB int64

	SessionStore  string // "sqlite" or "redis"
	SessionSecret string
	SessionTTL    time.Duration
	RedisAddr     string
}

// Load reads configuration from .env, ./config/config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("env", "local")
	v.SetDefault("port", "8080")
	v.SetDefault("agent.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("agent.model", "gemini-2.0-flash")
	v.SetDefault("agent.timeout", "60s")
	v.SetDefault("agent.max_turns", 8)
	v.SetDefault("database.path", "./data/quiz.db")
	v.SetDefault("profile.path", "./data/user_data.json")
	v.SetDefault("upload.temp_dir", "")
	v.SetDefault("upload.max_mb", 20)
	v.SetDefault("session.store", "sqlite")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.secret", "")
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("agent.api_key", "GEMINI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("agent.base_url", "AGENT_BASE_URL")
	_ = v.BindEnv("agent.model", "AGENT_MODEL")
	_ = v.BindEnv("agent.timeout", "AGENT_TIMEOUT")
	_ = v.BindEnv("agent.max_turns", "AGENT_MAX_TURNS")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("profile.path", "PROFILE_PATH")
	_ = v.BindEnv("upload.temp_dir", "UPLOAD_TEMP_DIR")
	_ = v.BindEnv("upload.max_mb", "MAX_UPLOAD_MB")
	_ = v.BindEnv("session.store", "SESSION_STORE")
	_ = v.BindEnv("session.ttl", "SESSION_TTL")
	_ = v.BindEnv("session.secret", "SESSION_SECRET")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Env:           v.GetString("env"),
		Port:          v.GetString("port"),
		AgentAPIKey:   strings.TrimSpace(v.GetString("agent.api_key")),
		AgentBaseURL:  v.GetString("agent.base_url"),
		AgentModel:    v.GetString("agent.model"),
		AgentTimeout:  v.GetDuration("agent.timeout"),
		AgentMaxTurns: v.GetInt("agent.max_turns"),
		Database:      v.GetString("database.path"),
		ProfilePath:   v.GetString("profile.path"),
		TempDir:       v.GetString("upload.temp_dir"),
		MaxUploadMB:   v.GetInt64("upload.max_mb"),
		SessionStore:  strings.ToLower(v.GetString("session.store")),
		SessionSecret: v.GetString("session.secret"),
		SessionTTL:    v.GetDuration("session.ttl"),
		RedisAddr:     v.GetString("redis.addr"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database dir %s: %w", cfg.Database, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.ProfilePath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure profile dir %s: %w", cfg.ProfilePath, err)
	}
	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure temp dir %s: %w", cfg.TempDir, err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AgentAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.AgentTimeout <= 0 {
		return fmt.Errorf("agent timeout must be positive, got %s", c.AgentTimeout)
	}
	if c.AgentMaxTurns <= 0 {
		return fmt.Errorf("agent max turns must be positive, got %d", c.AgentMaxTurns)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadMB)
	}
	switch c.SessionStore {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported session store %q", c.SessionStore)
	}
	return nil
}

// Production reports whether the app runs in a production environment.
func (c *Config) Production() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}
