// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Scrape    StageConfig     `mapstructure:"scrape"`
	Summarize StageConfig     `mapstructure:"summarize"`
	Feedback  StageConfig     `mapstructure:"feedback"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxConns     int32  `mapstructure:"max_conns"`
	MinConns     int32  `mapstructure:"min_conns"`
	LifetimeMins int    `mapstructure:"conn_lifetime_minutes"`
}

// HTTPConfig configures source fetching retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	DelayMs          int    `mapstructure:"delay_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the headless rendering fallback.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// LLMConfig describes the completion-service endpoint and throttling.
type LLMConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	MaxTokens int    `mapstructure:"max_tokens"`
	DelayMs   int    `mapstructure:"delay_ms"`
}

// StageConfig holds per-stage batch bounds.
type StageConfig struct {
	Limit int `mapstructure:"limit"`
}

// ServerConfig controls the read-path HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AGENDALENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyLimitOverride(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyLimitOverride honors the bare LIMIT environment variable, which caps
// meetings/items per invocation across every stage in one shot.
func applyLimitOverride(cfg *Config) {
	raw := os.Getenv("LIMIT")
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return
	}
	cfg.Scrape.Limit = n
	cfg.Summarize.Limit = n
	cfg.Feedback.Limit = n
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("http.delay_ms", 1500)
	v.SetDefault("http.user_agent", "agendalens/0.1 (+https://github.com/opencouncil/agendalens)")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.max_tokens", 1500)
	v.SetDefault("llm.delay_ms", 1200)
	v.SetDefault("scrape.limit", 5)
	v.SetDefault("summarize.limit", 25)
	v.SetDefault("feedback.limit", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.Scrape.Limit <= 0 || c.Summarize.Limit <= 0 || c.Feedback.Limit <= 0 {
		return fmt.Errorf("stage limits must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// Timeout returns the fetch timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay as a duration.
func (c HTTPConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// Delay returns the politeness delay between successive fetches.
func (c HTTPConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Delay returns the throttle between successive completion calls.
func (c LLMConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}
