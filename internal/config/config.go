// Package config provides configuration management for the companion.
// Defaults are overlaid by an optional YAML file, which is in turn overlaid
// by environment variables. Most variables use the COMPANION_ prefix;
// DATABASE_URL, OPENAI_API_KEY and SESSION_SECRET keep their conventional names.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the companion.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Security  SecurityConfig  `yaml:"security"`
	Companion CompanionConfig `yaml:"companion"`
	Backup    BackupConfig    `yaml:"backup"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // default: 5000
	Host string `yaml:"host"` // default: 127.0.0.1
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// DatabaseURL picks the backend by scheme: sqlite:// (or a bare path),
	// postgres://, redis://, file://. Empty means SQLite under DataPath.
	DatabaseURL string `yaml:"database_url"`
	DataPath    string `yaml:"data_path"` // default: ./data
}

// LLMConfig enables generated replies. Without an API key the companion
// answers from its canned lines only.
type LLMConfig struct {
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIModel   string `yaml:"openai_model"` // default: gpt-4
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// Enabled reports whether an API key is configured.
func (c LLMConfig) Enabled() bool {
	return c.OpenAIAPIKey != ""
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode   string   `yaml:"security_mode"` // development or production
	APIToken       string   `yaml:"api_token"`
	SessionSecret  string   `yaml:"session_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS; "*" allows any
	RateLimit      float64  `yaml:"rate_limit"`      // requests per second per client
	RateBurst      int      `yaml:"rate_burst"`
}

// CompanionConfig tunes conversational behavior.
type CompanionConfig struct {
	SuggestionProbability float64 `yaml:"suggestion_probability"` // default: 0.3
	ThoughtProbability    float64 `yaml:"thought_probability"`    // default: 0.4
	// Seed fixes the random source for reproducible replies; 0 seeds from time.
	Seed uint64 `yaml:"seed"`
}

// BackupConfig contains backup configuration.
type BackupConfig struct {
	BackupPath   string `yaml:"backup_path"`   // default: ./backups
	BackupVerify bool   `yaml:"backup_verify"` // default: true
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: 5000, Host: "127.0.0.1"},
		Storage: StorageConfig{DataPath: "./data"},
		LLM:     LLMConfig{OpenAIModel: "gpt-4"},
		Security: SecurityConfig{
			SecurityMode:   "development",
			AllowedOrigins: []string{"*"},
			RateLimit:      10,
			RateBurst:      20,
		},
		Companion: CompanionConfig{
			SuggestionProbability: 0.3,
			ThoughtProbability:    0.4,
		},
		Backup: BackupConfig{BackupPath: "./backups", BackupVerify: true},
	}
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load reads the YAML file at path (skipped when path is empty), then
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	for name, p := range map[string]float64{
		"suggestion_probability": c.Companion.SuggestionProbability,
		"thought_probability":    c.Companion.ThoughtProbability,
	} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f must be within [0, 1]", name, p))
		}
	}
	switch c.Security.SecurityMode {
	case "development":
	case "production":
		if c.Security.APIToken == "" {
			errs = append(errs, errors.New("production mode requires an api token"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown security mode %q", c.Security.SecurityMode))
	}
	if c.Security.RateLimit < 0 || c.Security.RateBurst < 0 {
		errs = append(errs, errors.New("rate limit and burst must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func applyEnv(c *Config) {
	c.Server.Port = getEnvInt("COMPANION_PORT", c.Server.Port)
	c.Server.Host = getEnv("COMPANION_HOST", c.Server.Host)

	c.Storage.DatabaseURL = getEnv("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.DataPath = getEnv("COMPANION_DATA_PATH", c.Storage.DataPath)

	c.LLM.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.LLM.OpenAIAPIKey)
	c.LLM.OpenAIModel = getEnv("COMPANION_OPENAI_MODEL", c.LLM.OpenAIModel)
	c.LLM.OpenAIBaseURL = getEnv("COMPANION_OPENAI_BASE_URL", c.LLM.OpenAIBaseURL)

	c.Security.SecurityMode = getEnv("COMPANION_SECURITY_MODE", c.Security.SecurityMode)
	c.Security.APIToken = getEnv("COMPANION_API_TOKEN", c.Security.APIToken)
	c.Security.SessionSecret = getEnv("SESSION_SECRET", c.Security.SessionSecret)
	c.Security.AllowedOrigins = getEnvList("COMPANION_CORS_ORIGINS", c.Security.AllowedOrigins)
	c.Security.RateLimit = getEnvFloat("COMPANION_RATE_LIMIT", c.Security.RateLimit)
	c.Security.RateBurst = getEnvInt("COMPANION_RATE_BURST", c.Security.RateBurst)

	c.Companion.SuggestionProbability = getEnvFloat("COMPANION_SUGGESTION_PROBABILITY", c.Companion.SuggestionProbability)
	c.Companion.ThoughtProbability = getEnvFloat("COMPANION_THOUGHT_PROBABILITY", c.Companion.ThoughtProbability)
	c.Companion.Seed = uint64(getEnvInt("COMPANION_SEED", int(c.Companion.Seed)))

	c.Backup.BackupPath = getEnv("COMPANION_BACKUP_PATH", c.Backup.BackupPath)
	c.Backup.BackupVerify = getEnvBool("COMPANION_BACKUP_VERIFY", c.Backup.BackupVerify)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes true/1/yes and false/0/no, case-insensitively.
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
