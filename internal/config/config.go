// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/storybook/internal/llm"
	"github.com/jonathan/storybook/internal/logger"
)

// Store backends
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config represents the service configuration. It can be loaded from a JSON or
// YAML file and is overlaid by environment variables.
// All fields are optional; missing values use defaults.
type Config struct {
	// Server
	Port      int    `json:"port,omitempty" yaml:"port" envconfig:"PORT"`
	StaticDir string `json:"static_dir,omitempty" yaml:"static_dir" envconfig:"STATIC_DIR"` // Root for images and file-store books

	// Text model
	LLMProvider string `json:"llm_provider,omitempty" yaml:"llm_provider" envconfig:"LLM_PROVIDER"` // gemini, openai or ollama
	LLMBaseURL  string `json:"llm_base_url,omitempty" yaml:"llm_base_url" envconfig:"LLM_BASE_URL"`
	LLMModel    string `json:"llm_model,omitempty" yaml:"llm_model" envconfig:"LLM_MODEL"` // Overrides the standard tier
	APIKey      string `json:"api_key,omitempty" yaml:"api_key" envconfig:"LLM_API_KEY"`

	// Image model
	ImageAPIKey         string `json:"image_api_key,omitempty" yaml:"image_api_key" envconfig:"DASHSCOPE_API_KEY"`
	ImageBaseURL        string `json:"image_base_url,omitempty" yaml:"image_base_url" envconfig:"IMAGE_BASE_URL"`
	ImageModel          string `json:"image_model,omitempty" yaml:"image_model" envconfig:"IMAGE_MODEL"`
	ImageTimeoutSeconds int    `json:"image_timeout_seconds,omitempty" yaml:"image_timeout_seconds" envconfig:"IMAGE_TIMEOUT_SECONDS"`

	// Storage
	StoreBackend string `json:"store_backend,omitempty" yaml:"store_backend" envconfig:"STORE_BACKEND"` // file, postgres or redis
	DatabaseURL  string `json:"database_url,omitempty" yaml:"database_url" envconfig:"DATABASE_URL"`
	RedisURL     string `json:"redis_url,omitempty" yaml:"redis_url" envconfig:"REDIS_URL"`

	// Workflow
	MaxRegenerations     int `json:"max_regenerations,omitempty" yaml:"max_regenerations" envconfig:"MAX_REGENERATIONS"`
	ReviewTimeoutMinutes int `json:"review_timeout_minutes,omitempty" yaml:"review_timeout_minutes" envconfig:"REVIEW_TIMEOUT_MINUTES"` // Negative disables the timeout
	SessionMaxAgeMinutes int `json:"session_max_age_minutes,omitempty" yaml:"session_max_age_minutes" envconfig:"SESSION_MAX_AGE_MINUTES"`
	KeepAliveSeconds     int `json:"keep_alive_seconds,omitempty" yaml:"keep_alive_seconds" envconfig:"KEEP_ALIVE_SECONDS"`

	// Logging
	LogLevel  string `json:"log_level,omitempty" yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format" envconfig:"LOG_FORMAT"`
	LogOutput string `json:"log_output,omitempty" yaml:"log_output" envconfig:"LOG_OUTPUT"`
	LogFile   string `json:"log_file,omitempty" yaml:"log_file" envconfig:"LOG_FILE"`
}

// Defaults returns the built-in configuration values
func Defaults() Config {
	return Config{
		Port:                 8080,
		StaticDir:            "static",
		LLMProvider:          string(llm.ProviderGemini),
		ImageModel:           "wanx2.1-t2i-turbo",
		ImageBaseURL:         "https://dashscope.aliyuncs.com/api/v1",
		ImageTimeoutSeconds:  300,
		StoreBackend:         StoreFile,
		MaxRegenerations:     1,
		ReviewTimeoutMinutes: 30,
		SessionMaxAgeMinutes: 30,
		KeepAliveSeconds:     15,
		LogLevel:             "info",
		LogFormat:            "console",
		LogOutput:            "stdout",
	}
}

// Load builds the effective configuration: optional file, then environment, then defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment configuration: %w", err)
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	switch llm.Provider(c.LLMProvider) {
	case llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderOllama, "":
	default:
		return fmt.Errorf("config error: unknown 'llm_provider' %q", c.LLMProvider)
	}

	switch c.StoreBackend {
	case StoreFile, "":
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config error: 'redis_url' is required for the redis store")
		}
	default:
		return fmt.Errorf("config error: unknown 'store_backend' %q", c.StoreBackend)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxRegenerations < 0 {
		return fmt.Errorf("config error: 'max_regenerations' must be non-negative")
	}
	if c.SessionMaxAgeMinutes < 0 {
		return fmt.Errorf("config error: 'session_max_age_minutes' must be non-negative")
	}
	if c.ImageTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'image_timeout_seconds' must be non-negative")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	mergeString(&result.StaticDir, defaults.StaticDir)
	mergeString(&result.LLMProvider, defaults.LLMProvider)
	mergeString(&result.LLMBaseURL, defaults.LLMBaseURL)
	mergeString(&result.LLMModel, defaults.LLMModel)
	mergeString(&result.APIKey, defaults.APIKey)
	mergeString(&result.ImageAPIKey, defaults.ImageAPIKey)
	mergeString(&result.ImageBaseURL, defaults.ImageBaseURL)
	mergeString(&result.ImageModel, defaults.ImageModel)
	mergeString(&result.StoreBackend, defaults.StoreBackend)
	mergeString(&result.DatabaseURL, defaults.DatabaseURL)
	mergeString(&result.RedisURL, defaults.RedisURL)
	mergeString(&result.LogLevel, defaults.LogLevel)
	mergeString(&result.LogFormat, defaults.LogFormat)
	mergeString(&result.LogOutput, defaults.LogOutput)
	mergeString(&result.LogFile, defaults.LogFile)

	// Int fields: use default if zero
	mergeInt(&result.Port, defaults.Port)
	mergeInt(&result.ImageTimeoutSeconds, defaults.ImageTimeoutSeconds)
	mergeInt(&result.ReviewTimeoutMinutes, defaults.ReviewTimeoutMinutes)
	mergeInt(&result.SessionMaxAgeMinutes, defaults.SessionMaxAgeMinutes)
	mergeInt(&result.KeepAliveSeconds, defaults.KeepAliveSeconds)

	// MaxRegenerations is left alone: zero is a meaningful value

	return result
}

func mergeString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func mergeInt(field *int, def int) {
	if *field == 0 {
		*field = def
	}
}

// LLMConfig returns the text model configuration for the selected provider
func (c *Config) LLMConfig() *llm.Config {
	cfg := llm.ConfigFor(llm.Provider(c.LLMProvider))
	if c.LLMBaseURL != "" {
		cfg.BaseURL = c.LLMBaseURL
	}
	if c.LLMModel != "" {
		cfg = cfg.WithModel(llm.TierStandard, c.LLMModel)
	}
	return cfg
}

// LogConfig returns the logger configuration
func (c *Config) LogConfig() logger.Config {
	return logger.Config{
		Level:    c.LogLevel,
		Format:   c.LogFormat,
		Output:   c.LogOutput,
		FilePath: c.LogFile,
	}
}

// ReviewTimeout returns how long a run waits for a review decision; zero means no limit.
func (c *Config) ReviewTimeout() time.Duration {
	if c.ReviewTimeoutMinutes < 0 {
		return 0
	}
	return time.Duration(c.ReviewTimeoutMinutes) * time.Minute
}

// SessionMaxAge returns the age after which idle sessions are swept
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeMinutes) * time.Minute
}

// KeepAlive returns the interval between SSE keep-alive comments
func (c *Config) KeepAlive() time.Duration {
	if c.KeepAliveSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.KeepAliveSeconds) * time.Second
}

// ImageTimeout returns the overall deadline for one image task
func (c *Config) ImageTimeout() time.Duration {
	return time.Duration(c.ImageTimeoutSeconds) * time.Second
}

// BooksDir is where the file store writes book records
func (c *Config) BooksDir() string {
	return filepath.Join(c.StaticDir, "books")
}

// ImagesDir is where downloaded illustrations are written
func (c *Config) ImagesDir() string {
	return filepath.Join(c.StaticDir, "images")
}
