package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EndpointConfig limits one route. Paths ending in "/" match by prefix.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int // Requests per window
	Window time.Duration
	Burst  int // Bucket capacity, Limit when 0
}

// Config holds rate limiting configuration
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration // Buckets unused this long are dropped
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// env mirrors the RATE_LIMIT_* variables
type env struct {
	Enabled         bool          `envconfig:"ENABLED" default:"true"`
	DefaultLimit    int           `envconfig:"DEFAULT_LIMIT" default:"600"`
	DefaultWindow   time.Duration `envconfig:"DEFAULT_WINDOW" default:"1m"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`
	IdleTTL         time.Duration `envconfig:"IDLE_TTL" default:"1h"`
	GenerateLimit   int           `envconfig:"GENERATE_LIMIT" default:"20"`
	Whitelist       []string      `envconfig:"WHITELIST"`
	Blacklist       []string      `envconfig:"BLACKLIST"`
}

// LoadConfig reads RATE_LIMIT_* environment variables
func LoadConfig() (*Config, error) {
	var e env
	if err := envconfig.Process("RATE_LIMIT", &e); err != nil {
		return nil, fmt.Errorf("failed to read rate limit config: %w", err)
	}
	if !e.Enabled {
		return &Config{Enabled: false}, nil
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    e.DefaultLimit,
		DefaultWindow:   e.DefaultWindow,
		CleanupInterval: e.CleanupInterval,
		IdleTTL:         e.IdleTTL,
		Whitelist:       ipSet(e.Whitelist),
		Blacklist:       ipSet(e.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(e.GenerateLimit),
	}, nil
}

// DefaultEndpointConfigs limits story generation per hour and review submissions per minute
func DefaultEndpointConfigs(generatePerHour int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/generate", Method: "GET", Limit: generatePerHour, Window: time.Hour, Burst: 3},
		{Path: "/generate", Method: "POST", Limit: generatePerHour, Window: time.Hour, Burst: 3},
		{Path: "/review", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
	}
}

func ipSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, ip := range list {
		if ip = strings.TrimSpace(ip); ip != "" {
			out[ip] = true
		}
	}
	return out
}
