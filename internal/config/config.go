// Package config provides configuration management for the soulpack runtime.
// It loads settings from environment variables with the SOULPACK_ prefix and
// provides sensible defaults for all configuration options.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the soulpack application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Registry RegistryConfig
	Limits   LimitsConfig
	Security SecurityConfig
	Features FeaturesConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 6464)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains filesystem storage configuration.
type StorageConfig struct {
	DataPath string // Storage root for packs/, soulpack-states/, transcripts/ (default: ./data)
}

// RegistryConfig contains character registry client configuration.
type RegistryConfig struct {
	BaseURL string        // Registry base URL (default: https://registry.soulpack.dev)
	Timeout time.Duration // Network timeout for registry and update-check calls (default: 5s)
}

// LimitsConfig contains memory and transcript retention limits.
type LimitsConfig struct {
	MaxMemories       int // Memory records kept per character before FIFO eviction (default: 200)
	MaxTranscripts    int // Transcript files kept per character (default: 50)
	PromptMemories    int // Memory records rendered into the prompt injection (default: 20)
	DefaultQueryLimit int // Default limit for memory queries (default: 10)
	MaxQueryLimit     int // Hard cap for memory queries (default: 50)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	EnableWebUI bool // Enable HTTP API (default: true)
	EnableMCP   bool // Enable MCP stdio server (default: true)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the SOULPACK_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SOULPACK_PORT", 6464),
			Host: getEnv("SOULPACK_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			DataPath: getEnv("SOULPACK_DATA_PATH", "./data"),
		},
		Registry: RegistryConfig{
			BaseURL: getEnv("SOULPACK_REGISTRY_URL", "https://registry.soulpack.dev"),
			Timeout: time.Duration(getEnvInt("SOULPACK_REGISTRY_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Limits: LimitsConfig{
			MaxMemories:       getEnvInt("SOULPACK_MAX_MEMORIES", 200),
			MaxTranscripts:    getEnvInt("SOULPACK_MAX_TRANSCRIPTS", 50),
			PromptMemories:    getEnvInt("SOULPACK_PROMPT_MEMORIES", 20),
			DefaultQueryLimit: getEnvInt("SOULPACK_QUERY_LIMIT", 10),
			MaxQueryLimit:     getEnvInt("SOULPACK_MAX_QUERY_LIMIT", 50),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("SOULPACK_SECURITY_MODE", "development"),
			APIToken:     getEnv("SOULPACK_API_TOKEN", ""),
		},
		Features: FeaturesConfig{
			EnableWebUI: getEnvBool("SOULPACK_ENABLE_WEB_UI", true),
			EnableMCP:   getEnvBool("SOULPACK_ENABLE_MCP", true),
		},
	}
	return cfg, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
