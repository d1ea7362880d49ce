// Package config provides environment-variable configuration loading for the
// planner's cache layer. This mirrors the EVE ecosystem's standard
// EnvConfig/Validator pattern, scoped down to the one settings object the
// planner core owns: GraphCacheConfig.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prismquery/planner/cache"
	"github.com/prismquery/planner/common"
)

// EnvConfig provides utilities for loading configuration from environment variables.
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

// GetString retrieves a string value from environment with optional default.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// GetInt retrieves an integer value from environment with optional default.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetInt64 retrieves an int64 value from environment with optional default.
func (ec *EnvConfig) GetInt64(key string, defaultValue int64) int64 {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default.
// Accepts: "true", "1", "yes", "on" for true; "false", "0", "no", "off" for false.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	switch value {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// GetDuration retrieves a duration value from environment with optional default.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// Validator provides configuration validation utilities.
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// RequirePositiveInt64 validates that an int64 field is positive.
func (v *Validator) RequirePositiveInt64(field string, value int64) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireString validates that a string field is not empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// IsValid returns true if there are no validation errors.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// ErrorString returns all validation errors as a single string.
func (v *Validator) ErrorString() string {
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns an error if invalid.
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// CacheDirConfig carries the one setting cache.GraphCacheConfig itself has
// no field for: where bbolt should put its file on disk. LoadCacheConfig
// returns it alongside the spec-shaped cache.GraphCacheConfig rather than
// folding it into that struct, since CacheDir is a deployment concern
// (filesystem layout) and not a cache-semantics knob.
type CacheDirConfig struct {
	CacheDir string
}

// LoadCacheConfig loads cache.GraphCacheConfig plus the bbolt file
// location from environment variables under the given prefix (e.g.
// "PLANNER" reads PLANNER_CACHE_TTL, PLANNER_CACHE_DIR, ...). A caller
// that does not supply an explicit cache.GraphCacheConfig of its own can
// use this to get one from the environment.
func LoadCacheConfig(prefix string) (cache.GraphCacheConfig, CacheDirConfig, error) {
	env := NewEnvConfig(prefix)

	var maxCacheSize *int64
	if raw := env.GetInt64("CACHE_MAX_BYTES", 0); raw > 0 {
		maxCacheSize = common.Ptr(raw)
	}

	cfg := cache.GraphCacheConfig{
		InferenceTTL:      env.GetDuration("CACHE_TTL", 15*time.Minute),
		MaxCacheSize:      maxCacheSize,
		EnableCompression: env.GetBool("CACHE_COMPRESSION", false),
		RedisURL:          env.GetString("CACHE_REDIS_URL", ""),
	}
	dirCfg := CacheDirConfig{CacheDir: env.GetString("CACHE_DIR", ".")}

	validator := NewValidator()
	validator.RequireString("CacheDir", dirCfg.CacheDir)
	if err := validator.Validate(); err != nil {
		return cache.GraphCacheConfig{}, CacheDirConfig{}, err
	}

	return cfg, dirCfg, nil
}
