// Package config provides configuration loading and validation for the service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Default values
const (
	DefaultPort          = 8080
	DefaultMaxImageBytes = 5 * 1024 * 1024
	DefaultMaxAttempts   = 2
	DefaultMaxConcurrent = 4
)

// Config represents the service configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, environment variables or CLI flags.
type Config struct {
	// Sources
	TraitsDir    string `json:"traits_dir,omitempty"`    // Directory of <trait>.txt descriptions
	ProfilesFile string `json:"profiles_file,omitempty"` // YAML file with extra or overriding profiles

	// Model
	APIKey         string `json:"api_key,omitempty"`          // Gemini API key
	ScoringModel   string `json:"scoring_model,omitempty"`    // Overrides the standard tier model
	ReportModel    string `json:"report_model,omitempty"`     // Overrides the lite tier model
	MaxAttempts    int    `json:"max_attempts,omitempty"`     // Model calls per scoring request
	MaxConcurrent  int    `json:"max_concurrent,omitempty"`   // Model calls in flight
	CallIntervalMS int    `json:"call_interval_ms,omitempty"` // Minimum spacing between model calls

	// Uploads
	MaxImageBytes int64 `json:"max_image_bytes,omitempty"` // Largest accepted image

	// Server
	Port        int    `json:"port,omitempty"`         // HTTP listen port
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL for analysis history
	Verbose     bool   `json:"verbose,omitempty"`      // Debug logging
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:          DefaultPort,
		MaxImageBytes: DefaultMaxImageBytes,
		MaxAttempts:   DefaultMaxAttempts,
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

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
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config error: 'max_attempts' must be non-negative")
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("config error: 'max_concurrent' must be non-negative")
	}
	if c.CallIntervalMS < 0 {
		return fmt.Errorf("config error: 'call_interval_ms' must be non-negative")
	}
	if c.MaxImageBytes < 0 {
		return fmt.Errorf("config error: 'max_image_bytes' must be non-negative")
	}

	if c.TraitsDir != "" {
		info, err := os.Stat(c.TraitsDir)
		if err != nil {
			return fmt.Errorf("config error: traits directory not found: %s", c.TraitsDir)
		}
		if !info.IsDir() {
			return fmt.Errorf("config error: traits_dir is not a directory: %s", c.TraitsDir)
		}
	}
	if c.ProfilesFile != "" {
		if _, err := os.Stat(c.ProfilesFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: profiles file not found: %s", c.ProfilesFile)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.TraitsDir == "" {
		result.TraitsDir = defaults.TraitsDir
	}
	if result.ProfilesFile == "" {
		result.ProfilesFile = defaults.ProfilesFile
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.ScoringModel == "" {
		result.ScoringModel = defaults.ScoringModel
	}
	if result.ReportModel == "" {
		result.ReportModel = defaults.ReportModel
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	// Numeric fields: use default if zero
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.MaxConcurrent == 0 {
		result.MaxConcurrent = defaults.MaxConcurrent
	}
	if result.CallIntervalMS == 0 {
		result.CallIntervalMS = defaults.CallIntervalMS
	}
	if result.MaxImageBytes == 0 {
		result.MaxImageBytes = defaults.MaxImageBytes
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv overrides fields from environment variables. getenv is usually os.Getenv.
// Malformed numeric values are reported, not ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	textFields := map[string]*string{
		"GEMINI_API_KEY": &c.APIKey,
		"DATABASE_URL":   &c.DatabaseURL,
		"TRAITS_DIR":     &c.TraitsDir,
		"PROFILES_FILE":  &c.ProfilesFile,
	}
	for name, field := range textFields {
		if v := getenv(name); v != "" {
			*field = v
		}
	}

	intFields := map[string]*int{
		"PORT":             &c.Port,
		"MAX_ATTEMPTS":     &c.MaxAttempts,
		"MAX_CONCURRENT":   &c.MaxConcurrent,
		"CALL_INTERVAL_MS": &c.CallIntervalMS,
	}
	for name, field := range intFields {
		v := getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: %s must be an integer: %w", name, err)
		}
		*field = n
	}

	if v := getenv("MAX_IMAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config error: MAX_IMAGE_BYTES must be an integer: %w", err)
		}
		c.MaxImageBytes = n
	}
	return nil
}
