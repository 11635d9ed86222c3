package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"traits_dir": "./caracteristicas",
		"scoring_model": "gemini-2.5-pro",
		"max_attempts": 3,
		"max_image_bytes": 1048576,
		"port": 9000,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "./caracteristicas", cfg.TraitsDir)
	assert.Equal(t, "gemini-2.5-pro", cfg.ScoringModel)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, int64(1048576), cfg.MaxImageBytes)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(file, []byte("profiles: []"), 0644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "defaults", cfg: Defaults()},
		{name: "existing paths", cfg: Config{TraitsDir: dir, ProfilesFile: file}},
		{name: "bad port", cfg: Config{Port: 70000}, wantErr: "'port'"},
		{name: "negative attempts", cfg: Config{MaxAttempts: -1}, wantErr: "'max_attempts'"},
		{name: "negative concurrency", cfg: Config{MaxConcurrent: -1}, wantErr: "'max_concurrent'"},
		{name: "negative interval", cfg: Config{CallIntervalMS: -1}, wantErr: "'call_interval_ms'"},
		{name: "negative image size", cfg: Config{MaxImageBytes: -1}, wantErr: "'max_image_bytes'"},
		{name: "missing traits dir", cfg: Config{TraitsDir: filepath.Join(dir, "nope")}, wantErr: "traits directory not found"},
		{name: "traits dir is a file", cfg: Config{TraitsDir: file}, wantErr: "not a directory"},
		{name: "missing profiles file", cfg: Config{ProfilesFile: filepath.Join(dir, "nope.yaml")}, wantErr: "profiles file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{Port: 9000, ScoringModel: "custom"}
	defaults := Defaults()
	defaults.DatabaseURL = "postgres://localhost/db"

	merged := cfg.MergeWithDefaults(defaults)

	assert.Equal(t, 9000, merged.Port)
	assert.Equal(t, "custom", merged.ScoringModel)
	assert.Equal(t, "postgres://localhost/db", merged.DatabaseURL)
	assert.Equal(t, DefaultMaxAttempts, merged.MaxAttempts)
	assert.Equal(t, int64(DefaultMaxImageBytes), merged.MaxImageBytes)

	// Original is untouched
	assert.Empty(t, cfg.DatabaseURL)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY":  "key",
		"TRAITS_DIR":      "/srv/traits",
		"PORT":            "7000",
		"MAX_IMAGE_BYTES": "2048",
	}
	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "/srv/traits", cfg.TraitsDir)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, int64(2048), cfg.MaxImageBytes)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
}

func TestApplyEnv_Malformed(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(func(k string) string {
		if k == "PORT" {
			return "eighty"
		}
		return ""
	})
	assert.ErrorContains(t, err, "PORT must be an integer")
}
