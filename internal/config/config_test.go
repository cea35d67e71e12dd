// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  api_url: "https://chat.example.com"
  socket_url: "wss://chat.example.com/socket"

cache:
  enabled: true
  path: "./ripple.db"

timing:
  typing_debounce: "2s"
  typing_expiry: "3s"

logging:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify server config
	if cfg.Server.APIURL != "https://chat.example.com" {
		t.Errorf("Server.APIURL = %q, want %q", cfg.Server.APIURL, "https://chat.example.com")
	}
	if cfg.Server.SocketURL != "wss://chat.example.com/socket" {
		t.Errorf("Server.SocketURL = %q, want %q", cfg.Server.SocketURL, "wss://chat.example.com/socket")
	}

	// Verify cache config
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true")
	}
	if cfg.Cache.Path != "./ripple.db" {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, "./ripple.db")
	}

	// Verify timing config with duration parsing
	if cfg.Timing.TypingDebounce != 2*time.Second {
		t.Errorf("Timing.TypingDebounce = %v, want %v", cfg.Timing.TypingDebounce, 2*time.Second)
	}
	if cfg.Timing.TypingExpiry != 3*time.Second {
		t.Errorf("Timing.TypingExpiry = %v, want %v", cfg.Timing.TypingExpiry, 3*time.Second)
	}

	// Verify logging config
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	// Set environment variables for testing
	t.Setenv("TEST_RIPPLE_API_URL", "https://env.example.com")
	t.Setenv("TEST_RIPPLE_CACHE_PATH", "/var/cache/ripple.db")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  api_url: "${TEST_RIPPLE_API_URL}"
  socket_url: "wss://chat.example.com/socket"

cache:
  enabled: true
  path: "${TEST_RIPPLE_CACHE_PATH}"

logging:
  level: "info"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify env var expansion
	if cfg.Server.APIURL != "https://env.example.com" {
		t.Errorf("Server.APIURL = %q, want %q", cfg.Server.APIURL, "https://env.example.com")
	}
	if cfg.Cache.Path != "/var/cache/ripple.db" {
		t.Errorf("Cache.Path = %q, want %q", cfg.Cache.Path, "/var/cache/ripple.db")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	// Ensure the env var is NOT set
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  api_url: "https://chat.example.com"
  socket_url: "wss://chat.example.com/socket"

cache:
  enabled: false
  path: "${UNSET_VAR_FOR_TEST}"

logging:
  level: "info"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset env vars should expand to empty string
	if cfg.Cache.Path != "" {
		t.Errorf("Cache.Path = %q, want empty string for unset env var", cfg.Cache.Path)
	}
}

func TestLoad_DurationParsing(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  api_url: "https://chat.example.com"
  socket_url: "wss://chat.example.com/socket"

timing:
  typing_debounce: "1500ms"
  typing_expiry: "1m30s"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify complex duration parsing
	if cfg.Timing.TypingDebounce != 1500*time.Millisecond {
		t.Errorf("Timing.TypingDebounce = %v, want %v", cfg.Timing.TypingDebounce, 1500*time.Millisecond)
	}

	expectedExpiry := 1*time.Minute + 30*time.Second
	if cfg.Timing.TypingExpiry != expectedExpiry {
		t.Errorf("Timing.TypingExpiry = %v, want %v", cfg.Timing.TypingExpiry, expectedExpiry)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Invalid YAML content
	configContent := `
server:
  api_url: "https://chat.example.com"
  socket_url "missing colon"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  api_url: "https://chat.example.com"
  socket_url: "wss://chat.example.com/socket"

timing:
  typing_debounce: "invalid-duration"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err = Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing api_url",
			configContent: `
server:
  api_url: ""
  socket_url: "wss://chat.example.com/socket"
`,
			wantErrSubstr: "server.api_url is required",
		},
		{
			name: "missing socket_url",
			configContent: `
server:
  api_url: "https://chat.example.com"
  socket_url: ""
`,
			wantErrSubstr: "server.socket_url is required",
		},
		{
			name: "cache enabled without path",
			configContent: `
server:
  api_url: "https://chat.example.com"
  socket_url: "wss://chat.example.com/socket"
cache:
  enabled: true
  path: ""
`,
			wantErrSubstr: "cache.path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			err := os.WriteFile(configPath, []byte(tt.configContent), 0644)
			if err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			_, err = Load(configPath)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() config failed validation: %v", err)
	}
	if cfg.Cache.Enabled {
		t.Error("Default() Cache.Enabled = true, want false")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Default() Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}
