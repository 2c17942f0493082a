package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"RESUMECHAT_BASE_URL", "RESUMECHAT_TOKEN", "RESUMECHAT_TOKEN_FILE", "RESUMECHAT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults not written: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level=info, got %q", cfg.LogLevel)
	}
	if cfg.API.BaseURL == "" {
		t.Error("expected a default api.base_url")
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.Timeout())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	cfg := defaults()
	cfg.API.BaseURL = "http://file"
	cfg.Auth.Token = "file-token"
	writeTestConfig(t, path, cfg)

	t.Setenv("RESUMECHAT_BASE_URL", "http://env")
	t.Setenv("RESUMECHAT_TOKEN", "env-token")
	t.Setenv("RESUMECHAT_TOKEN_FILE", "/run/secrets/token")
	t.Setenv("RESUMECHAT_LOG_LEVEL", "debug")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.API.BaseURL != "http://env" {
		t.Errorf("expected env base url, got %q", loaded.API.BaseURL)
	}
	if loaded.Auth.Token != "env-token" {
		t.Errorf("expected env token, got %q", loaded.Auth.Token)
	}
	if loaded.Auth.TokenFile != "/run/secrets/token" {
		t.Errorf("expected env token file, got %q", loaded.Auth.TokenFile)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("expected env log level, got %q", loaded.LogLevel)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	original := &Config{
		DataDir:  "/tmp/test-data",
		LogLevel: "debug",
		LogFile:  "/tmp/test-data/resumechat.log",
		Model:    "gpt-4o",
	}
	original.API.BaseURL = "https://resume.example.com"
	original.API.TimeoutSeconds = 15
	original.Auth.Token = "tok-round-trip"
	original.Auth.ClientSecret = "cs-456"
	original.Server.Addr = ":9000"
	original.Server.RateLimitPerMinute = 5

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.DataDir != original.DataDir {
		t.Errorf("DataDir mismatch: %v != %v", loaded.DataDir, original.DataDir)
	}
	if loaded.LogFile != original.LogFile {
		t.Errorf("LogFile mismatch: %v != %v", loaded.LogFile, original.LogFile)
	}
	if loaded.Model != original.Model {
		t.Errorf("Model mismatch: %v != %v", loaded.Model, original.Model)
	}
	if loaded.API.BaseURL != original.API.BaseURL {
		t.Errorf("API.BaseURL mismatch: %v != %v", loaded.API.BaseURL, original.API.BaseURL)
	}
	if loaded.Timeout() != 15*time.Second {
		t.Errorf("Timeout mismatch: %v", loaded.Timeout())
	}
	if loaded.Auth.Token != original.Auth.Token {
		t.Errorf("Auth.Token mismatch: %v != %v", loaded.Auth.Token, original.Auth.Token)
	}
	if loaded.Auth.ClientSecret != original.Auth.ClientSecret {
		t.Errorf("Auth.ClientSecret mismatch")
	}
	if loaded.Server.Addr != original.Server.Addr || loaded.Server.RateLimitPerMinute != 5 {
		t.Errorf("Server mismatch: %+v", loaded.Server)
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)

	if err := Save(path, &Config{LogLevel: "info"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestGetValue_ExistingKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "debug"}
	cfg.API.BaseURL = "http://api"
	cfg.Server.RateLimitPerMinute = 8
	writeTestConfig(t, path, cfg)

	v, err := GetValue(path, "api.base_url")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "http://api" {
		t.Errorf("expected api.base_url=http://api, got %v", v)
	}

	v, err = GetValue(path, "server.rate_limit_per_minute")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != 8 {
		t.Errorf("expected 8, got %v (%T)", v, v)
	}
}

func TestGetValue_UnknownKey(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, &Config{LogLevel: "info"})

	_, err := GetValue(path, "nonexistent.key")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	expected := "unknown config key: nonexistent.key"
	if err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}

func TestGetValue_NewFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue on new config failed: %v", err)
	}
	if v != "info" {
		t.Errorf("expected default log_level=info, got %v", v)
	}
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		name string
		key  string
		raw  string
		want any
	}{
		{"string", "log_level", "debug", "debug"},
		{"nested string", "api.base_url", "https://resume.example.com", "https://resume.example.com"},
		{"integer", "server.rate_limit_per_minute", "16", 16},
		{"secret", "auth.refresh_token", "rt-123", "rt-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tempConfigPath(t)
			cfg := &Config{LogLevel: "info"}
			cfg.Auth.TokenFile = "/run/token"
			writeTestConfig(t, path, cfg)

			if err := SetValue(path, tt.key, tt.raw); err != nil {
				t.Fatalf("SetValue failed: %v", err)
			}
			v, err := GetValue(path, tt.key)
			if err != nil {
				t.Fatalf("GetValue failed: %v", err)
			}
			if v != tt.want {
				t.Errorf("expected %s=%v, got %v (%T)", tt.key, tt.want, v, v)
			}

			// Other values are preserved.
			v, err = GetValue(path, "auth.token_file")
			if err != nil || v != "/run/token" {
				t.Errorf("expected auth.token_file preserved, got %v (%v)", v, err)
			}
		})
	}
}

func TestSetValue_Rejects(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, &Config{LogLevel: "info"})

	if err := SetValue(path, "custom.setting", "value"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := SetValue(path, "api.timeout_seconds", "soon"); err == nil {
		t.Error("expected error for non-integer value")
	}
}

func TestSetValue_DoesNotPersistEnv(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, &Config{LogLevel: "info"})
	t.Setenv("RESUMECHAT_TOKEN", "env-token")

	if err := SetValue(path, "log_level", "warn"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	v, err := GetValue(path, "auth.token")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "" {
		t.Errorf("expected env token to stay out of the file, got %v", v)
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	if err := SetValue(path, "log_level", "debug"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.json")

	if err := Save(path, &Config{LogLevel: "warn"}); err != nil {
		t.Fatalf("Save should create parent directory, got: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
}
