package config

import (
	"testing"
)

func settingsByKey(cfg *Config, mask bool) map[string]Setting {
	out := make(map[string]Setting)
	for _, s := range Settings(cfg, mask) {
		out[s.Key] = s
	}
	return out
}

func TestSettings_Keys(t *testing.T) {
	got := settingsByKey(defaults(), false)
	for _, key := range []string{
		"data_dir", "log_level", "log_file", "model",
		"api.base_url", "api.timeout_seconds",
		"auth.token", "auth.token_file", "auth.token_url", "auth.client_id", "auth.client_secret", "auth.refresh_token",
		"server.addr", "server.token", "server.rate_limit_per_minute", "server.word_delay_ms",
	} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing setting %s", key)
		}
	}
	if len(got) != 16 {
		t.Errorf("expected 16 settings, got %d", len(got))
	}
	if got["api.timeout_seconds"].Value != 60 {
		t.Errorf("expected api.timeout_seconds=60, got %v", got["api.timeout_seconds"].Value)
	}
}

func TestSettings_Masking(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	cfg.Auth.Token = "tok-secret-1234"
	cfg.Auth.RefreshToken = "rt-5678"
	cfg.Auth.ClientSecret = "ab"
	cfg.Server.Token = "dev-abcd"

	plain := settingsByKey(cfg, false)
	if plain["auth.token"].Value != "tok-secret-1234" {
		t.Errorf("expected unmasked auth.token, got %v", plain["auth.token"].Value)
	}

	masked := settingsByKey(cfg, true)
	want := map[string]any{
		"auth.token":         "***1234",
		"auth.refresh_token": "***5678",
		"auth.client_secret": "***ab",
		"server.token":       "***abcd",
		"log_level":          "info",
		"auth.token_file":    "",
	}
	for k, v := range want {
		if masked[k].Value != v {
			t.Errorf("expected %s=%v, got %v", k, v, masked[k].Value)
		}
	}
	if !masked["server.token"].Secret || masked["server.addr"].Secret {
		t.Error("secret flags do not follow the struct tags")
	}
}

func TestIsSecretKey(t *testing.T) {
	cases := map[string]bool{
		"auth.token":         true,
		"auth.client_secret": true,
		"auth.refresh_token": true,
		"server.token":       true,
		"auth.token_file":    false,
		"api.base_url":       false,
		"nonexistent":        false,
	}
	for key, want := range cases {
		if got := IsSecretKey(key); got != want {
			t.Errorf("IsSecretKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestIdentitySource(t *testing.T) {
	cfg := &Config{}
	if got := cfg.IdentitySource(); got != "" {
		t.Errorf("expected no source, got %q", got)
	}
	cfg.Auth.Token = "t"
	if got := cfg.IdentitySource(); got != SourceToken {
		t.Errorf("expected %q, got %q", SourceToken, got)
	}
	cfg.Auth.TokenFile = "/run/token"
	if got := cfg.IdentitySource(); got != SourceTokenFile {
		t.Errorf("expected %q, got %q", SourceTokenFile, got)
	}
	cfg.Auth.RefreshToken = "rt"
	if got := cfg.IdentitySource(); got != SourceRefreshToken {
		t.Errorf("expected %q, got %q", SourceRefreshToken, got)
	}
}

func TestAssignAndLookup(t *testing.T) {
	cfg := defaults()
	if err := Assign(cfg, "server.word_delay_ms", "5"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if cfg.Server.WordDelayMS != 5 {
		t.Errorf("expected word delay 5, got %d", cfg.Server.WordDelayMS)
	}
	v, err := Lookup(cfg, "server.word_delay_ms")
	if err != nil || v != 5 {
		t.Errorf("Lookup = %v, %v", v, err)
	}

	if err := Assign(cfg, "server.word_delay_ms", "fast"); err == nil {
		t.Error("expected error for non-integer")
	}
	if _, err := Lookup(cfg, "server"); err == nil {
		t.Error("expected error for a non-leaf key")
	}
}
