package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the on-disk configuration. Fields tagged secret are masked when
// listed.
type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	// LogFile, when set, receives logs instead of stderr.
	LogFile string `json:"log_file"`
	// Model selects the tokenizer used for context estimates.
	Model string `json:"model"`
	API   struct {
		BaseURL        string `json:"base_url"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"api"`
	Auth struct {
		Token        string `json:"token" secret:"true"`
		TokenFile    string `json:"token_file"`
		TokenURL     string `json:"token_url"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret" secret:"true"`
		RefreshToken string `json:"refresh_token" secret:"true"`
	} `json:"auth"`
	Server struct {
		Addr               string `json:"addr"`
		Token              string `json:"token" secret:"true"`
		RateLimitPerMinute int    `json:"rate_limit_per_minute"`
		WordDelayMS        int    `json:"word_delay_ms"`
	} `json:"server"`
}

// DefaultPath returns ~/.resumechat/config.json.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".resumechat", "config.json")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:  filepath.Join(homeDir(), ".resumechat"),
		LogLevel: "info",
		Model:    "gpt-4",
	}
	cfg.API.BaseURL = "http://localhost:8787"
	cfg.API.TimeoutSeconds = 60
	cfg.Server.Addr = "127.0.0.1:8787"
	cfg.Server.RateLimitPerMinute = 20
	cfg.Server.WordDelayMS = 30
	return cfg
}

// Load reads path over the defaults, writing the defaults there first when
// the file is missing, then applies RESUMECHAT_* environment overrides.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg = defaults()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	} else {
		if cfg, err = readFile(path); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if v := os.Getenv("RESUMECHAT_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("RESUMECHAT_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("RESUMECHAT_TOKEN_FILE"); v != "" {
		cfg.Auth.TokenFile = v
	}
	if v := os.Getenv("RESUMECHAT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// Timeout is the per-request timeout for non-streaming API calls.
func (c *Config) Timeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// readFile returns the defaults overlaid with the file at path, without
// environment overrides.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// GetValue returns the value stored in the file under a dotted key. The
// file is created with defaults if missing.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Lookup(cfg, key)
}

// SetValue parses raw for the dotted key and writes it to the file.
// Environment overrides are never persisted.
func SetValue(path, key, raw string) error {
	cfg, err := readFile(path)
	if err != nil {
		return err
	}
	if err := Assign(cfg, key, raw); err != nil {
		return err
	}
	return Save(path, cfg)
}
