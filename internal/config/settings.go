package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Identity sources, in the order they are preferred.
const (
	SourceRefreshToken = "refresh_token"
	SourceTokenFile    = "token_file"
	SourceToken        = "token"
)

// Setting is one leaf of Config addressed by its dotted JSON key, such as
// "api.base_url".
type Setting struct {
	Key    string
	Value  any
	Secret bool
}

// IdentitySource names the credential the client will use, or "" when none
// is configured. A refresh token wins over a token file, which wins over a
// static token.
func (c *Config) IdentitySource() string {
	switch {
	case c.Auth.RefreshToken != "":
		return SourceRefreshToken
	case c.Auth.TokenFile != "":
		return SourceTokenFile
	case c.Auth.Token != "":
		return SourceToken
	default:
		return ""
	}
}

// Settings lists every leaf of cfg in declaration order. With mask set,
// non-empty secrets keep only their last four characters.
func Settings(cfg *Config, mask bool) []Setting {
	var out []Setting
	walk(reflect.ValueOf(cfg).Elem(), "", func(key string, v reflect.Value, secret bool) {
		val := v.Interface()
		if mask && secret {
			val = maskSecret(v.String())
		}
		out = append(out, Setting{Key: key, Value: val, Secret: secret})
	})
	return out
}

// IsSecretKey reports whether key is tagged secret on Config.
func IsSecretKey(key string) bool {
	_, secret, ok := lookup(&Config{}, key)
	return ok && secret
}

// Lookup returns the value of key in cfg.
func Lookup(cfg *Config, key string) (any, error) {
	v, _, ok := lookup(cfg, key)
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v.Interface(), nil
}

// Assign parses raw according to the type of key and stores it in cfg.
func Assign(cfg *Config, key, raw string) error {
	v, _, ok := lookup(cfg, key)
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s expects an integer, got %q", key, raw)
		}
		v.SetInt(int64(n))
	default:
		return fmt.Errorf("%s cannot be set from the command line", key)
	}
	return nil
}

func lookup(cfg *Config, key string) (reflect.Value, bool, bool) {
	var (
		found  reflect.Value
		secret bool
		ok     bool
	)
	walk(reflect.ValueOf(cfg).Elem(), "", func(k string, v reflect.Value, s bool) {
		if k == key {
			found, secret, ok = v, s, true
		}
	})
	return found, secret, ok
}

// walk visits the leaf fields of a struct, naming each by its json tag
// joined to the enclosing struct's with a dot.
func walk(v reflect.Value, prefix string, fn func(key string, v reflect.Value, secret bool)) {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			walk(v.Field(i), name, fn)
			continue
		}
		fn(name, v.Field(i), f.Tag.Get("secret") == "true")
	}
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "***" + s
	default:
		return "***" + s[len(s)-4:]
	}
}
