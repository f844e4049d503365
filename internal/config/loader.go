package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PHOTOBOOTH_CONFIG is set
//  3. env (prefix PHOTOBOOTH_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PHOTOBOOTH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: PHOTOBOOTH_ADDR, PHOTOBOOTH_STORAGE_BUCKET, ...
	// Double underscores separate nesting levels so single underscores
	// survive inside key names.
	envProvider := env.Provider("PHOTOBOOTH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "photobooth_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.CooldownSeconds < 0 {
		return nil, errors.New("cooldown_seconds must not be negative")
	}
	return &cfg, nil
}
