package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PERCEPT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "PERCEPT_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "memory.base_url", typ: kString, env: "PERCEPT_MEMORY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Memory.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.BaseURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PERCEPT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "rules.path", typ: kString, env: "PERCEPT_RULES_PATH",
		apply:   func(cfg *Config, v any) { cfg.Rules.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Rules.Path },
	},
	{
		key: "readiness.attempts", typ: kInt, env: "PERCEPT_READINESS_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Readiness.Attempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Readiness.Attempts },
	},
	{
		key: "readiness.backoff", typ: kString, env: "PERCEPT_READINESS_BACKOFF",
		apply:   func(cfg *Config, v any) { cfg.Readiness.Backoff = v.(string) },
		extract: func(cfg Config) any { return cfg.Readiness.Backoff },
	},
	{
		key: "log.level", typ: kString, env: "PERCEPT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
