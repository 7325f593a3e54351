package config

import "time"

type Config struct {
	Server    ServerConfig
	Memory    MemoryConfig
	Storage   StorageConfig
	Rules     RulesConfig
	Readiness ReadinessConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

// MemoryConfig points at the external memory backend the /memory/*
// routes proxy to.
type MemoryConfig struct {
	BaseURL string
}

type StorageConfig struct {
	DataDir string
}

// RulesConfig optionally overrides the built-in rule table.
type RulesConfig struct {
	Path string
}

type ReadinessConfig struct {
	Attempts int
	Backoff  string // duration string, e.g. "2s"
}

type LogConfig struct {
	Level string
}

// BackoffDuration parses the configured backoff, falling back to two
// seconds on a malformed value.
func (r ReadinessConfig) BackoffDuration() time.Duration {
	d, err := time.ParseDuration(r.Backoff)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Memory: MemoryConfig{
			BaseURL: "http://localhost:8000",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Readiness: ReadinessConfig{
			Attempts: 30,
			Backoff:  "2s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/percept/config.json, then applies PERCEPT_*
// environment variable overrides. The API token is secret and comes
// from the environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
