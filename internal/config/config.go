package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Evaluation struct {
		TextURL     string `yaml:"text_url"`
		AudioURL    string `yaml:"audio_url"`
		Timeout     string `yaml:"timeout"`
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"evaluation"`
	Auth struct {
		Secret   string `yaml:"secret"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`
	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error; defaults plus environment are used instead.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	override := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Auth.Secret, "AUTH_SECRET")
	override(&c.Evaluation.TextURL, "TEXT_EVAL_URL")
	override(&c.Evaluation.AudioURL, "AUDIO_EVAL_URL")
	override(&c.Log.Level, "LOG_LEVEL")
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORS.Origins = splitCSV(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Evaluation.TextURL == "" {
		c.Evaluation.TextURL = "http://localhost:5000/evaluate_answer"
	}
	if c.Evaluation.AudioURL == "" {
		c.Evaluation.AudioURL = "http://localhost:5002/evaluate"
	}
	if c.Evaluation.MaxAttempts <= 0 {
		c.Evaluation.MaxAttempts = 3
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = "dev-secret-change-me"
	}
	if len(c.CORS.Origins) == 0 {
		c.CORS.Origins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
