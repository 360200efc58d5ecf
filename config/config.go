package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // studio-realtime
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Storage struct {
	Backend  string `yaml:"backend"` // postgres|redis|memory
	DSN      string `yaml:"dsn"`     // postgres only
	RedisURL string `yaml:"redisUrl"`
	// messages persisted to redis expire after this; zero keeps them forever
	RedisTTL string `yaml:"redisTtl"`
}

type Room struct {
	BufferSize    int    `yaml:"bufferSize"`    // ring buffer capacity
	HistoryLimit  int    `yaml:"historyLimit"`  // messages replayed on connect
	FlushInterval string `yaml:"flushInterval"` // batch persistence period
}

type RateLimit struct {
	SweepInterval string `yaml:"sweepInterval"` // expired counter GC period
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Logging   Logging   `yaml:"logging"`
	Storage   Storage   `yaml:"storage"`
	Room      Room      `yaml:"room"`
	RateLimit RateLimit `yaml:"ratelimit"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	switch c.Storage.Backend {
	case "", "memory":
		c.Storage.Backend = "memory"
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres backend")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return errors.New("storage.redisUrl is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of postgres|redis|memory", c.Storage.Backend)
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "studio-realtime"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Room.BufferSize <= 0 {
		c.Room.BufferSize = 100
	}
	if c.Room.HistoryLimit <= 0 {
		c.Room.HistoryLimit = 50
	}
	if c.Room.HistoryLimit > c.Room.BufferSize {
		c.Room.HistoryLimit = c.Room.BufferSize
	}
	return nil
}

// FlushInterval falls back to 30s when unset or unparseable.
func (c *Config) FlushInterval() time.Duration {
	return parseDurationOr(30*time.Second, c.Room.FlushInterval)
}

// SweepInterval falls back to 60s when unset or unparseable.
func (c *Config) SweepInterval() time.Duration {
	return parseDurationOr(60*time.Second, c.RateLimit.SweepInterval)
}

// RedisTTL falls back to zero (no expiry) when unset or unparseable.
func (c *Config) RedisTTL() time.Duration {
	return parseDurationOr(0, c.Storage.RedisTTL)
}

func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
