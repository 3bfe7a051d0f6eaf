package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`
}

type EngineConfig struct {
	DefaultAlgorithm     string  `yaml:"default_algorithm"`
	DefaultMaxRequests   int     `yaml:"default_max_requests"`
	DefaultWindowSeconds float64 `yaml:"default_window_seconds"`
	LogQueueSize         int     `yaml:"log_queue_size"`
	RecentLogCapacity    int     `yaml:"recent_log_capacity"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	LogSpans    bool    `yaml:"log_spans"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8080",
			DBPath: "limitd.db",
		},
		Engine: EngineConfig{
			DefaultAlgorithm:     "token_bucket",
			DefaultMaxRequests:   100,
			DefaultWindowSeconds: 60,
			LogQueueSize:         1024,
			RecentLogCapacity:    1000,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		Tracing: TracingConfig{
			Endpoint:    "",
			Insecure:    false,
			SampleRatio: 1,
			LogSpans:    false,
		},
	}
}

// Load reads config from file with env var overrides
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if listen := os.Getenv("LIMITD_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
	if db := os.Getenv("LIMITD_DB"); db != "" {
		cfg.Server.DBPath = db
	}
	if level := os.Getenv("LIMITD_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return ErrMissingListen
	}
	if c.Server.DBPath == "" {
		return ErrMissingDBPath
	}
	if c.Engine.DefaultMaxRequests <= 0 {
		c.Engine.DefaultMaxRequests = 100
	}
	if c.Engine.DefaultWindowSeconds <= 0 {
		c.Engine.DefaultWindowSeconds = 60
	}
	if c.Engine.LogQueueSize <= 0 {
		c.Engine.LogQueueSize = 1024
	}
	if c.Engine.RecentLogCapacity < 100 {
		c.Engine.RecentLogCapacity = 1000
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
	return nil
}

var (
	ErrMissingListen = &Error{"listen address is required"}
	ErrMissingDBPath = &Error{"database path is required"}
)

type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
