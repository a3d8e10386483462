package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server's file configuration. Every field has a default so a
// missing file still yields a runnable server.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Quiz struct {
		QuestionDurationSec int `yaml:"question_duration_sec"`
		QuestionCount       int `yaml:"question_count"`
	} `yaml:"quiz"`
	Relay struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = fmt.Sprintf(":%s", getEnv("PORT", "8080"))
	cfg.Quiz.QuestionDurationSec = 15
	cfg.Quiz.QuestionCount = 10
	return cfg
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Quiz.QuestionDurationSec <= 0 {
		cfg.Quiz.QuestionDurationSec = 15
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultConfig().Server.Addr
	}
	return cfg, nil
}

// QuestionDuration returns the per-question countdown as a duration.
func (c *Config) QuestionDuration() time.Duration {
	return time.Duration(c.Quiz.QuestionDurationSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
