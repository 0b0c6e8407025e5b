package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the gateway's file-based configuration. Environment
// variables cover secrets (database DSN, upstream API keys); the file
// covers tunables.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Chat struct {
		Model string `yaml:"model"`
	} `yaml:"chat"`

	Usage struct {
		Workers           int `yaml:"workers"`
		QueueSize         int `yaml:"queue_size"`
		MaxRetries        int `yaml:"max_retries"`
		RetryDelaySeconds int `yaml:"retry_delay_seconds"`
	} `yaml:"usage"`

	SeedDefaults bool `yaml:"seed_defaults"`
}

func defaults() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Usage.Workers = 5
	c.Usage.QueueSize = 1000
	c.Usage.MaxRetries = 3
	c.Usage.RetryDelaySeconds = 2
	c.SeedDefaults = true
	return &c
}

// LoadConfig reads the YAML config file, falling back to defaults when
// the file does not exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yml"
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("No config file at %s, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Usage.Workers <= 0 {
		cfg.Usage.Workers = 5
	}
	if cfg.Usage.QueueSize <= 0 {
		cfg.Usage.QueueSize = 1000
	}

	log.Printf("Configuration loaded from %s", path)
	return cfg, nil
}
