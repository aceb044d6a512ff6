package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the service.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Orders struct {
		// CacheTTLSeconds bounds how long an active order stays mirrored
		// in the cache before the cache is allowed to evict it.
		CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	} `yaml:"orders"`
	Analytics struct {
		// RiskFreeRate is the annualized risk-free rate as a decimal
		// fraction, e.g. 0.02 for 2%.
		RiskFreeRate float64 `yaml:"risk_free_rate"`
		// UpdateIntervalSeconds drives the background report refresher.
		UpdateIntervalSeconds int `yaml:"update_interval_seconds"`
	} `yaml:"analytics"`
}

// Default returns a config suitable for local development.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Database.Path = "tradeflow.db"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Auth.JWTSecret = "tradeflow-dev-secret"
	cfg.Orders.CacheTTLSeconds = 3600
	cfg.Analytics.RiskFreeRate = 0.02
	cfg.Analytics.UpdateIntervalSeconds = 60
	return cfg
}

// Load reads a YAML config file and applies environment overrides.
// A missing file is not an error; defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("opening config file: %w", err)
			}
		} else {
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	// Environment overrides
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT value %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Orders.CacheTTLSeconds <= 0 {
		return fmt.Errorf("order cache TTL must be positive, got %d", c.Orders.CacheTTLSeconds)
	}
	if c.Analytics.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("analytics update interval must be positive, got %d", c.Analytics.UpdateIntervalSeconds)
	}
	if c.Analytics.RiskFreeRate < 0 {
		return fmt.Errorf("risk-free rate cannot be negative, got %f", c.Analytics.RiskFreeRate)
	}
	return nil
}
