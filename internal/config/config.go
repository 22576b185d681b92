package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port             int              `json:"port"`
	JWTSecret        string           `json:"jwt_secret"`
	JWTTTLHours      int              `json:"jwt_ttl_hours"`
	LogConfig        logger.LogConfig `json:"log_config"`
	Database         DatabaseConfig   `json:"database"`
	Redis            RedisConfig      `json:"redis"`
	UserCache        UserCacheConfig  `json:"user_cache"`
	Audit            AuditConfig      `json:"audit"`
	CORSAllowlist    []string         `json:"cors_allowlist"`
	// WriteRateLimitMS spaces out repeated writes per caller and article.
	// Writes answered with 409 do not count.
	WriteRateLimitMS int              `json:"write_rate_limit_ms"`
	SeedUsers        []SeedUser       `json:"seed_users"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

type UserCacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

// AuditConfig schedules the version history consistency audit. An empty spec disables it.
type AuditConfig struct {
	Spec string `json:"spec"`
}

type SeedUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 72
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.DBName == "") {
			return fmt.Errorf("database.dsn or database.host/dbname are required for postgres")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if len(c.SeedUsers) > 0 {
			return fmt.Errorf("seed_users is only supported with the memory driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be postgres or memory")
	}
	if c.UserCache.Size <= 0 {
		c.UserCache.Size = 1024
	}
	if c.UserCache.TTLSeconds <= 0 {
		c.UserCache.TTLSeconds = 300
	}
	if c.WriteRateLimitMS < 0 {
		return fmt.Errorf("write_rate_limit_ms must not be negative")
	}
	for i, u := range c.SeedUsers {
		if strings.TrimSpace(u.Username) == "" {
			return fmt.Errorf("seed_users[%d].username is required", i)
		}
	}
	return nil
}
