package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
	Redis    RedisConfig    `json:"redis"`
	Alarm    AlarmConfig    `json:"alarm"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// DSN renders the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AlarmConfig struct {
	AgentType   string             `json:"agentType"`
	APIBearer   string             `json:"apiBearer"`
	EventTTL    string             `json:"eventTTL"` // e.g. "24h"
	Datasources []DatasourceConfig `json:"datasources"`
	Sync        SyncConfig         `json:"sync"`
	Metacache   MetacacheConfig    `json:"metacache"`
}

// DatasourceConfig binds one monitored environment to a vendor account.
// Several datasources may share an access key; they then also share its
// concurrency budget.
type DatasourceConfig struct {
	Name       string `json:"name"`
	Vendor     string `json:"vendor"` // aliyun | volcengine
	Namespace  string `json:"namespace"`
	AccessKey  string `json:"accessKey"`
	SecretKey  string `json:"secretKey"`
	GatewayURL string `json:"gatewayUrl"`
	// Quota overrides the per-credential concurrency budget when > 0.
	Quota int `json:"quota"`
}

type SyncConfig struct {
	Interval        string   `json:"interval"` // e.g. "10m"
	Level           string   `json:"level"`
	Webhook         string   `json:"webhook"`
	ContactGroups   []string `json:"contactGroups"`
	ContactGroupIDs []string `json:"contactGroupIds"`
	AlertMethods    []string `json:"alertMethods"`
}

type MetacacheConfig struct {
	PrometheusURL   string `json:"prometheusUrl"`
	RefreshInterval string `json:"refreshInterval"` // e.g. "10m"
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "opseye"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Alarm: AlarmConfig{
			AgentType: getEnv("ALARM_AGENT_TYPE", "cloud-monitor"),
			APIBearer: getEnv("ALARM_API_BEARER", ""),
			EventTTL:  getEnv("ALARM_EVENT_TTL", "24h"),
			Sync: SyncConfig{
				Interval: getEnv("RULE_SYNC_INTERVAL", "10m"),
				Level:    getEnv("RULE_SYNC_LEVEL", "P1"),
				Webhook:  getEnv("RULE_SYNC_WEBHOOK", ""),
			},
			Metacache: MetacacheConfig{
				PrometheusURL:   getEnv("PROMETHEUS_URL", "http://localhost:9090"),
				RefreshInterval: getEnv("METACACHE_REFRESH_INTERVAL", "10m"),
			},
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Alarm.AgentType == "" {
		cfg.Alarm.AgentType = "cloud-monitor"
	}
	if cfg.Alarm.EventTTL == "" {
		cfg.Alarm.EventTTL = "24h"
	}
	if cfg.Alarm.Sync.Interval == "" {
		cfg.Alarm.Sync.Interval = "10m"
	}
	if cfg.Alarm.Sync.Level == "" {
		cfg.Alarm.Sync.Level = "P1"
	}
	if cfg.Alarm.Metacache.RefreshInterval == "" {
		cfg.Alarm.Metacache.RefreshInterval = "10m"
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
