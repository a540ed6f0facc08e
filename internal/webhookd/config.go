package webhookd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the edge webhook daemon configuration. Vendors call this daemon
// from the public internet, so it carries its own per-vendor tokens and only
// forwards well-formed callbacks to the internal API.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	BindAddr string `yaml:"bind_addr"`
}

type UpstreamConfig struct {
	// URL is the base address of the internal alarm API.
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type AuthConfig struct {
	// Tokens maps alarm source name to the token that source must present.
	// An absent entry means callbacks for that source are rejected.
	Tokens map[string]string `yaml:"tokens"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn().Str("path", configPath).Msg("config file not found, using defaults")
				applyEnvOverrides(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Upstream.URL == "" {
		return nil, fmt.Errorf("upstream url is required")
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{BindAddr: "0.0.0.0:9990"},
		Upstream: UpstreamConfig{URL: "http://localhost:8080", Timeout: "10s"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("WEBHOOKD_BIND_ADDR"); addr != "" {
		cfg.Server.BindAddr = addr
	}
	if url := os.Getenv("WEBHOOKD_UPSTREAM_URL"); url != "" {
		cfg.Upstream.URL = url
	}
	if timeout := os.Getenv("WEBHOOKD_UPSTREAM_TIMEOUT"); timeout != "" {
		cfg.Upstream.Timeout = timeout
	}
}

// UpstreamTimeout parses the configured timeout, defaulting to 10s.
func (c *Config) UpstreamTimeout() time.Duration {
	if c.Upstream.Timeout == "" {
		return 10 * time.Second
	}
	if d, err := time.ParseDuration(c.Upstream.Timeout); err == nil {
		return d
	}
	return 10 * time.Second
}
