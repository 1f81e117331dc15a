// Package config loads the mapper's runtime configuration from an optional
// YAML file with environment variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SNMPTimeouts groups the per-call-class timeout/retry budgets from §5.
type SNMPTimeouts struct {
	SystemTimeout time.Duration `yaml:"system_timeout"`
	SystemRetries int           `yaml:"system_retries"`
	WalkTimeout   time.Duration `yaml:"walk_timeout"`
	WalkRetries   int           `yaml:"walk_retries"`
	DetailTimeout time.Duration `yaml:"detail_timeout"`
	DetailRetries int           `yaml:"detail_retries"`
}

// Preset tunes worker-pool size and the table-walk timeout for a named scan
// preset; the system and detail timeouts are not affected.
type Preset struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	HTTPAddr          string            `yaml:"http_addr"`
	LogLevel          string            `yaml:"log_level"`
	DatabaseURL       string            `yaml:"database_url"`
	DefaultCommunity  []string          `yaml:"default_community"`
	CrawlerWorkers    int               `yaml:"crawler_workers"`
	SNMP              SNMPTimeouts      `yaml:"snmp"`
	Presets           map[string]Preset `yaml:"presets"`
	PortScanAllowlist []string          `yaml:"portscan_allowlist"`
	PortScanPorts     []int             `yaml:"portscan_ports"`
}

// Default returns the configuration used when no file and no environment
// overrides are present. Values mirror §5's mandated per-call-class timeouts.
func Default() Config {
	return Config{
		HTTPAddr:         ":5050",
		LogLevel:         "info",
		DatabaseURL:      "",
		DefaultCommunity: []string{"public"},
		CrawlerWorkers:   50,
		SNMP: SNMPTimeouts{
			SystemTimeout: 1500 * time.Millisecond,
			SystemRetries: 1,
			WalkTimeout:   3 * time.Second,
			WalkRetries:   2,
			DetailTimeout: 2 * time.Second,
			DetailRetries: 1,
		},
		Presets: map[string]Preset{
			"fast":   {Workers: 50, Timeout: 1 * time.Second},
			"normal": {Workers: 50, Timeout: 2 * time.Second},
			"deep":   {Workers: 20, Timeout: 5 * time.Second},
		},
		PortScanPorts: []int{21, 23, 53, 80, 161, 443, 515, 554, 631, 2049, 3260, 8554, 9100},
	}
}

// Load reads path (if non-empty and present) over the defaults, then applies
// environment variable overrides, following the teacher's envOr* convention.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = envOr("MAPPER_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = envOr("MAPPER_LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = envOr("MAPPER_DATABASE_URL", cfg.DatabaseURL)
	cfg.CrawlerWorkers = envOrInt("MAPPER_CRAWLER_WORKERS", cfg.CrawlerWorkers)
	if v := os.Getenv("MAPPER_DEFAULT_COMMUNITY"); v != "" {
		cfg.DefaultCommunity = SplitCommunity(v)
	}
	cfg.SNMP.SystemTimeout = envOrDuration("MAPPER_SNMP_SYSTEM_TIMEOUT", cfg.SNMP.SystemTimeout)
	cfg.SNMP.SystemRetries = envOrInt("MAPPER_SNMP_SYSTEM_RETRIES", cfg.SNMP.SystemRetries)
	cfg.SNMP.WalkTimeout = envOrDuration("MAPPER_SNMP_WALK_TIMEOUT", cfg.SNMP.WalkTimeout)
	cfg.SNMP.WalkRetries = envOrInt("MAPPER_SNMP_WALK_RETRIES", cfg.SNMP.WalkRetries)
	cfg.SNMP.DetailTimeout = envOrDuration("MAPPER_SNMP_DETAIL_TIMEOUT", cfg.SNMP.DetailTimeout)
	cfg.SNMP.DetailRetries = envOrInt("MAPPER_SNMP_DETAIL_RETRIES", cfg.SNMP.DetailRetries)

	if len(cfg.DefaultCommunity) == 0 {
		cfg.DefaultCommunity = []string{"public"}
	}
	if cfg.CrawlerWorkers <= 0 || cfg.CrawlerWorkers > 50 {
		cfg.CrawlerWorkers = 50
	}

	return cfg, nil
}

// SplitCommunity implements §6's community-string parsing: split on commas,
// trim whitespace, drop empties, default to ["public"] if nothing remains.
func SplitCommunity(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{"public"}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
