package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/clickrank/src/domain/ranking"
)

const envPrefix = "CLICKRANK_"

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Ranking   RankingConfig   `yaml:"ranking"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DatabaseConfig selects the store. An empty URL means the in-memory store.
type DatabaseConfig struct {
	URL               string        `yaml:"url"`
	MaxConns          int32         `yaml:"max_conns"`
	MinConns          int32         `yaml:"min_conns"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period"`
	AutoMigrate       bool          `yaml:"auto_migrate"`
}

type RankingConfig struct {
	MaxNicknameLength int `yaml:"max_nickname_length"`
	MaxScore          int `yaml:"max_score"`
	DefaultLimit      int `yaml:"default_limit"`
	MaxLimit          int `yaml:"max_limit"`
}

// RateLimitConfig keys clients by peer address. X-Forwarded-For is honoured
// only when the peer is one of TrustedProxies (IPs or CIDRs).
type RateLimitConfig struct {
	RPS            float64  `yaml:"rps"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c RateLimitConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, v := range c.TrustedProxies {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.trusted_proxies: %w", err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return prefixes, nil
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type AnalyticsConfig struct {
	SegmentKey string `yaml:"segment_key"`
	BaseURL    string `yaml:"base_url"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			MaxConns:          25,
			MinConns:          5,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   30 * time.Minute,
			HealthCheckPeriod: time.Minute,
			AutoMigrate:       true,
		},
		Ranking: RankingConfig{
			MaxNicknameLength: 50,
			MaxScore:          1000,
			DefaultLimit:      100,
			MaxLimit:          100,
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 30,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// a .env file in the working directory, then the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. DATABASE_URL and PORT
// are honoured without prefix for hosted platforms.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.HTTP.Address = ":" + v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Database.URL = v
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	str("HTTP_ADDR", &c.HTTP.Address)
	str("DATABASE_URL", &c.Database.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	str("SEGMENT_KEY", &c.Analytics.SegmentKey)
	str("SEGMENT_URL", &c.Analytics.BaseURL)

	if v, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok {
		c.HTTP.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(envPrefix + "TRUSTED_PROXIES"); ok {
		c.RateLimit.TrustedProxies = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_NICKNAME_LENGTH", &c.Ranking.MaxNicknameLength},
		{"MAX_SCORE", &c.Ranking.MaxScore},
		{"DEFAULT_LIMIT", &c.Ranking.DefaultLimit},
		{"MAX_LIMIT", &c.Ranking.MaxLimit},
		{"RATE_LIMIT_BURST", &c.RateLimit.Burst},
	}
	for _, i := range ints {
		v, ok := lookup(envPrefix + i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, i.key, err)
		}
		*i.dst = n
	}

	if v, ok := lookup(envPrefix + "RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT_RPS: %w", envPrefix, err)
		}
		c.RateLimit.RPS = rps
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"AUTO_MIGRATE", &c.Database.AutoMigrate},
		{"METRICS_ENABLED", &c.Metrics.Enabled},
	}
	for _, b := range bools {
		v, ok := lookup(envPrefix + b.key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, b.key, err)
		}
		*b.dst = parsed
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	if c.Ranking.MaxNicknameLength <= 0 || c.Ranking.MaxNicknameLength > ranking.StoredNicknameLength {
		errs = append(errs, fmt.Errorf("ranking.max_nickname_length must be in [1, %d]", ranking.StoredNicknameLength))
	}
	if c.Ranking.MaxScore <= 0 || c.Ranking.MaxScore > ranking.StoredScoreMax {
		errs = append(errs, fmt.Errorf("ranking.max_score must be in [1, %d]", ranking.StoredScoreMax))
	}
	if c.Ranking.DefaultLimit <= 0 || c.Ranking.MaxLimit <= 0 {
		errs = append(errs, errors.New("ranking limits must be positive"))
	}
	if c.Ranking.DefaultLimit > c.Ranking.MaxLimit {
		errs = append(errs, errors.New("ranking.default_limit exceeds ranking.max_limit"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if _, err := c.RateLimit.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
