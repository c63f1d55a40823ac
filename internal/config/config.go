package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names an optional YAML file layered between defaults and the environment.
const PathEnvVar = "CONFIG_PATH"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Upsell   UpsellConfig   `koanf:"upsell"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port               string `koanf:"port"`
	AllowedOrigin      string `koanf:"allowed_origin"`
	RateLimitPerMinute int    `koanf:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type UpsellConfig struct {
	DefaultLimit       int    `koanf:"default_limit"`
	ResponseTTLSeconds int    `koanf:"response_ttl_seconds"`
	ImageRoot          string `koanf:"image_root"`
}

type RankingConfig struct {
	QueryTimeoutSeconds   int    `koanf:"query_timeout_seconds"`
	FailureThreshold      uint32 `koanf:"failure_threshold"`
	BreakerTimeoutSeconds int    `koanf:"breaker_timeout_seconds"`
}

type AuthConfig struct {
	Secret          string `koanf:"secret"`
	TokenTTLMinutes int    `koanf:"token_ttl_minutes"`
	ManagerPIN      string `koanf:"manager_pin"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// envKeys maps the flat environment names to config paths. Unlisted variables are ignored.
var envKeys = map[string]string{
	"PORT":                            "server.port",
	"ALLOWED_ORIGIN":                  "server.allowed_origin",
	"RATE_LIMIT_PER_MINUTE":           "server.rate_limit_per_minute",
	"DATABASE_URL":                    "database.url",
	"REDIS_ADDR":                      "redis.addr",
	"REDIS_PASSWORD":                  "redis.password",
	"REDIS_DB":                        "redis.db",
	"UPSELL_DEFAULT_LIMIT":            "upsell.default_limit",
	"UPSELL_RESPONSE_TTL_SECONDS":     "upsell.response_ttl_seconds",
	"IMAGE_ROOT":                      "upsell.image_root",
	"RANKING_QUERY_TIMEOUT_SECONDS":   "ranking.query_timeout_seconds",
	"RANKING_FAILURE_THRESHOLD":       "ranking.failure_threshold",
	"RANKING_BREAKER_TIMEOUT_SECONDS": "ranking.breaker_timeout_seconds",
	"AUTH_SECRET":                     "auth.secret",
	"ACCESS_TOKEN_TTL_MINUTES":        "auth.token_ttl_minutes",
	"MANAGER_PIN":                     "auth.manager_pin",
	"LOG_LEVEL":                       "log.level",
	"LOG_FORMAT":                      "log.format",
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:               "8080",
			AllowedOrigin:      "http://127.0.0.1:3000",
			RateLimitPerMinute: 120,
		},
		Redis: RedisConfig{DB: 0},
		Upsell: UpsellConfig{
			DefaultLimit:       4,
			ResponseTTLSeconds: 15,
			ImageRoot:          "public",
		},
		Ranking: RankingConfig{
			QueryTimeoutSeconds:   5,
			FailureThreshold:      3,
			BreakerTimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 480,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load layers built-in defaults, the optional YAML file named by CONFIG_PATH, and
// the environment, in increasing priority.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv(PathEnvVar)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func envKey(name string) string {
	return envKeys[name]
}

// normalize trims secrets and replaces out-of-range numbers with defaults.
func (c *Config) normalize() {
	d := defaults()

	c.Auth.Secret = strings.TrimSpace(c.Auth.Secret)
	c.Auth.ManagerPIN = strings.TrimSpace(c.Auth.ManagerPIN)
	c.Database.URL = strings.TrimSpace(c.Database.URL)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)

	if strings.TrimSpace(c.Server.Port) == "" {
		c.Server.Port = d.Server.Port
	}
	if c.Server.RateLimitPerMinute < 1 {
		c.Server.RateLimitPerMinute = d.Server.RateLimitPerMinute
	}
	if c.Upsell.DefaultLimit < 1 {
		c.Upsell.DefaultLimit = d.Upsell.DefaultLimit
	}
	if c.Upsell.ResponseTTLSeconds < 1 {
		c.Upsell.ResponseTTLSeconds = d.Upsell.ResponseTTLSeconds
	}
	if c.Ranking.QueryTimeoutSeconds < 1 {
		c.Ranking.QueryTimeoutSeconds = d.Ranking.QueryTimeoutSeconds
	}
	if c.Ranking.FailureThreshold < 1 {
		c.Ranking.FailureThreshold = d.Ranking.FailureThreshold
	}
	if c.Ranking.BreakerTimeoutSeconds < 1 {
		c.Ranking.BreakerTimeoutSeconds = d.Ranking.BreakerTimeoutSeconds
	}
	if c.Auth.TokenTTLMinutes < 1 {
		c.Auth.TokenTTLMinutes = d.Auth.TokenTTLMinutes
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Server.Port)
}

func (c Config) ResponseTTL() time.Duration {
	return time.Duration(c.Upsell.ResponseTTLSeconds) * time.Second
}

func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.Ranking.QueryTimeoutSeconds) * time.Second
}

func (c Config) BreakerTimeout() time.Duration {
	return time.Duration(c.Ranking.BreakerTimeoutSeconds) * time.Second
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}
