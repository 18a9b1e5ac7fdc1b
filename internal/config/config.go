// Package config loads the gateway configuration from an optional YAML file
// and the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreFirestore = "firestore"
	StoreRedis     = "redis"
	StorePostgres  = "postgres"
	StoreTiered    = "tiered"
	StoreMemory    = "memory"
)

const (
	DefaultListenAddr   = ":8080"
	DefaultMetricsAddr  = ":9090"
	DefaultWebhookPath  = "/webhooks/lemonsqueezy"
	DefaultMaxBodyBytes = 256 * 1024

	DefaultBreakerThreshold = 5
	DefaultBreakerReset     = 30 * time.Second
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	WebhookPath string `yaml:"webhook_path"`

	// TrustProxy reads the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that sets them.
	TrustProxy bool `yaml:"trust_proxy"`

	// APIToken enables the /v1/users API. Empty leaves it unmounted.
	APIToken string `yaml:"api_token"`

	Log          LogConfig          `yaml:"log"`
	Store        StoreConfig        `yaml:"store"`
	Firebase     FirebaseConfig     `yaml:"firebase"`
	LemonSqueezy LemonSqueezyConfig `yaml:"lemonsqueezy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type StoreConfig struct {
	Kind            string `yaml:"kind"`
	UsersCollection string `yaml:"users_collection"`

	// TieredCold is the durable backend behind a Redis cache when Kind is "tiered".
	TieredCold string `yaml:"tiered_cold"`

	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Breaker  BreakerConfig  `yaml:"circuit_breaker"`
}

// BreakerConfig guards the durable store. A zero Threshold disables it.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type FirebaseConfig struct {
	ProjectID   string `yaml:"project_id"`
	ClientEmail string `yaml:"client_email"`
	PrivateKey  string `yaml:"private_key"`
}

type LemonSqueezyConfig struct {
	WebhookSecret      string `yaml:"webhook_secret"`
	APIKey             string `yaml:"api_key"`
	MaxBodyBytes       int64  `yaml:"max_body_bytes"`
	RateLimit          int    `yaml:"rate_limit"`
	ExposeErrorDetails bool   `yaml:"expose_error_details"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr:  DefaultListenAddr,
		MetricsAddr: DefaultMetricsAddr,
		WebhookPath: DefaultWebhookPath,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Kind:            StoreFirestore,
			UsersCollection: "users",
			TieredCold:      StoreFirestore,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
			Breaker: BreakerConfig{
				Threshold:    DefaultBreakerThreshold,
				ResetTimeout: DefaultBreakerReset,
			},
		},
		LemonSqueezy: LemonSqueezyConfig{
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// LEMONGATE_CONFIG (if any) and the environment, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("LEMONGATE_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile overlays the YAML file at path onto cfg. ${VAR} references in the
// file are replaced with environment values before parsing.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	expanded := envVarPattern.ReplaceAllStringFunc(string(data), func(m string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(m)[1])
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	cfg.WebhookPath = getenv("WEBHOOK_PATH", cfg.WebhookPath)
	cfg.APIToken = getenv("API_TOKEN", cfg.APIToken)

	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format)

	cfg.Store.Kind = strings.ToLower(getenv("STORE", cfg.Store.Kind))
	cfg.Store.UsersCollection = getenv("USERS_COLLECTION", cfg.Store.UsersCollection)
	cfg.Store.TieredCold = strings.ToLower(getenv("TIERED_COLD", cfg.Store.TieredCold))
	cfg.Store.Redis.Addr = getenv("REDIS_ADDR", cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = getenv("REDIS_PASSWORD", cfg.Store.Redis.Password)
	cfg.Store.Postgres.DSN = getenv("POSTGRES_DSN", cfg.Store.Postgres.DSN)

	cfg.Firebase.ProjectID = getenv("FIREBASE_PROJECT_ID", cfg.Firebase.ProjectID)
	cfg.Firebase.ClientEmail = getenv("FIREBASE_CLIENT_EMAIL", cfg.Firebase.ClientEmail)
	cfg.Firebase.PrivateKey = getenv("FIREBASE_PRIVATE_KEY", cfg.Firebase.PrivateKey)

	cfg.LemonSqueezy.WebhookSecret = getenv("LEMON_SQUEEZY_WEBHOOK_SECRET", cfg.LemonSqueezy.WebhookSecret)
	cfg.LemonSqueezy.APIKey = getenv("LEMON_SQUEEZY_API_KEY", cfg.LemonSqueezy.APIKey)

	var err error
	if cfg.Store.Redis.DB, err = getenvInt("REDIS_DB", cfg.Store.Redis.DB); err != nil {
		return err
	}
	if cfg.LemonSqueezy.RateLimit, err = getenvInt("WEBHOOK_RATE_LIMIT", cfg.LemonSqueezy.RateLimit); err != nil {
		return err
	}
	if cfg.Store.Breaker.Threshold, err = getenvInt("CIRCUIT_BREAKER_THRESHOLD", cfg.Store.Breaker.Threshold); err != nil {
		return err
	}
	if v := os.Getenv("CIRCUIT_BREAKER_RESET"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CIRCUIT_BREAKER_RESET %q: %w", v, err)
		}
		cfg.Store.Breaker.ResetTimeout = d
	}
	maxBody, err := getenvInt("WEBHOOK_MAX_BODY_BYTES", int(cfg.LemonSqueezy.MaxBodyBytes))
	if err != nil {
		return err
	}
	cfg.LemonSqueezy.MaxBodyBytes = int64(maxBody)

	if v := os.Getenv("TRUST_PROXY_HEADERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY_HEADERS %q: %w", v, err)
		}
		cfg.TrustProxy = b
	}
	if v := os.Getenv("EXPOSE_ERROR_DETAILS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid EXPOSE_ERROR_DETAILS %q: %w", v, err)
		}
		cfg.LemonSqueezy.ExposeErrorDetails = b
	}
	return nil
}

// Validate reports every configuration error at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		errs = append(errs, fmt.Errorf("webhook path %q must start with /", c.WebhookPath))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("invalid log format %q (want json or console)", c.Log.Format))
	}
	if c.LemonSqueezy.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.LemonSqueezy.MaxBodyBytes))
	}

	if c.Store.Breaker.Threshold < 0 {
		errs = append(errs, fmt.Errorf("circuit breaker threshold must not be negative, got %d", c.Store.Breaker.Threshold))
	}
	if c.Store.Breaker.Threshold > 0 && c.Store.Breaker.ResetTimeout <= 0 {
		errs = append(errs, errors.New("circuit breaker reset timeout must be positive"))
	}

	switch c.Store.Kind {
	case StoreFirestore, StorePostgres:
		errs = append(errs, c.validateDurable(c.Store.Kind)...)
	case StoreTiered:
		if c.Store.TieredCold != StoreFirestore && c.Store.TieredCold != StorePostgres {
			errs = append(errs, fmt.Errorf("invalid tiered cold store %q (want firestore or postgres)", c.Store.TieredCold))
		} else {
			errs = append(errs, c.validateDurable(c.Store.TieredCold)...)
		}
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("redis address is required for the tiered store"))
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("redis address is required"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store.Kind))
	}

	return errors.Join(errs...)
}

func (c *Config) validateDurable(kind string) []error {
	switch kind {
	case StoreFirestore:
		if c.Firebase.ProjectID == "" {
			return []error{errors.New("FIREBASE_PROJECT_ID is required for the firestore store")}
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return []error{errors.New("POSTGRES_DSN is required for the postgres store")}
		}
	}
	return nil
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", k, v, err)
	}
	return n, nil
}
