package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port        string `env:"PORT"         envDefault:"8080"`
	AppEnv      string `env:"APP_ENV"      envDefault:"development"`
	Driver      string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"     envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"10m"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS_ON_STARTUP" envDefault:"false"`

	JWTSecret       string        `env:"JWT_SECRET"`
	JWTAlgorithm    string        `env:"JWT_ALGORITHM"     envDefault:"HS256"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"30m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	SentryDSN         string        `env:"SENTRY_DSN"`
	MaintenanceSecret string        `env:"MAINTENANCE_SECRET"`
	LoginRateMax      int           `env:"LOGIN_RATE_LIMIT_MAX"    envDefault:"10"`
	LoginRateWindow   time.Duration `env:"LOGIN_RATE_LIMIT_WINDOW" envDefault:"1m"`
	AllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS"    envDefault:"*" envSeparator:","`
	TwitterOEmbedURL  string        `env:"TWITTER_OEMBED_URL"      envDefault:"https://publish.twitter.com/oembed"`
}

// Load reads the process environment, optionally seeded from a .env file.
func Load(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}
	return parse(env.Options{})
}

// FromMap parses values instead of the process environment.
func FromMap(values map[string]string) (Config, error) {
	return parse(env.Options{Environment: values})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.JWTAlgorithm = strings.ToUpper(strings.TrimSpace(cfg.JWTAlgorithm))
	origins := cfg.AllowedOrigins[:0]
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	cfg.AllowedOrigins = origins

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not supported", c.Driver))
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM %q is not supported", c.JWTAlgorithm))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL"))
	}

	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
