package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME" envDefault:"Nafee3"`
	AppEnv         string        `env:"APP_ENV" envDefault:"development"`
	Port           string        `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	DBMaxConns     int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	ConnectTimeout time.Duration `env:"BACKEND_CONNECT_TIMEOUT" envDefault:"5s"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	Session SessionConfig
	OTP     OTPConfig
	Media   MediaConfig
	Search  SearchConfig
	Client  ClientConfig

	PhoneDefaultRegion string `env:"PHONE_DEFAULT_REGION" envDefault:"SY"`
}

// SessionConfig controls access token issuance.
type SessionConfig struct {
	Secret string        `env:"SESSION_SECRET"`
	Issuer string        `env:"SESSION_ISSUER" envDefault:"nafee3"`
	TTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`
}

// OTPConfig controls one-time passcode issuance.
type OTPConfig struct {
	TTL          time.Duration `env:"OTP_TTL" envDefault:"5m"`
	Length       int           `env:"OTP_LENGTH" envDefault:"6"`
	MaxAttempts  int           `env:"OTP_MAX_ATTEMPTS" envDefault:"3"`
	SendPerMin   int           `env:"OTP_SEND_PER_MINUTE" envDefault:"3"`
	HashCost     int           `env:"OTP_HASH_COST" envDefault:"10"`
	AuthPerMinIP int           `env:"AUTH_PER_MINUTE_IP" envDefault:"20"`
}

// MediaConfig locates uploaded photos.
type MediaConfig struct {
	Dir     string `env:"MEDIA_DIR" envDefault:"./data/media"`
	BaseURL string `env:"MEDIA_BASE_URL" envDefault:"http://localhost:8080/media"`
}

// SearchConfig holds search request defaults.
type SearchConfig struct {
	SimThreshold float64 `env:"SEARCH_SIM_THRESHOLD" envDefault:"0.1"`
	TopK         int     `env:"SEARCH_TOP_K" envDefault:"50"`
}

// ClientConfig is read by the command line client only.
type ClientConfig struct {
	APIURL      string `env:"API_URL" envDefault:"http://localhost:8080"`
	SessionFile string `env:"SESSION_FILE" envDefault:".nafee3-session.json"`
	Region      string `env:"PHONE_DEFAULT_REGION" envDefault:"SY"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.OTP.Length < 4 || cfg.OTP.Length > 10 {
		return Config{}, fmt.Errorf("invalid OTP_LENGTH: %d", cfg.OTP.Length)
	}
	if cfg.OTP.MaxAttempts <= 0 {
		return Config{}, fmt.Errorf("invalid OTP_MAX_ATTEMPTS: %d", cfg.OTP.MaxAttempts)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.Session.Secret == "" {
			return Config{}, fmt.Errorf("SESSION_SECRET must be set")
		}
	}
	if cfg.Session.Secret == "" {
		cfg.Session.Secret = "development-only-secret"
	}

	return cfg, nil
}

// LoadClient reads only the client settings, so the client does not need
// the server's backends configured.
func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.APIURL == "" {
		return ClientConfig{}, fmt.Errorf("API_URL must be set")
	}
	return cfg, nil
}

// IsDev reports whether memory backends may stand in for Postgres and Redis.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
