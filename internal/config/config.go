package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string        `mapstructure:"PORT"`
	Env                    string        `mapstructure:"ENV"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBSchema               string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns             int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL               string        `mapstructure:"REDIS_URL"`
	CORSOrigins            []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS           float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst         int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit              string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout         time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MigrationsDir          string        `mapstructure:"MIGRATIONS_DIR"`
	HemoglobinCutoffGL     float64       `mapstructure:"HEMOGLOBIN_CUTOFF_GL"`
	DefaultDonationMinutes int           `mapstructure:"DEFAULT_DONATION_MINUTES"`
	DefaultRestMinutes     int           `mapstructure:"DEFAULT_REST_MINUTES"`
	ScheduleTZ             string        `mapstructure:"SCHEDULE_TZ"`
	ScheduleCacheTTL       time.Duration `mapstructure:"SCHEDULE_CACHE_TTL"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	"REQUEST_TIMEOUT", "MIGRATIONS_DIR", "HEMOGLOBIN_CUTOFF_GL",
	"DEFAULT_DONATION_MINUTES", "DEFAULT_REST_MINUTES", "SCHEDULE_TZ", "SCHEDULE_CACHE_TTL",
}

// Load reads configuration from the environment and an optional .env file.
// It does not require DATABASE_URL; commands that need the database call
// RequireDatabase.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("HEMOGLOBIN_CUTOFF_GL", 120)
	v.SetDefault("DEFAULT_DONATION_MINUTES", 15)
	v.SetDefault("DEFAULT_REST_MINUTES", 5)
	v.SetDefault("SCHEDULE_TZ", "UTC")
	v.SetDefault("SCHEDULE_CACHE_TTL", "10m")

	// Bind explicitly so Unmarshal sees variables that have no default.
	for _, k := range keys {
		v.BindEnv(k)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Location resolves SCHEDULE_TZ.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScheduleTZ)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_TZ %q: %w", c.ScheduleTZ, err)
	}
	return loc, nil
}

// Validate checks the clinical and scheduling settings.
func (c *Config) Validate() error {
	if c.HemoglobinCutoffGL <= 0 {
		return fmt.Errorf("HEMOGLOBIN_CUTOFF_GL must be positive, got %v", c.HemoglobinCutoffGL)
	}
	if c.DefaultDonationMinutes <= 0 {
		return fmt.Errorf("DEFAULT_DONATION_MINUTES must be positive, got %d", c.DefaultDonationMinutes)
	}
	if c.DefaultRestMinutes < 0 {
		return fmt.Errorf("DEFAULT_REST_MINUTES must not be negative, got %d", c.DefaultRestMinutes)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
