package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// PeriodLayout is the date format of PERIOD_START and PERIOD_END.
const PeriodLayout = "2006-01-02"

type Config struct {
	Env   string `mapstructure:"ENV"`
	Debug bool   `mapstructure:"DEBUG"`
	Port  string `mapstructure:"PORT"`

	FHIRBaseURL    string        `mapstructure:"FHIR_BASE_URL"`
	TranslatorURL  string        `mapstructure:"TRANSLATOR_URL"`
	PeriodStart    string        `mapstructure:"PERIOD_START"`
	PeriodEnd      string        `mapstructure:"PERIOD_END"`
	OutputDir      string        `mapstructure:"OUTPUT_DIR"`
	Concurrency    int           `mapstructure:"CONCURRENCY"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"ENV", "DEBUG", "PORT",
	"FHIR_BASE_URL", "TRANSLATOR_URL", "PERIOD_START", "PERIOD_END", "OUTPUT_DIR",
	"CONCURRENCY", "REQUEST_TIMEOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS", "BODY_LIMIT",
}

// Load reads configuration from the environment and an optional .env file in
// the working directory. Environment variables win over the file.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("DEBUG", false)
	v.SetDefault("PORT", "8000")
	v.SetDefault("FHIR_BASE_URL", "http://localhost:8080/cqf-ruler-r4/fhir")
	v.SetDefault("TRANSLATOR_URL", "http://localhost:8080/cql/translator")
	v.SetDefault("PERIOD_START", "2019-01-01")
	v.SetDefault("PERIOD_END", "2019-12-31")
	v.SetDefault("OUTPUT_DIR", "./output")
	v.SetDefault("CONCURRENCY", 1)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("RATE_LIMIT_RPS", 0)
	v.SetDefault("RATE_LIMIT_BURST", 1)
	v.SetDefault("STORE_DRIVER", StoreNone)
	v.SetDefault("SQLITE_PATH", "./calculator.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "16M")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	origins := cfg.CORSOrigins[:0]
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthEnabled reports whether the HTTP API requires bearer tokens.
func (c *Config) AuthEnabled() bool {
	return c.AuthSigningKey != ""
}

// Validate checks the settings shared by every command: the measurement
// period and the results store.
func (c *Config) Validate() error {
	start, err := time.Parse(PeriodLayout, c.PeriodStart)
	if err != nil {
		return fmt.Errorf("PERIOD_START must be yyyy-mm-dd, got %q", c.PeriodStart)
	}
	end, err := time.Parse(PeriodLayout, c.PeriodEnd)
	if err != nil {
		return fmt.Errorf("PERIOD_END must be yyyy-mm-dd, got %q", c.PeriodEnd)
	}
	if end.Before(start) {
		return fmt.Errorf("PERIOD_END %s is before PERIOD_START %s", c.PeriodEnd, c.PeriodStart)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}

	switch c.StoreDriver {
	case "", StoreNone:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is %q", StoreSQLite)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", StoreNone, StorePostgres, StoreSQLite, c.StoreDriver)
	}

	if c.IsProduction() && !c.AuthEnabled() {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	if c.AuthEnabled() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes")
	}
	return nil
}
