package config

import (
	serrors "errors"
	"fmt"
	"io/fs"
	"time"

	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/models/tender"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var validate = validator.New()

type Config struct {
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required"`
	APIBaseURL      string        `mapstructure:"API_BASE_URL" validate:"required,url"`
	APITimeout      time.Duration `mapstructure:"API_TIMEOUT" validate:"gt=0"`
	PostgresConn    string        `mapstructure:"POSTGRES_CONN"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
	LogLevel        string        `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	SessionCookie   string        `mapstructure:"SESSION_COOKIE" validate:"required"`
	SessionFile     string        `mapstructure:"SESSION_FILE"`
	SessionIdleTTL  time.Duration `mapstructure:"SESSION_IDLE_TTL" validate:"gt=0"`
	MaxSessions     int           `mapstructure:"MAX_SESSIONS" validate:"min=1"`
	Timezone        string        `mapstructure:"TIMEZONE"`
	DefaultPageSize int           `mapstructure:"DEFAULT_PAGE_SIZE" validate:"min=1"`
	DefaultSortBy   string        `mapstructure:"DEFAULT_SORT_BY" validate:"required"`
	DefaultSorting  string        `mapstructure:"DEFAULT_SORTING" validate:"oneof=asc desc"`
}

var defaults = map[string]any{
	"HTTP_ADDR":         ":8080",
	"API_BASE_URL":      "http://localhost:5000/api",
	"API_TIMEOUT":       10 * time.Second,
	"POSTGRES_CONN":     "",
	"REDIS_ADDR":        "",
	"CACHE_TTL":         30 * time.Second,
	"LOG_LEVEL":         "info",
	"SESSION_COOKIE":    "tender_session",
	"SESSION_FILE":      "",
	"SESSION_IDLE_TTL":  30 * time.Minute,
	"MAX_SESSIONS":      10000,
	"TIMEZONE":          "Local",
	"DEFAULT_PAGE_SIZE": tender.DefaultQuantity,
	"DEFAULT_SORT_BY":   string(tender.DefaultSortBy),
	"DEFAULT_SORTING":   string(tender.DefaultSorting),
}

// Flags maps command line flag names to configuration keys.
var Flags = map[string]string{
	"addr":         "HTTP_ADDR",
	"api-url":      "API_BASE_URL",
	"timeout":      "API_TIMEOUT",
	"log-level":    "LOG_LEVEL",
	"session-file": "SESSION_FILE",
	"page-size":    "DEFAULT_PAGE_SIZE",
}

// Load reads envFiles (".env" when none are given), then the process
// environment, then any flags from Flags that were set on fs. A missing env
// file is not an error.
func Load(flags *pflag.FlagSet, envFiles ...string) (Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(envFiles...); err != nil && !serrors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range Flags {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, errors.FromValidator(err))
	}
	if _, err := tender.ParseSortField(cfg.DefaultSortBy); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, errors.NewValidationError(err.Error()))
	}

	return cfg, nil
}

// DefaultQuery is the tender query a fresh dashboard starts from.
func (c Config) DefaultQuery() tender.Query {
	q := tender.DefaultQuery()
	q.Quantity = c.DefaultPageSize
	if f, err := tender.ParseSortField(c.DefaultSortBy); err == nil {
		q.SortBy = f
	}
	if d, err := tender.ParseSortDirection(c.DefaultSorting); err == nil {
		q.Sorting = d
	}
	return q
}

// Location resolves Timezone, falling back to the local zone.
func (c Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
