package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither an argument nor COURTBOOK_CONFIG_PATH names a file.
const DefaultPath = "configs/config.yaml"

type Config struct {
	App struct {
		Environment string `yaml:"environment"`
		LogLevel    string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	} `yaml:"app"`

	API struct {
		BaseURL         string  `yaml:"base_url" validate:"required,url"`
		TimeoutSeconds  int     `yaml:"timeout_seconds" validate:"gte=0"`
		RateLimit       float64 `yaml:"rate_limit" validate:"gte=0"`
		RateBurst       int     `yaml:"rate_burst" validate:"gte=0"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds" validate:"gte=0"`
	} `yaml:"api"`

	Auth struct {
		Email    string `yaml:"email" validate:"required,email"`
		Password string `yaml:"password" validate:"required"`
		// TokenStore is where the session token survives restarts.
		TokenStore string `yaml:"token_store" validate:"omitempty,oneof=sqlite redis memory"`
	} `yaml:"auth"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address   string `yaml:"address"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db" validate:"gte=0"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"redis"`

	Sync struct {
		ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds" validate:"gte=0"`
		RefreshIntervalMinutes   int `yaml:"refresh_interval_minutes" validate:"gte=0"`
	} `yaml:"sync"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port" validate:"gte=0,lte=65535"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port" validate:"gte=0,lte=65535"`
	} `yaml:"monitoring"`

	History History `yaml:"history"`
}

// History configures the past-reservations view.
type History struct {
	PageSize int      `yaml:"page_size" validate:"gte=0"`
	Windows  []Window `yaml:"contended_windows" validate:"dive"`
}

// Window is a contended period, e.g. {days: [mon, tue], from_hour: 18, to_hour: 22}.
type Window struct {
	Days     []string `yaml:"days" validate:"required,min=1,dive,oneof=mon tue wed thu fri sat sun"`
	FromHour int      `yaml:"from_hour" validate:"gte=0,lte=23"`
	ToHour   int      `yaml:"to_hour" validate:"gte=0,lte=23,gtefield=FromHour"`
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Weekdays converts the configured day names.
func (w Window) Weekdays() []time.Weekday {
	out := make([]time.Weekday, 0, len(w.Days))
	for _, d := range w.Days {
		if wd, ok := weekdays[strings.ToLower(d)]; ok {
			out = append(out, wd)
		}
	}
	return out
}

// PathFromEnv resolves the config path: COURTBOOK_CONFIG_PATH, else DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("COURTBOOK_CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = PathFromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML with ${ENV_VAR} placeholders expanded, then validates it.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/courtbook.db"
	}
	if cfg.Auth.TokenStore == "" {
		cfg.Auth.TokenStore = "sqlite"
	}
	if cfg.Auth.TokenStore == "redis" && cfg.Redis.Address == "" {
		return nil, errors.New("invalid config: auth.token_store is redis but redis.address is empty")
	}
	if cfg.Auth.TokenStore == "sqlite" && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a URL"
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "gte", "lte":
		return field + " is out of range"
	case "gtefield":
		return field + " must not be before " + fe.Param()
	default:
		return field + " is invalid"
	}
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) UsersCacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

// ReconcileInterval is zero when periodic reconciliation is off.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Sync.ReconcileIntervalSeconds) * time.Second
}

func (c *Config) SessionRefreshInterval() time.Duration {
	if c.Sync.RefreshIntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Sync.RefreshIntervalMinutes) * time.Minute
}
