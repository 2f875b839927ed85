// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port          int    `yaml:"port"`
	AllowedOrigin string `yaml:"allowed_origin"` // CORS; "*" unless narrowed
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl"` // how long processed payment ids are remembered
}

type ProcessorsConfig struct {
	MercadoPago struct {
		AccessToken string `yaml:"access_token"`
		BaseURL     string `yaml:"base_url"` // override for sandbox/tests
	} `yaml:"mercadopago"`
	Cakto struct {
		WebhookSecret string `yaml:"webhook_secret"`
		// product id -> plan type (monthly|yearly|lifetime)
		ProductPlans map[string]string `yaml:"product_plans"`
	} `yaml:"cakto"`
}

type IdentityConfig struct {
	BaseURL    string `yaml:"base_url"`
	ServiceKey string `yaml:"service_key"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type MailerConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	FromEmail     string `yaml:"from_email"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Processors ProcessorsConfig `yaml:"processors"`
	Identity   IdentityConfig   `yaml:"identity"`
	Auth       AuthConfig       `yaml:"auth"`
	Mailer     MailerConfig     `yaml:"mailer"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Secrets may be injected via environment instead of the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("MERCADOPAGO_ACCESS_TOKEN"); v != "" {
		c.Processors.MercadoPago.AccessToken = v
	}
	if v := os.Getenv("CAKTO_WEBHOOK_SECRET"); v != "" {
		c.Processors.Cakto.WebhookSecret = v
	}
	if v := os.Getenv("IDENTITY_SERVICE_KEY"); v != "" {
		c.Identity.ServiceKey = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("POSTMARK_TOKEN"); v != "" {
		c.Mailer.PostmarkToken = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = "*"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Redis.DedupeTTL == 0 {
		c.Redis.DedupeTTL = 48 * time.Hour
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = time.Hour
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Reconciler.Interval == 0 {
		c.Reconciler.Interval = 5 * time.Minute
	}
	if c.Reconciler.StaleAfter == 0 {
		c.Reconciler.StaleAfter = 15 * time.Minute
	}
	if c.Reconciler.BatchSize == 0 {
		c.Reconciler.BatchSize = 100
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.JWTSecret == "" && !c.Runtime.Dev {
		return errors.New("auth.jwt_secret is required outside dev mode")
	}
	return nil
}
