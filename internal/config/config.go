package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yml"

type AppConfig struct {
	Port            int      `yaml:"port"`
	Env             string   `yaml:"env"`
	GinMode         string   `yaml:"gin_mode"`
	BaseURL         string   `yaml:"base_url"`
	FrontendURL     string   `yaml:"frontend_url"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	LogLevel        string `yaml:"log_level"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	Issuer     string `yaml:"issuer"`
	AccessTTL  string `yaml:"access_ttl"`
	RefreshTTL string `yaml:"refresh_ttl"`
}

type TokensConfig struct {
	EmailVerifyTTL   string `yaml:"email_verify_ttl"`
	PasswordResetTTL string `yaml:"password_reset_ttl"`
}

type EmailConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	From         string `yaml:"from"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type StorageConfig struct {
	Driver    string      `yaml:"driver"`
	LocalDir  string      `yaml:"local_dir"`
	PublicURL string      `yaml:"public_url"`
	Minio     MinioConfig `yaml:"minio"`
}

type UploadConfig struct {
	MaxSizeMB    int64    `yaml:"max_size_mb"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type FMCSAConfig struct {
	WebKey  string `yaml:"web_key"`
	BaseURL string `yaml:"base_url"`
}

type CreditsafeConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url"`
}

type FacebookConfig struct {
	PageID      string `yaml:"page_id"`
	AccessToken string `yaml:"access_token"`
	GraphURL    string `yaml:"graph_url"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url"`
}

type GHLConfig struct {
	APIKey     string `yaml:"api_key"`
	LocationID string `yaml:"location_id"`
	BaseURL    string `yaml:"base_url"`
}

type IntegrationsConfig struct {
	HTTPTimeout string           `yaml:"http_timeout"`
	CacheTTL    string           `yaml:"cache_ttl"`
	FMCSA       FMCSAConfig      `yaml:"fmcsa"`
	Creditsafe  CreditsafeConfig `yaml:"creditsafe"`
	Facebook    FacebookConfig   `yaml:"facebook"`
	Telegram    TelegramConfig   `yaml:"telegram"`
	GHL         GHLConfig        `yaml:"ghl"`
}

type RateLimitRule struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

type CreditPackageConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Credits int    `yaml:"credits"`
	Price   string `yaml:"price"`
}

type PlanConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Credits       int    `yaml:"credits"`
	Price         string `yaml:"price"`
	StripePriceID string `yaml:"stripe_price_id"`
}

type SeedConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

type ConfigFile struct {
	App            AppConfig                `yaml:"app"`
	Database       DatabaseConfig           `yaml:"database"`
	Redis          RedisConfig              `yaml:"redis"`
	JWT            JWTConfig                `yaml:"jwt"`
	Tokens         TokensConfig             `yaml:"tokens"`
	Email          EmailConfig              `yaml:"email"`
	Twilio         TwilioConfig             `yaml:"twilio"`
	Stripe         StripeConfig             `yaml:"stripe"`
	Storage        StorageConfig            `yaml:"storage"`
	Upload         UploadConfig             `yaml:"upload"`
	Integrations   IntegrationsConfig       `yaml:"integrations"`
	RateLimits     map[string]RateLimitRule `yaml:"rate_limits"`
	CreditPackages []CreditPackageConfig    `yaml:"credit_packages"`
	Plans          []PlanConfig             `yaml:"plans"`
	Seed           SeedConfig               `yaml:"seed"`
}

// RateLimit is a parsed fixed-window ceiling
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// CreditPackage is a purchasable bundle of credits
type CreditPackage struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Credits int             `json:"credits"`
	Price   decimal.Decimal `json:"price"`
}

// Plan is a monthly subscription granting credits each period
type Plan struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Credits       int             `json:"credits"`
	Price         decimal.Decimal `json:"price"`
	StripePriceID string          `json:"-"`
}

type Config struct {
	Port            string
	Env             string
	GinMode         string
	BaseURL         string
	FrontendURL     string
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	DSN             string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	DBLogLevel      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	JWTSecret        string
	JWTIssuer        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	EmailVerifyTTL   time.Duration
	PasswordResetTTL time.Duration

	ResendAPIKey string
	EmailFrom    string
	TwilioSID    string
	TwilioToken  string
	TwilioFrom   string

	Stripe  StripeConfig
	Storage StorageConfig

	UploadMaxBytes     int64
	UploadAllowedTypes []string

	HTTPTimeout time.Duration
	CarrierTTL  time.Duration
	FMCSA       FMCSAConfig
	Creditsafe  CreditsafeConfig
	Facebook    FacebookConfig
	Telegram    TelegramConfig
	GHL         GHLConfig

	RateLimits     map[string]RateLimit
	CreditPackages []CreditPackage
	Plans          []Plan

	AdminEmail    string
	AdminPassword string
}

// IsProduction reports whether error details must be hidden from clients
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CreditPackage looks up a package by ID
func (c *Config) CreditPackage(id string) (CreditPackage, bool) {
	for _, p := range c.CreditPackages {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}

// Plan looks up a subscription plan by ID
func (c *Config) Plan(id string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanByPrice looks up a subscription plan by its Stripe price ID
func (c *Config) PlanByPrice(priceID string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.StripePriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

// DefaultRateLimits apply to categories missing from the config file
var DefaultRateLimits = map[string]RateLimit{
	"auth":           {Limit: 10, Window: 15 * time.Minute},
	"password_reset": {Limit: 5, Window: time.Hour},
	"upload":         {Limit: 20, Window: time.Hour},
	"messaging":      {Limit: 10, Window: time.Hour},
	"admin":          {Limit: 300, Window: 15 * time.Minute},
	"webhook":        {Limit: 100, Window: time.Minute},
	"api":            {Limit: 1000, Window: 15 * time.Minute},
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads .env (if present) and the YAML config file named by CONFIG_PATH
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(env("CONFIG_PATH", defaultConfigPath))
}

// LoadFile reads and validates a single YAML config file
func LoadFile(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return build(configFile)
}

func build(f *ConfigFile) (*Config, error) {
	if f.JWT.Secret == "" {
		return nil, errors.New("jwt.secret is required")
	}

	d := durationParser{}
	cfg := &Config{
		Port:             fmt.Sprintf("%d", orInt(f.App.Port, 8080)),
		Env:              orString(f.App.Env, "development"),
		GinMode:          orString(f.App.GinMode, "release"),
		BaseURL:          f.App.BaseURL,
		FrontendURL:      f.App.FrontendURL,
		CORSOrigins:      f.App.CORSOrigins,
		ShutdownTimeout:  d.parse("app.shutdown_timeout", f.App.ShutdownTimeout, 10*time.Second),
		DSN:              f.Database.DSN,
		DBMaxOpenConns:   orInt(f.Database.MaxOpenConns, 25),
		DBMaxIdleConns:   orInt(f.Database.MaxIdleConns, 5),
		DBConnLifetime:   d.parse("database.conn_max_lifetime", f.Database.ConnMaxLifetime, 30*time.Minute),
		DBLogLevel:       orString(f.Database.LogLevel, "warn"),
		RedisAddr:        f.Redis.Addr,
		RedisPassword:    f.Redis.Password,
		RedisDB:          f.Redis.DB,
		JWTSecret:        f.JWT.Secret,
		JWTIssuer:        orString(f.JWT.Issuer, "mcmarket"),
		AccessTTL:        d.parse("jwt.access_ttl", f.JWT.AccessTTL, 15*time.Minute),
		RefreshTTL:       d.parse("jwt.refresh_ttl", f.JWT.RefreshTTL, 7*24*time.Hour),
		EmailVerifyTTL:   d.parse("tokens.email_verify_ttl", f.Tokens.EmailVerifyTTL, 24*time.Hour),
		PasswordResetTTL: d.parse("tokens.password_reset_ttl", f.Tokens.PasswordResetTTL, time.Hour),
		ResendAPIKey:     f.Email.ResendAPIKey,
		EmailFrom:        orString(f.Email.From, "MC Market <no-reply@mcmarket.local>"),
		TwilioSID:        f.Twilio.AccountSID,
		TwilioToken:      f.Twilio.AuthToken,
		TwilioFrom:       f.Twilio.FromNumber,
		Stripe:           f.Stripe,
		Storage:          f.Storage,
		UploadMaxBytes:   orInt64(f.Upload.MaxSizeMB, 10) << 20,
		HTTPTimeout:      d.parse("integrations.http_timeout", f.Integrations.HTTPTimeout, 10*time.Second),
		CarrierTTL:       d.parse("integrations.cache_ttl", f.Integrations.CacheTTL, 24*time.Hour),
		FMCSA:            f.Integrations.FMCSA,
		Creditsafe:       f.Integrations.Creditsafe,
		Facebook:         f.Integrations.Facebook,
		Telegram:         f.Integrations.Telegram,
		GHL:              f.Integrations.GHL,
		AdminEmail:       f.Seed.AdminEmail,
		AdminPassword:    f.Seed.AdminPassword,
	}
	if d.err != nil {
		return nil, d.err
	}

	cfg.UploadAllowedTypes = f.Upload.AllowedTypes
	if len(cfg.UploadAllowedTypes) == 0 {
		cfg.UploadAllowedTypes = []string{"application/pdf", "image/png", "image/jpeg"}
	}
	if cfg.Stripe.Currency == "" {
		cfg.Stripe.Currency = "usd"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}

	cfg.RateLimits = make(map[string]RateLimit, len(DefaultRateLimits))
	for name, rl := range DefaultRateLimits {
		cfg.RateLimits[name] = rl
	}
	for name, rule := range f.RateLimits {
		window, err := time.ParseDuration(rule.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit window for %s: %w", name, err)
		}
		if rule.Limit <= 0 {
			return nil, fmt.Errorf("rate limit for %s must be positive", name)
		}
		cfg.RateLimits[name] = RateLimit{Limit: rule.Limit, Window: window}
	}

	for _, p := range f.CreditPackages {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for credit package %s: %w", p.ID, err)
		}
		cfg.CreditPackages = append(cfg.CreditPackages, CreditPackage{ID: p.ID, Name: p.Name, Credits: p.Credits, Price: price})
	}
	for _, p := range f.Plans {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price for plan %s: %w", p.ID, err)
		}
		cfg.Plans = append(cfg.Plans, Plan{ID: p.ID, Name: p.Name, Credits: p.Credits, Price: price, StripePriceID: p.StripePriceID})
	}

	return cfg, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal([]byte(expandEnv(string(bytes))), &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} references
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		name, def, _ := strings.Cut(key, ":-")
		return env(name, def)
	})
}

// durationParser keeps the first parse error so build can check once
type durationParser struct {
	err error
}

func (d *durationParser) parse(field, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		if d.err == nil {
			d.err = fmt.Errorf("invalid %s: %w", field, err)
		}
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orInt64(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}
