package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type PostgresConfig struct {
	Host              string        `yaml:"host"`
	Port              string        `yaml:"port"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	DBName            string        `yaml:"dbname"`
	SSLMode           string        `yaml:"sslmode"`
	MaxConns          int32         `yaml:"max_conns"`
	MinConns          int32         `yaml:"min_conns"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime"`
	MigrationsEnabled bool          `yaml:"migrations_enabled"`
}

// DSN возвращает строку подключения в формате key=value (понимают и pgx, и lib/pq).
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PaymentConfig struct {
	Provider              string        `yaml:"provider"`
	SecretKey             string        `yaml:"secret_key"`
	Currency              string        `yaml:"currency"`
	FreeShippingThreshold float64       `yaml:"free_shipping_threshold"`
	ShippingFee           float64       `yaml:"shipping_fee"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	IdempotencyWindow     time.Duration `yaml:"idempotency_window"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DeviceConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	DeviceID string `yaml:"device_id"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

type StorefrontConfig struct {
	MergeGuestOnLogin bool `yaml:"merge_guest_on_login"`
}

type Config struct {
	App        AppConfig        `yaml:"app"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Auth       AuthConfig       `yaml:"auth"`
	Device     DeviceConfig     `yaml:"device"`
	API        APIConfig        `yaml:"api"`
	Storefront StorefrontConfig `yaml:"storefront"`
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "storefront",
			Port:     "8080",
			Env:      "development",
			LogLevel: "info",
		},
		Postgres: PostgresConfig{
			Host:              "localhost",
			Port:              "5432",
			User:              "postgres",
			DBName:            "storefront",
			SSLMode:           "disable",
			MaxConns:          10,
			MinConns:          2,
			MaxConnLifetime:   time.Hour,
			MigrationsEnabled: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Payment: PaymentConfig{
			Provider:              "stripe",
			Currency:              "inr",
			FreeShippingThreshold: 500,
			ShippingFee:           99,
			RequestTimeout:        10 * time.Second,
			IdempotencyWindow:     15 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
		Device: DeviceConfig{
			Backend: "bolt",
			Path:    defaultDevicePath(),
		},
		API: APIConfig{
			BaseURL: "http://localhost:8080",
		},
		Storefront: StorefrontConfig{
			MergeGuestOnLogin: true,
		},
	}
}

// NewConfig собирает конфигурацию: .env -> yaml-файл (STOREFRONT_CONFIG) -> переменные окружения.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.App.Name, "APP_NAME")
	setString(&c.App.Port, "APP_PORT")
	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogLevel, "LOG_LEVEL")

	setString(&c.Postgres.Host, "DB_HOST")
	setString(&c.Postgres.Port, "DB_PORT")
	setString(&c.Postgres.User, "DB_USER")
	setString(&c.Postgres.Password, "DB_PASSWORD")
	setString(&c.Postgres.DBName, "DB_NAME")
	setString(&c.Postgres.SSLMode, "DB_SSLMODE")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.Payment.Provider, "PAYMENT_PROVIDER")
	setString(&c.Payment.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Payment.Currency, "PAYMENT_CURRENCY")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	setString(&c.Device.Backend, "DEVICE_BACKEND")
	setString(&c.Device.Path, "DEVICE_PATH")
	setString(&c.Device.DeviceID, "DEVICE_ID")

	setString(&c.API.BaseURL, "API_BASE_URL")

	if err := setInt32(&c.Postgres.MaxConns, "DB_MAX_CONNS"); err != nil {
		return err
	}
	if err := setInt32(&c.Postgres.MinConns, "DB_MIN_CONNS"); err != nil {
		return err
	}
	if err := setDuration(&c.Postgres.MaxConnLifetime, "DB_MAX_CONN_LIFETIME"); err != nil {
		return err
	}
	if err := setBool(&c.Postgres.MigrationsEnabled, "DB_MIGRATIONS_ENABLED"); err != nil {
		return err
	}
	if err := setBool(&c.Redis.Enabled, "REDIS_ENABLED"); err != nil {
		return err
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REDIS_DB: %v", ErrInvalidConfig, err)
		}
		c.Redis.DB = n
	}
	if err := setFloat(&c.Payment.FreeShippingThreshold, "FREE_SHIPPING_THRESHOLD"); err != nil {
		return err
	}
	if err := setFloat(&c.Payment.ShippingFee, "SHIPPING_FEE"); err != nil {
		return err
	}
	if err := setDuration(&c.Payment.RequestTimeout, "PAYMENT_REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Payment.IdempotencyWindow, "PAYMENT_IDEMPOTENCY_WINDOW"); err != nil {
		return err
	}
	if err := setDuration(&c.Auth.TokenTTL, "JWT_TOKEN_TTL"); err != nil {
		return err
	}
	if err := setBool(&c.Storefront.MergeGuestOnLogin, "MERGE_GUEST_ON_LOGIN"); err != nil {
		return err
	}

	return nil
}

// Validate проверяет настройки, без которых сервисы не поднимутся.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", ErrInvalidConfig)
	}
	if c.Payment.Provider == "stripe" && c.Payment.SecretKey == "" {
		return fmt.Errorf("%w: STRIPE_SECRET_KEY is required for stripe provider", ErrInvalidConfig)
	}
	if c.Payment.Provider != "stripe" && c.Payment.Provider != "memory" {
		return fmt.Errorf("%w: unknown payment provider %q", ErrInvalidConfig, c.Payment.Provider)
	}
	if c.Payment.Currency == "" {
		return fmt.Errorf("%w: payment currency is required", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func defaultDevicePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storefront-device.db"
	}
	return home + "/.storefront/device.db"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt32(dst *int32, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = int32(n)
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = d
	return nil
}
