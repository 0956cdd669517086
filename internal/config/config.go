package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	// Environment is development, test or production
	Environment string `validate:"oneof=development test production"`

	Database  DatabaseConfig
	Server    ServerConfig
	Security  SecurityConfig
	CORS      CORSConfig
	Logging   LoggingConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string `validate:"oneof=postgres sqlite"`
	URL        string // Full PostgreSQL URL
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
	// Populate seeds demo songs into an empty catalog
	Populate bool
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int `validate:"min=1,max=65535"`
	Host            string
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	JWTSecret    string
	JWTIssuer    string        `validate:"required"`
	JWTExpiresIn time.Duration `validate:"gt=0"`
	// PasswordHash is the bcrypt hash shared by the built-in accounts
	PasswordHash string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json text"`
	// File duplicates output to a rotated log file when set
	File           string
	FileMaxSizeMB  int `validate:"gte=0"`
	FileMaxBackups int `validate:"gte=0"`
	FileMaxAgeDays int `validate:"gte=0"`
}

// MailConfig holds notification mail settings
type MailConfig struct {
	Disabled bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration `validate:"gt=0"`
}

// RateLimitConfig bounds write and login requests per client IP
type RateLimitConfig struct {
	RequestsPerSecond float64 `validate:"gt=0"`
	Burst             int     `validate:"gt=0"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: strings.ToLower(getEnvOrDefault("ENV", "development")),
	}

	loaders := []struct {
		name string
		fn   func() error
	}{
		{"database", cfg.loadDatabase},
		{"server", cfg.loadServer},
		{"security", cfg.loadSecurity},
		{"logging", cfg.loadLogging},
		{"mail", cfg.loadMail},
		{"rate limit", cfg.loadRateLimit},
	}
	for _, l := range loaders {
		if err := l.fn(); err != nil {
			return nil, fmt.Errorf("load %s config: %w", l.name, err)
		}
	}
	cfg.loadCORS()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadDatabase() error {
	c.Database.Driver = strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres"))
	c.Database.SQLitePath = getEnvOrDefault("SQLITE_PATH", "songcatalog.db")

	populate, err := getBool("DB_POPULATE", false)
	if err != nil {
		return err
	}
	c.Database.Populate = populate

	// Try to load DATABASE_URL first
	c.Database.URL = os.Getenv("DATABASE_URL")
	if c.Database.URL != "" {
		return nil
	}

	c.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	c.Database.User = os.Getenv("DB_USER")
	c.Database.Password = os.Getenv("DB_PASSWORD")
	c.Database.Name = os.Getenv("DB_NAME")
	c.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	port, err := getInt("DB_PORT", 5432)
	if err != nil {
		return err
	}
	c.Database.Port = port

	if c.Database.Host != "" && c.Database.User != "" && c.Database.Name != "" {
		c.Database.URL = fmt.Sprintf(
			"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			c.Database.User,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
			c.Database.SSLMode,
		)
	}
	return nil
}

func (c *Config) loadServer() error {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return err
	}
	c.Server.Port = port
	c.Server.Host = getEnvOrDefault("HOST", "0.0.0.0")

	c.Server.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	return err
}

func (c *Config) loadSecurity() error {
	c.Security.JWTSecret = os.Getenv("JWT_SECRET")
	c.Security.JWTIssuer = getEnvOrDefault("JWT_ISSUER", "songcatalog")
	c.Security.PasswordHash = os.Getenv("USER_PASSWORD_HASH")

	var err error
	c.Security.JWTExpiresIn, err = getDuration("JWT_EXPIRES_IN", time.Hour)
	return err
}

func (c *Config) loadCORS() {
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv != "" {
		c.CORS.AllowedOrigins = splitList(originsEnv)
		return
	}
	// Default for local development
	c.CORS.AllowedOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:8080",
	}
}

func (c *Config) loadLogging() error {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", "json")
	c.Logging.File = os.Getenv("LOG_FILE")

	var err error
	if c.Logging.FileMaxSizeMB, err = getInt("LOG_FILE_MAX_SIZE_MB", 50); err != nil {
		return err
	}
	if c.Logging.FileMaxBackups, err = getInt("LOG_FILE_MAX_BACKUPS", 5); err != nil {
		return err
	}
	c.Logging.FileMaxAgeDays, err = getInt("LOG_FILE_MAX_AGE_DAYS", 28)
	return err
}

func (c *Config) loadMail() error {
	var err error
	if c.Mail.Disabled, err = getBool("SMTP_DISABLED", true); err != nil {
		return err
	}
	c.Mail.Host = getEnvOrDefault("SMTP_HOST", "localhost")
	if c.Mail.Port, err = getInt("SMTP_PORT", 25); err != nil {
		return err
	}
	c.Mail.Username = os.Getenv("SMTP_USERNAME")
	c.Mail.Password = os.Getenv("SMTP_PASSWORD")
	c.Mail.From = getEnvOrDefault("MAIL_FROM", "songcatalog@localhost")
	c.Mail.To = splitList(getEnvOrDefault("MAIL_TO", "catalog@localhost"))
	c.Mail.Timeout, err = getDuration("MAIL_TIMEOUT", 10*time.Second)
	return err
}

func (c *Config) loadRateLimit() error {
	rps, err := strconv.ParseFloat(getEnvOrDefault("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	c.RateLimit.RequestsPerSecond = rps
	c.RateLimit.Burst, err = getInt("RATE_LIMIT_BURST", 10)
	return err
}

// LoadDatabase reads and validates only the database settings, for tools that
// never serve requests.
func LoadDatabase() (DatabaseConfig, error) {
	c := &Config{}
	if err := c.loadDatabase(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("load database config: %w", err)
	}
	problems := c.Database.problems()
	if err := validator.New().Var(c.Database.Driver, "oneof=postgres sqlite"); err != nil {
		problems = append(problems, fmt.Sprintf("DB_DRIVER %q is not supported", c.Database.Driver))
	}
	if len(problems) > 0 {
		return DatabaseConfig{}, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return c.Database, nil
}

func (d DatabaseConfig) problems() []string {
	var problems []string
	if d.Driver == "postgres" && d.URL == "" {
		problems = append(problems, "DATABASE_URL is required (or DB_HOST, DB_USER, DB_NAME)")
	}
	if d.Driver == "sqlite" && d.SQLitePath == "" {
		problems = append(problems, "SQLITE_PATH is required for the sqlite driver")
	}
	return problems
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	problems = append(problems, c.Database.problems()...)

	if c.Security.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if len(c.Security.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}
	if c.IsProduction() && c.Security.PasswordHash == "" {
		problems = append(problems, "USER_PASSWORD_HASH is required in production")
	}

	if !c.Mail.Disabled && len(c.Mail.To) == 0 {
		problems = append(problems, "MAIL_TO is required when SMTP is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
